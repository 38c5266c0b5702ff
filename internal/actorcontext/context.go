// Package actorcontext carries the authenticated actor supplied by the
// upstream session layer.
package actorcontext

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderActorID is set by the auth proxy in front of the API.
const HeaderActorID = "X-Actor-ID"

// SystemActor is recorded when no actor was supplied.
const SystemActor = "system"

type actorKey struct{}

func WithActorID(ctx context.Context, actorID string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorIDFromContext returns the actor id, or SystemActor when absent.
func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return SystemActor
}

// GinMiddleware copies the actor header onto the request context.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorID := strings.TrimSpace(c.GetHeader(HeaderActorID)); actorID != "" {
			c.Request = c.Request.WithContext(WithActorID(c.Request.Context(), actorID))
			c.Set("actor_id", actorID)
		}
		c.Next()
	}
}
