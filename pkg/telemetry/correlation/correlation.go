package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
	obscontext "github.com/smallbiznis/orderdesk/internal/observability/context"
)

// Header propagates the id between the caller and the API.
const Header = "X-Correlation-ID"

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	return obscontext.CorrelationIDFromContext(ctx)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return obscontext.WithCorrelationID(ctx, cid), cid
}

// FromHeader keeps a caller supplied id when it is a valid ULID and
// otherwise generates a fresh one.
func FromHeader(ctx context.Context, raw string) (context.Context, string) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if _, err := ulid.ParseStrict(raw); err == nil {
			return obscontext.WithCorrelationID(ctx, raw), raw
		}
	}
	return EnsureCorrelationID(ctx)
}
