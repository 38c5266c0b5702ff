package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/actorcontext"
	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	"github.com/smallbiznis/orderdesk/internal/audit/masking"
	"github.com/smallbiznis/orderdesk/internal/clock"
	obscontext "github.com/smallbiznis/orderdesk/internal/observability/context"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, tx *gorm.DB, action, targetType, targetID string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	targetID = strings.TrimSpace(targetID)
	if targetType == "" || targetID == "" {
		return auditdomain.ErrInvalidTarget
	}
	if tx == nil {
		tx = s.db
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorID:    actorcontext.ActorIDFromContext(ctx),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		RequestID:  obscontext.RequestIDFromContext(ctx),
		Metadata:   datatypes.JSONMap(masking.MaskSensitive(metadata)),
		CreatedAt:  s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, tx, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) ([]auditdomain.AuditLog, error) {
	limit := req.Limit
	if limit <= 0 || limit > 250 {
		limit = 50
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Action:     req.Action,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item != nil {
			logs = append(logs, *item)
		}
	}
	return logs, nil
}
