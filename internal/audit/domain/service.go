package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	TargetType string
	TargetID   string
	Action     string
	Limit      int
}

// Service records who changed what. AuditLog writes on the caller's
// transaction so a rolled back mutation leaves no entry.
type Service interface {
	AuditLog(ctx context.Context, tx *gorm.DB, action, targetType, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) ([]AuditLog, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidTarget = errors.New("invalid_target")
)
