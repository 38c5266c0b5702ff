package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	TargetInventoryItem = "inventory_item"
	TargetOrder         = "order"
	TargetInvoice       = "invoice"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ActorID    string            `gorm:"type:varchar(128);not null" json:"actor_id"`
	Action     string            `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType string            `gorm:"type:varchar(32);not null;index:idx_audit_logs_target" json:"target_type"`
	TargetID   string            `gorm:"type:varchar(32);not null;index:idx_audit_logs_target" json:"target_id"`
	RequestID  string            `gorm:"type:varchar(64)" json:"request_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type ListFilter struct {
	TargetType string
	TargetID   string
	Action     string
	Limit      int
}
