package option

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 250
)

// Scope mutates a query.
type Scope interface {
	Apply(*gorm.DB) *gorm.DB
}

type ScopeFunc func(*gorm.DB) *gorm.DB

func (f ScopeFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination adds keyset conditions for a (created_at desc, id desc)
// listing and fetches one extra row so callers can detect another page.
// An undecodable token is ignored and the first page is returned.
func ApplyPagination(page pagination.Pagination) Scope {
	return ScopeFunc(func(db *gorm.DB) *gorm.DB {
		size := NormalizePageSize(page.PageSize)
		if token := strings.TrimSpace(page.PageToken); token != "" {
			if cursor, err := pagination.DecodeCursor(token); err == nil {
				createdAt, timeErr := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
				id, idErr := snowflake.ParseString(cursor.ID)
				if timeErr == nil && idErr == nil {
					db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
				}
			}
		}
		return db.Limit(size + 1)
	})
}

func NormalizePageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
