package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *Item) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]*Item, error)
	Update(ctx context.Context, db *gorm.DB, item *Item) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	List(ctx context.Context, db *gorm.DB, filter ListItemFilter, page pagination.Pagination) ([]*Item, error)

	// Debit subtracts qty when at least qty is on hand and reports whether a row changed.
	Debit(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int64, actor string, at time.Time) (bool, error)
	Credit(ctx context.Context, db *gorm.DB, id snowflake.ID, qty int64, actor string, at time.Time) (bool, error)
	CountOrderLines(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
