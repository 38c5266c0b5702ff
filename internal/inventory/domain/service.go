package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateItemRequest struct {
	Name         string
	Description  string
	Quantity     int64
	UnitPrice    int64
	IsConsumable *bool
}

// UpdateItemRequest applies only the non-nil fields. Quantity sets the
// on-hand count outright (restock or stocktake correction).
type UpdateItemRequest struct {
	Name         *string
	Description  *string
	Quantity     *int64
	UnitPrice    *int64
	IsConsumable *bool
}

type ListItemRequest struct {
	pagination.Pagination
	Name       string
	Consumable *bool
}

type ListItemFilter struct {
	Name       string
	Consumable *bool
}

type ListItemResponse struct {
	pagination.PageInfo
	Items []Item `json:"items"`
}

type Service interface {
	Create(context.Context, CreateItemRequest) (Item, error)
	Update(ctx context.Context, id string, req UpdateItemRequest) (Item, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Item, error)
	List(context.Context, ListItemRequest) (ListItemResponse, error)
}

// Ledger moves stock inside the caller's transaction. Every call is a
// single-row atomic statement.
type Ledger interface {
	// Lookup returns the item and row-locks it for the rest of tx.
	Lookup(ctx context.Context, tx *gorm.DB, itemID snowflake.ID) (Item, error)
	// Reserve debits qty from a consumable item or fails with ErrInsufficientStock.
	Reserve(ctx context.Context, tx *gorm.DB, itemID snowflake.ID, qty int64) error
	// Release credits qty back to the item.
	Release(ctx context.Context, tx *gorm.DB, itemID snowflake.ID, qty int64) error
}

var (
	ErrInvalidID         = errors.New("invalid_item_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrItemNotFound      = errors.New("item_not_found")
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrNotConsumable     = errors.New("item_not_consumable")
	ErrItemInUse         = errors.New("item_in_use")
	ErrDuplicateSKU      = errors.New("duplicate_sku")
)
