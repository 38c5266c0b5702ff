package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type LineRequest struct {
	ItemID   string
	Quantity int64
}

// OrderRequest is the full header plus the complete set of lines. Update
// replaces the stored order with it.
type OrderRequest struct {
	Title        string
	Description  string
	EventDate    string
	Location     string
	CustomerName string
	PhoneNumber  string
	Lines        []LineRequest
}

type ListOrderRequest struct {
	pagination.Pagination
	EventDate    string
	CustomerName string
}

type ListOrderFilter struct {
	EventDate    string
	CustomerName string
}

type ListOrderResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

type Service interface {
	Create(context.Context, OrderRequest) (Order, error)
	Update(ctx context.Context, id string, req OrderRequest) (Order, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Order, error)
	List(context.Context, ListOrderRequest) (ListOrderResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	UpdateHeader(ctx context.Context, db *gorm.DB, order *Order) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListOrderFilter, limit, offset int) ([]*Order, error)

	FindLines(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Line, error)
	FindLinesByOrderIDs(ctx context.Context, db *gorm.DB, orderIDs []snowflake.ID) (map[snowflake.ID][]Line, error)
	InsertLines(ctx context.Context, db *gorm.DB, lines []Line) error
	DeleteLines(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error
}

var (
	ErrInvalidID           = errors.New("invalid_order_id")
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrInvalidTitle        = errors.New("invalid_title")
	ErrInvalidCustomerName = errors.New("invalid_customer_name")
	ErrInvalidPhoneNumber  = errors.New("invalid_phone_number")
	ErrInvalidLineItem     = errors.New("invalid_line_item")
	ErrInvalidLineQuantity = errors.New("invalid_line_quantity")
	ErrTooManyLines        = errors.New("too_many_lines")
	ErrHasLinkedInvoice    = errors.New("has_linked_invoice")
)
