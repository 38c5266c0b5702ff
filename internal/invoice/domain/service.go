package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	OrderID        string
	InvoiceNumber  string
	InvoiceDate    string
	PaymentMethod  string
	DepositAmount  int64
	UpfrontPayment int64
	DeliveryCharge int64
	IsFullyPaid    bool
}

// UpdateInvoiceRequest applies only the non-nil fields.
type UpdateInvoiceRequest struct {
	InvoiceNumber  *string
	InvoiceDate    *string
	PaymentMethod  *string
	DepositAmount  *int64
	UpfrontPayment *int64
	DeliveryCharge *int64
	IsFullyPaid    *bool
}

type ListInvoiceRequest struct {
	pagination.Pagination
	OrderID     string
	IsFullyPaid *bool
}

type ListInvoiceFilter struct {
	OrderID     snowflake.ID
	IsFullyPaid *bool
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	Update(ctx context.Context, id string, req UpdateInvoiceRequest) (Invoice, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
}

// Reconciler keeps an invoice consistent with its order inside the
// caller's transaction.
type Reconciler interface {
	// LinkedInvoice returns the invoice billing orderID, or nil when there is
	// none. forUpdate row-locks it for the rest of tx.
	LinkedInvoice(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, forUpdate bool) (*Invoice, error)
	// Recompute rewrites total and balance from the order's current lines.
	// It returns nil, nil when the order has no invoice and
	// ErrAlreadyFullyPaid when the invoice is locked.
	Recompute(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*Invoice, error)
	// RepriceItem recomputes every unpaid invoice whose order has a line for
	// itemID and returns the invoices it rewrote.
	RepriceItem(ctx context.Context, tx *gorm.DB, itemID snowflake.ID) ([]*Invoice, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Invoice, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID, forUpdate bool) (*Invoice, error)
	ExistsByNumber(ctx context.Context, db *gorm.DB, number string, excludeID snowflake.ID) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)

	// LineSubtotal sums quantity times current unit price over the order's lines.
	LineSubtotal(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error)
	UpdateTotals(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	// UnpaidOrderIDsForItem lists orders that bill itemID on an unpaid invoice.
	UnpaidOrderIDsForItem(ctx context.Context, db *gorm.DB, itemID snowflake.ID) ([]snowflake.ID, error)
	// LockOrder row-locks the order and reports whether it exists.
	LockOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (bool, error)
}

var (
	ErrInvalidID              = errors.New("invalid_invoice_id")
	ErrInvalidOrderID         = errors.New("invalid_order_id")
	ErrInvalidInvoiceNumber   = errors.New("invalid_invoice_number")
	ErrInvalidInvoiceDate     = errors.New("invalid_invoice_date")
	ErrInvalidPaymentMethod   = errors.New("invalid_payment_method")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrDuplicateInvoice       = errors.New("duplicate_invoice")
	ErrDuplicateInvoiceNumber = errors.New("duplicate_invoice_number")
	ErrAlreadyFullyPaid       = errors.New("already_fully_paid")
)
