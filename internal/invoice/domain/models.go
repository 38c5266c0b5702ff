package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
)

// Invoice bills exactly one order. Money fields are in minor units.
// TotalAmount and BalanceDue are derived and only written by the reconciler.
type Invoice struct {
	ID             snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrderID        snowflake.ID `gorm:"not null;uniqueIndex" json:"order_id"`
	InvoiceNumber  string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"invoice_number"`
	InvoiceDate    string       `gorm:"type:varchar(10);not null" json:"invoice_date"`
	PaymentMethod  string       `gorm:"type:varchar(64);not null" json:"payment_method"`
	DepositAmount  int64        `gorm:"not null;default:0;check:chk_invoices_deposit_amount,deposit_amount >= 0" json:"deposit_amount"`
	UpfrontPayment int64        `gorm:"not null;default:0;check:chk_invoices_upfront_payment,upfront_payment >= 0" json:"upfront_payment"`
	DeliveryCharge int64        `gorm:"not null;default:0;check:chk_invoices_delivery_charge,delivery_charge >= 0" json:"delivery_charge"`
	TotalAmount    int64        `gorm:"not null;default:0" json:"total_amount"`
	BalanceDue     int64        `gorm:"not null;default:0" json:"balance_due"`
	IsFullyPaid    bool         `gorm:"not null;default:false" json:"is_fully_paid"`
	CreatedBy      string       `gorm:"type:varchar(128);not null" json:"created_by"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedBy      string       `gorm:"type:varchar(128);not null" json:"updated_by"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`

	Order *orderdomain.Order `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Invoice) TableName() string { return "invoices" }

// ApplyTotals sets the derived fields from the order's line subtotal.
func (i *Invoice) ApplyTotals(lineSubtotal int64) {
	i.TotalAmount = lineSubtotal + i.DeliveryCharge
	i.BalanceDue = i.TotalAmount - i.UpfrontPayment
}
