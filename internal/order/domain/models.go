package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
)

type Order struct {
	ID           snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Title        string       `gorm:"type:varchar(255);not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description,omitempty"`
	EventDate    string       `gorm:"type:varchar(10);index" json:"event_date,omitempty"`
	Location     string       `gorm:"type:varchar(255)" json:"location,omitempty"`
	CustomerName string       `gorm:"type:varchar(255);not null" json:"customer_name"`
	PhoneNumber  string       `gorm:"type:varchar(32);not null" json:"phone_number"`
	CreatedBy    string       `gorm:"type:varchar(128);not null" json:"created_by"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedBy    string       `gorm:"type:varchar(128);not null" json:"updated_by"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`

	Lines []Line `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines"`

	// Filled by reads that join the linked invoice.
	InvoiceID   snowflake.ID `gorm:"->;-:migration" json:"invoice_id,omitempty"`
	IsFullyPaid bool         `gorm:"->;-:migration" json:"is_fully_paid"`
}

func (Order) TableName() string { return "orders" }

// Line is one item on an order. An order holds at most one line per item.
type Line struct {
	ID       snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrderID  snowflake.ID `gorm:"not null;uniqueIndex:ux_order_lines_order_item,priority:1" json:"order_id"`
	ItemID   snowflake.ID `gorm:"not null;uniqueIndex:ux_order_lines_order_item,priority:2;index" json:"item_id"`
	Quantity int64        `gorm:"not null;check:chk_order_lines_quantity,quantity > 0" json:"quantity"`
	Position int          `gorm:"not null" json:"position"`

	Item *inventorydomain.Item `gorm:"foreignKey:ItemID;constraint:OnDelete:RESTRICT" json:"-"`

	ItemName     string `gorm:"->;-:migration" json:"item_name,omitempty"`
	UnitPrice    int64  `gorm:"->;-:migration" json:"unit_price"`
	IsConsumable bool   `gorm:"->;-:migration" json:"is_consumable"`
}

func (Line) TableName() string { return "order_lines" }
