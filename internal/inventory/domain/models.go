package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Item is a stock keeping unit. Consumable items are used up when ordered;
// the rest are lent out per event date.
type Item struct {
	ID           snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	SKU          string       `gorm:"column:sku;type:varchar(255);not null;uniqueIndex" json:"sku"`
	Description  string       `gorm:"type:text" json:"description,omitempty"`
	Quantity     int64        `gorm:"not null;check:chk_inventory_items_quantity,quantity >= 0" json:"quantity"`
	UnitPrice    int64        `gorm:"not null;check:chk_inventory_items_unit_price,unit_price >= 0" json:"unit_price"`
	IsConsumable bool         `gorm:"not null" json:"is_consumable"`
	CreatedBy    string       `gorm:"type:varchar(128);not null" json:"created_by"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedBy    string       `gorm:"type:varchar(128);not null" json:"updated_by"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Item) TableName() string { return "inventory_items" }
