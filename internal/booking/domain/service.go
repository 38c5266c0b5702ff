package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// EventDateLayout is the stored form of an event date.
const EventDateLayout = "2006-01-02"

// Availability describes how many units of a non-consumable item are free
// on one date.
type Availability struct {
	ItemID    snowflake.ID `json:"item_id"`
	EventDate string       `json:"event_date"`
	OnHand    int64        `json:"on_hand"`
	Booked    int64        `json:"booked"`
	Remaining int64        `json:"remaining"`
}

type Validator interface {
	// CheckAvailability fails with ErrOverbooked when booking requested more
	// units for eventDate would exceed on-hand stock. Lines of excludeOrderID
	// are left out of the booked sum. Callers hold the booking lock for
	// (itemID, eventDate) and run this inside the order transaction.
	CheckAvailability(ctx context.Context, tx *gorm.DB, itemID snowflake.ID, eventDate string, requested int64, excludeOrderID snowflake.ID) (Availability, error)
}

type Service interface {
	Validator
	Availability(ctx context.Context, itemID, eventDate string) (Availability, error)
}

// PeakBooking is the busiest event date of one item.
type PeakBooking struct {
	EventDate string
	Booked    int64
}

type Repository interface {
	SumBooked(ctx context.Context, db *gorm.DB, itemID snowflake.ID, eventDate string, excludeOrderID snowflake.ID) (int64, error)
	// PeakBooked returns the date with the most units of itemID booked, or a
	// zero PeakBooking when the item has no dated lines.
	PeakBooked(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (PeakBooking, error)
}

var (
	ErrOverbooked        = errors.New("overbooked")
	ErrEventDateRequired = errors.New("event_date_required")
	ErrInvalidEventDate  = errors.New("invalid_event_date")
	ErrNotBookable       = errors.New("item_not_bookable")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
)

// NormalizeEventDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns
// the calendar date. Blank input stays blank.
func NormalizeEventDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if t, err := time.Parse(EventDateLayout, raw); err == nil {
		return t.Format(EventDateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(EventDateLayout), nil
	}
	return "", ErrInvalidEventDate
}
