package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/booking/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) SumBooked(ctx context.Context, db *gorm.DB, itemID snowflake.ID, eventDate string, excludeOrderID snowflake.ID) (int64, error) {
	var booked int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(ol.quantity), 0)
		 FROM order_lines ol
		 JOIN orders o ON o.id = ol.order_id
		 WHERE ol.item_id = ? AND o.event_date = ? AND o.id <> ?`,
		itemID,
		eventDate,
		excludeOrderID,
	).Scan(&booked).Error
	return booked, err
}

func (r *repo) PeakBooked(ctx context.Context, db *gorm.DB, itemID snowflake.ID) (domain.PeakBooking, error) {
	var rows []struct {
		EventDate string
		Booked    int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT o.event_date AS event_date, SUM(ol.quantity) AS booked
		 FROM order_lines ol
		 JOIN orders o ON o.id = ol.order_id
		 WHERE ol.item_id = ? AND COALESCE(o.event_date, '') <> ''
		 GROUP BY o.event_date
		 ORDER BY 2 DESC, 1
		 LIMIT 1`,
		itemID,
	).Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return domain.PeakBooking{}, err
	}
	return domain.PeakBooking{EventDate: rows[0].EventDate, Booked: rows[0].Booked}, nil
}
