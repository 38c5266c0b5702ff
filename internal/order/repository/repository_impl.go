package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/pkg/db"
	"gorm.io/gorm"
)

const orderColumns = `o.id, o.title, o.description, o.event_date, o.location, o.customer_name, o.phone_number,
	o.created_by, o.created_at, o.updated_by, o.updated_at`

// invoiceColumns project the linked invoice, if any, onto the order row.
const invoiceColumns = `COALESCE(inv.id, 0) AS invoice_id, COALESCE(inv.is_fully_paid, FALSE) AS is_fully_paid`

const lineColumns = `ol.id, ol.order_id, ol.item_id, ol.quantity, ol.position,
	i.name AS item_name, i.unit_price, i.is_consumable`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, order *domain.Order) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO orders (id, title, description, event_date, location, customer_name, phone_number,
		     created_by, created_at, updated_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.Title,
		order.Description,
		order.EventDate,
		order.Location,
		order.CustomerName,
		order.PhoneNumber,
		order.CreatedBy,
		order.CreatedAt,
		order.UpdatedBy,
		order.UpdatedAt,
	).Error
}

func (r *repo) UpdateHeader(ctx context.Context, conn *gorm.DB, order *domain.Order) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE orders
		 SET title = ?, description = ?, event_date = ?, location = ?, customer_name = ?, phone_number = ?,
		     updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		order.Title,
		order.Description,
		order.EventDate,
		order.Location,
		order.CustomerName,
		order.PhoneNumber,
		order.UpdatedBy,
		order.UpdatedAt,
		order.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Exec(`DELETE FROM orders WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := conn.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`, `+invoiceColumns+`
		 FROM orders o
		 LEFT JOIN invoices inv ON inv.order_id = o.id
		 WHERE o.id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row only; postgres refuses FOR UPDATE
// on the nullable side of an outer join.
func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := conn.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = ?`+db.ForUpdate(conn),
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

// List returns unpaid orders before fully paid ones, newest first within
// each group.
func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListOrderFilter, limit, offset int) ([]*domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.EventDate != "" {
		where = append(where, "o.event_date = ?")
		args = append(args, filter.EventDate)
	}
	if filter.CustomerName != "" {
		where = append(where, "LOWER(o.customer_name) LIKE ?")
		args = append(args, "%"+filter.CustomerName+"%")
	}

	query := `SELECT ` + orderColumns + `, ` + invoiceColumns + `
		 FROM orders o
		 LEFT JOIN invoices inv ON inv.order_id = o.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY is_fully_paid ASC, o.created_at DESC, o.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var orders []*domain.Order
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) FindLines(ctx context.Context, conn *gorm.DB, orderID snowflake.ID) ([]domain.Line, error) {
	var lines []domain.Line
	err := conn.WithContext(ctx).Raw(
		`SELECT `+lineColumns+`
		 FROM order_lines ol
		 JOIN inventory_items i ON i.id = ol.item_id
		 WHERE ol.order_id = ?
		 ORDER BY ol.position ASC`,
		orderID,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repo) FindLinesByOrderIDs(ctx context.Context, conn *gorm.DB, orderIDs []snowflake.ID) (map[snowflake.ID][]domain.Line, error) {
	out := make(map[snowflake.ID][]domain.Line, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	var lines []domain.Line
	err := conn.WithContext(ctx).Raw(
		`SELECT `+lineColumns+`
		 FROM order_lines ol
		 JOIN inventory_items i ON i.id = ol.item_id
		 WHERE ol.order_id IN ?
		 ORDER BY ol.order_id, ol.position ASC`,
		orderIDs,
	).Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		out[line.OrderID] = append(out[line.OrderID], line)
	}
	return out, nil
}

func (r *repo) InsertLines(ctx context.Context, conn *gorm.DB, lines []domain.Line) error {
	for _, line := range lines {
		err := conn.WithContext(ctx).Exec(
			`INSERT INTO order_lines (id, order_id, item_id, quantity, position) VALUES (?, ?, ?, ?, ?)`,
			line.ID,
			line.OrderID,
			line.ItemID,
			line.Quantity,
			line.Position,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteLines(ctx context.Context, conn *gorm.DB, orderID snowflake.ID) error {
	return conn.WithContext(ctx).Exec(`DELETE FROM order_lines WHERE order_id = ?`, orderID).Error
}
