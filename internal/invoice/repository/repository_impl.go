package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/pkg/db"
	"github.com/smallbiznis/orderdesk/pkg/db/option"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

const invoiceColumns = `id, order_id, invoice_number, invoice_date, payment_method,
	deposit_amount, upfront_payment, delivery_charge, total_amount, balance_due, is_fully_paid,
	created_by, created_at, updated_by, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.OrderID,
		invoice.InvoiceNumber,
		invoice.InvoiceDate,
		invoice.PaymentMethod,
		invoice.DepositAmount,
		invoice.UpfrontPayment,
		invoice.DeliveryCharge,
		invoice.TotalAmount,
		invoice.BalanceDue,
		invoice.IsFullyPaid,
		invoice.CreatedBy,
		invoice.CreatedAt,
		invoice.UpdatedBy,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET invoice_number = ?, invoice_date = ?, payment_method = ?,
		     deposit_amount = ?, upfront_payment = ?, delivery_charge = ?,
		     total_amount = ?, balance_due = ?, is_fully_paid = ?,
		     updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.InvoiceNumber,
		invoice.InvoiceDate,
		invoice.PaymentMethod,
		invoice.DepositAmount,
		invoice.UpfrontPayment,
		invoice.DeliveryCharge,
		invoice.TotalAmount,
		invoice.BalanceDue,
		invoice.IsFullyPaid,
		invoice.UpdatedBy,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) UpdateTotals(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET total_amount = ?, balance_due = ?, updated_by = ?, updated_at = ?
		 WHERE id = ? AND is_fully_paid = ?`,
		invoice.TotalAmount,
		invoice.BalanceDue,
		invoice.UpdatedBy,
		invoice.UpdatedAt,
		invoice.ID,
		false,
	).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Invoice, error) {
	return r.findOne(ctx, conn, "id = ?", id, forUpdate)
}

func (r *repo) FindByOrderID(ctx context.Context, conn *gorm.DB, orderID snowflake.ID, forUpdate bool) (*domain.Invoice, error) {
	return r.findOne(ctx, conn, "order_id = ?", orderID, forUpdate)
}

func (r *repo) findOne(ctx context.Context, conn *gorm.DB, where string, arg any, forUpdate bool) (*domain.Invoice, error) {
	suffix := ""
	if forUpdate {
		suffix = db.ForUpdate(conn)
	}

	var invoice domain.Invoice
	err := conn.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+` FROM invoices WHERE `+where+suffix,
		arg,
	).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ExistsByNumber(ctx context.Context, conn *gorm.DB, number string, excludeID snowflake.ID) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM invoices WHERE invoice_number = ? AND id <> ?`,
		number,
		excludeID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := conn.WithContext(ctx).Model(&domain.Invoice{})
	if filter.OrderID != 0 {
		stmt = stmt.Where("order_id = ?", filter.OrderID)
	}
	if filter.IsFullyPaid != nil {
		stmt = stmt.Where("is_fully_paid = ?", *filter.IsFullyPaid)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) LineSubtotal(ctx context.Context, conn *gorm.DB, orderID snowflake.ID) (int64, error) {
	var subtotal int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(ol.quantity * i.unit_price), 0)
		 FROM order_lines ol
		 JOIN inventory_items i ON i.id = ol.item_id
		 WHERE ol.order_id = ?`,
		orderID,
	).Scan(&subtotal).Error
	return subtotal, err
}

func (r *repo) UnpaidOrderIDsForItem(ctx context.Context, conn *gorm.DB, itemID snowflake.ID) ([]snowflake.ID, error) {
	var raw []int64
	err := conn.WithContext(ctx).Raw(
		`SELECT DISTINCT inv.order_id
		 FROM invoices inv
		 JOIN order_lines ol ON ol.order_id = inv.order_id
		 WHERE ol.item_id = ? AND inv.is_fully_paid = ?
		 ORDER BY inv.order_id`,
		itemID,
		false,
	).Scan(&raw).Error
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, snowflake.ID(id))
	}
	return ids, nil
}

func (r *repo) LockOrder(ctx context.Context, conn *gorm.DB, orderID snowflake.ID) (bool, error) {
	var ids []int64
	err := conn.WithContext(ctx).Raw(
		`SELECT id FROM orders WHERE id = ?`+db.ForUpdate(conn),
		orderID,
	).Scan(&ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}
