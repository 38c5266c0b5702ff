package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/inventory/domain"
	"github.com/smallbiznis/orderdesk/pkg/db"
	"github.com/smallbiznis/orderdesk/pkg/db/option"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

const itemColumns = `id, name, sku, description, quantity, unit_price, is_consumable,
	created_by, created_at, updated_by, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, item *domain.Item) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO inventory_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Name,
		item.SKU,
		item.Description,
		item.Quantity,
		item.UnitPrice,
		item.IsConsumable,
		item.CreatedBy,
		item.CreatedAt,
		item.UpdatedBy,
		item.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Item, error) {
	return r.find(ctx, conn, id, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Item, error) {
	return r.find(ctx, conn, id, db.ForUpdate(conn))
}

func (r *repo) find(ctx context.Context, conn *gorm.DB, id snowflake.ID, suffix string) (*domain.Item, error) {
	var item domain.Item
	err := conn.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`+suffix,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByIDs(ctx context.Context, conn *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]*domain.Item, error) {
	out := make(map[snowflake.ID]*domain.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var items []*domain.Item
	err := conn.WithContext(ctx).Raw(
		`SELECT `+itemColumns+` FROM inventory_items WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, item *domain.Item) error {
	return conn.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET name = ?, sku = ?, description = ?, quantity = ?, unit_price = ?, is_consumable = ?,
		     updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		item.Name,
		item.SKU,
		item.Description,
		item.Quantity,
		item.UnitPrice,
		item.IsConsumable,
		item.UpdatedBy,
		item.UpdatedAt,
		item.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, conn *gorm.DB, id snowflake.ID) error {
	return conn.WithContext(ctx).Exec(`DELETE FROM inventory_items WHERE id = ?`, id).Error
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListItemFilter, page pagination.Pagination) ([]*domain.Item, error) {
	var items []*domain.Item
	stmt := conn.WithContext(ctx).Model(&domain.Item{})
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Consumable != nil {
		stmt = stmt.Where("is_consumable = ?", *filter.Consumable)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Debit(ctx context.Context, conn *gorm.DB, id snowflake.ID, qty int64, actor string, at time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET quantity = quantity - ?, updated_by = ?, updated_at = ?
		 WHERE id = ? AND is_consumable = ? AND quantity >= ?`,
		qty, actor, at, id, true, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Credit(ctx context.Context, conn *gorm.DB, id snowflake.ID, qty int64, actor string, at time.Time) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`UPDATE inventory_items
		 SET quantity = quantity + ?, updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		qty, actor, at, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) CountOrderLines(ctx context.Context, conn *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM order_lines WHERE item_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}
