package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/actorcontext"
	"github.com/smallbiznis/orderdesk/internal/inventory/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	directionReserve = "reserve"
	directionRelease = "release"
)

func (s *Service) Lookup(ctx context.Context, tx *gorm.DB, itemID snowflake.ID) (domain.Item, error) {
	item, err := s.repo.FindByIDForUpdate(ctx, tx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	if item == nil {
		return domain.Item{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}
	return *item, nil
}

func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, itemID snowflake.ID, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	ok, err := s.repo.Debit(ctx, tx, itemID, qty, actorcontext.ActorIDFromContext(ctx), s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return s.explainFailedDebit(ctx, tx, itemID, qty)
	}

	s.metrics.RecordStockMovement(ctx, directionReserve, qty)
	s.warnIfLow(ctx, tx, itemID)
	return nil
}

func (s *Service) Release(ctx context.Context, tx *gorm.DB, itemID snowflake.ID, qty int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}

	ok, err := s.repo.Credit(ctx, tx, itemID, qty, actorcontext.ActorIDFromContext(ctx), s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}

	s.metrics.RecordStockMovement(ctx, directionRelease, qty)
	return nil
}

// explainFailedDebit turns a zero-row conditional update into the reason
// the debit could not apply.
func (s *Service) explainFailedDebit(ctx context.Context, tx *gorm.DB, itemID snowflake.ID, qty int64) error {
	item, err := s.repo.FindByID(ctx, tx, itemID)
	if err != nil {
		return err
	}
	switch {
	case item == nil:
		return fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	case !item.IsConsumable:
		return fmt.Errorf("%w: %s", domain.ErrNotConsumable, item.Name)
	default:
		return fmt.Errorf("%w: %s has %d left, %d requested", domain.ErrInsufficientStock, item.Name, item.Quantity, qty)
	}
}

func (s *Service) warnIfLow(ctx context.Context, tx *gorm.DB, itemID snowflake.ID) {
	threshold := s.policy.Get().LowStockThreshold
	if threshold <= 0 {
		return
	}
	item, err := s.repo.FindByID(ctx, tx, itemID)
	if err != nil || item == nil {
		return
	}
	if item.Quantity <= threshold {
		s.logger(ctx).Warn("stock below threshold",
			zap.String("item_id", item.ID.String()),
			zap.String("sku", item.SKU),
			zap.Int64("quantity", item.Quantity),
			zap.Int64("threshold", threshold),
		)
	}
}
