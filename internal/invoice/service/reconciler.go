package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/actorcontext"
	"github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	recomputeApplied = "applied"
	recomputeSkipped = "skipped"
	recomputeRefused = "refused"
)

func (s *Service) LinkedInvoice(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, forUpdate bool) (*domain.Invoice, error) {
	return s.repo.FindByOrderID(ctx, tx, orderID, forUpdate)
}

func (s *Service) Recompute(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByOrderID(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		s.logger(ctx).Debug("no invoice to reconcile", zap.String("order_id", orderID.String()))
		s.metrics.RecordInvoiceRecompute(ctx, recomputeSkipped)
		return nil, nil
	}
	if invoice.IsFullyPaid {
		s.metrics.RecordInvoiceRecompute(ctx, recomputeRefused)
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyFullyPaid, invoice.InvoiceNumber)
	}

	subtotal, err := s.repo.LineSubtotal(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	before := invoice.TotalAmount
	invoice.ApplyTotals(subtotal)
	invoice.UpdatedBy = actorcontext.ActorIDFromContext(ctx)
	invoice.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTotals(ctx, tx, invoice); err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceRecompute(ctx, recomputeApplied)
	if before != invoice.TotalAmount {
		s.logger(ctx).Info("invoice totals reconciled",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("order_id", orderID.String()),
			zap.Int64("total_before", before),
			zap.Int64("total_amount", invoice.TotalAmount),
			zap.Int64("balance_due", invoice.BalanceDue),
		)
	}
	return invoice, nil
}

func (s *Service) RepriceItem(ctx context.Context, tx *gorm.DB, itemID snowflake.ID) ([]*domain.Invoice, error) {
	orderIDs, err := s.repo.UnpaidOrderIDsForItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	repriced := make([]*domain.Invoice, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		invoice, err := s.Recompute(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		if invoice != nil {
			repriced = append(repriced, invoice)
		}
	}
	if len(repriced) > 0 {
		s.logger(ctx).Info("item repriced on open invoices",
			zap.String("item_id", itemID.String()),
			zap.Int("invoices", len(repriced)),
		)
	}
	return repriced, nil
}
