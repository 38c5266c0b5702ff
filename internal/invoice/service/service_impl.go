package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/actorcontext"
	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	"github.com/smallbiznis/orderdesk/internal/clock"
	"github.com/smallbiznis/orderdesk/internal/config"
	"github.com/smallbiznis/orderdesk/internal/invoice/domain"
	obslogger "github.com/smallbiznis/orderdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderdesk/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/pkg/db"
	"github.com/smallbiznis/orderdesk/pkg/db/option"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const invoiceDateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
	Policy   *config.PolicyHolder
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
	policy   *config.PolicyHolder
	metrics  *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		policy:   p.Policy,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(req.OrderID))
	if err != nil || orderID == 0 {
		return domain.Invoice{}, domain.ErrInvalidOrderID
	}
	number := strings.TrimSpace(req.InvoiceNumber)
	if number == "" {
		return domain.Invoice{}, domain.ErrInvalidInvoiceNumber
	}
	invoiceDate, err := normalizeInvoiceDate(req.InvoiceDate)
	if err != nil {
		return domain.Invoice{}, err
	}
	method, err := s.paymentMethod(req.PaymentMethod)
	if err != nil {
		return domain.Invoice{}, err
	}
	if req.DepositAmount < 0 || req.UpfrontPayment < 0 || req.DeliveryCharge < 0 {
		return domain.Invoice{}, domain.ErrInvalidAmount
	}

	actor := actorcontext.ActorIDFromContext(ctx)
	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:             s.genID.Generate(),
		OrderID:        orderID,
		InvoiceNumber:  number,
		InvoiceDate:    invoiceDate,
		PaymentMethod:  method,
		DepositAmount:  req.DepositAmount,
		UpfrontPayment: req.UpfrontPayment,
		DeliveryCharge: req.DeliveryCharge,
		IsFullyPaid:    req.IsFullyPaid,
		CreatedBy:      actor,
		CreatedAt:      now,
		UpdatedBy:      actor,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", orderdomain.ErrOrderNotFound, orderID)
		}

		linked, err := s.repo.FindByOrderID(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if linked != nil {
			return fmt.Errorf("%w: order %s is billed by %s", domain.ErrDuplicateInvoice, orderID, linked.InvoiceNumber)
		}
		if err := s.ensureNumberFree(ctx, tx, number, 0); err != nil {
			return err
		}

		subtotal, err := s.repo.LineSubtotal(ctx, tx, orderID)
		if err != nil {
			return err
		}
		invoice.ApplyTotals(subtotal)

		if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateInvoiceNumber
			}
			return err
		}
		return s.auditSvc.AuditLog(ctx, tx, "invoice.create", auditdomain.TargetInvoice, invoice.ID.String(), map[string]any{
			"order_id":       invoice.OrderID.String(),
			"invoice_number": invoice.InvoiceNumber,
			"total_amount":   invoice.TotalAmount,
			"balance_due":    invoice.BalanceDue,
			"is_fully_paid":  invoice.IsFullyPaid,
		})
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	s.logger(ctx).Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("order_id", invoice.OrderID.String()),
		zap.Int64("total_amount", invoice.TotalAmount),
	)
	return invoice, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}

	var updated domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrInvoiceNotFound
		}
		if invoice.IsFullyPaid {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyFullyPaid, invoice.InvoiceNumber)
		}

		changes := map[string]any{}
		if req.InvoiceNumber != nil {
			number := strings.TrimSpace(*req.InvoiceNumber)
			if number == "" {
				return domain.ErrInvalidInvoiceNumber
			}
			if number != invoice.InvoiceNumber {
				if err := s.ensureNumberFree(ctx, tx, number, invoice.ID); err != nil {
					return err
				}
				invoice.InvoiceNumber = number
				changes["invoice_number"] = number
			}
		}
		if req.InvoiceDate != nil {
			invoiceDate, err := normalizeInvoiceDate(*req.InvoiceDate)
			if err != nil {
				return err
			}
			invoice.InvoiceDate = invoiceDate
			changes["invoice_date"] = invoiceDate
		}
		if req.PaymentMethod != nil {
			method, err := s.paymentMethod(*req.PaymentMethod)
			if err != nil {
				return err
			}
			invoice.PaymentMethod = method
			changes["payment_method"] = method
		}
		for _, amount := range []struct {
			name  string
			value *int64
			field *int64
		}{
			{"deposit_amount", req.DepositAmount, &invoice.DepositAmount},
			{"upfront_payment", req.UpfrontPayment, &invoice.UpfrontPayment},
			{"delivery_charge", req.DeliveryCharge, &invoice.DeliveryCharge},
		} {
			if amount.value == nil {
				continue
			}
			if *amount.value < 0 {
				return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount.name)
			}
			*amount.field = *amount.value
			changes[amount.name] = *amount.value
		}
		if req.IsFullyPaid != nil {
			invoice.IsFullyPaid = *req.IsFullyPaid
			changes["is_fully_paid"] = invoice.IsFullyPaid
		}

		subtotal, err := s.repo.LineSubtotal(ctx, tx, invoice.OrderID)
		if err != nil {
			return err
		}
		invoice.ApplyTotals(subtotal)
		changes["total_amount"] = invoice.TotalAmount
		changes["balance_due"] = invoice.BalanceDue

		invoice.UpdatedBy = actorcontext.ActorIDFromContext(ctx)
		invoice.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateInvoiceNumber
			}
			return err
		}
		updated = *invoice
		return s.auditSvc.AuditLog(ctx, tx, "invoice.update", auditdomain.TargetInvoice, invoice.ID.String(), changes)
	})
	if err != nil {
		return domain.Invoice{}, err
	}

	if updated.IsFullyPaid {
		s.logger(ctx).Info("invoice fully paid",
			zap.String("invoice_id", updated.ID.String()),
			zap.String("order_id", updated.OrderID.String()),
		)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice == nil {
			return domain.ErrInvoiceNotFound
		}
		if invoice.IsFullyPaid {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyFullyPaid, invoice.InvoiceNumber)
		}
		if err := s.repo.Delete(ctx, tx, invoiceID); err != nil {
			return err
		}
		return s.auditSvc.AuditLog(ctx, tx, "invoice.delete", auditdomain.TargetInvoice, invoice.ID.String(), map[string]any{
			"order_id":       invoice.OrderID.String(),
			"invoice_number": invoice.InvoiceNumber,
		})
	})
}

func (s *Service) Get(ctx context.Context, id string) (domain.Invoice, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID, false)
	if err != nil {
		return domain.Invoice{}, err
	}
	if invoice == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	filter := domain.ListInvoiceFilter{IsFullyPaid: req.IsFullyPaid}
	if raw := strings.TrimSpace(req.OrderID); raw != "" {
		orderID, err := snowflake.ParseString(raw)
		if err != nil || orderID == 0 {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidOrderID
		}
		filter.OrderID = orderID
	}

	invoices, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	invoices, pageInfo := pagination.Page(invoices, option.NormalizePageSize(req.PageSize), func(invoice *domain.Invoice) pagination.Cursor {
		return pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339Nano),
		}
	})

	out := make([]domain.Invoice, 0, len(invoices))
	for _, invoice := range invoices {
		if invoice != nil {
			out = append(out, *invoice)
		}
	}
	return domain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: out}, nil
}

func (s *Service) ensureNumberFree(ctx context.Context, tx *gorm.DB, number string, excludeID snowflake.ID) error {
	taken, err := s.repo.ExistsByNumber(ctx, tx, number, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateInvoiceNumber, number)
	}
	return nil
}

func (s *Service) paymentMethod(raw string) (string, error) {
	method := strings.TrimSpace(raw)
	if method == "" || !s.policy.Get().AllowsPaymentMethod(method) {
		return "", domain.ErrInvalidPaymentMethod
	}
	return method, nil
}

func normalizeInvoiceDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(invoiceDateLayout, raw); err == nil {
		return t.Format(invoiceDateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.Format(invoiceDateLayout), nil
	}
	return "", domain.ErrInvalidInvoiceDate
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
