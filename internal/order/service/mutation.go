package service

import (
	"context"
	"errors"
	"time"

	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/internal/lock"
	obsmetrics "github.com/smallbiznis/orderdesk/internal/observability/metrics"
	"github.com/smallbiznis/orderdesk/internal/order/domain"
	"go.uber.org/zap"
)

const (
	operationCreate = "create"
	operationUpdate = "update"
	operationDelete = "delete"
)

const (
	stateValidating = "validating"
	stateApplying   = "applying"
	stateCommitted  = "committed"
	stateRolledBack = "rolled_back"
)

const kindInternal = "internal"

// errorKinds lists the failures a caller can act on. Anything else is
// reported as internal.
var errorKinds = []error{
	inventorydomain.ErrInsufficientStock,
	inventorydomain.ErrItemNotFound,
	bookingdomain.ErrOverbooked,
	bookingdomain.ErrEventDateRequired,
	bookingdomain.ErrInvalidEventDate,
	domain.ErrOrderNotFound,
	domain.ErrInvalidID,
	domain.ErrInvalidTitle,
	domain.ErrInvalidCustomerName,
	domain.ErrInvalidPhoneNumber,
	domain.ErrInvalidLineItem,
	domain.ErrInvalidLineQuantity,
	domain.ErrTooManyLines,
	domain.ErrHasLinkedInvoice,
	invoicedomain.ErrAlreadyFullyPaid,
	lock.ErrLockTimeout,
}

func errorKind(err error) string {
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return kindInternal
}

// mutation tracks one order write through
// validating -> applying -> committed | rolled_back.
type mutation struct {
	operation string
	started   time.Time
	log       *zap.Logger
	metrics   *obsmetrics.OrderMetrics
}

func (s *Service) begin(ctx context.Context, operation, orderID string) *mutation {
	log := s.logger(ctx).With(zap.String("operation", operation))
	if orderID != "" {
		log = log.With(zap.String("order_id", orderID))
	}
	log.Debug("order mutation", zap.String("state", stateValidating))
	return &mutation{
		operation: operation,
		started:   time.Now(),
		log:       log,
		metrics:   s.orderMetrics,
	}
}

func (m *mutation) applying() {
	m.log.Debug("order mutation", zap.String("state", stateApplying))
}

func (m *mutation) finish(err error) error {
	elapsed := time.Since(m.started)
	if err == nil {
		m.log.Info("order mutation",
			zap.String("state", stateCommitted),
			zap.Duration("duration", elapsed),
		)
		m.metrics.ObserveMutation(m.operation, obsmetrics.OutcomeCommitted, "", elapsed)
		return nil
	}

	kind := errorKind(err)
	fields := []zap.Field{
		zap.String("state", stateRolledBack),
		zap.String("reason", kind),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	}
	if kind == kindInternal {
		m.log.Error("order mutation", fields...)
	} else {
		m.log.Info("order mutation", fields...)
	}
	m.metrics.ObserveMutation(m.operation, obsmetrics.OutcomeRolledBack, kind, elapsed)
	return err
}

// acquire takes keys through the configured locker and records the wait.
func (s *Service) acquire(ctx context.Context, keys []string) (lock.Release, error) {
	if len(keys) == 0 {
		return func() {}, nil
	}
	started := time.Now()
	release, err := s.locker.Acquire(ctx, keys)
	s.orderMetrics.ObserveLockWait(s.locker.Backend(), time.Since(started))
	return release, err
}
