package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/actorcontext"
	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	"github.com/smallbiznis/orderdesk/internal/clock"
	"github.com/smallbiznis/orderdesk/internal/config"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/internal/lock"
	obslogger "github.com/smallbiznis/orderdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderdesk/internal/observability/metrics"
	"github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/pkg/db/option"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Config     config.Config
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     *config.PolicyHolder
	Repo       domain.Repository
	Ledger     inventorydomain.Ledger
	Booking    bookingdomain.Validator
	Reconciler invoicedomain.Reconciler
	Locker     lock.Locker
	AuditSvc   auditdomain.Service
	Metrics    *obsmetrics.OrderMetrics `optional:"true"`
}

// Service applies order writes and their stock effects as one transaction.
type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	policy          *config.PolicyHolder
	repo            domain.Repository
	ledger          inventorydomain.Ledger
	booking         bookingdomain.Validator
	reconciler      invoicedomain.Reconciler
	locker          lock.Locker
	auditSvc        auditdomain.Service
	orderMetrics    *obsmetrics.OrderMetrics
	releaseOnDelete bool
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("order.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		policy:          p.Policy,
		repo:            p.Repo,
		ledger:          p.Ledger,
		booking:         p.Booking,
		reconciler:      p.Reconciler,
		locker:          p.Locker,
		auditSvc:        p.AuditSvc,
		orderMetrics:    p.Metrics,
		releaseOnDelete: p.Config.OrderDeleteReleasesStock,
	}
}

func (s *Service) Create(ctx context.Context, req domain.OrderRequest) (domain.Order, error) {
	m := s.begin(ctx, operationCreate, "")
	order, err := s.create(ctx, m, req)
	if err = m.finish(err); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) create(ctx context.Context, m *mutation, req domain.OrderRequest) (domain.Order, error) {
	order, specs, err := s.normalizeRequest(req)
	if err != nil {
		return domain.Order{}, err
	}

	actor := actorcontext.ActorIDFromContext(ctx)
	now := s.clock.Now()
	order.ID = s.genID.Generate()
	order.CreatedBy = actor
	order.CreatedAt = now
	order.UpdatedBy = actor
	order.UpdatedAt = now

	release, err := s.acquire(ctx, bookingKeys(order.EventDate, specItemIDs(specs)...))
	if err != nil {
		return domain.Order{}, err
	}
	defer release()

	m.applying()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		lines, err := s.applyLines(ctx, tx, order.ID, order.EventDate, nil, specs)
		if err != nil {
			return err
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}
		order.Lines = lines

		return s.auditSvc.AuditLog(ctx, tx, "order.create", auditdomain.TargetOrder, order.ID.String(), map[string]any{
			"title":         order.Title,
			"event_date":    order.EventDate,
			"customer_name": order.CustomerName,
			"phone_number":  order.PhoneNumber,
			"lines":         lineSummary(lines),
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.OrderRequest) (domain.Order, error) {
	m := s.begin(ctx, operationUpdate, id)
	order, err := s.update(ctx, m, id, req)
	if err = m.finish(err); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *Service) update(ctx context.Context, m *mutation, id string, req domain.OrderRequest) (domain.Order, error) {
	orderID, err := parseID(id)
	if err != nil {
		return domain.Order{}, err
	}
	next, specs, err := s.normalizeRequest(req)
	if err != nil {
		return domain.Order{}, err
	}

	releaseOrder, err := s.acquire(ctx, []string{lock.OrderKey(orderID.Int64())})
	if err != nil {
		return domain.Order{}, err
	}
	defer releaseOrder()

	// With the order key held the stored date and lines cannot move, so the
	// booking keys computed from them stay valid inside the transaction.
	current, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if current == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.IsFullyPaid {
		return domain.Order{}, fmt.Errorf("%w: order %s", invoicedomain.ErrAlreadyFullyPaid, orderID)
	}
	stored, err := s.repo.FindLines(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	keys := bookingKeys(next.EventDate, specItemIDs(specs)...)
	keys = append(keys, bookingKeys(current.EventDate, lineItemIDs(stored)...)...)
	releaseBookings, err := s.acquire(ctx, keys)
	if err != nil {
		return domain.Order{}, err
	}
	defer releaseBookings()

	m.applying()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrOrderNotFound
		}
		if _, err := s.ensureEditable(ctx, tx, orderID); err != nil {
			return err
		}

		persisted, err := s.repo.FindLines(ctx, tx, orderID)
		if err != nil {
			return err
		}
		before := make(map[snowflake.ID]int64, len(persisted))
		for _, line := range persisted {
			before[line.ItemID] += line.Quantity
		}

		lines, err := s.applyLines(ctx, tx, orderID, next.EventDate, before, specs)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteLines(ctx, tx, orderID); err != nil {
			return err
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}

		next.ID = orderID
		next.CreatedBy = locked.CreatedBy
		next.CreatedAt = locked.CreatedAt
		next.UpdatedBy = actorcontext.ActorIDFromContext(ctx)
		next.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateHeader(ctx, tx, &next); err != nil {
			return err
		}
		next.Lines = lines

		invoice, err := s.reconciler.Recompute(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if invoice != nil {
			next.InvoiceID = invoice.ID
		}

		return s.auditSvc.AuditLog(ctx, tx, "order.update", auditdomain.TargetOrder, orderID.String(), map[string]any{
			"title":             next.Title,
			"event_date":        next.EventDate,
			"event_date_before": locked.EventDate,
			"customer_name":     next.CustomerName,
			"phone_number":      next.PhoneNumber,
			"lines_before":      lineSummary(persisted),
			"lines":             lineSummary(lines),
		})
	})
	if err != nil {
		return domain.Order{}, err
	}
	return next, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	m := s.begin(ctx, operationDelete, id)
	return m.finish(s.delete(ctx, m, id))
}

func (s *Service) delete(ctx context.Context, m *mutation, id string) error {
	orderID, err := parseID(id)
	if err != nil {
		return err
	}

	release, err := s.acquire(ctx, []string{lock.OrderKey(orderID.Int64())})
	if err != nil {
		return err
	}
	defer release()

	m.applying()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		invoice, err := s.ensureEditable(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if invoice != nil {
			return fmt.Errorf("%w: invoice %s", domain.ErrHasLinkedInvoice, invoice.InvoiceNumber)
		}

		lines, err := s.repo.FindLines(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if s.releaseOnDelete {
			for _, line := range lines {
				if !line.IsConsumable {
					continue
				}
				if err := s.ledger.Release(ctx, tx, line.ItemID, line.Quantity); err != nil {
					return err
				}
			}
		}

		if err := s.repo.DeleteLines(ctx, tx, orderID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, orderID); err != nil {
			return err
		}
		return s.auditSvc.AuditLog(ctx, tx, "order.delete", auditdomain.TargetOrder, orderID.String(), map[string]any{
			"title":          order.Title,
			"lines":          lineSummary(lines),
			"stock_released": s.releaseOnDelete,
		})
	})
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	orderID, err := parseID(id)
	if err != nil {
		return domain.Order{}, err
	}
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	lines, err := s.repo.FindLines(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return *order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListOrderRequest) (domain.ListOrderResponse, error) {
	eventDate, err := bookingdomain.NormalizeEventDate(req.EventDate)
	if err != nil {
		return domain.ListOrderResponse{}, err
	}
	filter := domain.ListOrderFilter{
		EventDate:    eventDate,
		CustomerName: strings.ToLower(strings.TrimSpace(req.CustomerName)),
	}

	offset := 0
	if token := strings.TrimSpace(req.PageToken); token != "" {
		if cursor, err := pagination.DecodeCursor(token); err == nil && cursor.Offset > 0 {
			offset = cursor.Offset
		}
	}
	limit := option.NormalizePageSize(req.PageSize)

	orders, err := s.repo.List(ctx, s.db, filter, limit+1, offset)
	if err != nil {
		return domain.ListOrderResponse{}, err
	}
	orders, pageInfo := pagination.Page(orders, limit, func(*domain.Order) pagination.Cursor {
		return pagination.Cursor{Offset: offset + limit}
	})

	ids := make([]snowflake.ID, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	lines, err := s.repo.FindLinesByOrderIDs(ctx, s.db, ids)
	if err != nil {
		return domain.ListOrderResponse{}, err
	}

	out := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if order == nil {
			continue
		}
		order.Lines = lines[order.ID]
		out = append(out, *order)
	}
	return domain.ListOrderResponse{PageInfo: pageInfo, Orders: out}, nil
}

// applyLines moves the ledger from the before quantities to specs and
// validates bookings, then returns the lines to store. Items are visited in
// id order.
func (s *Service) applyLines(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, eventDate string, before map[snowflake.ID]int64, specs []lineSpec) ([]domain.Line, error) {
	after := make(map[snowflake.ID]int64, len(specs))
	for _, spec := range specs {
		after[spec.itemID] = spec.quantity
	}

	items := make(map[snowflake.ID]inventorydomain.Item, len(after))
	for _, itemID := range touchedItems(before, after) {
		item, err := s.ledger.Lookup(ctx, tx, itemID)
		if err != nil {
			return nil, err
		}
		items[itemID] = item

		want, had := after[itemID], before[itemID]
		if item.IsConsumable {
			switch delta := want - had; {
			case delta > 0:
				err = s.ledger.Reserve(ctx, tx, itemID, delta)
			case delta < 0:
				err = s.ledger.Release(ctx, tx, itemID, -delta)
			}
			if err != nil {
				return nil, err
			}
			continue
		}

		if want == 0 {
			continue
		}
		if eventDate == "" {
			return nil, fmt.Errorf("%w: %s is booked per event date", bookingdomain.ErrEventDateRequired, item.Name)
		}
		if _, err := s.booking.CheckAvailability(ctx, tx, itemID, eventDate, want, orderID); err != nil {
			return nil, err
		}
	}

	lines := make([]domain.Line, 0, len(specs))
	for _, spec := range specs {
		item := items[spec.itemID]
		lines = append(lines, domain.Line{
			ID:           s.genID.Generate(),
			OrderID:      orderID,
			ItemID:       spec.itemID,
			Quantity:     spec.quantity,
			Position:     spec.position,
			ItemName:     item.Name,
			UnitPrice:    item.UnitPrice,
			IsConsumable: item.IsConsumable,
		})
	}
	return lines, nil
}

// ensureEditable returns the linked invoice, row-locked, and refuses once it
// is fully paid.
func (s *Service) ensureEditable(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.reconciler.LinkedInvoice(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	if invoice != nil && invoice.IsFullyPaid {
		return nil, fmt.Errorf("%w: invoice %s", invoicedomain.ErrAlreadyFullyPaid, invoice.InvoiceNumber)
	}
	return invoice, nil
}

func lineSummary(lines []domain.Line) []map[string]any {
	out := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		out = append(out, map[string]any{
			"item_id":  line.ItemID.String(),
			"quantity": line.Quantity,
		})
	}
	return out
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
