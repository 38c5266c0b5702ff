package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/orderdesk/internal/actorcontext"
	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	"github.com/smallbiznis/orderdesk/internal/clock"
	"github.com/smallbiznis/orderdesk/internal/config"
	"github.com/smallbiznis/orderdesk/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	obslogger "github.com/smallbiznis/orderdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orderdesk/internal/observability/metrics"
	"github.com/smallbiznis/orderdesk/pkg/db"
	"github.com/smallbiznis/orderdesk/pkg/db/option"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo       domain.Repository
	Bookings   bookingdomain.Repository
	Reconciler invoicedomain.Reconciler
	AuditSvc   auditdomain.Service
	Policy     *config.PolicyHolder
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo       domain.Repository
	bookings   bookingdomain.Repository
	reconciler invoicedomain.Reconciler
	auditSvc   auditdomain.Service
	policy     *config.PolicyHolder
	metrics    *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("inventory.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		bookings:   p.Bookings,
		reconciler: p.Reconciler,
		auditSvc:   p.AuditSvc,
		policy:     p.Policy,
		metrics:    p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateItemRequest) (domain.Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Item{}, domain.ErrInvalidName
	}
	if req.Quantity < 0 {
		return domain.Item{}, domain.ErrInvalidQuantity
	}
	if req.UnitPrice < 0 {
		return domain.Item{}, domain.ErrInvalidPrice
	}
	consumable := true
	if req.IsConsumable != nil {
		consumable = *req.IsConsumable
	}

	actor := actorcontext.ActorIDFromContext(ctx)
	now := s.clock.Now()
	item := domain.Item{
		ID:           s.genID.Generate(),
		Name:         name,
		SKU:          slug.Make(name),
		Description:  strings.TrimSpace(req.Description),
		Quantity:     req.Quantity,
		UnitPrice:    req.UnitPrice,
		IsConsumable: consumable,
		CreatedBy:    actor,
		CreatedAt:    now,
		UpdatedBy:    actor,
		UpdatedAt:    now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateSKU
			}
			return err
		}
		return s.auditSvc.AuditLog(ctx, tx, "inventory.create", auditdomain.TargetInventoryItem, item.ID.String(), map[string]any{
			"name":          item.Name,
			"quantity":      item.Quantity,
			"unit_price":    item.UnitPrice,
			"is_consumable": item.IsConsumable,
		})
	})
	if err != nil {
		return domain.Item{}, err
	}

	return item, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateItemRequest) (domain.Item, error) {
	itemID, err := parseID(id)
	if err != nil {
		return domain.Item{}, err
	}

	var updated domain.Item
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}

		priceBefore := item.UnitPrice
		changes := map[string]any{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			item.Name = name
			item.SKU = slug.Make(name)
			changes["name"] = name
		}
		if req.Description != nil {
			item.Description = strings.TrimSpace(*req.Description)
			changes["description"] = item.Description
		}
		if req.Quantity != nil {
			if *req.Quantity < 0 {
				return domain.ErrInvalidQuantity
			}
			if !item.IsConsumable && *req.Quantity < item.Quantity {
				peak, err := s.bookings.PeakBooked(ctx, tx, itemID)
				if err != nil {
					return err
				}
				if *req.Quantity < peak.Booked {
					return fmt.Errorf("%w: %d units booked on %s, %d on hand requested",
						bookingdomain.ErrOverbooked, peak.Booked, peak.EventDate, *req.Quantity)
				}
			}
			changes["quantity_before"] = item.Quantity
			changes["quantity"] = *req.Quantity
			item.Quantity = *req.Quantity
		}
		if req.UnitPrice != nil {
			if *req.UnitPrice < 0 {
				return domain.ErrInvalidPrice
			}
			item.UnitPrice = *req.UnitPrice
			changes["unit_price"] = item.UnitPrice
		}
		if req.IsConsumable != nil && *req.IsConsumable != item.IsConsumable {
			// Flipping the flag would strand existing reservations or bookings.
			inUse, err := s.repo.CountOrderLines(ctx, tx, itemID)
			if err != nil {
				return err
			}
			if inUse > 0 {
				return fmt.Errorf("%w: referenced by %d order lines", domain.ErrItemInUse, inUse)
			}
			item.IsConsumable = *req.IsConsumable
			changes["is_consumable"] = item.IsConsumable
		}

		item.UpdatedBy = actorcontext.ActorIDFromContext(ctx)
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateSKU
			}
			return err
		}
		updated = *item

		if item.UnitPrice != priceBefore {
			changes["unit_price_before"] = priceBefore
			repriced, err := s.reconciler.RepriceItem(ctx, tx, itemID)
			if err != nil {
				return err
			}
			if len(repriced) > 0 {
				invoiceIDs := make([]string, 0, len(repriced))
				for _, invoice := range repriced {
					invoiceIDs = append(invoiceIDs, invoice.ID.String())
				}
				changes["repriced_invoices"] = invoiceIDs
			}
		}
		return s.auditSvc.AuditLog(ctx, tx, "inventory.update", auditdomain.TargetInventoryItem, item.ID.String(), changes)
	})
	if err != nil {
		return domain.Item{}, err
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	itemID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrItemNotFound
		}
		inUse, err := s.repo.CountOrderLines(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if inUse > 0 {
			return fmt.Errorf("%w: referenced by %d order lines", domain.ErrItemInUse, inUse)
		}
		if err := s.repo.Delete(ctx, tx, itemID); err != nil {
			return err
		}
		return s.auditSvc.AuditLog(ctx, tx, "inventory.delete", auditdomain.TargetInventoryItem, item.ID.String(), map[string]any{
			"name": item.Name,
		})
	})
}

func (s *Service) Get(ctx context.Context, id string) (domain.Item, error) {
	itemID, err := parseID(id)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	if item == nil {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListItemRequest) (domain.ListItemResponse, error) {
	filter := domain.ListItemFilter{
		Name:       strings.ToLower(strings.TrimSpace(req.Name)),
		Consumable: req.Consumable,
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return domain.ListItemResponse{}, err
	}

	items, pageInfo := pagination.Page(items, option.NormalizePageSize(req.PageSize), func(item *domain.Item) pagination.Cursor {
		return pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		}
	})

	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}
	return domain.ListItemResponse{PageInfo: pageInfo, Items: out}, nil
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
