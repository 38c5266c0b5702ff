package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderdesk/internal/booking/domain"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	obslogger "github.com/smallbiznis/orderdesk/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Items inventorydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	items inventorydomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("booking.service"),
		repo:  p.Repo,
		items: p.Items,
	}
}

func (s *Service) CheckAvailability(ctx context.Context, tx *gorm.DB, itemID snowflake.ID, eventDate string, requested int64, excludeOrderID snowflake.ID) (domain.Availability, error) {
	if requested <= 0 {
		return domain.Availability{}, domain.ErrInvalidQuantity
	}
	if strings.TrimSpace(eventDate) == "" {
		return domain.Availability{}, domain.ErrEventDateRequired
	}

	availability, err := s.availability(ctx, tx, itemID, eventDate, excludeOrderID, true)
	if err != nil {
		return domain.Availability{}, err
	}

	if availability.Booked+requested > availability.OnHand {
		obslogger.WithContext(ctx, s.log).Info("booking rejected",
			zap.String("item_id", itemID.String()),
			zap.String("event_date", eventDate),
			zap.Int64("on_hand", availability.OnHand),
			zap.Int64("booked", availability.Booked),
			zap.Int64("requested", requested),
		)
		return availability, fmt.Errorf("%w: %d of %d units left on %s, %d requested",
			domain.ErrOverbooked, availability.Remaining, availability.OnHand, eventDate, requested)
	}

	return availability, nil
}

func (s *Service) Availability(ctx context.Context, itemID, eventDate string) (domain.Availability, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(itemID))
	if err != nil || id == 0 {
		return domain.Availability{}, inventorydomain.ErrInvalidID
	}
	date, err := domain.NormalizeEventDate(eventDate)
	if err != nil {
		return domain.Availability{}, err
	}
	if date == "" {
		return domain.Availability{}, domain.ErrEventDateRequired
	}
	return s.availability(ctx, s.db, id, date, 0, false)
}

// availability with forUpdate row-locks the item so a concurrent stock
// change waits for the booking transaction.
func (s *Service) availability(ctx context.Context, db *gorm.DB, itemID snowflake.ID, eventDate string, excludeOrderID snowflake.ID, forUpdate bool) (domain.Availability, error) {
	find := s.items.FindByID
	if forUpdate {
		find = s.items.FindByIDForUpdate
	}
	item, err := find(ctx, db, itemID)
	if err != nil {
		return domain.Availability{}, err
	}
	if item == nil {
		return domain.Availability{}, fmt.Errorf("%w: %s", inventorydomain.ErrItemNotFound, itemID)
	}
	if item.IsConsumable {
		return domain.Availability{}, fmt.Errorf("%w: %s is consumable", domain.ErrNotBookable, item.Name)
	}

	booked, err := s.repo.SumBooked(ctx, db, itemID, eventDate, excludeOrderID)
	if err != nil {
		return domain.Availability{}, err
	}

	remaining := item.Quantity - booked
	if remaining < 0 {
		remaining = 0
	}
	return domain.Availability{
		ItemID:    itemID,
		EventDate: eventDate,
		OnHand:    item.Quantity,
		Booked:    booked,
		Remaining: remaining,
	}, nil
}
