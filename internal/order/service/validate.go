package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	"github.com/smallbiznis/orderdesk/internal/lock"
	"github.com/smallbiznis/orderdesk/internal/order/domain"
)

const maxPhoneNumberLength = 32

// lineSpec is one validated request line after same-item lines were merged.
type lineSpec struct {
	itemID   snowflake.ID
	quantity int64
	position int
}

// normalizeRequest validates the header and lines and returns the header
// as an unsaved order.
func (s *Service) normalizeRequest(req domain.OrderRequest) (domain.Order, []lineSpec, error) {
	order := domain.Order{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Location:     strings.TrimSpace(req.Location),
		CustomerName: strings.TrimSpace(req.CustomerName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
	}
	if order.Title == "" {
		return domain.Order{}, nil, domain.ErrInvalidTitle
	}
	if order.CustomerName == "" {
		return domain.Order{}, nil, domain.ErrInvalidCustomerName
	}
	if order.PhoneNumber == "" || len(order.PhoneNumber) > maxPhoneNumberLength {
		return domain.Order{}, nil, domain.ErrInvalidPhoneNumber
	}

	eventDate, err := bookingdomain.NormalizeEventDate(req.EventDate)
	if err != nil {
		return domain.Order{}, nil, err
	}
	order.EventDate = eventDate

	specs, err := s.normalizeLines(req.Lines)
	if err != nil {
		return domain.Order{}, nil, err
	}
	return order, specs, nil
}

// normalizeLines merges lines naming the same item by summing their
// quantities. The merged line keeps the position of the first occurrence.
func (s *Service) normalizeLines(lines []domain.LineRequest) ([]lineSpec, error) {
	specs := make([]lineSpec, 0, len(lines))
	index := make(map[snowflake.ID]int, len(lines))
	for i, line := range lines {
		itemID, err := snowflake.ParseString(strings.TrimSpace(line.ItemID))
		if err != nil || itemID == 0 {
			return nil, fmt.Errorf("%w: line %d", domain.ErrInvalidLineItem, i+1)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d", domain.ErrInvalidLineQuantity, i+1)
		}
		if at, ok := index[itemID]; ok {
			specs[at].quantity += line.Quantity
			continue
		}
		index[itemID] = len(specs)
		specs = append(specs, lineSpec{itemID: itemID, quantity: line.Quantity, position: len(specs)})
	}

	if limit := s.policy.Get().MaxLinesPerOrder; limit > 0 && len(specs) > limit {
		return nil, fmt.Errorf("%w: %d lines, at most %d", domain.ErrTooManyLines, len(specs), limit)
	}
	return specs, nil
}

// bookingKeys names the booking locks for itemIDs on eventDate. Orders
// without a date book nothing.
func bookingKeys(eventDate string, itemIDs ...snowflake.ID) []string {
	if eventDate == "" {
		return nil
	}
	keys := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		keys = append(keys, lock.BookingKey(id.Int64(), eventDate))
	}
	return keys
}

func specItemIDs(specs []lineSpec) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(specs))
	for _, spec := range specs {
		ids = append(ids, spec.itemID)
	}
	return ids
}

func lineItemIDs(lines []domain.Line) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	return ids
}

// touchedItems returns every item on either side of an edit in ascending
// id order, so row locks are always taken in the same order.
func touchedItems(before, after map[snowflake.ID]int64) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(before)+len(after))
	for id := range after {
		ids = append(ids, id)
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
