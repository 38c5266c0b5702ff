package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/orderdesk/internal/booking/domain"
	bookingrepo "github.com/smallbiznis/orderdesk/internal/booking/repository"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	"github.com/smallbiznis/orderdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestNormalizeEventDate(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "", want: ""},
		{in: " 2025-06-14 ", want: "2025-06-14"},
		{in: "2025-06-14T18:30:00Z", want: "2025-06-14"},
		{in: "14/06/2025", wantErr: domain.ErrInvalidEventDate},
		{in: "2025-02-30", wantErr: domain.ErrInvalidEventDate},
	}
	for _, tc := range cases {
		got, err := domain.NormalizeEventDate(tc.in)
		if tc.wantErr != nil {
			assert.ErrorIs(t, err, tc.wantErr, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestAvailabilityCountsBookingsPerDate(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	tent := stack.MustCreateItem(t, "Party Tent", 3, 25000, false)

	first, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(tent, 2)))
	require.NoError(t, err)
	_, err = stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-15", testutil.Line(tent, 1)))
	require.NoError(t, err)

	got, err := stack.Booking.Availability(ctx, tent.ID.String(), "2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.OnHand)
	assert.Equal(t, int64(2), got.Booked)
	assert.Equal(t, int64(1), got.Remaining)

	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		_, err := stack.Booking.CheckAvailability(ctx, tx, tent.ID, "2025-06-14", 2, 0)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrOverbooked)

	// The order under edit does not count against itself.
	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		_, err := stack.Booking.CheckAvailability(ctx, tx, tent.ID, "2025-06-14", 3, first.ID)
		return err
	})
	assert.NoError(t, err)
}

func TestAvailabilityValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	cups := stack.MustCreateItem(t, "Paper Cups", 100, 10, true)

	_, err := stack.Booking.Availability(ctx, cups.ID.String(), "2025-06-14")
	assert.ErrorIs(t, err, domain.ErrNotBookable)

	_, err = stack.Booking.Availability(ctx, cups.ID.String(), "")
	assert.ErrorIs(t, err, domain.ErrEventDateRequired)

	_, err = stack.Booking.Availability(ctx, "nope", "2025-06-14")
	assert.ErrorIs(t, err, inventorydomain.ErrInvalidID)

	_, err = stack.Booking.Availability(ctx, stack.Node.Generate().String(), "2025-06-14")
	assert.ErrorIs(t, err, inventorydomain.ErrItemNotFound)
}

func TestPeakBookedPicksBusiestDate(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	tent := stack.MustCreateItem(t, "Party Tent", 5, 25000, false)
	repo := bookingrepo.Provide()

	peak, err := repo.PeakBooked(ctx, stack.DB, tent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PeakBooking{}, peak)

	for _, booking := range []struct {
		date string
		qty  int64
	}{
		{"2025-06-14", 2},
		{"2025-06-15", 1},
		{"2025-06-14", 1},
		{"2025-06-20", 2},
	} {
		_, err := stack.Orders.Create(ctx, testutil.OrderRequest(booking.date, testutil.Line(tent, booking.qty)))
		require.NoError(t, err)
	}

	peak, err = repo.PeakBooked(ctx, stack.DB, tent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PeakBooking{EventDate: "2025-06-14", Booked: 3}, peak)
}
