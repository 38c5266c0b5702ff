package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/orderdesk/internal/config"
	"github.com/smallbiznis/orderdesk/internal/lock"
	"github.com/smallbiznis/orderdesk/internal/order/domain"
	orderrepo "github.com/smallbiznis/orderdesk/internal/order/repository"
	orderservice "github.com/smallbiznis/orderdesk/internal/order/service"
	"github.com/smallbiznis/orderdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, keys []string) (lock.Release, error) {
	args := m.Called(ctx, keys)
	release, _ := args.Get(0).(lock.Release)
	return release, args.Error(1)
}

func (m *mockLocker) Backend() string {
	return "mock"
}

func newOrderService(stack *testutil.Stack, locker lock.Locker) domain.Service {
	return orderservice.New(orderservice.Params{
		DB:         stack.DB,
		Log:        zap.NewNop(),
		Config:     config.Config{},
		GenID:      stack.Node,
		Clock:      stack.Clock,
		Policy:     stack.Policy,
		Repo:       orderrepo.Provide(),
		Ledger:     stack.Inventory,
		Booking:    stack.Booking,
		Reconciler: stack.Invoices,
		Locker:     locker,
		AuditSvc:   stack.Audit,
	})
}

func TestUpdateTakesOrderKeyBeforeBookingKeys(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	tent := stack.MustCreateItem(t, "Party Tent", 2, 25000, false)

	order, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(tent, 1)))
	require.NoError(t, err)

	released := 0
	release := lock.Release(func() { released++ })

	locker := &mockLocker{}
	orderCall := locker.On("Acquire", mock.Anything, []string{lock.OrderKey(order.ID.Int64())}).Return(release, nil).Once()
	bookingCall := locker.On("Acquire", mock.Anything, []string{
		lock.BookingKey(tent.ID.Int64(), "2025-06-15"),
		lock.BookingKey(tent.ID.Int64(), "2025-06-14"),
	}).Return(release, nil).Once()
	mock.InOrder(orderCall, bookingCall)

	svc := newOrderService(stack, locker)
	updated, err := svc.Update(ctx, order.ID.String(), testutil.OrderRequest("2025-06-15", testutil.Line(tent, 2)))
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", updated.EventDate)

	locker.AssertExpectations(t)
	assert.Equal(t, 2, released)
}

func TestLockTimeoutLeavesNothingBehind(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	tent := stack.MustCreateItem(t, "Party Tent", 2, 25000, false)

	locker := &mockLocker{}
	locker.On("Acquire", mock.Anything, []string{lock.BookingKey(tent.ID.Int64(), "2025-06-14")}).Return(nil, lock.ErrLockTimeout).Once()

	svc := newOrderService(stack, locker)
	_, err := svc.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(tent, 1)))
	require.ErrorIs(t, err, lock.ErrLockTimeout)
	locker.AssertExpectations(t)

	list, err := stack.Orders.List(ctx, domain.ListOrderRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Orders)
}

func TestConsumableOnlyOrderWithoutDateTakesNoLocks(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	cake := stack.MustCreateItem(t, "Cupcakes", 5, 250, true)

	locker := &mockLocker{}
	svc := newOrderService(stack, locker)
	_, err := svc.Create(ctx, testutil.OrderRequest("", testutil.Line(cake, 2)))
	require.NoError(t, err)

	locker.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
	assert.Equal(t, int64(3), stack.ItemQuantity(t, cake.ID))
}
