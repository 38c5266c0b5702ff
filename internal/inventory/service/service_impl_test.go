package service_test

import (
	"context"
	"testing"

	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	"github.com/smallbiznis/orderdesk/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/internal/testutil"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateItemDefaultsToConsumable(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	item, err := stack.Inventory.Create(ctx, domain.CreateItemRequest{
		Name:      "Paper Napkins",
		Quantity:  200,
		UnitPrice: 15,
	})
	require.NoError(t, err)

	assert.True(t, item.IsConsumable)
	assert.Equal(t, "paper-napkins", item.SKU)
	assert.Equal(t, "system", item.CreatedBy)

	stored, err := stack.Inventory.Get(ctx, item.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(200), stored.Quantity)
	assert.Equal(t, int64(15), stored.UnitPrice)

	logs, err := stack.Audit.List(ctx, auditdomain.ListAuditLogRequest{
		TargetType: auditdomain.TargetInventoryItem,
		TargetID:   item.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "inventory.create", logs[0].Action)
}

func TestCreateItemValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	_, err := stack.Inventory.Create(ctx, domain.CreateItemRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = stack.Inventory.Create(ctx, domain.CreateItemRequest{Name: "Chairs", Quantity: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = stack.Inventory.Create(ctx, domain.CreateItemRequest{Name: "Chairs", UnitPrice: -5})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestCreateItemRejectsDuplicateSKU(t *testing.T) {
	stack := testutil.NewStack(t)
	stack.MustCreateItem(t, "Folding Chair", 10, 500, false)

	_, err := stack.Inventory.Create(context.Background(), domain.CreateItemRequest{Name: "folding chair", Quantity: 3})
	assert.ErrorIs(t, err, domain.ErrDuplicateSKU)
}

func TestReserveDebitsUntilStockRunsOut(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	item := stack.MustCreateItem(t, "Cupcakes", 5, 250, true)

	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		return stack.Inventory.Reserve(ctx, tx, item.ID, 3)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stack.ItemQuantity(t, item.ID))

	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		return stack.Inventory.Reserve(ctx, tx, item.ID, 3)
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Cupcakes has 2 left, 3 requested")
	assert.Equal(t, int64(2), stack.ItemQuantity(t, item.ID))
}

func TestReserveRefusesNonConsumable(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	item := stack.MustCreateItem(t, "Projector", 1, 10000, false)

	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		return stack.Inventory.Reserve(ctx, tx, item.ID, 1)
	})
	assert.ErrorIs(t, err, domain.ErrNotConsumable)
	assert.Equal(t, int64(1), stack.ItemQuantity(t, item.ID))
}

func TestReserveUnknownItem(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()

	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		return stack.Inventory.Reserve(ctx, tx, stack.Node.Generate(), 1)
	})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestReserveAndReleaseRollBackWithTransaction(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	item := stack.MustCreateItem(t, "Balloons", 10, 50, true)

	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		if err := stack.Inventory.Reserve(ctx, tx, item.ID, 4); err != nil {
			return err
		}
		return stack.Inventory.Reserve(ctx, tx, item.ID, 7)
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(10), stack.ItemQuantity(t, item.ID))

	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		return stack.Inventory.Release(ctx, tx, item.ID, 5)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), stack.ItemQuantity(t, item.ID))
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	item := stack.MustCreateItem(t, "Candles", 10, 100, true)

	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		return stack.Inventory.Reserve(ctx, tx, item.ID, 0)
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		return stack.Inventory.Release(ctx, tx, item.ID, -2)
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestUpdateItemRestocksAndRenames(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	item := stack.MustCreateItem(t, "Table Cloth", 4, 700, false)

	name := "Linen Table Cloth"
	qty := int64(12)
	updated, err := stack.Inventory.Update(ctx, item.ID.String(), domain.UpdateItemRequest{
		Name:     &name,
		Quantity: &qty,
	})
	require.NoError(t, err)
	assert.Equal(t, "linen-table-cloth", updated.SKU)
	assert.Equal(t, int64(12), updated.Quantity)
	assert.Equal(t, int64(700), updated.UnitPrice)
	assert.False(t, updated.IsConsumable)

	negative := int64(-1)
	_, err = stack.Inventory.Update(ctx, item.ID.String(), domain.UpdateItemRequest{Quantity: &negative})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = stack.Inventory.Update(ctx, stack.Node.Generate().String(), domain.UpdateItemRequest{Quantity: &qty})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemInUseCannotBeDeletedOrFlipped(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	item := stack.MustCreateItem(t, "Speaker", 2, 4000, false)

	_, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(item, 1)))
	require.NoError(t, err)

	err = stack.Inventory.Delete(ctx, item.ID.String())
	assert.ErrorIs(t, err, domain.ErrItemInUse)

	consumable := true
	_, err = stack.Inventory.Update(ctx, item.ID.String(), domain.UpdateItemRequest{IsConsumable: &consumable})
	assert.ErrorIs(t, err, domain.ErrItemInUse)

	unused := stack.MustCreateItem(t, "Microphone", 3, 1500, false)
	require.NoError(t, stack.Inventory.Delete(ctx, unused.ID.String()))
	_, err = stack.Inventory.Get(ctx, unused.ID.String())
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestStockCannotDropBelowBookedUnits(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	tent := stack.MustCreateItem(t, "Party Tent", 3, 25000, false)

	_, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(tent, 2)))
	require.NoError(t, err)
	_, err = stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-15", testutil.Line(tent, 1)))
	require.NoError(t, err)

	one := int64(1)
	_, err = stack.Inventory.Update(ctx, tent.ID.String(), domain.UpdateItemRequest{Quantity: &one})
	require.ErrorIs(t, err, bookingdomain.ErrOverbooked)
	assert.Contains(t, err.Error(), "2025-06-14")
	assert.Equal(t, int64(3), stack.ItemQuantity(t, tent.ID))

	availability, err := stack.Booking.Availability(ctx, tent.ID.String(), "2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, int64(3), availability.OnHand)
	assert.Equal(t, int64(2), availability.Booked)

	two := int64(2)
	updated, err := stack.Inventory.Update(ctx, tent.ID.String(), domain.UpdateItemRequest{Quantity: &two})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Quantity)

	availability, err = stack.Booking.Availability(ctx, tent.ID.String(), "2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, int64(0), availability.Remaining)
}

func TestConsumableStockCanShrinkFreely(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	cake := stack.MustCreateItem(t, "Cupcakes", 10, 250, true)

	_, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(cake, 6)))
	require.NoError(t, err)

	zero := int64(0)
	updated, err := stack.Inventory.Update(ctx, cake.ID.String(), domain.UpdateItemRequest{Quantity: &zero})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.Quantity)
}

func TestPriceChangeUpdatesOpenInvoice(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	chair := stack.MustCreateItem(t, "Folding Chair", 10, 1000, false)

	order, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(chair, 2)))
	require.NoError(t, err)
	invoice, err := stack.Invoices.Create(ctx, invoicedomain.CreateInvoiceRequest{
		OrderID:       order.ID.String(),
		InvoiceNumber: "INV-100",
		InvoiceDate:   "2025-06-01",
		PaymentMethod: "transfer",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), invoice.TotalAmount)

	price := int64(1500)
	_, err = stack.Inventory.Update(ctx, chair.ID.String(), domain.UpdateItemRequest{UnitPrice: &price})
	require.NoError(t, err)

	stored, err := stack.Invoices.Get(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(3000), stored.TotalAmount)
	assert.Equal(t, int64(3000), stored.BalanceDue)

	logs, err := stack.Audit.List(ctx, auditdomain.ListAuditLogRequest{
		Action:   "inventory.update",
		TargetID: chair.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []any{invoice.ID.String()}, logs[0].Metadata["repriced_invoices"])
}

func TestGetItemRejectsMalformedID(t *testing.T) {
	stack := testutil.NewStack(t)

	_, err := stack.Inventory.Get(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListItemsFiltersAndPages(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	stack.MustCreateItem(t, "Round Table", 6, 1200, false)
	stack.MustCreateItem(t, "Square Table", 4, 1100, false)
	stack.MustCreateItem(t, "Napkins", 500, 5, true)

	consumable := false
	res, err := stack.Inventory.List(ctx, domain.ListItemRequest{Name: "TABLE", Consumable: &consumable})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Square Table", res.Items[0].Name)
	assert.False(t, res.HasMore)

	first, err := stack.Inventory.List(ctx, domain.ListItemRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.True(t, first.HasMore)

	second, err := stack.Inventory.List(ctx, domain.ListItemRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Round Table", second.Items[0].Name)
	assert.False(t, second.HasMore)
}
