package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/orderdesk/internal/config"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	"github.com/smallbiznis/orderdesk/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newInvoiceRequest(order orderdomain.Order, number string) domain.CreateInvoiceRequest {
	return domain.CreateInvoiceRequest{
		OrderID:        order.ID.String(),
		InvoiceNumber:  number,
		InvoiceDate:    "2025-06-01",
		PaymentMethod:  "transfer",
		DepositAmount:  1000,
		UpfrontPayment: 2000,
		DeliveryCharge: 1500,
	}
}

func seedOrder(t *testing.T, stack *testutil.Stack) orderdomain.Order {
	t.Helper()
	cake := stack.MustCreateItem(t, "Cupcakes", 50, 250, true)
	tent := stack.MustCreateItem(t, "Party Tent", 2, 5000, false)

	order, err := stack.Orders.Create(context.Background(), testutil.OrderRequest("2025-06-14",
		testutil.Line(cake, 4),
		testutil.Line(tent, 1),
	))
	require.NoError(t, err)
	return order
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	stack := testutil.NewStack(t)
	order := seedOrder(t, stack)

	invoice, err := stack.Invoices.Create(context.Background(), newInvoiceRequest(order, "INV-001"))
	require.NoError(t, err)

	// 4 x 2.50 + 1 x 50.00 + 15.00 delivery
	assert.Equal(t, int64(7500), invoice.TotalAmount)
	assert.Equal(t, int64(5500), invoice.BalanceDue)
	assert.False(t, invoice.IsFullyPaid)

	stored, err := stack.Invoices.Get(context.Background(), invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoice.TotalAmount, stored.TotalAmount)
	assert.Equal(t, "2025-06-01", stored.InvoiceDate)
}

func TestCreateInvoiceConflicts(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	order := seedOrder(t, stack)

	_, err := stack.Invoices.Create(ctx, newInvoiceRequest(order, "INV-001"))
	require.NoError(t, err)

	_, err = stack.Invoices.Create(ctx, newInvoiceRequest(order, "INV-002"))
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoice)

	other, err := stack.Orders.Create(ctx, testutil.OrderRequest(""))
	require.NoError(t, err)
	_, err = stack.Invoices.Create(ctx, newInvoiceRequest(other, "INV-001"))
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoiceNumber)

	missing := orderdomain.Order{ID: stack.Node.Generate()}
	_, err = stack.Invoices.Create(ctx, newInvoiceRequest(missing, "INV-003"))
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}

func TestCreateInvoiceValidation(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	order := seedOrder(t, stack)

	req := newInvoiceRequest(order, "")
	_, err := stack.Invoices.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInvoiceNumber)

	req = newInvoiceRequest(order, "INV-001")
	req.InvoiceDate = "June 1st"
	_, err = stack.Invoices.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInvoiceDate)

	req = newInvoiceRequest(order, "INV-001")
	req.PaymentMethod = " "
	_, err = stack.Invoices.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	req = newInvoiceRequest(order, "INV-001")
	req.DeliveryCharge = -1
	_, err = stack.Invoices.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	req = newInvoiceRequest(order, "INV-001")
	req.OrderID = "abc"
	_, err = stack.Invoices.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidOrderID)
}

func TestPaymentMethodPolicy(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.PaymentMethods = []string{"cash", "transfer"}
	stack := testutil.NewStackWithOptions(t, testutil.Options{Policy: policy})
	order := seedOrder(t, stack)

	req := newInvoiceRequest(order, "INV-001")
	req.PaymentMethod = "card"
	_, err := stack.Invoices.Create(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	req.PaymentMethod = "Cash"
	_, err = stack.Invoices.Create(context.Background(), req)
	assert.NoError(t, err)
}

func TestUpdateInvoiceAppliesOnlyGivenFields(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	order := seedOrder(t, stack)
	invoice, err := stack.Invoices.Create(ctx, newInvoiceRequest(order, "INV-001"))
	require.NoError(t, err)

	delivery := int64(0)
	upfront := int64(9000)
	updated, err := stack.Invoices.Update(ctx, invoice.ID.String(), domain.UpdateInvoiceRequest{
		DeliveryCharge: &delivery,
		UpfrontPayment: &upfront,
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-001", updated.InvoiceNumber)
	assert.Equal(t, "transfer", updated.PaymentMethod)
	assert.Equal(t, int64(1000), updated.DepositAmount)
	assert.Equal(t, int64(6000), updated.TotalAmount)
	// Overpayment shows as a negative balance.
	assert.Equal(t, int64(-3000), updated.BalanceDue)
}

func TestUpdateInvoiceNumberMustStayUnique(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	first := seedOrder(t, stack)
	second, err := stack.Orders.Create(ctx, testutil.OrderRequest(""))
	require.NoError(t, err)

	_, err = stack.Invoices.Create(ctx, newInvoiceRequest(first, "INV-001"))
	require.NoError(t, err)
	invoice, err := stack.Invoices.Create(ctx, newInvoiceRequest(second, "INV-002"))
	require.NoError(t, err)

	taken := "INV-001"
	_, err = stack.Invoices.Update(ctx, invoice.ID.String(), domain.UpdateInvoiceRequest{InvoiceNumber: &taken})
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoiceNumber)

	same := "INV-002"
	_, err = stack.Invoices.Update(ctx, invoice.ID.String(), domain.UpdateInvoiceRequest{InvoiceNumber: &same})
	assert.NoError(t, err)
}

func TestFullyPaidInvoiceIsLocked(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	order := seedOrder(t, stack)
	invoice, err := stack.Invoices.Create(ctx, newInvoiceRequest(order, "INV-001"))
	require.NoError(t, err)

	paid := true
	_, err = stack.Invoices.Update(ctx, invoice.ID.String(), domain.UpdateInvoiceRequest{IsFullyPaid: &paid})
	require.NoError(t, err)

	delivery := int64(100)
	_, err = stack.Invoices.Update(ctx, invoice.ID.String(), domain.UpdateInvoiceRequest{DeliveryCharge: &delivery})
	assert.ErrorIs(t, err, domain.ErrAlreadyFullyPaid)

	unpaid := false
	_, err = stack.Invoices.Update(ctx, invoice.ID.String(), domain.UpdateInvoiceRequest{IsFullyPaid: &unpaid})
	assert.ErrorIs(t, err, domain.ErrAlreadyFullyPaid)

	err = stack.Invoices.Delete(ctx, invoice.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyFullyPaid)

	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		_, err := stack.Invoices.Recompute(ctx, tx, order.ID)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyFullyPaid)
}

func TestDeleteInvoice(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	order := seedOrder(t, stack)
	invoice, err := stack.Invoices.Create(ctx, newInvoiceRequest(order, "INV-001"))
	require.NoError(t, err)

	require.NoError(t, stack.Invoices.Delete(ctx, invoice.ID.String()))

	_, err = stack.Invoices.Get(ctx, invoice.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	assert.ErrorIs(t, stack.Invoices.Delete(ctx, invoice.ID.String()), domain.ErrInvoiceNotFound)
}

func TestRecomputeWithoutInvoiceIsNoop(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	order := seedOrder(t, stack)

	var got *domain.Invoice
	err := stack.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		got, err = stack.Invoices.Recompute(ctx, tx, order.ID)
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecomputeUsesCurrentPrices(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	order := seedOrder(t, stack)
	invoice, err := stack.Invoices.Create(ctx, newInvoiceRequest(order, "INV-001"))
	require.NoError(t, err)

	lines := order.Lines
	require.Len(t, lines, 2)
	price := int64(300)
	_, err = stack.Inventory.Update(ctx, lines[0].ItemID.String(), inventoryPrice(price))
	require.NoError(t, err)

	var got *domain.Invoice
	err = stack.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		got, err = stack.Invoices.Recompute(ctx, tx, order.ID)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, invoice.ID, got.ID)
	assert.Equal(t, int64(7700), got.TotalAmount)
	assert.Equal(t, int64(5700), got.BalanceDue)
}

func TestPriceChangeRepricesUnpaidInvoicesOnly(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	cake := stack.MustCreateItem(t, "Cupcakes", 100, 250, true)

	openOrder, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-14", testutil.Line(cake, 4)))
	require.NoError(t, err)
	paidOrder, err := stack.Orders.Create(ctx, testutil.OrderRequest("2025-06-21", testutil.Line(cake, 2)))
	require.NoError(t, err)

	open, err := stack.Invoices.Create(ctx, newInvoiceRequest(openOrder, "INV-001"))
	require.NoError(t, err)
	assert.Equal(t, int64(2500), open.TotalAmount)

	settled, err := stack.Invoices.Create(ctx, newInvoiceRequest(paidOrder, "INV-002"))
	require.NoError(t, err)
	paid := true
	_, err = stack.Invoices.Update(ctx, settled.ID.String(), domain.UpdateInvoiceRequest{IsFullyPaid: &paid})
	require.NoError(t, err)

	_, err = stack.Inventory.Update(ctx, cake.ID.String(), inventoryPrice(300))
	require.NoError(t, err)

	got, err := stack.Invoices.Get(ctx, open.ID.String())
	require.NoError(t, err)
	// 4 x 3.00 + 15.00 delivery, no explicit recompute
	assert.Equal(t, int64(2700), got.TotalAmount)
	assert.Equal(t, int64(700), got.BalanceDue)

	got, err = stack.Invoices.Get(ctx, settled.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.TotalAmount)
	assert.True(t, got.IsFullyPaid)

	// an unchanged price leaves invoices alone
	_, err = stack.Inventory.Update(ctx, cake.ID.String(), inventoryPrice(300))
	require.NoError(t, err)
	got, err = stack.Invoices.Get(ctx, open.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(2700), got.TotalAmount)
}

func TestListInvoicesFilters(t *testing.T) {
	stack := testutil.NewStack(t)
	ctx := context.Background()
	first := seedOrder(t, stack)
	second, err := stack.Orders.Create(ctx, testutil.OrderRequest(""))
	require.NoError(t, err)

	_, err = stack.Invoices.Create(ctx, newInvoiceRequest(first, "INV-001"))
	require.NoError(t, err)
	stack.Clock.Advance(time.Second)
	paidReq := newInvoiceRequest(second, "INV-002")
	paidReq.IsFullyPaid = true
	_, err = stack.Invoices.Create(ctx, paidReq)
	require.NoError(t, err)

	all, err := stack.Invoices.List(ctx, domain.ListInvoiceRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Invoices, 2)

	paid := true
	onlyPaid, err := stack.Invoices.List(ctx, domain.ListInvoiceRequest{IsFullyPaid: &paid})
	require.NoError(t, err)
	require.Len(t, onlyPaid.Invoices, 1)
	assert.Equal(t, "INV-002", onlyPaid.Invoices[0].InvoiceNumber)

	byOrder, err := stack.Invoices.List(ctx, domain.ListInvoiceRequest{OrderID: first.ID.String()})
	require.NoError(t, err)
	require.Len(t, byOrder.Invoices, 1)
	assert.Equal(t, "INV-001", byOrder.Invoices[0].InvoiceNumber)
}

func inventoryPrice(price int64) inventorydomain.UpdateItemRequest {
	return inventorydomain.UpdateItemRequest{UnitPrice: &price}
}
