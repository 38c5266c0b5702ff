package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/orderdesk/internal/actorcontext"
	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/internal/lock"
	"github.com/smallbiznis/orderdesk/internal/observability"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func newTestServer(t *testing.T) (*testutil.Stack, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stack := testutil.NewStack(t)
	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:          engine,
		Log:          zap.NewNop(),
		InventorySvc: stack.Inventory,
		BookingSvc:   stack.Booking,
		OrderSvc:     stack.Orders,
		InvoiceSvc:   stack.Invoices,
		AuditSvc:     stack.Audit,
	})
	return stack, engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var resp apiResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

func TestHealthAndUnknownRoute(t *testing.T) {
	_, engine := newTestServer(t)

	rec, _ := doJSON(t, engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doJSON(t, engine, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Type)
}

func TestInventoryRoutes(t *testing.T) {
	_, engine := newTestServer(t)

	rec, resp := doJSON(t, engine, http.MethodPost, "/api/inventory", map[string]any{
		"name":          "Folding chair",
		"quantity":      10,
		"unit_price":    "12.5",
		"is_consumable": false,
	}, actorcontext.HeaderActorID, "staff-7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	item := decodeData[itemResponse](t, resp)
	assert.Equal(t, "12.50", item.UnitPrice)
	assert.Equal(t, "staff-7", item.CreatedBy)
	assert.False(t, item.IsConsumable)

	path := "/api/inventory/" + item.ID.String()
	rec, resp = doJSON(t, engine, http.MethodPatch, path, map[string]any{"unit_price": 13})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "13.00", decodeData[itemResponse](t, resp).UnitPrice)

	rec, resp = doJSON(t, engine, http.MethodGet, path+"/availability?event_date=2025-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	availability := decodeData[bookingdomain.Availability](t, resp)
	assert.Equal(t, int64(10), availability.Remaining)
	assert.Equal(t, "2025-06-01", availability.EventDate)

	rec, resp = doJSON(t, engine, http.MethodGet, path+"/availability", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "event_date_required", resp.Error.Type)

	rec, resp = doJSON(t, engine, http.MethodGet, "/api/inventory?consumable=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[struct {
		Items []itemResponse `json:"items"`
	}](t, resp)
	require.Len(t, list.Items, 1)
	assert.Equal(t, item.ID, list.Items[0].ID)

	rec, _ = doJSON(t, engine, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, resp = doJSON(t, engine, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "item_not_found", resp.Error.Type)
}

func TestInventoryRejectsBadAmounts(t *testing.T) {
	_, engine := newTestServer(t)

	rec, resp := doJSON(t, engine, http.MethodPost, "/api/inventory", map[string]any{
		"name":       "Napkins",
		"quantity":   10,
		"unit_price": "-1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation_error", resp.Error.Type)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "unit_price", resp.Error.Errors[0].Field)

	rec, resp = doJSON(t, engine, http.MethodPost, "/api/inventory", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", resp.Error.Type)
}

func TestOrderAndInvoiceFlow(t *testing.T) {
	stack, engine := newTestServer(t)
	cupcakes := stack.MustCreateItem(t, "Cupcakes", 5, 250, true)

	order := map[string]any{
		"title":         "Birthday",
		"event_date":    "2025-06-01",
		"customer_name": "Dana Whitfield",
		"phone_number":  "+1 555 0100",
		"lines":         []map[string]any{{"item_id": cupcakes.ID.String(), "quantity": 3}},
	}

	rec, resp := doJSON(t, engine, http.MethodPost, "/api/orders", order, actorcontext.HeaderActorID, "staff-7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeData[orderResponse](t, resp)
	assert.Equal(t, "7.50", created.Subtotal)
	require.Len(t, created.Lines, 1)
	assert.Equal(t, "2.50", created.Lines[0].UnitPrice)
	assert.Nil(t, created.InvoiceID)

	rec, resp = doJSON(t, engine, http.MethodPost, "/api/orders", order)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", resp.Error.Type)
	assert.Contains(t, resp.Error.Message, "Cupcakes")
	assert.Equal(t, int64(2), stack.ItemQuantity(t, cupcakes.ID))

	rec, resp = doJSON(t, engine, http.MethodPost, "/api/invoices", map[string]any{
		"order_id":        created.ID.String(),
		"invoice_number":  "INV-001",
		"invoice_date":    "2025-05-20",
		"payment_method":  "cash",
		"upfront_payment": "5",
		"delivery_charge": "2.00",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	invoice := decodeData[invoiceResponse](t, resp)
	assert.Equal(t, "9.50", invoice.TotalAmount)
	assert.Equal(t, "4.50", invoice.BalanceDue)

	orderPath := "/api/orders/" + created.ID.String()
	rec, resp = doJSON(t, engine, http.MethodGet, orderPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeData[orderResponse](t, resp)
	require.NotNil(t, fetched.InvoiceID)
	assert.Equal(t, invoice.ID, *fetched.InvoiceID)

	rec, resp = doJSON(t, engine, http.MethodDelete, orderPath, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "has_linked_invoice", resp.Error.Type)

	rec, _ = doJSON(t, engine, http.MethodPatch, "/api/invoices/"+invoice.ID.String(), map[string]any{"is_fully_paid": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	order["title"] = "Birthday party"
	rec, resp = doJSON(t, engine, http.MethodPut, orderPath, order)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "already_fully_paid", resp.Error.Type)

	rec, resp = doJSON(t, engine, http.MethodDelete, "/api/invoices/"+invoice.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "already_fully_paid", resp.Error.Type)

	rec, resp = doJSON(t, engine, http.MethodGet, "/api/audit_logs?target_type=order&target_id="+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decodeData[[]struct {
		Action  string `json:"action"`
		ActorID string `json:"actor_id"`
	}](t, resp)
	require.Len(t, logs, 1)
	assert.Equal(t, "order.create", logs[0].Action)
	assert.Equal(t, "staff-7", logs[0].ActorID)
}

func TestOrderOverbookedOverHTTP(t *testing.T) {
	stack, engine := newTestServer(t)
	tables := stack.MustCreateItem(t, "Round table", 2, 1500, false)

	order := func(qty int) map[string]any {
		return map[string]any{
			"title":         "Gala",
			"event_date":    "2025-06-01",
			"customer_name": "Dana Whitfield",
			"phone_number":  "+1 555 0100",
			"lines":         []map[string]any{{"item_id": tables.ID.String(), "quantity": qty}},
		}
	}

	rec, _ := doJSON(t, engine, http.MethodPost, "/api/orders", order(2))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp := doJSON(t, engine, http.MethodPost, "/api/orders", order(1))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "overbooked", resp.Error.Type)

	rec, resp = doJSON(t, engine, http.MethodGet, "/api/orders?event_date=2025-06-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[struct {
		Orders  []orderResponse `json:"orders"`
		HasMore bool            `json:"has_more"`
	}](t, resp)
	assert.Len(t, list.Orders, 1)
	assert.False(t, list.HasMore)
}

func TestOrderValidationOverHTTP(t *testing.T) {
	_, engine := newTestServer(t)

	rec, resp := doJSON(t, engine, http.MethodPost, "/api/orders", map[string]any{"customer_name": "Dana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_title", resp.Error.Type)
	require.Len(t, resp.Error.Errors, 1)
	assert.Equal(t, "title", resp.Error.Errors[0].Field)

	rec, resp = doJSON(t, engine, http.MethodGet, "/api/orders/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_order_id", resp.Error.Type)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"stock", fmt.Errorf("%w: Cupcakes has 2 left, 3 requested", inventorydomain.ErrInsufficientStock), http.StatusConflict, "insufficient_stock"},
		{"overbooked", fmt.Errorf("reserve: %w", bookingdomain.ErrOverbooked), http.StatusConflict, "overbooked"},
		{"lock", lock.ErrLockTimeout, http.StatusConflict, "booking_busy"},
		{"paid", invoicedomain.ErrAlreadyFullyPaid, http.StatusForbidden, "already_fully_paid"},
		{"order missing", orderdomain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
		{"invoice missing", invoicedomain.ErrInvoiceNotFound, http.StatusNotFound, "invoice_not_found"},
		{"too many lines", orderdomain.ErrTooManyLines, http.StatusBadRequest, "too_many_lines"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}

	_, payload := mapError(errors.New("boom"))
	assert.Equal(t, "internal server error", payload.Message)

	kind, code := classifyErrorForLog(bookingdomain.ErrOverbooked)
	assert.Equal(t, "conflict", kind)
	assert.Equal(t, "overbooked", code)
}
