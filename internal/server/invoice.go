package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"github.com/smallbiznis/orderdesk/pkg/money"
)

type createInvoiceRequest struct {
	OrderID        string          `json:"order_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	InvoiceDate    string          `json:"invoice_date"`
	PaymentMethod  string          `json:"payment_method"`
	DepositAmount  decimal.Decimal `json:"deposit_amount"`
	UpfrontPayment decimal.Decimal `json:"upfront_payment"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	IsFullyPaid    bool            `json:"is_fully_paid"`
}

type updateInvoiceRequest struct {
	InvoiceNumber  *string          `json:"invoice_number"`
	InvoiceDate    *string          `json:"invoice_date"`
	PaymentMethod  *string          `json:"payment_method"`
	DepositAmount  *decimal.Decimal `json:"deposit_amount"`
	UpfrontPayment *decimal.Decimal `json:"upfront_payment"`
	DeliveryCharge *decimal.Decimal `json:"delivery_charge"`
	IsFullyPaid    *bool            `json:"is_fully_paid"`
}

type invoiceResponse struct {
	ID             snowflake.ID `json:"id"`
	OrderID        snowflake.ID `json:"order_id"`
	InvoiceNumber  string       `json:"invoice_number"`
	InvoiceDate    string       `json:"invoice_date"`
	PaymentMethod  string       `json:"payment_method"`
	DepositAmount  string       `json:"deposit_amount"`
	UpfrontPayment string       `json:"upfront_payment"`
	DeliveryCharge string       `json:"delivery_charge"`
	TotalAmount    string       `json:"total_amount"`
	BalanceDue     string       `json:"balance_due"`
	IsFullyPaid    bool         `json:"is_fully_paid"`
	CreatedBy      string       `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedBy      string       `json:"updated_by"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func newInvoiceResponse(invoice invoicedomain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             invoice.ID,
		OrderID:        invoice.OrderID,
		InvoiceNumber:  invoice.InvoiceNumber,
		InvoiceDate:    invoice.InvoiceDate,
		PaymentMethod:  invoice.PaymentMethod,
		DepositAmount:  money.Format(invoice.DepositAmount),
		UpfrontPayment: money.Format(invoice.UpfrontPayment),
		DeliveryCharge: money.Format(invoice.DeliveryCharge),
		TotalAmount:    money.Format(invoice.TotalAmount),
		BalanceDue:     money.Format(invoice.BalanceDue),
		IsFullyPaid:    invoice.IsFullyPaid,
		CreatedBy:      invoice.CreatedBy,
		CreatedAt:      invoice.CreatedAt,
		UpdatedBy:      invoice.UpdatedBy,
		UpdatedAt:      invoice.UpdatedAt,
	}
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	deposit, err := amountField("deposit_amount", req.DepositAmount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	upfront, err := amountField("upfront_payment", req.UpfrontPayment)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	delivery, err := amountField("delivery_charge", req.DeliveryCharge)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		OrderID:        strings.TrimSpace(req.OrderID),
		InvoiceNumber:  strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:    strings.TrimSpace(req.InvoiceDate),
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		DepositAmount:  deposit,
		UpfrontPayment: upfront,
		DeliveryCharge: delivery,
		IsFullyPaid:    req.IsFullyPaid,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice)})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := invoicedomain.UpdateInvoiceRequest{
		InvoiceNumber: trimOptional(req.InvoiceNumber),
		InvoiceDate:   trimOptional(req.InvoiceDate),
		PaymentMethod: trimOptional(req.PaymentMethod),
		IsFullyPaid:   req.IsFullyPaid,
	}
	for _, amount := range []struct {
		field string
		value *decimal.Decimal
		dest  **int64
	}{
		{"deposit_amount", req.DepositAmount, &update.DepositAmount},
		{"upfront_payment", req.UpfrontPayment, &update.UpfrontPayment},
		{"delivery_charge", req.DeliveryCharge, &update.DeliveryCharge},
	} {
		if amount.value == nil {
			continue
		}
		cents, err := amountField(amount.field, *amount.value)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		*amount.dest = &cents
	}

	invoice, err := s.invoiceSvc.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice)})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	invoice, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(invoice)})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		OrderID     string `form:"order_id"`
		IsFullyPaid string `form:"is_fully_paid"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isFullyPaid, err := parseOptionalBool(query.IsFullyPaid)
	if err != nil {
		AbortWithError(c, newValidationError("is_fully_paid", "invalid_is_fully_paid", "invalid is_fully_paid"))
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Pagination:  query.Pagination,
		OrderID:     strings.TrimSpace(query.OrderID),
		IsFullyPaid: isFullyPaid,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoices := make([]invoiceResponse, 0, len(resp.Invoices))
	for _, invoice := range resp.Invoices {
		invoices = append(invoices, newInvoiceResponse(invoice))
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoices":        invoices,
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	}})
}
