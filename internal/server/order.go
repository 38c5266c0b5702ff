package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"github.com/smallbiznis/orderdesk/pkg/money"
)

type orderLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

type orderRequest struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	EventDate    string             `json:"event_date"`
	Location     string             `json:"location"`
	CustomerName string             `json:"customer_name"`
	PhoneNumber  string             `json:"phone_number"`
	Lines        []orderLineRequest `json:"lines"`
}

func (r orderRequest) toDomain() orderdomain.OrderRequest {
	lines := make([]orderdomain.LineRequest, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, orderdomain.LineRequest{
			ItemID:   strings.TrimSpace(line.ItemID),
			Quantity: line.Quantity,
		})
	}
	return orderdomain.OrderRequest{
		Title:        r.Title,
		Description:  r.Description,
		EventDate:    r.EventDate,
		Location:     r.Location,
		CustomerName: r.CustomerName,
		PhoneNumber:  r.PhoneNumber,
		Lines:        lines,
	}
}

type orderLineResponse struct {
	ID           snowflake.ID `json:"id"`
	ItemID       snowflake.ID `json:"item_id"`
	ItemName     string       `json:"item_name"`
	Quantity     int64        `json:"quantity"`
	UnitPrice    string       `json:"unit_price"`
	LineTotal    string       `json:"line_total"`
	IsConsumable bool         `json:"is_consumable"`
}

type orderResponse struct {
	ID           snowflake.ID        `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description,omitempty"`
	EventDate    string              `json:"event_date,omitempty"`
	Location     string              `json:"location,omitempty"`
	CustomerName string              `json:"customer_name"`
	PhoneNumber  string              `json:"phone_number"`
	Lines        []orderLineResponse `json:"lines"`
	Subtotal     string              `json:"subtotal"`
	InvoiceID    *snowflake.ID       `json:"invoice_id,omitempty"`
	IsFullyPaid  bool                `json:"is_fully_paid"`
	CreatedBy    string              `json:"created_by"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedBy    string              `json:"updated_by"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func newOrderResponse(order orderdomain.Order) orderResponse {
	resp := orderResponse{
		ID:           order.ID,
		Title:        order.Title,
		Description:  order.Description,
		EventDate:    order.EventDate,
		Location:     order.Location,
		CustomerName: order.CustomerName,
		PhoneNumber:  order.PhoneNumber,
		Lines:        make([]orderLineResponse, 0, len(order.Lines)),
		IsFullyPaid:  order.IsFullyPaid,
		CreatedBy:    order.CreatedBy,
		CreatedAt:    order.CreatedAt,
		UpdatedBy:    order.UpdatedBy,
		UpdatedAt:    order.UpdatedAt,
	}
	if order.InvoiceID != 0 {
		invoiceID := order.InvoiceID
		resp.InvoiceID = &invoiceID
	}

	var subtotal int64
	for _, line := range order.Lines {
		lineTotal := line.Quantity * line.UnitPrice
		subtotal += lineTotal
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:           line.ID,
			ItemID:       line.ItemID,
			ItemName:     line.ItemName,
			Quantity:     line.Quantity,
			UnitPrice:    money.Format(line.UnitPrice),
			LineTotal:    money.Format(lineTotal),
			IsConsumable: line.IsConsumable,
		})
	}
	resp.Subtotal = money.Format(subtotal)
	return resp
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newOrderResponse(order)})
}

func (s *Server) UpdateOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Update(c.Request.Context(), c.Param("id"), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newOrderResponse(order)})
}

func (s *Server) DeleteOrder(c *gin.Context) {
	if err := s.orderSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetOrderByID(c *gin.Context) {
	order, err := s.orderSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newOrderResponse(order)})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		EventDate    string `form:"event_date"`
		CustomerName string `form:"customer_name"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListOrderRequest{
		Pagination:   query.Pagination,
		EventDate:    strings.TrimSpace(query.EventDate),
		CustomerName: strings.TrimSpace(query.CustomerName),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orders := make([]orderResponse, 0, len(resp.Orders))
	for _, order := range resp.Orders {
		orders = append(orders, newOrderResponse(order))
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"orders":          orders,
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	}})
}
