package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	"github.com/smallbiznis/orderdesk/pkg/db/pagination"
	"github.com/smallbiznis/orderdesk/pkg/money"
)

type createItemRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	IsConsumable *bool           `json:"is_consumable"`
}

type updateItemRequest struct {
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	Quantity     *int64           `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	IsConsumable *bool            `json:"is_consumable"`
}

type itemResponse struct {
	ID           snowflake.ID `json:"id"`
	Name         string       `json:"name"`
	SKU          string       `json:"sku"`
	Description  string       `json:"description,omitempty"`
	Quantity     int64        `json:"quantity"`
	UnitPrice    string       `json:"unit_price"`
	IsConsumable bool         `json:"is_consumable"`
	CreatedBy    string       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedBy    string       `json:"updated_by"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func newItemResponse(item inventorydomain.Item) itemResponse {
	return itemResponse{
		ID:           item.ID,
		Name:         item.Name,
		SKU:          item.SKU,
		Description:  item.Description,
		Quantity:     item.Quantity,
		UnitPrice:    money.Format(item.UnitPrice),
		IsConsumable: item.IsConsumable,
		CreatedBy:    item.CreatedBy,
		CreatedAt:    item.CreatedAt,
		UpdatedBy:    item.UpdatedBy,
		UpdatedAt:    item.UpdatedAt,
	}
}

func (s *Server) CreateItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	unitPrice, err := amountField("unit_price", req.UnitPrice)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.inventorySvc.Create(c.Request.Context(), inventorydomain.CreateItemRequest{
		Name:         strings.TrimSpace(req.Name),
		Description:  strings.TrimSpace(req.Description),
		Quantity:     req.Quantity,
		UnitPrice:    unitPrice,
		IsConsumable: req.IsConsumable,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newItemResponse(item)})
}

func (s *Server) UpdateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := inventorydomain.UpdateItemRequest{
		Name:         trimOptional(req.Name),
		Description:  trimOptional(req.Description),
		Quantity:     req.Quantity,
		IsConsumable: req.IsConsumable,
	}
	if req.UnitPrice != nil {
		unitPrice, err := amountField("unit_price", *req.UnitPrice)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.UnitPrice = &unitPrice
	}

	item, err := s.inventorySvc.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newItemResponse(item)})
}

func (s *Server) DeleteItem(c *gin.Context) {
	if err := s.inventorySvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetItemByID(c *gin.Context) {
	item, err := s.inventorySvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newItemResponse(item)})
}

func (s *Server) ListItems(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name       string `form:"name"`
		Consumable string `form:"consumable"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	consumable, err := parseOptionalBool(query.Consumable)
	if err != nil {
		AbortWithError(c, newValidationError("consumable", "invalid_consumable", "invalid consumable"))
		return
	}

	resp, err := s.inventorySvc.List(c.Request.Context(), inventorydomain.ListItemRequest{
		Pagination: query.Pagination,
		Name:       strings.TrimSpace(query.Name),
		Consumable: consumable,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]itemResponse, 0, len(resp.Items))
	for _, item := range resp.Items {
		items = append(items, newItemResponse(item))
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"items":           items,
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	}})
}

func (s *Server) GetItemAvailability(c *gin.Context) {
	availability, err := s.bookingSvc.Availability(c.Request.Context(), c.Param("id"), c.Query("event_date"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": availability})
}

// amountField converts a decimal request amount to minor units.
func amountField(field string, value decimal.Decimal) (int64, error) {
	cents, err := money.FromDecimal(value)
	if err != nil {
		return 0, newValidationError(field, "invalid_"+field, err.Error())
	}
	return cents, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
