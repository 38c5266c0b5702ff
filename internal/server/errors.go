package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	invoicedomain "github.com/smallbiznis/orderdesk/internal/invoice/domain"
	"github.com/smallbiznis/orderdesk/internal/lock"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
	"github.com/smallbiznis/orderdesk/pkg/money"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// validationErrors are rejected input. The sentinel text doubles as the
// field code.
var validationErrors = []error{
	ErrInvalidRequest,
	inventorydomain.ErrInvalidID,
	inventorydomain.ErrInvalidName,
	inventorydomain.ErrInvalidQuantity,
	inventorydomain.ErrInvalidPrice,
	bookingdomain.ErrEventDateRequired,
	bookingdomain.ErrInvalidEventDate,
	bookingdomain.ErrInvalidQuantity,
	orderdomain.ErrInvalidID,
	orderdomain.ErrInvalidTitle,
	orderdomain.ErrInvalidCustomerName,
	orderdomain.ErrInvalidPhoneNumber,
	orderdomain.ErrInvalidLineItem,
	orderdomain.ErrInvalidLineQuantity,
	orderdomain.ErrTooManyLines,
	invoicedomain.ErrInvalidID,
	invoicedomain.ErrInvalidOrderID,
	invoicedomain.ErrInvalidInvoiceNumber,
	invoicedomain.ErrInvalidInvoiceDate,
	invoicedomain.ErrInvalidPaymentMethod,
	invoicedomain.ErrInvalidAmount,
	auditdomain.ErrInvalidAction,
	auditdomain.ErrInvalidTarget,
	money.ErrInvalidAmount,
	money.ErrNegativeAmount,
	money.ErrAmountOverflow,
}

var notFoundErrors = []error{
	ErrNotFound,
	inventorydomain.ErrItemNotFound,
	orderdomain.ErrOrderNotFound,
	invoicedomain.ErrInvoiceNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	inventorydomain.ErrInsufficientStock,
	inventorydomain.ErrNotConsumable,
	inventorydomain.ErrItemInUse,
	inventorydomain.ErrDuplicateSKU,
	bookingdomain.ErrOverbooked,
	bookingdomain.ErrNotBookable,
	orderdomain.ErrHasLinkedInvoice,
	invoicedomain.ErrDuplicateInvoice,
	invoicedomain.ErrDuplicateInvoiceNumber,
	lock.ErrLockTimeout,
}

var forbiddenErrors = []error{
	invoicedomain.ErrAlreadyFullyPaid,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalErrorPayload()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel := matchSentinel(err, validationErrors); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    code,
			Message: err.Error(),
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: err.Error(),
				},
			},
		}
	}

	for _, group := range []struct {
		status   int
		sentinel []error
	}{
		{http.StatusNotFound, notFoundErrors},
		{http.StatusConflict, conflictErrors},
		{http.StatusForbidden, forbiddenErrors},
	} {
		if sentinel := matchSentinel(err, group.sentinel); sentinel != nil {
			return group.status, errorPayload{
				Type:    sentinel.Error(),
				Message: err.Error(),
			}
		}
	}

	return http.StatusInternalServerError, internalErrorPayload()
}

// classifyErrorForLog reports the error kind and code for request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	switch {
	case status == http.StatusBadRequest:
		return "validation", payload.Type
	case status == http.StatusNotFound:
		return "not_found", payload.Type
	case status == http.StatusConflict:
		return "conflict", payload.Type
	case status == http.StatusForbidden:
		return "forbidden", payload.Type
	default:
		return "internal", payload.Type
	}
}

func internalErrorPayload() errorPayload {
	return errorPayload{
		Type:    ErrInternal.Error(),
		Message: "internal server error",
	}
}

func matchSentinel(err error, candidates []error) error {
	for _, candidate := range candidates {
		if errors.Is(err, candidate) {
			return candidate
		}
	}
	return nil
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case code == "too_many_lines":
		return "lines"
	case code == "event_date_required":
		return "event_date"
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	default:
		return ""
	}
}
