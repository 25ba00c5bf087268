package httpserver

import (
	"errors"
	"log"
	"net/http"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
)

type apiError struct {
	StatusCode int    `json:"statusCode"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Available  *int   `json:"available,omitempty"`
	Requested  *int   `json:"requested,omitempty"`
	ProductID  string `json:"productId,omitempty"`
}

func errorBody(status int, code, message string) apiError {
	return apiError{StatusCode: status, Code: code, Message: message}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid_input", message))
}

// writeError maps domain errors onto HTTP responses. Upstream and unexpected
// failures are logged in full and answered with a generic message.
func writeError(c *gin.Context, logger *log.Logger, err error) {
	var (
		stock *domain.InsufficientStockError
		body  apiError
	)
	switch {
	case errors.As(err, &stock):
		body = errorBody(http.StatusConflict, "insufficient_stock", stock.Error())
		body.Available, body.Requested, body.ProductID = &stock.Available, &stock.Requested, stock.ProductID
	case errors.Is(err, domain.ErrValidation):
		body = errorBody(http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domain.ErrAuthentication):
		body = errorBody(http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	case errors.Is(err, domain.ErrForbidden):
		body = errorBody(http.StatusForbidden, "forbidden", "access denied")
	case errors.Is(err, domain.ErrNotFound):
		body = errorBody(http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		body = errorBody(http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyExists):
		body = errorBody(http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrConfiguration):
		body = errorBody(http.StatusUnprocessableEntity, "configuration_error", err.Error())
	case errors.Is(err, domain.ErrUpstream):
		logger.Printf("%s %s: upstream error: %v", c.Request.Method, c.FullPath(), err)
		body = errorBody(http.StatusBadGateway, "payment_gateway_error", "payment provider request failed")
	default:
		logger.Printf("%s %s: internal error: %v", c.Request.Method, c.FullPath(), err)
		body = errorBody(http.StatusInternalServerError, "internal_error", "internal server error")
	}
	c.JSON(body.StatusCode, body)
}
