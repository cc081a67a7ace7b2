package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"billing-service/gateway"
	"billing-service/logging"
	"billing-service/models"
)

// respondError maps domain errors to HTTP responses. Unexpected errors are
// logged with trace context and answered with a generic 500.
func respondError(c *gin.Context, err error, operation string) {
	status, message := classify(err)
	span := trace.SpanFromContext(c.Request.Context())

	if status >= http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation+" failed")
		logging.WithTraceContext(span).Error(operation+" failed",
			zap.Error(err),
			zap.String("route", c.FullPath()),
			zap.Int("status_code", status),
		)
	}

	c.JSON(status, gin.H{"message": message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, gateway.ErrGatewayUnreachable):
		return http.StatusBadGateway, "Payment gateway is unavailable. Please try again later"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, models.ErrAlreadyPaid):
		return http.StatusBadRequest, "Bill has been paid"
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusBadRequest, "Student does not have enough balance to pay bill"
	case errors.Is(err, models.ErrAmountMismatch):
		return http.StatusConflict, "Payment amount does not match the gateway charge"
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidBillType),
		errors.Is(err, models.ErrInvalidWebhook):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
