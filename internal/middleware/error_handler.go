package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"restopay_app/internal/services"
)

// ErrorResponse is the failure half of the API envelope
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// StatusFor maps domain errors to HTTP status codes and a client-safe message
func StatusFor(err error) (int, string) {
	var (
		httpErr     *echo.HTTPError
		validation  *services.ValidationError
		invalidData *services.OrderDataInvalidError
		renderErr   *services.RenderError
		gatewayErr  *services.GatewayError
		storeErr    *services.StoreError
	)

	switch {
	case errors.As(err, &httpErr):
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			return httpErr.Code, msg
		}
		return httpErr.Code, http.StatusText(httpErr.Code)
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.Is(err, services.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, services.ErrPhoneMismatch):
		return http.StatusForbidden, "Phone number does not match this order"
	case errors.Is(err, services.ErrPaymentNotCompleted):
		return http.StatusConflict, "Payment for this order is not completed"
	case errors.Is(err, services.ErrInvalidTransition):
		return http.StatusConflict, "Payment status transition is not allowed"
	case errors.As(err, &invalidData):
		return http.StatusUnprocessableEntity, "Order data is incomplete for invoicing"
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway, "Payment gateway request failed"
	case errors.As(err, &renderErr):
		return http.StatusInternalServerError, "Failed to generate invoice"
	case errors.As(err, &storeErr):
		return http.StatusInternalServerError, "Database operation failed"
	}
	return http.StatusInternalServerError, "Internal server error"
}

// NewErrorHandler renders every error as the JSON envelope. Details are omitted in production.
func NewErrorHandler(logger *zap.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, message := StatusFor(err)

		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		}
		if code >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
		} else {
			logger.Info("Request rejected", fields...)
		}

		resp := ErrorResponse{Success: false, Error: message}
		if !production {
			resp.Details = err.Error()
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, resp)
		}
		if err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
