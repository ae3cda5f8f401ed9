package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"restopay_app/internal/models"
	"restopay_app/internal/services"
)

const (
	WebhookPaymentSuccess = "PAYMENT_SUCCESS_WEBHOOK"
	WebhookPaymentFailed  = "PAYMENT_FAILED_WEBHOOK"

	SignatureHeader = "x-webhook-signature"

	maxWebhookBody = 1 << 20
)

// Callback outcomes recorded in the archive
const (
	outcomeApplied      = "applied"
	outcomeIgnored      = "ignored"
	outcomeBadSignature = "invalid_signature"
	outcomeBadPayload   = "invalid_payload"
	outcomeNotFound     = "order_not_found"
	outcomeRejected     = "transition_rejected"
	outcomeFailed       = "failed"
)

type paymentWebhook struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID     string `json:"order_id"`
			OrderStatus string `json:"order_status"`
		} `json:"order"`
	} `json:"data"`
}

type midtransNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// WebhookConfig holds the secrets used to authenticate callbacks
type WebhookConfig struct {
	Secret            string
	RequireSignature  bool
	MidtransServerKey string
}

type WebhookHandler struct {
	payments *services.PaymentStatusService
	archive  services.CallbackArchive
	cfg      WebhookConfig
	logger   *zap.Logger
}

func NewWebhookHandler(payments *services.PaymentStatusService, archive services.CallbackArchive, cfg WebhookConfig, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		archive:  archive,
		cfg:      cfg,
		logger:   logger,
	}
}

// VerifyWebhookSignature compares base64(HMAC-SHA256(secret, body)) against the header value
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PaymentWebhook handles POST /api/webhooks/payment
func (h *WebhookHandler) PaymentWebhook(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	entry := &models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayWebhook,
		Metadata:       archivedBody(body),
	}

	signature := c.Request().Header.Get(SignatureHeader)
	entry.SignatureValid = VerifyWebhookSignature(h.cfg.Secret, body, signature)
	if !entry.SignatureValid && (h.cfg.RequireSignature || signature != "") {
		h.logger.Warn("Rejected webhook with invalid signature",
			zap.Bool("signature_present", signature != ""),
			zap.Bool("secret_configured", h.cfg.Secret != ""))
		h.archiveCallback(ctx, entry, outcomeBadSignature)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid webhook signature")
	}

	var payload paymentWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		h.archiveCallback(ctx, entry, outcomeBadPayload)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid webhook payload")
	}
	entry.EventType = payload.Type
	entry.GatewayOrderID = payload.Data.Order.OrderID

	var (
		status models.PaymentStatus
		opts   = services.UpdateOptions{WebhookSource: payload.Type}
	)
	switch payload.Type {
	case WebhookPaymentSuccess:
		status = models.PaymentStatusCompleted
		opts.OrderStatus = models.OrderStatusPending
	case WebhookPaymentFailed:
		status = models.PaymentStatusFailed
		opts.OrderStatus = models.OrderStatusCancelled
	default:
		h.logger.Info("Ignoring webhook of unknown type", zap.String("type", payload.Type))
		h.archiveCallback(ctx, entry, outcomeIgnored)
		return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Webhook type ignored"})
	}

	if payload.Data.Order.OrderID == "" {
		h.archiveCallback(ctx, entry, outcomeBadPayload)
		return echo.NewHTTPError(http.StatusBadRequest, "Missing order id")
	}

	return h.applyCallback(c, entry, payload.Data.Order.OrderID, status, opts)
}

// MidtransNotification handles POST /api/webhooks/midtrans
func (h *WebhookHandler) MidtransNotification(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	entry := &models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		Metadata:       archivedBody(body),
	}

	var n midtransNotification
	if err := json.Unmarshal(body, &n); err != nil {
		h.archiveCallback(ctx, entry, outcomeBadPayload)
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification payload")
	}
	entry.EventType = n.TransactionStatus
	entry.GatewayOrderID = n.OrderID

	entry.SignatureValid = services.VerifyMidtransSignature(h.cfg.MidtransServerKey, n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey)
	if !entry.SignatureValid {
		h.logger.Warn("Rejected Midtrans notification with invalid signature", zap.String("gateway_order_id", n.OrderID))
		h.archiveCallback(ctx, entry, outcomeBadSignature)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid notification signature")
	}

	status, ok := services.MapTransactionStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		h.logger.Info("Ignoring Midtrans notification",
			zap.String("transaction_status", n.TransactionStatus),
			zap.String("fraud_status", n.FraudStatus))
		h.archiveCallback(ctx, entry, outcomeIgnored)
		return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Notification ignored"})
	}
	if n.OrderID == "" {
		h.archiveCallback(ctx, entry, outcomeBadPayload)
		return echo.NewHTTPError(http.StatusBadRequest, "Missing order id")
	}

	opts := services.UpdateOptions{WebhookSource: "midtrans:" + n.TransactionStatus}
	if status == models.PaymentStatusFailed || status == models.PaymentStatusCancelled {
		opts.OrderStatus = models.OrderStatusCancelled
	}

	return h.applyCallback(c, entry, n.OrderID, status, opts)
}

func (h *WebhookHandler) applyCallback(c echo.Context, entry *models.PaymentCallbackHistory, gatewayOrderID string, status models.PaymentStatus, opts services.UpdateOptions) error {
	ctx := c.Request().Context()

	result, err := h.payments.UpdateByGatewayOrderID(ctx, gatewayOrderID, status, opts)
	switch {
	case err == nil:
		h.archiveCallback(ctx, entry, outcomeApplied)
		return c.JSON(http.StatusOK, UpdateStatusResponse{StatusUpdateResult: result, Message: "Webhook processed"})
	case errors.Is(err, services.ErrOrderNotFound):
		h.archiveCallback(ctx, entry, outcomeNotFound)
		return err
	case errors.Is(err, services.ErrInvalidTransition):
		// acknowledged so the sender stops retrying
		h.logger.Warn("Webhook transition rejected",
			zap.String("gateway_order_id", gatewayOrderID),
			zap.String("source", opts.WebhookSource),
			zap.Error(err))
		h.archiveCallback(ctx, entry, outcomeRejected)
		return c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Transition not applied"})
	default:
		h.archiveCallback(ctx, entry, outcomeFailed)
		return err
	}
}

func (h *WebhookHandler) archiveCallback(ctx context.Context, entry *models.PaymentCallbackHistory, outcome string) {
	if h.archive == nil {
		return
	}
	entry.Outcome = outcome
	if err := h.archive.ArchiveCallback(ctx, entry); err != nil {
		h.logger.Warn("Failed to archive callback",
			zap.String("gateway", string(entry.PaymentGateway)),
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}

// archivedBody keeps the raw payload as valid JSON for the jsonb column
func archivedBody(body []byte) datatypes.JSON {
	if json.Valid(body) {
		return datatypes.JSON(body)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})
	return datatypes.JSON(wrapped)
}
