package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"restopay_app/internal/models"
)

const (
	SourceManual      = "manual"
	SourceGatewayPoll = "gateway_poll"
)

// UpdateOptions tune a single status update. GenerateInvoice defaults to true when nil.
type UpdateOptions struct {
	GenerateInvoice *bool
	WebhookSource   string
	Force           bool
	// OrderStatus overrides the order lifecycle value written next to the payment status
	OrderStatus string
}

func (o UpdateOptions) generateInvoice() bool {
	return o.GenerateInvoice == nil || *o.GenerateInvoice
}

func (o UpdateOptions) source() string {
	if o.WebhookSource != "" {
		return o.WebhookSource
	}
	return SourceManual
}

// StatusUpdateResult never carries the invoice payload itself
type StatusUpdateResult struct {
	Success              bool                 `json:"success"`
	OrderID              string               `json:"orderId"`
	NewStatus            models.PaymentStatus `json:"newStatus,omitempty"`
	PaymentUpdated       bool                 `json:"paymentUpdated"`
	InvoiceGenerated     bool                 `json:"invoiceGenerated"`
	InvoiceAlreadyExists bool                 `json:"invoiceAlreadyExists"`
	InvoiceSize          int                  `json:"invoiceSize,omitempty"`
	InvoiceFormat        string               `json:"invoiceFormat,omitempty"`
	InvoicePreview       string               `json:"invoicePreview,omitempty"`
	InvoiceError         string               `json:"invoiceError,omitempty"`
	Error                string               `json:"error,omitempty"`
}

type StatusUpdate struct {
	OrderID       string `json:"orderId"`
	NewStatus     string `json:"newStatus"`
	WebhookSource string `json:"webhookSource,omitempty"`
}

type BatchUpdateResult struct {
	TotalProcessed int                  `json:"totalProcessed"`
	Results        []StatusUpdateResult `json:"results"`
}

// ReconcileResult reports the gateway view next to the stored one
type ReconcileResult struct {
	OrderID       string               `json:"orderId"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	GatewayStatus string               `json:"gatewayStatus,omitempty"`
	Changed       bool                 `json:"changed"`
	Update        *StatusUpdateResult  `json:"update,omitempty"`
}

// PaymentStatusService applies payment status transitions and triggers invoice generation
type PaymentStatusService struct {
	store     OrderStore
	generator *InvoiceGenerator
	gateway   PaymentGateway
	logger    *zap.Logger
}

func NewPaymentStatusService(store OrderStore, generator *InvoiceGenerator, gateway PaymentGateway, logger *zap.Logger) *PaymentStatusService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentStatusService{
		store:     store,
		generator: generator,
		gateway:   gateway,
		logger:    logger,
	}
}

// UpdatePaymentStatus moves one order to newStatus and, for completions, makes sure it has an invoice
func (s *PaymentStatusService) UpdatePaymentStatus(ctx context.Context, orderID string, newStatus string, opts UpdateOptions) (*StatusUpdateResult, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, NewValidationError("orderId", "is required")
	}
	status, ok := models.ParsePaymentStatus(newStatus)
	if !ok {
		return nil, NewValidationError("paymentStatus", fmt.Sprintf("%q is not one of pending, completed, failed, cancelled, refunded", newStatus))
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, order, status, opts)
}

// UpdateByGatewayOrderID is the webhook path: the gateway only knows its own order id
func (s *PaymentStatusService) UpdateByGatewayOrderID(ctx context.Context, gatewayOrderID string, status models.PaymentStatus, opts UpdateOptions) (*StatusUpdateResult, error) {
	order, err := s.store.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, order, status, opts)
}

func (s *PaymentStatusService) apply(ctx context.Context, order *models.Order, status models.PaymentStatus, opts UpdateOptions) (*StatusUpdateResult, error) {
	previous := order.PaymentStatus
	if !previous.CanTransitionTo(status) {
		return nil, &TransitionError{From: string(previous), To: string(status)}
	}

	orderStatus := opts.OrderStatus
	if orderStatus == "" && opts.WebhookSource != "" && status == models.PaymentStatusCompleted {
		// paid is not accepted: the restaurant still has to confirm
		orderStatus = models.OrderStatusPending
	}

	if err := s.store.UpdatePaymentStatus(ctx, order.ID, status, orderStatus); err != nil {
		return nil, err
	}
	order.PaymentStatus = status
	if orderStatus != "" {
		order.Status = orderStatus
	}
	if status != models.PaymentStatusCompleted {
		order.InvoiceGenerated = false
	}

	result := &StatusUpdateResult{
		Success:        true,
		OrderID:        order.ID,
		NewStatus:      status,
		PaymentUpdated: true,
	}

	if status == models.PaymentStatusCompleted && opts.generateInvoice() {
		outcome := s.generator.ensureInvoice(ctx, order, invoiceRequest{Force: opts.Force, MaxAttempts: 1, Notify: true})
		result.InvoiceGenerated = outcome.Generated
		result.InvoiceAlreadyExists = outcome.AlreadyExists
		if outcome.Document != nil {
			result.InvoiceSize = outcome.Document.Size()
			result.InvoiceFormat = string(outcome.Document.Format)
			result.InvoicePreview = outcome.Document.Preview(32)
		}
		if outcome.Err != nil {
			result.InvoiceError = outcome.Err.Error()
			s.logger.Error("Invoice generation failed, payment update kept",
				zap.String("order_id", order.ID),
				zap.Error(outcome.Err))
		}
	}

	s.writeAuditLog(ctx, order.ID, status, opts.source(), result)

	if previous != status {
		s.generator.publish(ctx, NewEvent(EventPaymentStatusChanged, order.ID, s.generator.now(), map[string]interface{}{
			"from":         previous,
			"to":           status,
			"order_status": order.Status,
			"source":       opts.source(),
		}))
	}

	s.logger.Info("Payment status updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.String("source", opts.source()),
		zap.Bool("invoice_generated", result.InvoiceGenerated))

	return result, nil
}

// writeAuditLog is fire-and-forget: neither errors nor panics reach the caller
func (s *PaymentStatusService) writeAuditLog(ctx context.Context, orderID string, status models.PaymentStatus, source string, result *StatusUpdateResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Payment status log panicked", zap.String("order_id", orderID), zap.Any("panic", r))
		}
	}()

	snapshot, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("Failed to encode payment status log", zap.String("order_id", orderID), zap.Error(err))
		return
	}

	entry := &models.PaymentStatusLog{
		OrderID: orderID,
		Status:  status,
		Source:  source,
		Result:  datatypes.JSON(snapshot),
	}
	if err := s.store.AppendStatusLog(ctx, entry); err != nil {
		s.logger.Warn("Failed to write payment status log", zap.String("order_id", orderID), zap.Error(err))
	}
}

// BatchUpdatePaymentStatus applies every update independently. One failing item never stops the rest.
func (s *PaymentStatusService) BatchUpdatePaymentStatus(ctx context.Context, updates []StatusUpdate, generateInvoices bool) (*BatchUpdateResult, error) {
	if len(updates) == 0 {
		return nil, NewValidationError("updates", "must contain at least one update")
	}

	out := &BatchUpdateResult{Results: make([]StatusUpdateResult, 0, len(updates))}
	for _, u := range updates {
		generate := generateInvoices
		res, err := s.safeUpdate(ctx, u, UpdateOptions{GenerateInvoice: &generate, WebhookSource: u.WebhookSource})
		if err != nil {
			res = &StatusUpdateResult{Success: false, OrderID: u.OrderID, Error: err.Error()}
		}
		out.Results = append(out.Results, *res)
		out.TotalProcessed++
	}
	return out, nil
}

func (s *PaymentStatusService) safeUpdate(ctx context.Context, u StatusUpdate, opts UpdateOptions) (res *StatusUpdateResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Batch item panicked", zap.String("order_id", u.OrderID), zap.Any("panic", r))
			err = fmt.Errorf("internal error processing order %s", u.OrderID)
		}
	}()
	return s.UpdatePaymentStatus(ctx, u.OrderID, u.NewStatus, opts)
}

// ReconcileWithGateway asks the gateway for the current state and applies it when it moved.
// On gateway failure the stored status is returned together with the error.
func (s *PaymentStatusService) ReconcileWithGateway(ctx context.Context, orderID string) (*ReconcileResult, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	result := &ReconcileResult{OrderID: order.ID, PaymentStatus: order.PaymentStatus}
	if order.PaymentGatewayOrderID == nil || *order.PaymentGatewayOrderID == "" || s.gateway == nil {
		return result, nil
	}

	gs, err := s.gateway.CheckStatus(ctx, *order.PaymentGatewayOrderID)
	if err != nil {
		s.logger.Warn("Gateway status check failed", zap.String("order_id", order.ID), zap.Error(err))
		return result, err
	}
	result.GatewayStatus = gs.TransactionStatus

	if gs.Status == order.PaymentStatus {
		return result, nil
	}
	if !order.PaymentStatus.CanTransitionTo(gs.Status) {
		s.logger.Warn("Gateway reported a status the order cannot move to",
			zap.String("order_id", order.ID),
			zap.String("stored", string(order.PaymentStatus)),
			zap.String("gateway", string(gs.Status)))
		return result, nil
	}

	update, err := s.apply(ctx, order, gs.Status, UpdateOptions{WebhookSource: SourceGatewayPoll})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return result, err
	}
	result.PaymentStatus = update.NewStatus
	result.Changed = true
	result.Update = update
	return result, nil
}
