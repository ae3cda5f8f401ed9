package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"restopay_app/internal/models"
	"restopay_app/internal/services"
)

// UpdateStatusRequest is the body of POST /api/payments/status
type UpdateStatusRequest struct {
	OrderID         string `json:"orderId"`
	PaymentStatus   string `json:"paymentStatus"`
	WebhookSource   string `json:"webhookSource"`
	GenerateInvoice *bool  `json:"generateInvoice"`
	Force           bool   `json:"force"`
}

type UpdateStatusResponse struct {
	*services.StatusUpdateResult
	Message string `json:"message"`
}

type BatchUpdateRequest struct {
	Updates          []services.StatusUpdate `json:"updates"`
	GenerateInvoices *bool                   `json:"generateInvoices"`
}

type BatchUpdateResponse struct {
	Success bool `json:"success"`
	*services.BatchUpdateResult
}

// PendingInvoiceOrder is one row of the pending-invoice listing
type PendingInvoiceOrder struct {
	ID               string               `json:"id"`
	UniqueOrderID    string               `json:"unique_order_id"`
	CustomerName     string               `json:"customer_name"`
	TotalAmount      decimal.Decimal      `json:"total_amount"`
	PaymentStatus    models.PaymentStatus `json:"payment_status"`
	CreatedAt        time.Time            `json:"created_at"`
	InvoiceGenerated bool                 `json:"invoice_generated"`
	RestaurantName   string               `json:"restaurant_name"`
}

type PendingInvoicesResponse struct {
	Success bool                  `json:"success"`
	Count   int                   `json:"count"`
	Orders  []PendingInvoiceOrder `json:"orders"`
}

// BackfillRequest overrides the configured job options. DelayBetweenBatches is in milliseconds.
type BackfillRequest struct {
	BatchSize           *int `json:"batchSize"`
	ChunkSize           *int `json:"chunkSize"`
	MaxRetries          *int `json:"maxRetries"`
	DelayBetweenBatches *int `json:"delayBetweenBatches"`
}

type BackfillResponse struct {
	Success bool `json:"success"`
	*services.JobReport
}

type PaymentStatusResponse struct {
	Success bool `json:"success"`
	*services.ReconcileResult
	Error             string `json:"error,omitempty"`
	GatewayStatusCode int    `json:"gatewayStatusCode,omitempty"`
	Details           string `json:"details,omitempty"`
}

// MessageResponse is the minimal success envelope
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
