package handlers

import (
	"github.com/labstack/echo/v4"
)

// Routes groups every handler served by the API
type Routes struct {
	Payments *PaymentHandler
	Invoices *InvoiceHandler
	Webhooks *WebhookHandler
}

// Register mounts the API. adminAuth guards the operator endpoints.
func (r Routes) Register(e *echo.Echo, adminAuth echo.MiddlewareFunc) {
	if adminAuth == nil {
		adminAuth = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	e.GET("/healthz", Healthz)

	api := e.Group("/api")

	payments := api.Group("/payments", adminAuth)
	payments.POST("/status", r.Payments.UpdateStatus)
	payments.POST("/status/batch", r.Payments.BatchUpdate)

	invoices := api.Group("/invoices", adminAuth)
	invoices.GET("/pending", r.Payments.PendingInvoices)
	invoices.POST("/backfill", r.Payments.Backfill)

	api.GET("/orders/:id/payment-status", r.Payments.PaymentStatus)
	api.GET("/orders/:id/invoice", r.Invoices.Download)

	webhooks := api.Group("/webhooks")
	webhooks.POST("/payment", r.Webhooks.PaymentWebhook)
	webhooks.POST("/midtrans", r.Webhooks.MidtransNotification)
}
