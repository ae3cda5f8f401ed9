package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"restopay_app/internal/config"
	"restopay_app/internal/services"
)

type PaymentHandler struct {
	payments   *services.PaymentStatusService
	job        *services.InvoiceJob
	jobConfig  config.JobConfig
	production bool
	logger     *zap.Logger
}

func NewPaymentHandler(payments *services.PaymentStatusService, job *services.InvoiceJob, jobConfig config.JobConfig, production bool, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:   payments,
		job:        job,
		jobConfig:  jobConfig,
		production: production,
		logger:     logger,
	}
}

// UpdateStatus handles POST /api/payments/status
func (h *PaymentHandler) UpdateStatus(c echo.Context) error {
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.OrderID == "" || req.PaymentStatus == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "orderId and paymentStatus are required")
	}

	result, err := h.payments.UpdatePaymentStatus(c.Request().Context(), req.OrderID, req.PaymentStatus, services.UpdateOptions{
		GenerateInvoice: req.GenerateInvoice,
		WebhookSource:   req.WebhookSource,
		Force:           req.Force,
	})
	if err != nil {
		return err
	}

	message := fmt.Sprintf("Payment status updated to %s", result.NewStatus)
	switch {
	case result.InvoiceGenerated:
		message += ", invoice generated"
	case result.InvoiceAlreadyExists:
		message += ", invoice already exists"
	case result.InvoiceError != "":
		message += ", invoice generation failed"
	}

	return c.JSON(http.StatusOK, UpdateStatusResponse{StatusUpdateResult: result, Message: message})
}

// BatchUpdate handles POST /api/payments/status/batch
func (h *PaymentHandler) BatchUpdate(c echo.Context) error {
	var req BatchUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if len(req.Updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "updates must be a non-empty array")
	}
	for i, u := range req.Updates {
		if u.OrderID == "" || u.NewStatus == "" {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("updates[%d] requires orderId and newStatus", i))
		}
	}

	generate := req.GenerateInvoices == nil || *req.GenerateInvoices
	result, err := h.payments.BatchUpdatePaymentStatus(c.Request().Context(), req.Updates, generate)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BatchUpdateResponse{Success: true, BatchUpdateResult: result})
}

// PaymentStatus handles GET /api/orders/:id/payment-status.
// It reconciles with the gateway and falls back to the stored status when the gateway fails.
func (h *PaymentHandler) PaymentStatus(c echo.Context) error {
	result, err := h.payments.ReconcileWithGateway(c.Request().Context(), c.Param("id"))

	var gatewayErr *services.GatewayError
	if errors.As(err, &gatewayErr) && result != nil {
		resp := PaymentStatusResponse{
			Success:           false,
			ReconcileResult:   result,
			Error:             "Payment gateway request failed",
			GatewayStatusCode: gatewayErr.StatusCode,
		}
		if !h.production {
			resp.Details = gatewayErr.Raw
		}
		return c.JSON(http.StatusBadGateway, resp)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, PaymentStatusResponse{Success: true, ReconcileResult: result})
}

// PendingInvoices handles GET /api/invoices/pending
func (h *PaymentHandler) PendingInvoices(c echo.Context) error {
	limit := services.MaxInvoiceBatch
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
		limit = n
	}

	orders, err := h.job.GetOrdersNeedingInvoices(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	out := make([]PendingInvoiceOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, PendingInvoiceOrder{
			ID:               o.ID,
			UniqueOrderID:    o.UniqueOrderID,
			CustomerName:     o.CustomerName,
			TotalAmount:      o.TotalAmount,
			PaymentStatus:    o.PaymentStatus,
			CreatedAt:        o.CreatedAt,
			InvoiceGenerated: o.InvoiceGenerated,
			RestaurantName:   o.Restaurant.Name,
		})
	}

	return c.JSON(http.StatusOK, PendingInvoicesResponse{Success: true, Count: len(out), Orders: out})
}

// Backfill handles POST /api/invoices/backfill and runs the job inside the request
func (h *PaymentHandler) Backfill(c echo.Context) error {
	var req BackfillRequest
	if c.Request().ContentLength != 0 && strings.Contains(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
		}
	}

	opts := services.JobOptions{
		BatchSize:           h.jobConfig.BatchSize,
		ChunkSize:           h.jobConfig.ChunkSize,
		MaxRetries:          h.jobConfig.MaxRetries,
		DelayBetweenBatches: h.jobConfig.Delay,
	}
	if req.BatchSize != nil {
		opts.BatchSize = *req.BatchSize
	}
	if req.ChunkSize != nil {
		opts.ChunkSize = *req.ChunkSize
	}
	if req.MaxRetries != nil {
		if *req.MaxRetries < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "maxRetries cannot be negative")
		}
		opts.MaxRetries = *req.MaxRetries
	}
	if req.DelayBetweenBatches != nil {
		if *req.DelayBetweenBatches < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "delayBetweenBatches cannot be negative")
		}
		opts.DelayBetweenBatches = time.Duration(*req.DelayBetweenBatches) * time.Millisecond
	}

	report, err := h.job.Run(c.Request().Context(), opts)
	if err != nil {
		return err
	}

	h.logger.Info("Invoice backfill triggered over HTTP",
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed))

	return c.JSON(http.StatusOK, BackfillResponse{Success: true, JobReport: report})
}
