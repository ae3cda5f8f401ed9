package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/models"
)

// MaxInvoiceBatch bounds renderer load no matter what callers ask for
const MaxInvoiceBatch = 50

func ClampInvoiceLimit(limit int) int {
	if limit <= 0 || limit > MaxInvoiceBatch {
		return MaxInvoiceBatch
	}
	return limit
}

type JobOptions struct {
	BatchSize           int
	ChunkSize           int
	MaxRetries          int
	DelayBetweenBatches time.Duration
}

type JobItemResult struct {
	OrderID     string `json:"orderId"`
	Success     bool   `json:"success"`
	InvoiceSize int    `json:"invoiceSize,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	Skipped     bool   `json:"skipped,omitempty"`
}

type JobReport struct {
	Processed  int             `json:"processed"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Results    []JobItemResult `json:"results"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// InvoiceJob backfills invoices for paid orders that never got one
type InvoiceJob struct {
	store     OrderStore
	generator *InvoiceGenerator
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewInvoiceJob(store OrderStore, generator *InvoiceGenerator, logger *zap.Logger) *InvoiceJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceJob{store: store, generator: generator, logger: logger, sleep: sleepContext}
}

// SetSleeper replaces the pause between chunks
func (j *InvoiceJob) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	j.sleep = fn
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetOrdersNeedingInvoices lists completed payments without an invoice, newest first
func (j *InvoiceJob) GetOrdersNeedingInvoices(ctx context.Context, limit int) ([]models.Order, error) {
	orders, err := j.store.ListNeedingInvoices(ctx, ClampInvoiceLimit(limit))
	if err != nil {
		return nil, err
	}

	out := orders[:0]
	for _, o := range orders {
		if o.InvoiceGenerated || o.PaymentStatus != models.PaymentStatusCompleted {
			continue
		}
		out = append(out, o)
	}
	if len(out) > MaxInvoiceBatch {
		out = out[:MaxInvoiceBatch]
	}
	return out, nil
}

// Run processes one batch sequentially. Per-order failures are recorded, never returned.
func (j *InvoiceJob) Run(ctx context.Context, opts JobOptions) (*JobReport, error) {
	report := &JobReport{StartedAt: j.generator.now(), Results: []JobItemResult{}}

	orders, err := j.GetOrdersNeedingInvoices(ctx, opts.BatchSize)
	if err != nil {
		return nil, err
	}

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = len(orders)
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	j.logger.Info("Invoice backfill started", zap.Int("orders", len(orders)), zap.Int("chunk_size", chunk))

	for i := range orders {
		if i > 0 && i%chunk == 0 {
			if err := j.sleep(ctx, opts.DelayBetweenBatches); err != nil {
				j.logger.Warn("Invoice backfill interrupted", zap.Int("processed", report.Processed), zap.Error(err))
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		order := &orders[i]
		outcome := j.generator.ensureInvoice(ctx, order, invoiceRequest{MaxAttempts: 1 + maxRetries, Notify: true})

		item := JobItemResult{OrderID: order.ID, Attempts: outcome.Attempts}
		switch {
		case outcome.Err != nil:
			item.Error = outcome.Err.Error()
			report.Failed++
			j.logger.Warn("Invoice backfill failed for order", zap.String("order_id", order.ID), zap.Error(outcome.Err))
		case outcome.AlreadyExists:
			item.Success = true
			item.Skipped = true
			report.Skipped++
		default:
			item.Success = true
			item.InvoiceSize = outcome.Document.Size()
			report.Succeeded++
		}
		report.Results = append(report.Results, item)
		report.Processed++
	}

	report.FinishedAt = j.generator.now()
	j.logger.Info("Invoice backfill finished",
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report, nil
}
