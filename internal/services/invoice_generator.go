package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"restopay_app/internal/invoice"
	"restopay_app/internal/models"
)

const renderLockTTL = 2 * time.Minute

// NotificationScheduler queues delivery of a freshly generated invoice
type NotificationScheduler interface {
	ScheduleInvoiceNotification(ctx context.Context, orderID string) error
}

// GeneratorDeps are the collaborators of the invoice pipeline. Only Store and Renderer are required.
type GeneratorDeps struct {
	Store    OrderStore
	Renderer invoice.Renderer
	Lock     RenderLock
	Events   EventPublisher
	Notifier NotificationScheduler
	Cache    *RedisCache
	Logger   *zap.Logger
	Clock    func() time.Time
	Currency string
	PageSize string
}

// InvoiceGenerator is the single render-and-persist path shared by status updates,
// the backfill job and on-demand downloads
type InvoiceGenerator struct {
	store    OrderStore
	renderer invoice.Renderer
	lock     RenderLock
	events   EventPublisher
	notifier NotificationScheduler
	cache    *RedisCache
	logger   *zap.Logger
	now      func() time.Time
	currency string
	options  invoice.Options
}

func NewInvoiceGenerator(d GeneratorDeps) *InvoiceGenerator {
	g := &InvoiceGenerator{
		store:    d.Store,
		renderer: d.Renderer,
		lock:     d.Lock,
		events:   d.Events,
		notifier: d.Notifier,
		cache:    d.Cache,
		logger:   d.Logger,
		now:      d.Clock,
		currency: d.Currency,
		options:  invoice.Options{PageSize: d.PageSize},
	}
	if g.lock == nil {
		g.lock = NewLocalLock()
	}
	if g.events == nil {
		g.events = NoopPublisher{}
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

type invoiceRequest struct {
	Force       bool
	MaxAttempts int
	Notify      bool
}

type invoiceOutcome struct {
	Generated     bool
	AlreadyExists bool
	Document      *invoice.Document
	Attempts      int
	Err           error
}

// ensureInvoice renders and stores an invoice for a completed order unless one exists.
// The order is updated in place on success.
func (g *InvoiceGenerator) ensureInvoice(ctx context.Context, order *models.Order, req invoiceRequest) invoiceOutcome {
	if order.HasInvoice() && !req.Force {
		return invoiceOutcome{AlreadyExists: true}
	}

	if err := ValidateOrder(order); err != nil {
		g.logger.Warn("Order failed invoice validation", zap.String("order_id", order.ID), zap.Error(err))
		return invoiceOutcome{Err: err}
	}

	release, acquired, err := g.lock.TryLock(ctx, RenderLockKey(order.ID), renderLockTTL)
	switch {
	case err != nil:
		g.logger.Warn("Render lock unavailable, relying on conditional claim", zap.String("order_id", order.ID), zap.Error(err))
	case !acquired:
		g.logger.Info("Invoice render already in progress", zap.String("order_id", order.ID))
		return invoiceOutcome{AlreadyExists: true}
	default:
		defer release()
	}

	if !req.Force {
		// whoever held the lock before us may have stored it already
		fresh, err := g.store.GetOrder(ctx, order.ID)
		if err != nil {
			return invoiceOutcome{Err: err}
		}
		if fresh.HasInvoice() {
			order.InvoiceGenerated = true
			order.InvoiceBase64 = fresh.InvoiceBase64
			order.InvoiceGeneratedAt = fresh.InvoiceGeneratedAt
			return invoiceOutcome{AlreadyExists: true}
		}
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	issuedAt := g.now()
	data := invoice.NewData(order, g.currency, issuedAt)

	var doc *invoice.Document
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		doc, err = g.renderer.Render(ctx, data, g.options)
		if err == nil || ctx.Err() != nil {
			break
		}
		g.logger.Warn("Invoice render attempt failed",
			zap.String("order_id", order.ID),
			zap.Int("attempt", attempts),
			zap.Error(err))
	}
	if err != nil {
		var renderErr *RenderError
		if !errors.As(err, &renderErr) {
			err = &RenderError{Renderer: g.renderer.Name(), Err: err}
		}
		return invoiceOutcome{Attempts: attempts, Err: err}
	}

	encoded := doc.Base64()
	if req.Force {
		if err := g.store.OverwriteInvoice(ctx, order.ID, encoded, issuedAt); err != nil {
			return invoiceOutcome{Attempts: attempts, Err: err}
		}
	} else {
		claimed, err := g.store.ClaimInvoice(ctx, order.ID, encoded, issuedAt)
		if err != nil {
			return invoiceOutcome{Attempts: attempts, Err: err}
		}
		if !claimed {
			g.logger.Info("Invoice claimed by a concurrent writer", zap.String("order_id", order.ID))
			return invoiceOutcome{AlreadyExists: true, Attempts: attempts}
		}
	}

	order.InvoiceGenerated = true
	order.InvoiceBase64 = encoded
	order.InvoiceGeneratedAt = &issuedAt
	g.dropCachedCopy(ctx, order)

	g.logger.Info("Invoice generated",
		zap.String("order_id", order.ID),
		zap.String("format", string(doc.Format)),
		zap.Int("size", doc.Size()),
		zap.String("preview", doc.Preview(48)))

	g.publish(ctx, NewEvent(EventInvoiceGenerated, order.ID, issuedAt, map[string]interface{}{
		"unique_order_id": order.UniqueOrderID,
		"format":          doc.Format,
		"size":            doc.Size(),
		"forced":          req.Force,
	}))

	if req.Notify && g.notifier != nil {
		if err := g.notifier.ScheduleInvoiceNotification(ctx, order.ID); err != nil {
			g.logger.Warn("Failed to schedule invoice notification", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	return invoiceOutcome{Generated: true, Document: doc, Attempts: attempts}
}

// dropCachedCopy evicts the download cache so the next download reads the new blob
func (g *InvoiceGenerator) dropCachedCopy(ctx context.Context, order *models.Order) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Delete(ctx, InvoiceCacheKey(order.ID, order.CustomerPhone)); err != nil {
		g.logger.Warn("Failed to evict cached invoice", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// publish never fails the caller
func (g *InvoiceGenerator) publish(ctx context.Context, event Event) {
	if err := g.events.Publish(ctx, event); err != nil {
		g.logger.Warn("Failed to publish event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}
