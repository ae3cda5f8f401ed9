// Package app wires the invoice pipeline from configuration. The server, the worker
// and the operator CLIs all start from Build.
package app

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"restopay_app/internal/config"
	"restopay_app/internal/invoice"
	"restopay_app/internal/services"
	"restopay_app/internal/tasks"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB        *gorm.DB
	Store     *services.GormStore
	TaskStore *tasks.GormTaskStore
	Queue     *tasks.Queue
	Cache     *services.RedisCache
	Events    services.EventPublisher
	Gateway   *services.MidtransService
	Renderer  invoice.Renderer

	Generator *services.InvoiceGenerator
	Payments  *services.PaymentStatusService
	Job       *services.InvoiceJob
	Downloads *services.InvoiceDownloadService

	closers []func() error
}

// Build connects to Postgres and the optional collaborators. Redis, RabbitMQ and
// Midtrans are skipped with a warning when unconfigured or unreachable.
func Build(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}

	db, err := services.InitDB(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := services.AutoMigrate(db, logger); err != nil {
		return nil, fmt.Errorf("run database migrations: %w", err)
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Store:     services.NewGormStore(db),
		TaskStore: tasks.NewGormTaskStore(db),
		Events:    services.NoopPublisher{},
	}
	a.Queue = tasks.NewQueue(a.TaskStore, logger)

	var lock services.RenderLock
	if cfg.RedisURL != "" {
		cache, err := services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis unavailable, invoice cache and distributed lock disabled", zap.Error(err))
		} else {
			a.Cache = cache
			lock = cache
			a.closers = append(a.closers, cache.Close)
		}
	} else {
		logger.Warn("REDIS_URL not set, invoice cache disabled")
	}

	if cfg.AMQPURL != "" {
		publisher, err := services.NewRabbitPublisher(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, domain events disabled", zap.Error(err))
		} else {
			a.Events = publisher
			a.closers = append(a.closers, publisher.Close)
		}
	}

	var gateway services.PaymentGateway
	if cfg.Midtrans.ServerKey != "" {
		a.Gateway = services.NewMidtransService(cfg.Midtrans)
		gateway = a.Gateway
	} else {
		logger.Warn("MIDTRANS_SERVER_KEY not set, gateway polling disabled")
	}

	a.Renderer = NewRenderer(cfg.Invoice, logger)

	a.Generator = services.NewInvoiceGenerator(services.GeneratorDeps{
		Store:    a.Store,
		Renderer: a.Renderer,
		Lock:     lock,
		Events:   a.Events,
		Notifier: a.Queue,
		Cache:    a.Cache,
		Logger:   logger,
		Currency: cfg.Invoice.CurrencySymbol,
		PageSize: cfg.Invoice.PageSize,
	})
	a.Payments = services.NewPaymentStatusService(a.Store, a.Generator, gateway, logger)
	a.Job = services.NewInvoiceJob(a.Store, a.Generator, logger)
	a.Downloads = services.NewInvoiceDownloadService(a.Store, a.Store, a.Generator, a.Cache, cfg.Invoice.CacheTTL, logger)

	return a, nil
}

// NewRenderer is PDF first with the HTML page as fallback
func NewRenderer(cfg config.InvoiceConfig, logger *zap.Logger) invoice.Renderer {
	if cfg.FontPath == "" {
		logger.Warn("INVOICE_FONT_PATH not set, PDF invoices limited to Latin text and fall back to HTML otherwise")
	}
	return invoice.NewFallbackRenderer(invoice.NewPDFRenderer(cfg.FontPath), invoice.NewHTMLRenderer(), logger)
}

// JobOptions converts the configured job settings
func (a *App) JobOptions() services.JobOptions {
	return services.JobOptions{
		BatchSize:           a.Config.Job.BatchSize,
		ChunkSize:           a.Config.Job.ChunkSize,
		MaxRetries:          a.Config.Job.MaxRetries,
		DelayBetweenBatches: a.Config.Job.Delay,
	}
}

// TaskDeps builds the worker dependencies. WhatsApp and email are left out when unconfigured.
func (a *App) TaskDeps() tasks.Deps {
	deps := tasks.Deps{
		Job:         a.Job,
		JobDefaults: a.JobOptions(),
		Orders:      a.Store,
		Store:       a.TaskStore,
		Logger:      a.Logger,
	}
	if a.Config.Waha.BaseURL != "" {
		deps.WhatsApp = services.NewWahaService(a.Config.Waha)
	} else {
		a.Logger.Warn("WAHA_BASE_URL not set, WhatsApp invoice delivery disabled")
	}
	if mailer := services.NewEmailService(a.Config.SMTP); mailer != nil {
		deps.Mailer = mailer
	} else {
		a.Logger.Warn("SMTP not configured, invoice emails disabled")
	}
	return deps
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Error while closing", zap.Error(err))
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
