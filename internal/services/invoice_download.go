package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"restopay_app/internal/invoice"
	"restopay_app/internal/models"
)

var (
	ErrPhoneMismatch       = errors.New("phone number does not match the order")
	ErrPaymentNotCompleted = errors.New("payment for this order is not completed")
)

// DownloadedInvoice is a document ready to stream to the customer
type DownloadedInvoice struct {
	Document *invoice.Document
	Filename string
}

// InvoiceDownloadService serves invoices from Redis, then the order row, then the
// invoices table copy, and only then a fresh render
type InvoiceDownloadService struct {
	store     OrderStore
	invoices  InvoiceStore
	generator *InvoiceGenerator
	cache     *RedisCache
	ttl       time.Duration
	logger    *zap.Logger
}

func NewInvoiceDownloadService(store OrderStore, invoices InvoiceStore, generator *InvoiceGenerator, cache *RedisCache, ttl time.Duration, logger *zap.Logger) *InvoiceDownloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceDownloadService{
		store:     store,
		invoices:  invoices,
		generator: generator,
		cache:     cache,
		ttl:       ttl,
		logger:    logger,
	}
}

func (s *InvoiceDownloadService) GetInvoice(ctx context.Context, orderID, phone string) (*DownloadedInvoice, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, NewValidationError("phone", "is required")
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !SamePhone(order.CustomerPhone, phone) {
		return nil, ErrPhoneMismatch
	}
	if order.PaymentStatus != models.PaymentStatusCompleted {
		return nil, ErrPaymentNotCompleted
	}

	encoded, err := GetOrSet(s.cache, ctx, InvoiceCacheKey(order.ID, order.CustomerPhone), s.ttl, func() (string, error) {
		return s.loadOrRender(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	doc, err := invoice.DecodeDocument(encoded)
	if err != nil {
		return nil, err
	}
	return &DownloadedInvoice{Document: doc, Filename: doc.Filename(order.UniqueOrderID)}, nil
}

func (s *InvoiceDownloadService) loadOrRender(ctx context.Context, order *models.Order) (string, error) {
	stored, err := s.invoices.FindInvoice(ctx, order.ID, order.CustomerPhone)
	if err != nil {
		s.logger.Warn("Invoice table lookup failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	// the order row wins over the copy, a forced or repeated completion rewrites it
	if order.HasInvoice() {
		if stored == nil || stored.InvoiceBase64 != order.InvoiceBase64 {
			s.keepCopy(ctx, order)
		}
		return order.InvoiceBase64, nil
	}
	if stored != nil && stored.InvoiceBase64 != "" {
		return stored.InvoiceBase64, nil
	}

	outcome := s.generator.ensureInvoice(ctx, order, invoiceRequest{MaxAttempts: 1})
	if outcome.Err != nil {
		return "", outcome.Err
	}
	if outcome.AlreadyExists && !order.HasInvoice() {
		// a concurrent writer stored it, read it back
		fresh, err := s.store.GetOrder(ctx, order.ID)
		if err != nil {
			return "", err
		}
		if !fresh.HasInvoice() {
			return "", &RenderError{Renderer: "pending", Err: errors.New("invoice is being generated, retry shortly")}
		}
		order = fresh
	}

	s.keepCopy(ctx, order)
	return order.InvoiceBase64, nil
}

// keepCopy writes the standalone invoice row. Failure only costs a future re-read.
func (s *InvoiceDownloadService) keepCopy(ctx context.Context, order *models.Order) {
	format := models.InvoiceFormatHTML
	if doc, err := invoice.DecodeDocument(order.InvoiceBase64); err == nil {
		format = doc.Format
	}
	generatedAt := s.generator.now()
	if order.InvoiceGeneratedAt != nil {
		generatedAt = *order.InvoiceGeneratedAt
	}

	err := s.invoices.SaveInvoice(ctx, &models.Invoice{
		OrderID:       order.ID,
		CustomerPhone: order.CustomerPhone,
		InvoiceBase64: order.InvoiceBase64,
		InvoiceNumber: invoice.InvoiceNumber(order.UniqueOrderID, generatedAt),
		Format:        format,
		GeneratedAt:   generatedAt,
		RestaurantID:  order.RestaurantID,
	})
	if err != nil {
		s.logger.Warn("Failed to store invoice copy", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// SamePhone compares digits only and tolerates a missing country or trunk prefix
func SamePhone(a, b string) bool {
	da, db := digits(a), digits(b)
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	short, long := da, db
	if len(short) > len(long) {
		short, long = long, short
	}
	short = strings.TrimLeft(short, "0")
	return len(short) >= 8 && strings.HasSuffix(long, short)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
