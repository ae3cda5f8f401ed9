package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"restopay_app/internal/models"
)

// OrderStore is the persistence boundary of the payment pipeline
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	// UpdatePaymentStatus leaves the order status alone when orderStatus is empty
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, orderStatus string) error
	// ClaimInvoice stores the invoice only if none is recorded yet. False means another writer won.
	ClaimInvoice(ctx context.Context, id, encoded string, at time.Time) (bool, error)
	OverwriteInvoice(ctx context.Context, id, encoded string, at time.Time) error
	ListNeedingInvoices(ctx context.Context, limit int) ([]models.Order, error)
	AppendStatusLog(ctx context.Context, entry *models.PaymentStatusLog) error
}

// InvoiceStore holds standalone invoice copies keyed by order and phone
type InvoiceStore interface {
	FindInvoice(ctx context.Context, orderID, phone string) (*models.Invoice, error)
	SaveInvoice(ctx context.Context, inv *models.Invoice) error
}

type CallbackArchive interface {
	ArchiveCallback(ctx context.Context, entry *models.PaymentCallbackHistory) error
}

// GormStore implements every store interface on Postgres
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	// ids are uuid columns, anything else can't match and would only produce a cast error
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrOrderNotFound
	}

	var order models.Order
	err := s.db.WithContext(ctx).Preload("Restaurant").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, storeErr("get order", err)
	}
	return &order, nil
}

func (s *GormStore) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Restaurant").
		Where("payment_gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, storeErr("find order by gateway id", err)
	}
	return &order, nil
}

func (s *GormStore) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus, orderStatus string) error {
	updates := map[string]interface{}{
		"payment_status": status,
	}
	if orderStatus != "" {
		updates["status"] = orderStatus
	}
	// an invoice flag only stands next to a completed payment, the blob itself is kept
	if status != models.PaymentStatusCompleted {
		updates["invoice_generated"] = false
	}

	result := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return storeErr("update payment status", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *GormStore) ClaimInvoice(ctx context.Context, id, encoded string, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ? AND invoice_generated IS NOT TRUE", id, models.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"invoice_generated":    true,
			"invoice_base64":       encoded,
			"invoice_generated_at": at,
		})
	if result.Error != nil {
		return false, storeErr("claim invoice", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) OverwriteInvoice(ctx context.Context, id, encoded string, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", id, models.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"invoice_generated":    true,
			"invoice_base64":       encoded,
			"invoice_generated_at": at,
		})
	if result.Error != nil {
		return storeErr("overwrite invoice", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *GormStore) ListNeedingInvoices(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("Restaurant").
		Where("payment_status = ? AND invoice_generated IS NOT TRUE", models.PaymentStatusCompleted).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, storeErr("list orders needing invoices", err)
	}
	return orders, nil
}

func (s *GormStore) AppendStatusLog(ctx context.Context, entry *models.PaymentStatusLog) error {
	return storeErr("append status log", s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) FindInvoice(ctx context.Context, orderID, phone string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Where("order_id = ? AND customer_phone = ?", orderID, phone).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find invoice", err)
	}
	return &inv, nil
}

func (s *GormStore) SaveInvoice(ctx context.Context, inv *models.Invoice) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "customer_phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"invoice_base64", "invoice_number", "format", "generated_at", "updated_at"}),
	}).Create(inv).Error
	return storeErr("save invoice", err)
}

func (s *GormStore) ArchiveCallback(ctx context.Context, entry *models.PaymentCallbackHistory) error {
	return storeErr("archive callback", s.db.WithContext(ctx).Create(entry).Error)
}
