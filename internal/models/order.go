package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks money received for an order, independent of fulfillment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Order lifecycle values written by this service. The restaurant workflow owns the rest.
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCompleted: {PaymentStatusPending, PaymentStatusCancelled, PaymentStatusRefunded},
}

// ParsePaymentStatus returns false for anything outside the enumerated set
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch status := PaymentStatus(s); status {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return status, true
	}
	return "", false
}

// CanTransitionTo reports whether a payment may move from s to next.
// Re-applying the current status is always allowed.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is one line of an order, stored inside the items jsonb column
type OrderItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
}

// LineTotal prefers the stored total and falls back to quantity * price
func (i OrderItem) LineTotal() decimal.Decimal {
	if !i.Total.IsZero() {
		return i.Total
	}
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a customer purchase with its payment and invoice state
type Order struct {
	ID            string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	UniqueOrderID string    `gorm:"type:varchar(32);uniqueIndex" json:"unique_order_id"`

	CustomerName    string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone   string          `gorm:"type:varchar(50);index" json:"customer_phone"`
	TableNumber     *string         `gorm:"type:varchar(20)" json:"table_number,omitempty"`
	DeliveryAddress *string         `gorm:"type:text" json:"delivery_address,omitempty"`
	Items           []OrderItem     `gorm:"serializer:json;type:jsonb" json:"items"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_amount"`

	Status                string        `gorm:"type:varchar(30);default:'pending'" json:"status"`
	PaymentStatus         PaymentStatus `gorm:"type:varchar(20);default:'pending';index" json:"payment_status"`
	PaymentGatewayOrderID *string       `gorm:"type:varchar(100);index" json:"payment_gateway_order_id,omitempty"`

	InvoiceGenerated   bool       `gorm:"default:false" json:"invoice_generated"`
	InvoiceBase64      string     `gorm:"type:text" json:"-"`
	InvoiceGeneratedAt *time.Time `json:"invoice_generated_at,omitempty"`

	RestaurantID string     `gorm:"type:uuid;index" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID" json:"restaurant,omitempty"`
}

// HasInvoice is true only when the flag and the payload agree
func (o *Order) HasInvoice() bool {
	return o.InvoiceGenerated && o.InvoiceBase64 != ""
}
