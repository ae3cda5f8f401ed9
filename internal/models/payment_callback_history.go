package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentGateway string

const (
	PaymentGatewayMidtrans PaymentGateway = "midtrans"
	PaymentGatewayWebhook  PaymentGateway = "webhook"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// PaymentCallbackHistory archives every raw gateway callback, accepted or not
type PaymentCallbackHistory struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	PaymentGateway PaymentGateway `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	EventType      string         `gorm:"type:varchar(100)" json:"event_type"`
	GatewayOrderID string         `gorm:"type:varchar(100);index" json:"gateway_order_id"`
	SignatureValid bool           `gorm:"default:false" json:"signature_valid"`
	Outcome        string         `gorm:"type:varchar(50)" json:"outcome"`
	Metadata       datatypes.JSON `gorm:"type:jsonb" json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
