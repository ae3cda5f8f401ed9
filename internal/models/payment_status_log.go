package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatusLog is append-only. Rows are never updated.
type PaymentStatusLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OrderID   string         `gorm:"type:uuid;index" json:"order_id"`
	Status    PaymentStatus  `gorm:"type:varchar(20);not null" json:"status"`
	Source    string         `gorm:"type:varchar(100)" json:"source"`
	Result    datatypes.JSON `gorm:"type:jsonb" json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}
