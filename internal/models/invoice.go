package models

import "time"

type InvoiceFormat string

const (
	InvoiceFormatPDF  InvoiceFormat = "pdf"
	InvoiceFormatHTML InvoiceFormat = "html"
)

// Invoice is a stored copy served to repeat downloads of the same order and phone
type Invoice struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID       string        `gorm:"type:uuid;uniqueIndex:idx_invoices_order_phone,priority:1" json:"order_id"`
	CustomerPhone string        `gorm:"type:varchar(50);uniqueIndex:idx_invoices_order_phone,priority:2" json:"customer_phone"`
	InvoiceBase64 string        `gorm:"type:text" json:"-"`
	InvoiceNumber string        `gorm:"type:varchar(64)" json:"invoice_number"`
	Format        InvoiceFormat `gorm:"type:varchar(10);default:'pdf'" json:"format"`
	GeneratedAt   time.Time     `json:"generated_at"`
	RestaurantID  string        `gorm:"type:uuid;index" json:"restaurant_id"`
}
