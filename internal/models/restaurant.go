package models

import "time"

// Restaurant supplies the invoice header. This service never writes it.
type Restaurant struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name    string `gorm:"type:varchar(255)" json:"name"`
	Address string `gorm:"type:text" json:"address"`
	Phone   string `gorm:"type:varchar(50)" json:"phone"`
	Email   string `gorm:"type:varchar(255)" json:"email"`
	TaxID   string `gorm:"type:varchar(50)" json:"tax_id"` // GSTIN or equivalent
}
