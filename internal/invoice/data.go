package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"restopay_app/internal/models"
)

// Line is one rendered row of the items table
type Line struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Data is everything a renderer needs, detached from the database model
type Data struct {
	InvoiceNumber string
	OrderCode     string
	IssuedAt      time.Time
	Currency      string

	RestaurantName    string
	RestaurantAddress string
	RestaurantPhone   string
	RestaurantTaxID   string

	CustomerName    string
	CustomerPhone   string
	TableNumber     string
	DeliveryAddress string
	PaymentStatus   string

	Lines []Line
	Total decimal.Decimal
}

// NewData maps an order (with its restaurant loaded) into renderer input
func NewData(order *models.Order, currency string, issuedAt time.Time) Data {
	d := Data{
		InvoiceNumber:     InvoiceNumber(order.UniqueOrderID, issuedAt),
		OrderCode:         order.UniqueOrderID,
		IssuedAt:          issuedAt,
		Currency:          currency,
		RestaurantName:    order.Restaurant.Name,
		RestaurantAddress: order.Restaurant.Address,
		RestaurantPhone:   order.Restaurant.Phone,
		RestaurantTaxID:   order.Restaurant.TaxID,
		CustomerName:      order.CustomerName,
		CustomerPhone:     order.CustomerPhone,
		PaymentStatus:     string(order.PaymentStatus),
		Total:             order.TotalAmount,
	}
	if order.TableNumber != nil {
		d.TableNumber = *order.TableNumber
	}
	if order.DeliveryAddress != nil {
		d.DeliveryAddress = *order.DeliveryAddress
	}
	for _, item := range order.Items {
		d.Lines = append(d.Lines, Line{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
			Total:     item.LineTotal(),
		})
	}
	return d
}

// InvoiceNumber is deterministic per order code and issue date
func InvoiceNumber(orderCode string, issuedAt time.Time) string {
	return fmt.Sprintf("INV-%s-%s", issuedAt.Format("20060102"), orderCode)
}

// Money formats an amount with the invoice currency symbol
func (d Data) Money(v decimal.Decimal) string {
	return d.Currency + v.StringFixed(2)
}

// Subtotal sums the rendered lines
func (d Data) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range d.Lines {
		sum = sum.Add(l.Total)
	}
	return sum
}

// texts lists every free-text field that ends up on the page
func (d Data) texts() []string {
	out := []string{
		d.InvoiceNumber, d.OrderCode, d.Currency,
		d.RestaurantName, d.RestaurantAddress, d.RestaurantPhone, d.RestaurantTaxID,
		d.CustomerName, d.CustomerPhone, d.TableNumber, d.DeliveryAddress, d.PaymentStatus,
	}
	for _, l := range d.Lines {
		out = append(out, l.Name)
	}
	return out
}
