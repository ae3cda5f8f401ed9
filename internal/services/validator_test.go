package services

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay_app/internal/models"
)

func validOrder() *models.Order {
	return &models.Order{
		ID:           "o1",
		CustomerName: "Ravi",
		Items: []models.OrderItem{
			{Name: "Tea", Quantity: 1, Price: decimal.NewFromInt(20)},
		},
		TotalAmount: decimal.NewFromInt(20),
		Restaurant:  models.Restaurant{Name: "Chai Point"},
	}
}

func TestValidateOrder(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *models.Order)
		problem string
	}{
		{"valid", func(o *models.Order) {}, ""},
		{"missing customer", func(o *models.Order) { o.CustomerName = "  " }, "customer name is required"},
		{"no items", func(o *models.Order) { o.Items = nil }, "at least one item is required"},
		{"zero quantity", func(o *models.Order) { o.Items[0].Quantity = 0 }, "item 1 quantity must be positive"},
		{"zero price", func(o *models.Order) { o.Items[0].Price = decimal.Zero }, "item 1 price must be positive"},
		{"unnamed item", func(o *models.Order) { o.Items[0].Name = "" }, "item 1 has no name"},
		{"zero total", func(o *models.Order) { o.TotalAmount = decimal.Zero }, "total amount must be positive"},
		{"no restaurant", func(o *models.Order) { o.Restaurant = models.Restaurant{} }, "restaurant name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			tt.mutate(order)

			err := ValidateOrder(order)
			if tt.problem == "" {
				assert.NoError(t, err)
				assert.True(t, Valid(order))
				return
			}

			var invalid *OrderDataInvalidError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, "o1", invalid.OrderID)
			assert.Contains(t, invalid.Problems, tt.problem)
			assert.False(t, Valid(order))
		})
	}
}

func TestValidateOrderCollectsEveryProblem(t *testing.T) {
	err := ValidateOrder(&models.Order{ID: "o2"})

	var invalid *OrderDataInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, invalid.Problems, 4)
}

func TestValidateNilOrder(t *testing.T) {
	assert.Error(t, ValidateOrder(nil))
}
