package services

import (
	"fmt"
	"strings"

	"restopay_app/internal/models"
)

// ValidateOrder checks the fields an invoice cannot be rendered without.
// It returns nil or an *OrderDataInvalidError listing every problem found.
func ValidateOrder(order *models.Order) error {
	if order == nil {
		return &OrderDataInvalidError{Problems: []string{"order is missing"}}
	}

	var problems []string
	if strings.TrimSpace(order.CustomerName) == "" {
		problems = append(problems, "customer name is required")
	}
	if len(order.Items) == 0 {
		problems = append(problems, "at least one item is required")
	}
	for i, item := range order.Items {
		if strings.TrimSpace(item.Name) == "" {
			problems = append(problems, fmt.Sprintf("item %d has no name", i+1))
		}
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("item %d quantity must be positive", i+1))
		}
		if !item.Price.IsPositive() {
			problems = append(problems, fmt.Sprintf("item %d price must be positive", i+1))
		}
	}
	if !order.TotalAmount.IsPositive() {
		problems = append(problems, "total amount must be positive")
	}
	if strings.TrimSpace(order.Restaurant.Name) == "" {
		problems = append(problems, "restaurant name is required")
	}

	if len(problems) > 0 {
		return &OrderDataInvalidError{OrderID: order.ID, Problems: problems}
	}
	return nil
}

func Valid(order *models.Order) bool {
	return ValidateOrder(order) == nil
}
