package services

import (
	"errors"
	"fmt"
	"strings"

	"restopay_app/internal/invoice"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid payment status transition")
)

// RenderError is re-exported so callers only need this package
type RenderError = invoice.RenderError

// ValidationError is a malformed request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// OrderDataInvalidError means an order cannot be rendered until it is fixed
type OrderDataInvalidError struct {
	OrderID  string
	Problems []string
}

func (e *OrderDataInvalidError) Error() string {
	return fmt.Sprintf("order %s has invalid invoice data: %s", e.OrderID, strings.Join(e.Problems, "; "))
}

// StoreError wraps a database failure with the operation that hit it
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// GatewayError is a non-2xx answer from the payment gateway
type GatewayError struct {
	StatusCode int
	Message    string
	Raw        string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway returned %d: %s", e.StatusCode, e.Message)
}

// TransitionError names both ends of a rejected transition
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
