package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strconv"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"

	"restopay_app/internal/config"
	"restopay_app/internal/models"
)

// GatewayStatus is a gateway answer translated to internal vocabulary
type GatewayStatus struct {
	GatewayOrderID    string
	Status            models.PaymentStatus
	TransactionStatus string
	FraudStatus       string
	GrossAmount       string
}

// PaymentGateway is what reconciliation needs from a provider
type PaymentGateway interface {
	CheckStatus(ctx context.Context, gatewayOrderID string) (*GatewayStatus, error)
}

type MidtransService struct {
	CoreClient coreapi.Client
	serverKey  string
}

func NewMidtransService(cfg config.MidtransConfig) *MidtransService {
	env := midtrans.Sandbox
	if cfg.IsProduction {
		env = midtrans.Production
	}

	var c coreapi.Client
	c.New(cfg.ServerKey, env)

	return &MidtransService{CoreClient: c, serverKey: cfg.ServerKey}
}

// CheckStatus asks the Core API for the transaction state of a gateway order
func (s *MidtransService) CheckStatus(ctx context.Context, gatewayOrderID string) (*GatewayStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, mErr := s.CoreClient.CheckTransaction(gatewayOrderID)
	if mErr != nil {
		return nil, &GatewayError{StatusCode: mErr.StatusCode, Message: mErr.Message, Raw: mErr.Error()}
	}

	code, _ := strconv.Atoi(resp.StatusCode)
	if code < 200 || code > 299 {
		return nil, &GatewayError{StatusCode: code, Message: resp.StatusMessage, Raw: resp.StatusMessage}
	}

	status, ok := MapTransactionStatus(resp.TransactionStatus, resp.FraudStatus)
	if !ok {
		return nil, &GatewayError{StatusCode: code, Message: "unknown transaction status " + resp.TransactionStatus}
	}

	return &GatewayStatus{
		GatewayOrderID:    gatewayOrderID,
		Status:            status,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		GrossAmount:       resp.GrossAmount,
	}, nil
}

// VerifyNotificationSignature checks signature_key = SHA512(order_id + status_code + gross_amount + server_key)
func (s *MidtransService) VerifyNotificationSignature(orderID, statusCode, grossAmount, signature string) bool {
	return VerifyMidtransSignature(s.serverKey, orderID, statusCode, grossAmount, signature)
}

func VerifyMidtransSignature(serverKey, orderID, statusCode, grossAmount, signature string) bool {
	if serverKey == "" || signature == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// MapTransactionStatus translates Midtrans transaction/fraud status pairs
func MapTransactionStatus(transactionStatus, fraudStatus string) (models.PaymentStatus, bool) {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "", "accept":
			return models.PaymentStatusCompleted, true
		case "challenge":
			return models.PaymentStatusPending, true
		default:
			return models.PaymentStatusFailed, true
		}
	case "settlement":
		return models.PaymentStatusCompleted, true
	case "pending", "authorize":
		return models.PaymentStatusPending, true
	case "deny", "failure":
		return models.PaymentStatusFailed, true
	case "cancel", "expire":
		return models.PaymentStatusCancelled, true
	case "refund", "partial_refund":
		return models.PaymentStatusRefunded, true
	}
	return "", false
}
