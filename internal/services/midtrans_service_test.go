package services

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"restopay_app/internal/models"
)

func TestMapTransactionStatus(t *testing.T) {
	tests := []struct {
		transaction string
		fraud       string
		want        models.PaymentStatus
		ok          bool
	}{
		{"settlement", "", models.PaymentStatusCompleted, true},
		{"capture", "accept", models.PaymentStatusCompleted, true},
		{"capture", "challenge", models.PaymentStatusPending, true},
		{"capture", "deny", models.PaymentStatusFailed, true},
		{"pending", "", models.PaymentStatusPending, true},
		{"deny", "", models.PaymentStatusFailed, true},
		{"failure", "", models.PaymentStatusFailed, true},
		{"cancel", "", models.PaymentStatusCancelled, true},
		{"expire", "", models.PaymentStatusCancelled, true},
		{"refund", "", models.PaymentStatusRefunded, true},
		{"partial_refund", "", models.PaymentStatusRefunded, true},
		{"mystery", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.transaction+"/"+tt.fraud, func(t *testing.T) {
			got, ok := MapTransactionStatus(tt.transaction, tt.fraud)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyMidtransSignature(t *testing.T) {
	sum := sha512.Sum512([]byte("ORDER-1" + "200" + "20000.00" + "server-key"))
	signature := hex.EncodeToString(sum[:])

	assert.True(t, VerifyMidtransSignature("server-key", "ORDER-1", "200", "20000.00", signature))
	assert.False(t, VerifyMidtransSignature("server-key", "ORDER-1", "200", "20001.00", signature))
	assert.False(t, VerifyMidtransSignature("", "ORDER-1", "200", "20000.00", signature))
	assert.False(t, VerifyMidtransSignature("server-key", "ORDER-1", "200", "20000.00", ""))
}
