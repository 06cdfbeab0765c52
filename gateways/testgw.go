package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/donatehub/donatehub/models"
	"github.com/google/uuid"
)

// TestGateway is the sandbox provider: creates complete immediately and
// token charges always succeed. It backs the single-target scheduler
// test command and local development. Credentials: secret (webhook).
type TestGateway struct{}

func init() {
	Register(&TestGateway{})
}

// Name returns the provider slug
func (g *TestGateway) Name() string {
	return "test"
}

// CreatePayment auto-completes the payment
func (g *TestGateway) CreatePayment(ctx context.Context, txn *models.Transaction, creds Credentials) (*CreateResult, error) {
	externalID := "test-" + uuid.New().String()
	result := &CreateResult{
		Success:   true,
		PaymentID: externalID,
		Status:    models.TransactionStatusCompleted,
		Raw:       models.JSONMap{"sandbox": true, "payment_id": externalID},
	}
	if txn.PaymentDetails.IsRecurring {
		result.SavedMethodToken = "test-token-" + uuid.New().String()
	}
	return result, nil
}

// SupportsTokenCharge reports token charge capability
func (g *TestGateway) SupportsTokenCharge() bool {
	return true
}

// ChargeToken succeeds for any test token
func (g *TestGateway) ChargeToken(ctx context.Context, txn *models.Transaction, token string, creds Credentials) (*CreateResult, error) {
	externalID := "test-" + uuid.New().String()
	return &CreateResult{
		Success:   true,
		PaymentID: externalID,
		Status:    models.TransactionStatusCompleted,
		Raw:       models.JSONMap{"sandbox": true, "payment_id": externalID, "token": token},
	}, nil
}

// GetPaymentStatus always reports completed
func (g *TestGateway) GetPaymentStatus(ctx context.Context, externalID string, creds Credentials) (models.TransactionStatus, error) {
	return models.TransactionStatusCompleted, nil
}

// CancelPayment always succeeds
func (g *TestGateway) CancelPayment(ctx context.Context, externalID string, creds Credentials) error {
	return nil
}

// RefundPayment always succeeds
func (g *TestGateway) RefundPayment(ctx context.Context, externalID string, amount int64, creds Credentials) error {
	return nil
}

// ValidateWebhook checks an HMAC hex signature in X-Test-Signature
func (g *TestGateway) ValidateWebhook(r *http.Request, rawBody []byte, creds Credentials) bool {
	signature := r.Header.Get("X-Test-Signature")
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(creds["secret"]))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook reads a minimal {external_id, transaction_id, status} body
func (g *TestGateway) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		ExternalID    string `json:"external_id"`
		TransactionID string `json:"transaction_id"`
		Status        string `json:"status"`
		Token         string `json:"token"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("test webhook payload: %v", err)
	}

	var raw models.JSONMap
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		raw = models.JSONMap{}
	}

	return &WebhookEvent{
		ExternalID:    payload.ExternalID,
		TransactionID: payload.TransactionID,
		Status:        mapStatus(map[string]models.TransactionStatus{
			"completed": models.TransactionStatusCompleted,
			"failed":    models.TransactionStatusFailed,
			"cancelled": models.TransactionStatusCancelled,
			"refunded":  models.TransactionStatusRefunded,
		}, payload.Status),
		Token: payload.Token,
		Raw:   raw,
	}, nil
}
