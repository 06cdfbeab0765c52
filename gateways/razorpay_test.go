package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"testing"

	"github.com/donatehub/donatehub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signRazorpay(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayValidateWebhook(t *testing.T) {
	g := &RazorpayGateway{}
	creds := Credentials{"webhook_secret": "whsec"}
	body := []byte(`{"event":"payment.captured"}`)

	req := httptest.NewRequest("POST", "/v1/webhooks/razorpay", nil)
	req.Header.Set("X-Razorpay-Signature", signRazorpay(body, "whsec"))
	assert.True(t, g.ValidateWebhook(req, body, creds))
}

func TestRazorpayValidateWebhookRejects(t *testing.T) {
	g := &RazorpayGateway{}
	creds := Credentials{"webhook_secret": "whsec"}
	body := []byte(`{"event":"payment.captured"}`)

	req := httptest.NewRequest("POST", "/v1/webhooks/razorpay", nil)
	assert.False(t, g.ValidateWebhook(req, body, creds), "missing header")

	req = httptest.NewRequest("POST", "/v1/webhooks/razorpay", nil)
	req.Header.Set("X-Razorpay-Signature", signRazorpay(body, "other"))
	assert.False(t, g.ValidateWebhook(req, body, creds), "wrong secret")
}

func TestRazorpayParseWebhook(t *testing.T) {
	g := &RazorpayGateway{}
	body := []byte(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": "pay_ABC123",
					"order_id": "order_XYZ789",
					"status": "captured",
					"token_id": "token_SAVED1",
					"notes": {"transaction_id": "9f1aa6be-3f41-4f0a-a2f2-51b0e8376a21"}
				}
			}
		}
	}`)

	event, err := g.ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "order_XYZ789", event.ExternalID)
	assert.Equal(t, "9f1aa6be-3f41-4f0a-a2f2-51b0e8376a21", event.TransactionID)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
	assert.Equal(t, "token_SAVED1", event.Token)
}

func TestRazorpayParseWebhookWithoutNotes(t *testing.T) {
	g := &RazorpayGateway{}
	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"failed"}}}}`)

	event, err := g.ParseWebhook(body)
	require.NoError(t, err)
	assert.Empty(t, event.TransactionID)
	assert.Equal(t, models.TransactionStatusFailed, event.Status)
}

func TestRazorpayChargeTokenUnsupported(t *testing.T) {
	g := &RazorpayGateway{}
	assert.False(t, g.SupportsTokenCharge())
	_, err := g.ChargeToken(context.Background(), &models.Transaction{}, "tok", Credentials{})
	assert.Error(t, err)
}

func TestRazorpayStatusMapping(t *testing.T) {
	cases := map[string]models.TransactionStatus{
		"created":    models.TransactionStatusPending,
		"attempted":  models.TransactionStatusPending,
		"authorized": models.TransactionStatusPending,
		"captured":   models.TransactionStatusCompleted,
		"paid":       models.TransactionStatusCompleted,
		"failed":     models.TransactionStatusFailed,
		"refunded":   models.TransactionStatusRefunded,
		"mystery":    models.TransactionStatusPending,
	}
	for provider, want := range cases {
		assert.Equal(t, want, mapStatus(razorpayStatuses, provider), provider)
	}
}
