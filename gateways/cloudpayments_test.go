package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/donatehub/donatehub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signCloudPayments(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestCloudPaymentsValidateWebhook(t *testing.T) {
	g := &CloudPaymentsGateway{}
	creds := Credentials{"api_secret": "s3cret"}
	body := []byte(`{"TransactionId":12345,"Status":"Completed"}`)

	req := httptest.NewRequest("POST", "/v1/webhooks/cloudpayments", nil)
	req.Header.Set("X-Content-HMAC", signCloudPayments(body, "s3cret"))
	assert.True(t, g.ValidateWebhook(req, body, creds))

	// Legacy header name also accepted
	req = httptest.NewRequest("POST", "/v1/webhooks/cloudpayments", nil)
	req.Header.Set("Content-HMAC", signCloudPayments(body, "s3cret"))
	assert.True(t, g.ValidateWebhook(req, body, creds))
}

func TestCloudPaymentsValidateWebhookRejects(t *testing.T) {
	g := &CloudPaymentsGateway{}
	creds := Credentials{"api_secret": "s3cret"}
	body := []byte(`{"TransactionId":12345}`)

	// Missing header
	req := httptest.NewRequest("POST", "/v1/webhooks/cloudpayments", nil)
	assert.False(t, g.ValidateWebhook(req, body, creds))

	// Wrong secret
	req = httptest.NewRequest("POST", "/v1/webhooks/cloudpayments", nil)
	req.Header.Set("X-Content-HMAC", signCloudPayments(body, "wrong"))
	assert.False(t, g.ValidateWebhook(req, body, creds))

	// Tampered body
	req = httptest.NewRequest("POST", "/v1/webhooks/cloudpayments", nil)
	req.Header.Set("X-Content-HMAC", signCloudPayments(body, "s3cret"))
	assert.False(t, g.ValidateWebhook(req, []byte(`{"TransactionId":99999}`), creds))
}

func TestCloudPaymentsParseWebhook(t *testing.T) {
	g := &CloudPaymentsGateway{}
	body := []byte(`{
		"TransactionId": 12345,
		"InvoiceId": "9f1aa6be-3f41-4f0a-a2f2-51b0e8376a21",
		"Status": "Completed",
		"Token": "tok-saved-card"
	}`)

	event, err := g.ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "12345", event.ExternalID)
	assert.Equal(t, "9f1aa6be-3f41-4f0a-a2f2-51b0e8376a21", event.TransactionID)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
	assert.Equal(t, "tok-saved-card", event.Token)
	assert.NotEmpty(t, event.Raw)
}

func TestCloudPaymentsParseWebhookRejectsGarbage(t *testing.T) {
	g := &CloudPaymentsGateway{}
	_, err := g.ParseWebhook([]byte("not json"))
	assert.Error(t, err)
}

// The payment endpoints address the numeric payment id the webhook
// stamps as the external id. Anything else is rejected before a request
// goes out.
func TestCloudPaymentsRejectsNonNumericExternalID(t *testing.T) {
	g := &CloudPaymentsGateway{}
	creds := Credentials{"public_id": "pk", "api_secret": "s3cret"}
	ctx := context.Background()

	_, err := g.GetPaymentStatus(ctx, "order-abc123", creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a payment id")

	err = g.CancelPayment(ctx, "order-abc123", creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a payment id")

	err = g.RefundPayment(ctx, "order-abc123", 5000, creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a payment id")
}

func TestCloudPaymentsSupportsTokenCharge(t *testing.T) {
	g := &CloudPaymentsGateway{}
	assert.True(t, g.SupportsTokenCharge())
}

func TestCloudPaymentsStatusMapping(t *testing.T) {
	cases := map[string]models.TransactionStatus{
		"Completed":              models.TransactionStatusCompleted,
		"Authorized":             models.TransactionStatusPending,
		"AwaitingAuthentication": models.TransactionStatusPending,
		"Declined":               models.TransactionStatusFailed,
		"Cancelled":              models.TransactionStatusCancelled,
		"Refunded":               models.TransactionStatusRefunded,
		"SomethingNew":           models.TransactionStatusPending,
	}
	for provider, want := range cases {
		assert.Equal(t, want, mapStatus(cloudPaymentsStatuses, provider), provider)
	}
}
