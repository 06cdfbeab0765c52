package gateways

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/donatehub/donatehub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTinkoffTokenDeterministic(t *testing.T) {
	params := map[string]interface{}{
		"TerminalKey": "terminal-1",
		"Amount":      int64(150000),
		"OrderId":     "order-42",
	}
	first := tinkoffToken(params, "password")
	second := tinkoffToken(params, "password")
	assert.Equal(t, first, second)
	assert.Len(t, first, 64, "hex encoded sha256")
}

func TestTinkoffTokenExcludesTokenAndNested(t *testing.T) {
	base := map[string]interface{}{
		"TerminalKey": "terminal-1",
		"Amount":      int64(150000),
	}
	withExtras := map[string]interface{}{
		"TerminalKey": "terminal-1",
		"Amount":      int64(150000),
		"Token":       "already-signed",
		"Receipt":     map[string]interface{}{"Email": "x@y.z"},
	}
	assert.Equal(t, tinkoffToken(base, "pw"), tinkoffToken(withExtras, "pw"))
}

func TestTinkoffTokenPasswordChangesSignature(t *testing.T) {
	params := map[string]interface{}{"OrderId": "order-42"}
	assert.NotEqual(t, tinkoffToken(params, "pw-a"), tinkoffToken(params, "pw-b"))
}

func TestTinkoffValidateWebhook(t *testing.T) {
	g := &TinkoffGateway{}
	creds := Credentials{"password": "terminal-password"}

	payload := map[string]interface{}{
		"TerminalKey": "terminal-1",
		"OrderId":     "9f1aa6be-3f41-4f0a-a2f2-51b0e8376a21",
		"PaymentId":   int64(700001),
		"Status":      "CONFIRMED",
		"Success":     true,
		"Amount":      int64(150000),
	}
	payload["Token"] = tinkoffToken(payload, "terminal-password")

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/v1/webhooks/tinkoff", nil)
	assert.True(t, g.ValidateWebhook(req, body, creds))
}

func TestTinkoffValidateWebhookRejects(t *testing.T) {
	g := &TinkoffGateway{}
	creds := Credentials{"password": "terminal-password"}
	req := httptest.NewRequest("POST", "/v1/webhooks/tinkoff", nil)

	// Missing token
	assert.False(t, g.ValidateWebhook(req, []byte(`{"OrderId":"x"}`), creds))

	// Wrong password
	payload := map[string]interface{}{"OrderId": "x", "Status": "CONFIRMED"}
	payload["Token"] = tinkoffToken(payload, "other-password")
	body, _ := json.Marshal(payload)
	assert.False(t, g.ValidateWebhook(req, body, creds))

	// Garbage body
	assert.False(t, g.ValidateWebhook(req, []byte("not json"), creds))
}

func TestTinkoffParseWebhook(t *testing.T) {
	g := &TinkoffGateway{}
	body := []byte(`{
		"OrderId": "9f1aa6be-3f41-4f0a-a2f2-51b0e8376a21",
		"PaymentId": 700001,
		"Status": "CONFIRMED",
		"RebillId": 12345678
	}`)

	event, err := g.ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "700001", event.ExternalID)
	assert.Equal(t, "9f1aa6be-3f41-4f0a-a2f2-51b0e8376a21", event.TransactionID)
	assert.Equal(t, models.TransactionStatusCompleted, event.Status)
	assert.Equal(t, "12345678", event.Token)
}

func TestTinkoffStatusMapping(t *testing.T) {
	cases := map[string]models.TransactionStatus{
		"NEW":              models.TransactionStatusPending,
		"FORM_SHOWED":      models.TransactionStatusPending,
		"AUTHORIZED":       models.TransactionStatusPending,
		"CONFIRMED":        models.TransactionStatusCompleted,
		"REJECTED":         models.TransactionStatusFailed,
		"AUTH_FAIL":        models.TransactionStatusFailed,
		"CANCELED":         models.TransactionStatusCancelled,
		"DEADLINE_EXPIRED": models.TransactionStatusCancelled,
		"REFUNDED":         models.TransactionStatusRefunded,
		"PARTIAL_REFUNDED": models.TransactionStatusCompleted,
		"NEVER_SEEN":       models.TransactionStatusPending,
	}
	for provider, want := range cases {
		assert.Equal(t, want, mapStatus(tinkoffStatuses, provider), provider)
	}
}
