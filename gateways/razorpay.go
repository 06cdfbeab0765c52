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
	razorpay "github.com/razorpay/razorpay-go"
)

var razorpayStatuses = map[string]models.TransactionStatus{
	"created":    models.TransactionStatusPending,
	"attempted":  models.TransactionStatusPending,
	"authorized": models.TransactionStatusPending,
	"captured":   models.TransactionStatusCompleted,
	"paid":       models.TransactionStatusCompleted,
	"failed":     models.TransactionStatusFailed,
	"refunded":   models.TransactionStatusRefunded,
}

// RazorpayGateway wraps the official SDK. Credentials: key, secret,
// webhook_secret. Payment happens in the caller's checkout widget, so
// CreatePayment returns a confirmation payload instead of a redirect.
type RazorpayGateway struct{}

func init() {
	Register(&RazorpayGateway{})
}

// Name returns the provider slug
func (g *RazorpayGateway) Name() string {
	return "razorpay"
}

func (g *RazorpayGateway) client(creds Credentials) *razorpay.Client {
	return razorpay.NewClient(creds["key"], creds["secret"])
}

// CreatePayment creates a provider order for the checkout widget
func (g *RazorpayGateway) CreatePayment(ctx context.Context, txn *models.Transaction, creds Credentials) (*CreateResult, error) {
	orderData := map[string]interface{}{
		"amount":          txn.Amount, // paise, already minor units
		"currency":        txn.Currency,
		"receipt":         txn.TransactionID, // doubles as the idempotency reference
		"payment_capture": 1,
		"notes": map[string]interface{}{
			"transaction_id": txn.TransactionID,
			"donor_name":     txn.PaymentDetails.DonorName,
		},
	}

	order, err := g.client(creds).Order.Create(orderData, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay order create failed: %v", err)
	}

	orderID := fmt.Sprintf("%v", order["id"])
	return &CreateResult{
		Success:   true,
		PaymentID: orderID,
		Status:    models.TransactionStatusPending,
		Raw: models.JSONMap{
			"order_id": orderID,
			"key":      creds["key"], // the widget needs the public key
		},
	}, nil
}

// SupportsTokenCharge is false: server-side token charges require a
// subscription-plan setup that the partner program does not issue
// credentials for. The scheduler skips these subscriptions.
func (g *RazorpayGateway) SupportsTokenCharge() bool {
	return false
}

// ChargeToken is not wired for this provider, see SupportsTokenCharge
func (g *RazorpayGateway) ChargeToken(ctx context.Context, txn *models.Transaction, token string, creds Credentials) (*CreateResult, error) {
	return nil, fmt.Errorf("razorpay: saved token charges are not supported")
}

// GetPaymentStatus fetches the order and maps its status
func (g *RazorpayGateway) GetPaymentStatus(ctx context.Context, externalID string, creds Credentials) (models.TransactionStatus, error) {
	order, err := g.client(creds).Order.Fetch(externalID, nil, nil)
	if err != nil {
		return "", fmt.Errorf("razorpay order fetch failed: %v", err)
	}
	status := fmt.Sprintf("%v", order["status"])
	return mapStatus(razorpayStatuses, status), nil
}

// CancelPayment is a local-only operation: unpaid provider orders
// expire on their own and expose no cancel call.
func (g *RazorpayGateway) CancelPayment(ctx context.Context, externalID string, creds Credentials) error {
	return nil
}

// RefundPayment refunds the captured payment behind the order
func (g *RazorpayGateway) RefundPayment(ctx context.Context, externalID string, amount int64, creds Credentials) error {
	client := g.client(creds)

	payments, err := client.Order.Payments(externalID, nil, nil)
	if err != nil {
		return fmt.Errorf("razorpay payments fetch failed: %v", err)
	}
	items, ok := payments["items"].([]interface{})
	if !ok || len(items) == 0 {
		return fmt.Errorf("razorpay: no payments found for order %s", externalID)
	}

	for _, item := range items {
		payment, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if fmt.Sprintf("%v", payment["status"]) != "captured" {
			continue
		}
		paymentID := fmt.Sprintf("%v", payment["id"])
		if _, err := client.Payment.Refund(paymentID, int(amount), nil, nil); err != nil {
			return fmt.Errorf("razorpay refund failed: %v", err)
		}
		return nil
	}
	return fmt.Errorf("razorpay: no captured payment for order %s", externalID)
}

// ValidateWebhook checks X-Razorpay-Signature: HMAC-SHA256 over the raw
// body with the webhook secret, hex encoded.
func (g *RazorpayGateway) ValidateWebhook(r *http.Request, rawBody []byte, creds Credentials) bool {
	signature := r.Header.Get("X-Razorpay-Signature")
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(creds["webhook_secret"]))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook extracts the canonical event from a payment.* webhook
func (g *RazorpayGateway) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		Event   string `json:"event"`
		Payload struct {
			Payment struct {
				Entity struct {
					ID      string                 `json:"id"`
					OrderID string                 `json:"order_id"`
					Status  string                 `json:"status"`
					TokenID string                 `json:"token_id"`
					Notes   map[string]interface{} `json:"notes"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("razorpay webhook payload: %v", err)
	}

	entity := payload.Payload.Payment.Entity
	var txnID string
	if v, ok := entity.Notes["transaction_id"]; ok {
		txnID = fmt.Sprintf("%v", v)
	}

	var raw models.JSONMap
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		raw = models.JSONMap{}
	}

	return &WebhookEvent{
		ExternalID:    entity.OrderID,
		TransactionID: txnID,
		Status:        mapStatus(razorpayStatuses, entity.Status),
		Token:         entity.TokenID,
		Raw:           raw,
	}, nil
}
