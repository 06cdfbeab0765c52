package gateways

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
)

const cloudPaymentsBaseURL = "https://api.cloudpayments.ru"

// cloudPaymentsStatuses maps the provider vocabulary into canonical
// statuses. Authorized means held but not captured, so it stays pending.
var cloudPaymentsStatuses = map[string]models.TransactionStatus{
	"AwaitingAuthentication": models.TransactionStatusPending,
	"Authorized":             models.TransactionStatusPending,
	"Completed":              models.TransactionStatusCompleted,
	"Cancelled":              models.TransactionStatusCancelled,
	"Declined":               models.TransactionStatusFailed,
	"Refunded":               models.TransactionStatusRefunded,
}

// CloudPaymentsGateway talks to the CloudPayments order/charge API.
// Credentials: public_id, api_secret.
//
// Identity scheme: the external id is the numeric payment TransactionId.
// Order creation does not produce one, so CreatePayment leaves the
// external id unset and the first webhook stamps it; until then status
// reconciliation is webhook-driven. The order id is kept in the raw
// gateway response only.
type CloudPaymentsGateway struct{}

func init() {
	Register(&CloudPaymentsGateway{})
}

// Name returns the provider slug
func (g *CloudPaymentsGateway) Name() string {
	return "cloudpayments"
}

func (g *CloudPaymentsGateway) call(ctx context.Context, path string, body map[string]interface{}, creds Credentials, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", cloudPaymentsBaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.SetBasicAuth(creds["public_id"], creds["api_secret"])
	req.Header.Set("Content-Type", "application/json")
	if key, ok := body["InvoiceId"].(string); ok {
		req.Header.Set("X-Request-ID", key) // provider-side idempotency
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cloudpayments request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cloudpayments returned HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type cloudPaymentsEnvelope struct {
	Success bool            `json:"Success"`
	Message string          `json:"Message"`
	Model   json.RawMessage `json:"Model"`
}

// CreatePayment creates a payment order and returns its pay link
func (g *CloudPaymentsGateway) CreatePayment(ctx context.Context, txn *models.Transaction, creds Credentials) (*CreateResult, error) {
	body := map[string]interface{}{
		"Amount":      utils.FormatMinorUnits(txn.Amount),
		"Currency":    txn.Currency,
		"InvoiceId":   txn.TransactionID,
		"Description": txn.PaymentDetails.Description,
		"Email":       txn.PaymentDetails.DonorEmail,
		"RequireConfirmation": false,
	}
	if txn.PaymentDetails.IsRecurring {
		body["JsonData"] = map[string]interface{}{"CloudPayments": map[string]interface{}{
			"recurrent": map[string]interface{}{"interval": txn.PaymentDetails.RecurringPeriod},
		}}
	}

	var env cloudPaymentsEnvelope
	if err := g.call(ctx, "/orders/create", body, creds, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return &CreateResult{Success: false, Error: env.Message}, nil
	}

	var model struct {
		ID  string `json:"Id"`
		URL string `json:"Url"`
	}
	if err := json.Unmarshal(env.Model, &model); err != nil {
		return nil, fmt.Errorf("cloudpayments order payload: %v", err)
	}

	qr, err := utils.GenerateQRCode(model.URL)
	if err != nil {
		utils.LogError("QR generation failed for %s: %v", txn.TransactionID, err)
	}

	// No PaymentID yet: the numeric payment id does not exist until the
	// donor pays, and the webhook carries it.
	return &CreateResult{
		Success:     true,
		RedirectURL: model.URL,
		QRCode:      qr,
		Status:      models.TransactionStatusPending,
		Raw:         models.JSONMap{"order_id": model.ID, "url": model.URL},
	}, nil
}

// SupportsTokenCharge reports token charge capability
func (g *CloudPaymentsGateway) SupportsTokenCharge() bool {
	return true
}

// ChargeToken charges a saved card token directly
func (g *CloudPaymentsGateway) ChargeToken(ctx context.Context, txn *models.Transaction, token string, creds Credentials) (*CreateResult, error) {
	body := map[string]interface{}{
		"Amount":    utils.FormatMinorUnits(txn.Amount),
		"Currency":  txn.Currency,
		"InvoiceId": txn.TransactionID,
		"AccountId": txn.PaymentDetails.DonorEmail,
		"Token":     token,
	}

	var env cloudPaymentsEnvelope
	if err := g.call(ctx, "/payments/tokens/charge", body, creds, &env); err != nil {
		return nil, err
	}

	var model struct {
		TransactionID int64  `json:"TransactionId"`
		Status        string `json:"Status"`
		Reason        string `json:"Reason"`
	}
	if len(env.Model) > 0 {
		if err := json.Unmarshal(env.Model, &model); err != nil {
			return nil, fmt.Errorf("cloudpayments charge payload: %v", err)
		}
	}
	if !env.Success {
		reason := env.Message
		if model.Reason != "" {
			reason = model.Reason
		}
		return &CreateResult{Success: false, Error: reason}, nil
	}

	return &CreateResult{
		Success:   true,
		PaymentID: fmt.Sprintf("%d", model.TransactionID),
		Status:    mapStatus(cloudPaymentsStatuses, model.Status),
		Raw:       models.JSONMap{"transaction_id": model.TransactionID, "status": model.Status},
	}, nil
}

// paymentID converts the stored external id back to the numeric payment
// TransactionId the payment endpoints expect.
func (g *CloudPaymentsGateway) paymentID(externalID string) (int64, error) {
	id, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cloudpayments external id %q is not a payment id", externalID)
	}
	return id, nil
}

// GetPaymentStatus fetches the payment by its numeric id and maps its
// status. Callable only after a webhook has stamped the external id.
func (g *CloudPaymentsGateway) GetPaymentStatus(ctx context.Context, externalID string, creds Credentials) (models.TransactionStatus, error) {
	id, err := g.paymentID(externalID)
	if err != nil {
		return "", err
	}

	var env cloudPaymentsEnvelope
	if err := g.call(ctx, "/payments/get", map[string]interface{}{"TransactionId": id}, creds, &env); err != nil {
		return "", err
	}
	if !env.Success {
		return "", fmt.Errorf("cloudpayments payment lookup failed: %s", env.Message)
	}

	var model struct {
		Status string `json:"Status"`
	}
	if err := json.Unmarshal(env.Model, &model); err != nil {
		return "", fmt.Errorf("cloudpayments status payload: %v", err)
	}
	return mapStatus(cloudPaymentsStatuses, model.Status), nil
}

// CancelPayment voids an authorized payment
func (g *CloudPaymentsGateway) CancelPayment(ctx context.Context, externalID string, creds Credentials) error {
	id, err := g.paymentID(externalID)
	if err != nil {
		return err
	}

	var env cloudPaymentsEnvelope
	if err := g.call(ctx, "/payments/void", map[string]interface{}{"TransactionId": id}, creds, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("cloudpayments void failed: %s", env.Message)
	}
	return nil
}

// RefundPayment refunds a completed payment, fully or partially
func (g *CloudPaymentsGateway) RefundPayment(ctx context.Context, externalID string, amount int64, creds Credentials) error {
	id, err := g.paymentID(externalID)
	if err != nil {
		return err
	}

	var env cloudPaymentsEnvelope
	if err := g.call(ctx, "/payments/refund", map[string]interface{}{
		"TransactionId": id,
		"Amount":        utils.FormatMinorUnits(amount),
	}, creds, &env); err != nil {
		return err
	}
	if !env.Success {
		return fmt.Errorf("cloudpayments refund failed: %s", env.Message)
	}
	return nil
}

// ValidateWebhook checks the X-Content-HMAC header: HMAC-SHA256 over
// the raw body with the API secret, base64 encoded.
func (g *CloudPaymentsGateway) ValidateWebhook(r *http.Request, rawBody []byte, creds Credentials) bool {
	signature := r.Header.Get("X-Content-HMAC")
	if signature == "" {
		signature = r.Header.Get("Content-HMAC")
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(creds["api_secret"]))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhook extracts the canonical event from a pay/fail/refund
// notification payload.
func (g *CloudPaymentsGateway) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		TransactionID int64  `json:"TransactionId"`
		InvoiceID     string `json:"InvoiceId"`
		Status        string `json:"Status"`
		Token         string `json:"Token"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("cloudpayments webhook payload: %v", err)
	}

	var raw models.JSONMap
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		raw = models.JSONMap{}
	}

	return &WebhookEvent{
		ExternalID:    fmt.Sprintf("%d", payload.TransactionID),
		TransactionID: payload.InvoiceID,
		Status:        mapStatus(cloudPaymentsStatuses, payload.Status),
		Token:         payload.Token,
		Raw:           raw,
	}, nil
}
