package gateways

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
)

const tinkoffBaseURL = "https://securepay.tinkoff.ru/v2"

var tinkoffStatuses = map[string]models.TransactionStatus{
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
}

// TinkoffGateway talks to the Tinkoff acquiring API. Credentials:
// terminal_key, password.
type TinkoffGateway struct{}

func init() {
	Register(&TinkoffGateway{})
}

// Name returns the provider slug
func (g *TinkoffGateway) Name() string {
	return "tinkoff"
}

// tinkoffToken computes the request signature: SHA-256 over the values
// of all scalar params plus Password, concatenated in key order.
func tinkoffToken(params map[string]interface{}, password string) string {
	merged := make(map[string]string, len(params)+1)
	for k, v := range params {
		if k == "Token" {
			continue
		}
		switch val := v.(type) {
		case string:
			merged[k] = val
		case bool:
			if val {
				merged[k] = "true"
			} else {
				merged[k] = "false"
			}
		case int64:
			merged[k] = fmt.Sprintf("%d", val)
		case float64:
			merged[k] = fmt.Sprintf("%.0f", val)
		default:
			// nested objects are excluded from the signature
		}
	}
	merged["Password"] = password

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var concat bytes.Buffer
	for _, k := range keys {
		concat.WriteString(merged[k])
	}
	sum := sha256.Sum256(concat.Bytes())
	return hex.EncodeToString(sum[:])
}

func (g *TinkoffGateway) call(ctx context.Context, path string, params map[string]interface{}, creds Credentials, out interface{}) error {
	params["TerminalKey"] = creds["terminal_key"]
	params["Token"] = tinkoffToken(params, creds["password"])

	jsonBody, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tinkoffBaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tinkoff request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tinkoff returned HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type tinkoffResponse struct {
	Success    bool   `json:"Success"`
	ErrorCode  string `json:"ErrorCode"`
	Message    string `json:"Message"`
	Status     string `json:"Status"`
	PaymentID  string `json:"PaymentId"`
	PaymentURL string `json:"PaymentURL"`
	RebillID   string `json:"RebillId"`
}

// CreatePayment runs Init and returns the hosted payment form URL
func (g *TinkoffGateway) CreatePayment(ctx context.Context, txn *models.Transaction, creds Credentials) (*CreateResult, error) {
	params := map[string]interface{}{
		"Amount":      txn.Amount, // Tinkoff wants kopecks, already minor units
		"OrderId":     txn.TransactionID,
		"Description": txn.PaymentDetails.Description,
	}
	if txn.PaymentDetails.IsRecurring {
		params["Recurrent"] = "Y"
		params["CustomerKey"] = txn.PaymentDetails.DonorEmail
	}

	var resp tinkoffResponse
	if err := g.call(ctx, "/Init", params, creds, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &CreateResult{Success: false, Error: fmt.Sprintf("%s (code %s)", resp.Message, resp.ErrorCode)}, nil
	}

	qr, err := utils.GenerateQRCode(resp.PaymentURL)
	if err != nil {
		utils.LogError("QR generation failed for %s: %v", txn.TransactionID, err)
	}

	return &CreateResult{
		Success:     true,
		PaymentID:   resp.PaymentID,
		RedirectURL: resp.PaymentURL,
		QRCode:      qr,
		Status:      mapStatus(tinkoffStatuses, resp.Status),
		Raw:         models.JSONMap{"payment_id": resp.PaymentID, "status": resp.Status},
	}, nil
}

// SupportsTokenCharge reports token charge capability
func (g *TinkoffGateway) SupportsTokenCharge() bool {
	return true
}

// ChargeToken runs Init then Charge with the saved RebillId
func (g *TinkoffGateway) ChargeToken(ctx context.Context, txn *models.Transaction, token string, creds Credentials) (*CreateResult, error) {
	var initResp tinkoffResponse
	err := g.call(ctx, "/Init", map[string]interface{}{
		"Amount":      txn.Amount,
		"OrderId":     txn.TransactionID,
		"Description": txn.PaymentDetails.Description,
	}, creds, &initResp)
	if err != nil {
		return nil, err
	}
	if !initResp.Success {
		return &CreateResult{Success: false, Error: initResp.Message}, nil
	}

	var chargeResp tinkoffResponse
	err = g.call(ctx, "/Charge", map[string]interface{}{
		"PaymentId": initResp.PaymentID,
		"RebillId":  token,
	}, creds, &chargeResp)
	if err != nil {
		return nil, err
	}
	if !chargeResp.Success {
		return &CreateResult{Success: false, Error: chargeResp.Message}, nil
	}

	return &CreateResult{
		Success:   true,
		PaymentID: initResp.PaymentID,
		Status:    mapStatus(tinkoffStatuses, chargeResp.Status),
		Raw:       models.JSONMap{"payment_id": initResp.PaymentID, "status": chargeResp.Status},
	}, nil
}

// GetPaymentStatus maps GetState's status vocabulary
func (g *TinkoffGateway) GetPaymentStatus(ctx context.Context, externalID string, creds Credentials) (models.TransactionStatus, error) {
	var resp tinkoffResponse
	if err := g.call(ctx, "/GetState", map[string]interface{}{"PaymentId": externalID}, creds, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("tinkoff GetState failed: %s (code %s)", resp.Message, resp.ErrorCode)
	}
	return mapStatus(tinkoffStatuses, resp.Status), nil
}

// CancelPayment cancels a not-yet-confirmed payment
func (g *TinkoffGateway) CancelPayment(ctx context.Context, externalID string, creds Credentials) error {
	var resp tinkoffResponse
	if err := g.call(ctx, "/Cancel", map[string]interface{}{"PaymentId": externalID}, creds, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("tinkoff cancel failed: %s (code %s)", resp.Message, resp.ErrorCode)
	}
	return nil
}

// RefundPayment cancels a confirmed payment with an amount, which the
// provider treats as a (partial) refund.
func (g *TinkoffGateway) RefundPayment(ctx context.Context, externalID string, amount int64, creds Credentials) error {
	var resp tinkoffResponse
	err := g.call(ctx, "/Cancel", map[string]interface{}{
		"PaymentId": externalID,
		"Amount":    amount,
	}, creds, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("tinkoff refund failed: %s (code %s)", resp.Message, resp.ErrorCode)
	}
	return nil
}

// ValidateWebhook recomputes the notification's Token field over the
// payload values with the terminal password and compares.
func (g *TinkoffGateway) ValidateWebhook(r *http.Request, rawBody []byte, creds Credentials) bool {
	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return false
	}
	received, _ := payload["Token"].(string)
	if received == "" {
		return false
	}
	expected := tinkoffToken(payload, creds["password"])
	return expected == received
}

// ParseWebhook extracts the canonical event from a notification
func (g *TinkoffGateway) ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var payload struct {
		OrderID   string      `json:"OrderId"`
		PaymentID json.Number `json:"PaymentId"`
		Status    string      `json:"Status"`
		RebillID  json.Number `json:"RebillId"`
	}
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("tinkoff webhook payload: %v", err)
	}

	var raw models.JSONMap
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		raw = models.JSONMap{}
	}

	return &WebhookEvent{
		ExternalID:    payload.PaymentID.String(),
		TransactionID: payload.OrderID,
		Status:        mapStatus(tinkoffStatuses, payload.Status),
		Token:         payload.RebillID.String(),
		Raw:           raw,
	}, nil
}
