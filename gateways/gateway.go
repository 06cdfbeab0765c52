package gateways

import (
	"context"
	"net/http"
	"time"

	"github.com/donatehub/donatehub/models"
)

// Credentials is a flat provider credential/option map. Layers of it
// are merged by the resolver; adapters read only the keys they own.
type Credentials map[string]string

// CreateResult is the normalized outcome of a create or charge call
type CreateResult struct {
	Success          bool                     `json:"success"`
	PaymentID        string                   `json:"payment_id,omitempty"`
	RedirectURL      string                   `json:"redirect_url,omitempty"`
	ConfirmationURL  string                   `json:"confirmation_url,omitempty"`
	QRCode           string                   `json:"qr_code,omitempty"`
	DeepLink         string                   `json:"deep_link,omitempty"`
	SavedMethodToken string                   `json:"-"`
	Status           models.TransactionStatus `json:"-"`
	Raw              models.JSONMap           `json:"-"`
	Error            string                   `json:"error,omitempty"`
}

// WebhookEvent is a provider callback mapped into canonical terms
type WebhookEvent struct {
	ExternalID    string
	TransactionID string // our opaque id when the provider echoes it back
	Status        models.TransactionStatus
	Token         string // saved payment method token, when issued
	Raw           models.JSONMap
}

// Gateway is the capability set every payment provider adapter
// implements. Amount handling is always integer minor units; wire
// formatting is centralized in utils/money.go.
type Gateway interface {
	Name() string

	// CreatePayment registers a payment with the provider and returns a
	// redirect/confirmation/QR payload. The transaction's opaque id is
	// passed as the idempotency key so provider-side retries cannot
	// create duplicate charges.
	CreatePayment(ctx context.Context, txn *models.Transaction, creds Credentials) (*CreateResult, error)

	// ChargeToken charges a saved payment method directly, without any
	// redirect step. Used by the recurring scheduler.
	ChargeToken(ctx context.Context, txn *models.Transaction, token string, creds Credentials) (*CreateResult, error)

	// SupportsTokenCharge reports whether ChargeToken can ever succeed
	// for this provider. The scheduler skips subscriptions whose provider
	// returns false instead of charging into a guaranteed failure.
	SupportsTokenCharge() bool

	// GetPaymentStatus maps the provider's status vocabulary into the
	// five canonical statuses. Unknown provider statuses map to pending.
	GetPaymentStatus(ctx context.Context, externalID string, creds Credentials) (models.TransactionStatus, error)

	CancelPayment(ctx context.Context, externalID string, creds Credentials) error
	RefundPayment(ctx context.Context, externalID string, amount int64, creds Credentials) error

	// ValidateWebhook checks the provider signature over the raw body.
	// It must be called before any state mutation.
	ValidateWebhook(r *http.Request, rawBody []byte, creds Credentials) bool

	// ParseWebhook extracts the canonical event from a provider payload
	ParseWebhook(rawBody []byte) (*WebhookEvent, error)
}

// httpClient is shared by all adapters; gateway calls are blocking I/O
// with a bounded timeout.
var httpClient = &http.Client{Timeout: 15 * time.Second}

var registry = map[string]Gateway{}

// Register adds a gateway to the registry. Called from adapter init.
func Register(g Gateway) {
	registry[g.Name()] = g
}

// Get returns a registered gateway by provider name
func Get(name string) (Gateway, bool) {
	g, ok := registry[name]
	return g, ok
}

// mapStatus resolves a provider-native status through the adapter's
// vocabulary table, defaulting to pending so an unrecognized provider
// status can never fake a completion.
func mapStatus(vocab map[string]models.TransactionStatus, providerStatus string) models.TransactionStatus {
	if s, ok := vocab[providerStatus]; ok {
		return s
	}
	return models.TransactionStatusPending
}
