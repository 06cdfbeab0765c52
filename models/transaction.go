package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TransactionStatus is the canonical payment lifecycle status
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// RecurringPeriod constants
const (
	RecurringPeriodDaily   = "daily"
	RecurringPeriodWeekly  = "weekly"
	RecurringPeriodMonthly = "monthly"
)

// PaymentDetails is the typed envelope stored in the transaction's
// payment_details column. Only the fields below are recognized; donor
// identity and recurrence flags travel here from creation to donation.
type PaymentDetails struct {
	DonorName             string `json:"donor_name,omitempty"`
	DonorEmail            string `json:"donor_email,omitempty"`
	DonorPhone            string `json:"donor_phone,omitempty"`
	Message               string `json:"message,omitempty"`
	Description           string `json:"description,omitempty"`
	IsRecurring           bool   `json:"is_recurring,omitempty"`
	RecurringPeriod       string `json:"recurring_period,omitempty"`
	SavedMethodToken      string `json:"saved_method_token,omitempty"`
	OriginalTransactionID string `json:"original_transaction_id,omitempty"`
	OriginalDonationID    uint   `json:"original_donation_id,omitempty"`
}

// Value implements driver.Valuer for jsonb storage
func (d PaymentDetails) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner
func (d *PaymentDetails) Scan(value interface{}) error {
	if value == nil {
		*d = PaymentDetails{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported payment_details type %T", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, d)
}

// JSONMap holds raw provider payloads (gateway_response, webhook_data)
type JSONMap map[string]interface{}

// Value implements driver.Valuer for jsonb storage
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(JSONMap{})
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("unsupported json type %T", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, m)
}

// Merge overlays other onto m without dropping existing keys
func (m JSONMap) Merge(other JSONMap) JSONMap {
	if m == nil {
		m = JSONMap{}
	}
	for k, v := range other {
		m[k] = v
	}
	return m
}

// Transaction represents one attempt to move money
type Transaction struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	TransactionID  string  `gorm:"type:uuid;uniqueIndex;not null" json:"transaction_id"`
	ExternalID     *string `gorm:"index:idx_transactions_provider_external,unique,where:external_id IS NOT NULL" json:"external_id"`
	OrganizationID uint    `gorm:"not null;index" json:"organization_id"`
	FundraiserID   *uint   `gorm:"index" json:"fundraiser_id"`
	ProjectID      *uint   `gorm:"index" json:"project_id"`
	ProjectStageID *uint   `json:"project_stage_id"`

	PaymentMethod string `gorm:"type:varchar(50);not null" json:"payment_method"`
	Provider      string `gorm:"type:varchar(50);not null;index:idx_transactions_provider_external,unique,where:external_id IS NOT NULL" json:"provider"`

	Amount         int64  `gorm:"not null" json:"amount"`
	Currency       string `gorm:"type:varchar(3);not null;default:'RUB'" json:"currency"`
	RefundedAmount int64  `gorm:"default:0" json:"refunded_amount"`

	Status TransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	PaymentDetails  PaymentDetails `gorm:"type:jsonb" json:"payment_details"`
	GatewayResponse JSONMap        `gorm:"type:jsonb" json:"gateway_response"`
	WebhookData     JSONMap        `gorm:"type:jsonb" json:"webhook_data"`

	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	PaidAt     *time.Time     `json:"paid_at"`
	FailedAt   *time.Time     `json:"failed_at"`
	RefundedAt *time.Time     `json:"refunded_at"`
	ExpiresAt  time.Time      `json:"expires_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate stamps the default expiry window
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(24 * time.Hour)
	}
	return nil
}

// IsTerminal reports whether the transaction has reached a final state
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusCancelled, TransactionStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving to target is a legal edge of
// the state machine. A repeated completed->completed observation is
// allowed as an idempotent refresh; every other move out of a terminal
// state is rejected.
func (t *Transaction) CanTransitionTo(target TransactionStatus) bool {
	if t.Status == target {
		// pending->pending carries side-effect fields only;
		// completed->completed is an idempotent poll refresh.
		return !t.IsTerminal() || t.Status == TransactionStatusCompleted
	}
	switch t.Status {
	case TransactionStatusPending:
		return target == TransactionStatusCompleted ||
			target == TransactionStatusFailed ||
			target == TransactionStatusCancelled
	case TransactionStatusCompleted:
		return target == TransactionStatusRefunded
	}
	return false
}
