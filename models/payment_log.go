package models

import "time"

// PaymentLog severity levels
const (
	LogSeverityInfo    = "info"
	LogSeverityWarning = "warning"
	LogSeverityError   = "error"
)

// PaymentLog is an append-only audit entry keyed to a transaction.
// Rows are written once and never mutated or deleted; they exist for
// diagnostics, not correctness.
type PaymentLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID uint      `gorm:"not null;index" json:"transaction_id"`
	Action        string    `gorm:"type:varchar(100);not null" json:"action"`
	Severity      string    `gorm:"type:varchar(20);not null;default:'info'" json:"severity"`
	Context       string    `gorm:"type:text" json:"context"`
	CreatedAt     time.Time `json:"created_at"`
}
