package models

import (
	"time"

	"gorm.io/gorm"
)

// Donation is the durable record of a successful contribution. It is
// created at most once per transaction by the materializer and never
// updated afterwards.
type Donation struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	TransactionID  uint   `gorm:"uniqueIndex;not null" json:"transaction_id"`
	OrganizationID uint   `gorm:"not null;index" json:"organization_id"`
	FundraiserID   *uint  `gorm:"index" json:"fundraiser_id"`
	ProjectID      *uint  `gorm:"index" json:"project_id"`
	ProjectStageID *uint  `json:"project_stage_id"`
	Amount         int64  `gorm:"not null" json:"amount"`
	Currency       string `gorm:"type:varchar(3);not null" json:"currency"`

	DonorName       string `json:"donor_name"`
	DonorEmail      string `json:"donor_email"`
	DonorPhone      string `json:"donor_phone"`
	Message         string `json:"message"`
	RecurringPeriod string `json:"recurring_period"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Transaction Transaction `json:"-" gorm:"foreignKey:TransactionID"`
}
