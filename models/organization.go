package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization owns fundraisers, projects and the money they collect.
// GatewaySettings holds per-provider credential maps keyed by provider
// name, e.g. {"cloudpayments": {"public_id": "...", "api_secret": "..."}}.
type Organization struct {
	gorm.Model
	Name            string  `gorm:"not null" json:"name"`
	Slug            string  `gorm:"uniqueIndex;not null" json:"slug"`
	EnabledGateways string  `gorm:"type:text" json:"enabled_gateways"` // comma separated, ordered by preference
	GatewaySettings JSONMap `gorm:"type:jsonb" json:"-"`
	ReceiptEmail    string  `json:"receipt_email"`
	TotalCollected  int64   `gorm:"default:0" json:"total_collected"`
}

// Fundraiser is a person or team collecting on behalf of an organization
type Fundraiser struct {
	gorm.Model
	OrganizationID  uint   `gorm:"not null;index" json:"organization_id"`
	Title           string `gorm:"not null" json:"title"`
	CollectedAmount int64  `gorm:"default:0" json:"collected_amount"`
}

// Project is a fundraising goal within an organization
type Project struct {
	gorm.Model
	OrganizationID  uint   `gorm:"not null;index" json:"organization_id"`
	FundraiserID    *uint  `gorm:"index" json:"fundraiser_id"`
	Title           string `gorm:"not null" json:"title"`
	TargetAmount    int64  `json:"target_amount"`
	CollectedAmount int64  `gorm:"default:0" json:"collected_amount"`
	DonationCount   int    `gorm:"default:0" json:"donation_count"`
	IsActive        bool   `gorm:"default:true" json:"is_active"`
}

// ProjectStage is a phase of a project with its own target
type ProjectStage struct {
	gorm.Model
	ProjectID    uint   `gorm:"not null;index" json:"project_id"`
	Title        string `gorm:"not null" json:"title"`
	TargetAmount int64  `json:"target_amount"`
}

// PartnerMerchant binds an organization to a credential set issued
// through a payment partner program for one provider.
type PartnerMerchant struct {
	gorm.Model
	OrganizationID uint    `gorm:"not null;index" json:"organization_id"`
	Provider       string  `gorm:"type:varchar(50);not null" json:"provider"`
	Credentials    JSONMap `gorm:"type:jsonb" json:"-"`
	IsActive       bool    `gorm:"default:true" json:"is_active"`
}

// Admin represents an administrator account
type Admin struct {
	gorm.Model
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Password  string    `json:"-"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	LastLogin time.Time `json:"last_login"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
}
