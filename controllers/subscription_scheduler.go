package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/gateways"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NextDueDate computes when a subscription owes its next charge.
// Monthly uses calendar-month arithmetic; an unknown period is treated
// as monthly.
func NextDueDate(lastPaid time.Time, period string) time.Time {
	switch period {
	case models.RecurringPeriodDaily:
		return lastPaid.AddDate(0, 0, 1)
	case models.RecurringPeriodWeekly:
		return lastPaid.AddDate(0, 0, 7)
	case models.RecurringPeriodMonthly:
		return lastPaid.AddDate(0, 1, 0)
	default:
		return lastPaid.AddDate(0, 1, 0)
	}
}

// subscriptionCandidate is one saved-token subscription found in the
// ledger. Subscriptions are not a stored entity; they are derived from
// completed transactions carrying a token and a recurrence period.
type subscriptionCandidate struct {
	Token          string
	OrganizationID uint
}

// chargeOutcome reports what happened to one subscription in a run
type chargeOutcome struct {
	Token         string `json:"token"`
	Action        string `json:"action"` // charged, skipped, failed
	Reason        string `json:"reason,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	NextDue       string `json:"next_due,omitempty"`
}

func findSubscriptionCandidates(db *gorm.DB) ([]subscriptionCandidate, error) {
	var candidates []subscriptionCandidate
	err := db.Model(&models.Transaction{}).
		Select("DISTINCT payment_details->>'saved_method_token' AS token, organization_id").
		Where("status = ?", models.TransactionStatusCompleted).
		Where("COALESCE(payment_details->>'saved_method_token', '') <> ''").
		Where("COALESCE(payment_details->>'recurring_period', '') <> ''").
		Scan(&candidates).Error
	return candidates, err
}

// latestCompletedForToken finds the most recent completed transaction
// sharing the saved-method token within the organization. The original
// transaction is the natural fallback because it matches the query too.
func latestCompletedForToken(db *gorm.DB, orgID uint, token string) (*models.Transaction, error) {
	var txn models.Transaction
	err := db.Where("organization_id = ? AND status = ?", orgID, models.TransactionStatusCompleted).
		Where("payment_details->>'saved_method_token' = ?", token).
		Order("paid_at DESC NULLS LAST").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func originalForToken(db *gorm.DB, orgID uint, token string) (*models.Transaction, error) {
	var txn models.Transaction
	err := db.Where("organization_id = ? AND status = ?", orgID, models.TransactionStatusCompleted).
		Where("payment_details->>'saved_method_token' = ?", token).
		Order("created_at ASC").
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// renewalExists is the duplicate-charge guard: any non-cancelled
// transaction for the token dated on or after the due day counts as
// the renewal already being handled. The guard is best-effort; the
// batch itself must not run concurrently for one organization.
func renewalExists(db *gorm.DB, orgID uint, token string, due time.Time) (bool, error) {
	var count int64
	err := db.Model(&models.Transaction{}).
		Where("organization_id = ? AND status <> ?", orgID, models.TransactionStatusCancelled).
		Where("payment_details->>'saved_method_token' = ?", token).
		Where("DATE(created_at) >= ?", due.Format("2006-01-02")).
		Count(&count).Error
	return count > 0, err
}

// processSubscription runs the full renewal algorithm for one token.
// dryRun reports the decision without creating or charging anything.
func processSubscription(ctx context.Context, cand subscriptionCandidate, now time.Time, dryRun bool) chargeOutcome {
	db := config.DB
	outcome := chargeOutcome{Token: cand.Token}

	latest, err := latestCompletedForToken(db, cand.OrganizationID, cand.Token)
	if err != nil {
		outcome.Action = "failed"
		outcome.Reason = fmt.Sprintf("latest transaction lookup: %v", err)
		return outcome
	}

	if gw, ok := gateways.Get(latest.Provider); ok && !gw.SupportsTokenCharge() {
		outcome.Action = "skipped"
		outcome.Reason = fmt.Sprintf("provider %s does not support token charges", latest.Provider)
		return outcome
	}

	period := latest.PaymentDetails.RecurringPeriod
	lastPaid := latest.CreatedAt
	if latest.PaidAt != nil {
		lastPaid = *latest.PaidAt
	}

	nextDue := NextDueDate(lastPaid, period)
	outcome.NextDue = nextDue.Format("2006-01-02")

	if nextDue.After(now) {
		outcome.Action = "skipped"
		outcome.Reason = "not due yet"
		return outcome
	}

	exists, err := renewalExists(db, cand.OrganizationID, cand.Token, nextDue)
	if err != nil {
		outcome.Action = "failed"
		outcome.Reason = fmt.Sprintf("duplicate guard query: %v", err)
		return outcome
	}
	if exists {
		outcome.Action = "skipped"
		outcome.Reason = "renewal already exists for the due day"
		return outcome
	}

	original, err := originalForToken(db, cand.OrganizationID, cand.Token)
	if err != nil {
		outcome.Action = "failed"
		outcome.Reason = fmt.Sprintf("original transaction lookup: %v", err)
		return outcome
	}

	if dryRun {
		outcome.Action = "charged"
		outcome.Reason = fmt.Sprintf("dry run: would charge %s via %s",
			utils.FormatAmountDisplay(original.Amount, original.Currency), original.Provider)
		return outcome
	}

	txnID, err := chargeRenewal(ctx, original, cand.Token)
	if err != nil {
		outcome.Action = "failed"
		outcome.Reason = err.Error()
		outcome.TransactionID = txnID
		return outcome
	}

	outcome.Action = "charged"
	outcome.TransactionID = txnID
	return outcome
}

// chargeRenewal clones the original transaction into a new one and
// pushes it through the normal create path, except the saved token
// charges directly with no redirect step.
func chargeRenewal(ctx context.Context, original *models.Transaction, token string) (string, error) {
	var org models.Organization
	if err := config.DB.First(&org, original.OrganizationID).Error; err != nil {
		return "", utils.WrapError(err, "organization lookup failed")
	}

	method, ok := models.GetPaymentMethod(original.PaymentMethod)
	if !ok {
		return "", fmt.Errorf("payment method %q no longer configured", original.PaymentMethod)
	}

	// Pin the original's provider: the token is only valid there.
	partner := findActivePartnerMerchant(org.ID, original.Provider)
	resolution, err := gateways.Resolve(&org, method, original.Provider, partner, nil)
	if err != nil {
		return "", utils.WrapError(err, "gateway resolution failed")
	}

	var originalDonation models.Donation
	var donationID uint
	if err := config.DB.Where("transaction_id = ?", original.ID).First(&originalDonation).Error; err == nil {
		donationID = originalDonation.ID
	}

	period := original.PaymentDetails.RecurringPeriod
	if period == "" {
		period = models.RecurringPeriodMonthly
	}

	txn, err := CreateTransaction(CreateTransactionRequest{
		OrganizationID: original.OrganizationID,
		FundraiserID:   original.FundraiserID,
		ProjectID:      original.ProjectID,
		ProjectStageID: original.ProjectStageID,
		Method:         method,
		Provider:       resolution.Provider,
		Amount:         original.Amount,
		Currency:       original.Currency,
		Details: models.PaymentDetails{
			DonorName:             original.PaymentDetails.DonorName,
			DonorEmail:            original.PaymentDetails.DonorEmail,
			DonorPhone:            original.PaymentDetails.DonorPhone,
			Description:           original.PaymentDetails.Description,
			IsRecurring:           true,
			RecurringPeriod:       period,
			SavedMethodToken:      token,
			OriginalTransactionID: original.TransactionID,
			OriginalDonationID:    donationID,
		},
	})
	if err != nil {
		return "", utils.WrapError(err, "renewal transaction creation failed")
	}

	result, err := resolution.Gateway.ChargeToken(ctx, txn, token, resolution.Credentials)
	if err != nil {
		_, _, terr := TransitionTransaction(txn.ID, models.TransactionStatusFailed, TransitionOptions{
			Action:       "renewal_gateway_error",
			ErrorMessage: err.Error(),
		})
		if terr != nil {
			utils.LogError("Failed to mark renewal %s failed: %v", txn.TransactionID, terr)
		}
		return txn.TransactionID, utils.WrapError(err, "token charge failed")
	}
	if !result.Success {
		_, _, terr := TransitionTransaction(txn.ID, models.TransactionStatusFailed, TransitionOptions{
			Action:          "renewal_declined",
			ErrorMessage:    result.Error,
			GatewayResponse: result.Raw,
		})
		if terr != nil {
			utils.LogError("Failed to mark renewal %s failed: %v", txn.TransactionID, terr)
		}
		return txn.TransactionID, fmt.Errorf("token charge declined: %s", result.Error)
	}

	target := models.TransactionStatusPending
	if result.Status == models.TransactionStatusCompleted {
		target = models.TransactionStatusCompleted
	}
	_, _, err = TransitionTransaction(txn.ID, target, TransitionOptions{
		ExternalID:      result.PaymentID,
		GatewayResponse: result.Raw,
		Action:          "renewal_charged",
	})
	if err != nil {
		return txn.TransactionID, utils.WrapError(err, "failed to record renewal charge")
	}

	utils.LogInfo("Renewal charged for %s via %s", txn.TransactionID, resolution.Provider)
	return txn.TransactionID, nil
}

// RunRecurringCharges is the daily batch entry point. Subscriptions are
// processed sequentially; one failure is logged and the loop continues.
func RunRecurringCharges(c *gin.Context) {
	utils.LogInfo("RunRecurringCharges called")
	now := time.Now()

	candidates, err := findSubscriptionCandidates(config.DB)
	if err != nil {
		utils.LogError("Subscription candidate query failed: %v", err)
		utils.InternalServerError(c, "Failed to list subscriptions", nil)
		return
	}
	utils.LogInfo("Found %d subscription candidates", len(candidates))

	outcomes := make([]chargeOutcome, 0, len(candidates))
	var charged, skipped, failed int
	for _, cand := range candidates {
		outcome := processSubscription(c.Request.Context(), cand, now, false)
		switch outcome.Action {
		case "charged":
			charged++
		case "skipped":
			skipped++
		default:
			failed++
			utils.LogError("Renewal failed for token %s: %s", cand.Token, outcome.Reason)
		}
		outcomes = append(outcomes, outcome)
	}

	utils.Success(c, "Recurring charges processed", gin.H{
		"processed": len(candidates),
		"charged":   charged,
		"skipped":   skipped,
		"failed":    failed,
		"outcomes":  outcomes,
	})
}

// TestChargeRequest targets one subscriber for a controlled run
type TestChargeRequest struct {
	Phone  string `json:"phone" binding:"required"`
	DryRun bool   `json:"dry_run"`
}

// RunSingleSubscriptionCharge processes exactly one phone-matched
// subscription, optionally as a dry run that only reports the decision.
func RunSingleSubscriptionCharge(c *gin.Context) {
	utils.LogInfo("RunSingleSubscriptionCharge called")

	var req TestChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request. phone is required", err.Error())
		return
	}

	var cand subscriptionCandidate
	err := config.DB.Model(&models.Transaction{}).
		Select("payment_details->>'saved_method_token' AS token, organization_id").
		Where("status = ?", models.TransactionStatusCompleted).
		Where("COALESCE(payment_details->>'saved_method_token', '') <> ''").
		Where("COALESCE(payment_details->>'recurring_period', '') <> ''").
		Where("payment_details->>'donor_phone' = ?", req.Phone).
		Order("created_at DESC").
		Limit(1).
		Scan(&cand).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.LogError("Subscription lookup failed for phone %s: %v", req.Phone, err)
		utils.InternalServerError(c, "Subscription lookup failed", nil)
		return
	}
	if cand.Token == "" {
		utils.NotFound(c, "No subscription found for that phone number")
		return
	}

	outcome := processSubscription(c.Request.Context(), cand, time.Now(), req.DryRun)
	utils.Success(c, "Subscription processed", gin.H{
		"dry_run": req.DryRun,
		"outcome": outcome,
	})
}
