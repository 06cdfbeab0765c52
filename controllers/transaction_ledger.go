package controllers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransitionOptions carries the side-effect fields of a state change
type TransitionOptions struct {
	ExternalID      string
	GatewayResponse models.JSONMap
	WebhookData     models.JSONMap
	SavedToken      string
	RefundAmount    int64
	Action          string
	ErrorMessage    string
}

// LogPayment appends an audit entry for a transaction. Log rows are
// write-once; failures are reported to the file log only, since the
// audit trail is diagnostic, not load-bearing.
func LogPayment(db *gorm.DB, transactionID uint, action, severity, context string) {
	entry := models.PaymentLog{
		TransactionID: transactionID,
		Action:        action,
		Severity:      severity,
		Context:       context,
	}
	if err := db.Create(&entry).Error; err != nil {
		utils.LogError("Failed to write payment log for transaction %d: %v", transactionID, err)
	}
}

// applyTransition moves a transaction to the target status inside the
// caller's database transaction. The caller must hold the row lock.
// Returns whether the status actually changed.
//
// Rules: a terminal transaction never regresses; a repeated completed
// observation is an idempotent refresh (payloads merge, no second log
// entry); paid/failed/refunded stamps are written once and never
// overwritten.
func applyTransition(tx *gorm.DB, txn *models.Transaction, target models.TransactionStatus, opts TransitionOptions) (bool, error) {
	if !txn.CanTransitionTo(target) {
		utils.LogInfo("Transition %s -> %s rejected for transaction %s (terminal)", txn.Status, target, txn.TransactionID)
		return false, nil
	}

	now := time.Now()
	updates := map[string]interface{}{}
	changed := txn.Status != target

	if changed {
		txn.Status = target
		updates["status"] = target

		switch target {
		case models.TransactionStatusCompleted:
			if txn.PaidAt == nil {
				txn.PaidAt = &now
				updates["paid_at"] = now
			}
		case models.TransactionStatusFailed:
			if txn.FailedAt == nil {
				txn.FailedAt = &now
				updates["failed_at"] = now
			}
		case models.TransactionStatusRefunded:
			if txn.RefundedAt == nil {
				txn.RefundedAt = &now
				updates["refunded_at"] = now
			}
			txn.RefundedAmount = txn.Amount
			updates["refunded_amount"] = txn.Amount
		}
	}

	if opts.ExternalID != "" && txn.ExternalID == nil {
		txn.ExternalID = &opts.ExternalID
		updates["external_id"] = opts.ExternalID
	}
	if opts.GatewayResponse != nil {
		txn.GatewayResponse = txn.GatewayResponse.Merge(opts.GatewayResponse)
		updates["gateway_response"] = txn.GatewayResponse
	}
	if opts.WebhookData != nil {
		txn.WebhookData = opts.WebhookData
		updates["webhook_data"] = txn.WebhookData
	}
	if opts.SavedToken != "" && txn.PaymentDetails.SavedMethodToken == "" {
		txn.PaymentDetails.SavedMethodToken = opts.SavedToken
		updates["payment_details"] = txn.PaymentDetails
	}

	if len(updates) == 0 {
		return false, nil
	}

	if err := tx.Model(txn).Updates(updates).Error; err != nil {
		return false, utils.WrapError(err, "failed to update transaction")
	}

	if changed {
		action := opts.Action
		if action == "" {
			action = "status_change"
		}
		severity := models.LogSeverityInfo
		if target == models.TransactionStatusFailed {
			severity = models.LogSeverityError
		}
		context := fmt.Sprintf("status -> %s", target)
		if opts.ErrorMessage != "" {
			context = fmt.Sprintf("%s: %s", context, opts.ErrorMessage)
		}
		LogPayment(tx, txn.ID, action, severity, context)
	}

	if changed && target == models.TransactionStatusCompleted {
		if err := materializeDonation(tx, txn); err != nil {
			return false, err
		}
	}

	return changed, nil
}

// TransitionTransaction re-reads the transaction under a row lock,
// applies the transition and, when it completes a payment, fires the
// post-commit side effects (cache invalidation, donor receipt). The
// locked re-read makes the row the serialization point: a racing
// webhook and a racing poll cannot both win the same transition.
func TransitionTransaction(transactionID uint, target models.TransactionStatus, opts TransitionOptions) (*models.Transaction, bool, error) {
	db := config.DB

	tx := db.Begin()
	if tx.Error != nil {
		return nil, false, utils.WrapError(tx.Error, "failed to start transaction")
	}

	var txn models.Transaction
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&txn, transactionID).Error; err != nil {
		tx.Rollback()
		return nil, false, utils.WrapError(err, "transaction not found")
	}

	changed, err := applyTransition(tx, &txn, target, opts)
	if err != nil {
		tx.Rollback()
		return nil, false, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, utils.WrapError(err, "failed to commit transition")
	}

	if changed && target == models.TransactionStatusCompleted {
		donationSideEffects(&txn)
	}

	return &txn, changed, nil
}

// CreateTransactionRequest is the validated input for a new transaction
type CreateTransactionRequest struct {
	OrganizationID uint
	FundraiserID   *uint
	ProjectID      *uint
	ProjectStageID *uint
	Method         models.PaymentMethod
	Provider       string
	Amount         int64
	Currency       string
	Details        models.PaymentDetails
}

// CreateTransaction validates classification consistency and inserts a
// pending transaction. Validation fails the whole creation before any
// gateway call; no partial transaction is ever left behind.
func CreateTransaction(req CreateTransactionRequest) (*models.Transaction, error) {
	db := config.DB

	if !req.Method.ValidateAmount(req.Amount) {
		return nil, utils.BadRequestError(
			fmt.Sprintf("amount %s is outside the allowed range for %s (%s - %s)",
				utils.FormatMinorUnits(req.Amount), req.Method.Slug,
				utils.FormatMinorUnits(req.Method.MinAmount), utils.FormatMinorUnits(req.Method.MaxAmount)),
			nil)
	}

	var org models.Organization
	if err := db.First(&org, req.OrganizationID).Error; err != nil {
		return nil, utils.NotFoundError("organization not found", err)
	}

	if req.FundraiserID != nil {
		var fundraiser models.Fundraiser
		if err := db.First(&fundraiser, *req.FundraiserID).Error; err != nil {
			return nil, utils.NotFoundError("fundraiser not found", err)
		}
		if fundraiser.OrganizationID != req.OrganizationID {
			return nil, utils.BadRequestError("fundraiser does not belong to the organization", nil)
		}
	}

	var project *models.Project
	if req.ProjectID != nil {
		project = &models.Project{}
		if err := db.First(project, *req.ProjectID).Error; err != nil {
			return nil, utils.NotFoundError("project not found", err)
		}
		if project.OrganizationID != req.OrganizationID {
			return nil, utils.BadRequestError("project does not belong to the organization", nil)
		}
	}

	if req.ProjectStageID != nil {
		if project == nil {
			return nil, utils.BadRequestError("project stage requires a project", nil)
		}
		var stage models.ProjectStage
		if err := db.First(&stage, *req.ProjectStageID).Error; err != nil {
			return nil, utils.NotFoundError("project stage not found", err)
		}
		if stage.ProjectID != project.ID {
			return nil, utils.BadRequestError("project stage does not belong to the project", nil)
		}
	}

	txn := models.Transaction{
		TransactionID:  newTransactionID(),
		OrganizationID: req.OrganizationID,
		FundraiserID:   req.FundraiserID,
		ProjectID:      req.ProjectID,
		ProjectStageID: req.ProjectStageID,
		PaymentMethod:  req.Method.Slug,
		Provider:       req.Provider,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         models.TransactionStatusPending,
		PaymentDetails: req.Details,
	}

	if err := db.Create(&txn).Error; err != nil {
		return nil, utils.WrapError(err, "failed to create transaction")
	}

	detailsJSON, _ := json.Marshal(req.Details)
	LogPayment(db, txn.ID, "created", models.LogSeverityInfo,
		fmt.Sprintf("amount=%s %s method=%s provider=%s details=%s",
			utils.FormatMinorUnits(req.Amount), req.Currency, req.Method.Slug, req.Provider, detailsJSON))

	return &txn, nil
}
