package controllers

import (
	"errors"
	"fmt"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"gorm.io/gorm"
)

// materializeDonation turns a completed transaction into its donation
// record and recomputes dependent aggregates. It runs inside the same
// database transaction as the completed transition, so a reader can
// never observe a completed transaction without its donation or a
// donation without updated aggregates.
func materializeDonation(tx *gorm.DB, txn *models.Transaction) error {
	// The row is locked; the in-memory copy is what we trust.
	if txn.Status != models.TransactionStatusCompleted {
		return fmt.Errorf("transaction %s is not completed", txn.TransactionID)
	}

	// Existence check keyed on transaction id makes this idempotent.
	var existing models.Donation
	err := tx.Where("transaction_id = ?", txn.ID).First(&existing).Error
	if err == nil {
		utils.LogInfo("Donation already exists for transaction %s, skipping", txn.TransactionID)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.WrapError(err, "donation lookup failed")
	}

	donation := models.Donation{
		TransactionID:   txn.ID,
		OrganizationID:  txn.OrganizationID,
		FundraiserID:    txn.FundraiserID,
		ProjectID:       txn.ProjectID,
		ProjectStageID:  txn.ProjectStageID,
		Amount:          txn.Amount,
		Currency:        txn.Currency,
		DonorName:       txn.PaymentDetails.DonorName,
		DonorEmail:      txn.PaymentDetails.DonorEmail,
		DonorPhone:      txn.PaymentDetails.DonorPhone,
		Message:         txn.PaymentDetails.Message,
		RecurringPeriod: txn.PaymentDetails.RecurringPeriod,
	}
	if err := tx.Create(&donation).Error; err != nil {
		return utils.WrapError(err, "failed to create donation")
	}

	if err := recomputeAggregates(tx, txn); err != nil {
		return err
	}

	LogPayment(tx, txn.ID, "donation_created", models.LogSeverityInfo,
		fmt.Sprintf("donation %d amount=%s", donation.ID, utils.FormatAmountDisplay(donation.Amount, donation.Currency)))

	return nil
}

// recomputeAggregates re-derives collected totals from the donations
// table instead of incrementing counters, so a replayed materialization
// can never double-credit.
func recomputeAggregates(tx *gorm.DB, txn *models.Transaction) error {
	if txn.ProjectID != nil {
		var stats struct {
			Total int64
			Count int64
		}
		err := tx.Model(&models.Donation{}).
			Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
			Where("project_id = ?", *txn.ProjectID).
			Scan(&stats).Error
		if err != nil {
			return utils.WrapError(err, "project aggregate query failed")
		}
		err = tx.Model(&models.Project{}).Where("id = ?", *txn.ProjectID).
			Updates(map[string]interface{}{
				"collected_amount": stats.Total,
				"donation_count":   stats.Count,
			}).Error
		if err != nil {
			return utils.WrapError(err, "project aggregate update failed")
		}
	}

	if txn.FundraiserID != nil {
		var total int64
		err := tx.Model(&models.Donation{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("fundraiser_id = ?", *txn.FundraiserID).
			Scan(&total).Error
		if err != nil {
			return utils.WrapError(err, "fundraiser aggregate query failed")
		}
		err = tx.Model(&models.Fundraiser{}).Where("id = ?", *txn.FundraiserID).
			Update("collected_amount", total).Error
		if err != nil {
			return utils.WrapError(err, "fundraiser aggregate update failed")
		}
	}

	var orgTotal int64
	err := tx.Model(&models.Donation{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("organization_id = ?", txn.OrganizationID).
		Scan(&orgTotal).Error
	if err != nil {
		return utils.WrapError(err, "organization aggregate query failed")
	}
	err = tx.Model(&models.Organization{}).Where("id = ?", txn.OrganizationID).
		Update("total_collected", orgTotal).Error
	if err != nil {
		return utils.WrapError(err, "organization aggregate update failed")
	}

	return nil
}

// donationSideEffects runs after the completed transition has been
// committed: cached read-models are invalidated and the donor gets a
// receipt. Both are best-effort.
func donationSideEffects(txn *models.Transaction) {
	utils.InvalidateOrganizationCache(txn.OrganizationID)

	if txn.PaymentDetails.DonorEmail == "" {
		return
	}

	go func(txn models.Transaction) {
		var org models.Organization
		orgName := "the organization"
		if err := config.DB.First(&org, txn.OrganizationID).Error; err == nil {
			orgName = org.Name
		}
		donorName := txn.PaymentDetails.DonorName
		if donorName == "" {
			donorName = "friend"
		}
		err := utils.SendDonationReceipt(
			txn.PaymentDetails.DonorEmail,
			donorName,
			orgName,
			utils.FormatAmountDisplay(txn.Amount, txn.Currency),
		)
		if err != nil {
			utils.LogError("Receipt email failed for transaction %s: %v", txn.TransactionID, err)
		}
	}(*txn)
}
