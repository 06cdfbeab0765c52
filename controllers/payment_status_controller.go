package controllers

import (
	"time"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/gateways"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
)

// pollProviderStatus re-queries the provider for a transaction that has
// an external id and applies the mapped status through the normal
// transition path. A provider error keeps the last known local status;
// polling never worsens local state.
func pollProviderStatus(c *gin.Context, txn *models.Transaction) *models.Transaction {
	if txn.ExternalID == nil {
		return txn
	}
	if txn.IsTerminal() && txn.Status != models.TransactionStatusCompleted {
		return txn
	}

	gateway, ok := gateways.Get(txn.Provider)
	if !ok {
		utils.LogError("Provider %s for transaction %s is not registered", txn.Provider, txn.TransactionID)
		return txn
	}

	var org models.Organization
	if err := config.DB.First(&org, txn.OrganizationID).Error; err != nil {
		utils.LogError("Organization %d lookup failed during poll: %v", txn.OrganizationID, err)
		return txn
	}
	method, _ := models.GetPaymentMethod(txn.PaymentMethod)
	partner := findActivePartnerMerchant(org.ID, txn.Provider)
	resolution, err := gateways.Resolve(&org, method, txn.Provider, partner, nil)
	if err != nil {
		utils.LogError("Credential resolution failed during poll for %s: %v", txn.TransactionID, err)
		return txn
	}

	status, err := gateway.GetPaymentStatus(c.Request.Context(), *txn.ExternalID, resolution.Credentials)
	if err != nil {
		utils.LogError("Status poll failed for %s: %v", txn.TransactionID, err)
		return txn
	}

	if !txn.CanTransitionTo(status) {
		return txn
	}

	updated, changed, err := TransitionTransaction(txn.ID, status, TransitionOptions{
		Action: "poll_reconciled",
	})
	if err != nil {
		utils.LogError("Poll transition failed for %s: %v", txn.TransactionID, err)
		return txn
	}
	if changed {
		utils.LogInfo("Poll moved transaction %s to %s", txn.TransactionID, status)
	}
	return updated
}

// GetPaymentStatus returns the canonical status for an opaque
// transaction id, triggering a pull reconciliation when a provider id
// is attached.
func GetPaymentStatus(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	var txn models.Transaction
	if err := config.DB.Where("transaction_id = ?", transactionID).First(&txn).Error; err != nil {
		utils.NotFound(c, "Transaction not found")
		return
	}

	current := pollProviderStatus(c, &txn)

	formatTime := func(t *time.Time) interface{} {
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339)
	}

	utils.Success(c, "Payment status", gin.H{
		"transaction_id":  current.TransactionID,
		"status":          current.Status,
		"amount":          utils.FormatMinorUnits(current.Amount),
		"currency":        current.Currency,
		"refunded_amount": utils.FormatMinorUnits(current.RefundedAmount),
		"created_at":      current.CreatedAt.Format(time.RFC3339),
		"paid_at":         formatTime(current.PaidAt),
		"failed_at":       formatTime(current.FailedAt),
		"refunded_at":     formatTime(current.RefundedAt),
		"expires_at":      current.ExpiresAt.Format(time.RFC3339),
	})
}
