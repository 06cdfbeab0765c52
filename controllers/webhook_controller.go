package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/gateways"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// locateWebhookTransaction finds the transaction a provider callback
// refers to, by provider external id first and by our echoed opaque id
// second.
func locateWebhookTransaction(provider string, event *gateways.WebhookEvent) (*models.Transaction, error) {
	var txn models.Transaction

	if event.ExternalID != "" {
		err := config.DB.Where("provider = ? AND external_id = ?", provider, event.ExternalID).First(&txn).Error
		if err == nil {
			return &txn, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if event.TransactionID != "" {
		err := config.DB.Where("provider = ? AND transaction_id = ?", provider, event.TransactionID).First(&txn).Error
		if err == nil {
			return &txn, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, gorm.ErrRecordNotFound
}

// HandleWebhook is the push half of reconciliation. Signature
// validation runs before any state mutation; an invalid signature or an
// unknown transaction is rejected with zero writes, and the poll path
// remains the fallback.
func HandleWebhook(c *gin.Context) {
	provider := c.Param("provider")
	utils.LogInfo("Webhook received for provider %s", provider)

	gateway, ok := gateways.Get(provider)
	if !ok {
		utils.LogError("Webhook for unknown provider %s", provider)
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown provider"})
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.LogError("Failed to read webhook body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	event, err := gateway.ParseWebhook(rawBody)
	if err != nil {
		utils.LogError("Webhook parse failed for %s: %v", provider, err)
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed payload"})
		return
	}

	txn, err := locateWebhookTransaction(provider, event)
	if err != nil {
		utils.LogError("Webhook for %s references unknown transaction (external_id=%s)", provider, event.ExternalID)
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown transaction"})
		return
	}

	// Credentials come from the transaction's organization so partner
	// merchants validate against their own secrets.
	var org models.Organization
	if err := config.DB.First(&org, txn.OrganizationID).Error; err != nil {
		utils.LogError("Organization %d lookup failed for webhook: %v", txn.OrganizationID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}
	method, _ := models.GetPaymentMethod(txn.PaymentMethod)
	partner := findActivePartnerMerchant(org.ID, provider)
	resolution, err := gateways.Resolve(&org, method, provider, partner, nil)
	if err != nil {
		utils.LogError("Credential resolution failed for webhook %s: %v", txn.TransactionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	if !gateway.ValidateWebhook(c.Request, rawBody, resolution.Credentials) {
		utils.LogError("Webhook signature validation failed for %s transaction %s", provider, txn.TransactionID)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
		return
	}

	if !txn.CanTransitionTo(event.Status) {
		// Duplicate delivery or a late callback after a terminal state:
		// acknowledged so the provider stops retrying, nothing written.
		utils.LogInfo("Webhook for %s is a no-op (%s -> %s)", txn.TransactionID, txn.Status, event.Status)
		c.JSON(http.StatusOK, gin.H{"success": true, "transaction_id": txn.TransactionID})
		return
	}

	_, changed, err := TransitionTransaction(txn.ID, event.Status, TransitionOptions{
		ExternalID:  event.ExternalID,
		WebhookData: event.Raw,
		SavedToken:  event.Token,
		Action:      "webhook_received",
	})
	if err != nil {
		utils.LogError("Webhook transition failed for %s: %v", txn.TransactionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}

	if changed {
		utils.LogInfo("Webhook moved transaction %s to %s", txn.TransactionID, event.Status)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "transaction_id": txn.TransactionID})
}
