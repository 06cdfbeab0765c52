package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/gateways"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func resolveForTransaction(txn *models.Transaction) (*gateways.Resolution, error) {
	var org models.Organization
	if err := config.DB.First(&org, txn.OrganizationID).Error; err != nil {
		return nil, utils.WrapError(err, "organization lookup failed")
	}
	method, _ := models.GetPaymentMethod(txn.PaymentMethod)
	partner := findActivePartnerMerchant(org.ID, txn.Provider)
	return gateways.Resolve(&org, method, txn.Provider, partner, nil)
}

// CancelPayment cancels a pending transaction. The provider-side cancel
// is best-effort: an unpaid provider order dies on its own, so a
// gateway error downgrades to a log line and the local cancel proceeds.
func CancelPayment(c *gin.Context) {
	transactionID := c.Param("transaction_id")
	utils.LogInfo("CancelPayment called for %s", transactionID)

	var txn models.Transaction
	if err := config.DB.Where("transaction_id = ?", transactionID).First(&txn).Error; err != nil {
		utils.NotFound(c, "Transaction not found")
		return
	}

	if txn.Status != models.TransactionStatusPending {
		utils.Conflict(c, "Only pending payments can be cancelled", gin.H{"status": txn.Status})
		return
	}

	if txn.ExternalID != nil {
		resolution, err := resolveForTransaction(&txn)
		if err != nil {
			utils.LogError("Credential resolution failed for cancel of %s: %v", txn.TransactionID, err)
		} else if err := resolution.Gateway.CancelPayment(c.Request.Context(), *txn.ExternalID, resolution.Credentials); err != nil {
			utils.LogError("Provider cancel failed for %s: %v", txn.TransactionID, err)
		}
	}

	updated, _, err := TransitionTransaction(txn.ID, models.TransactionStatusCancelled, TransitionOptions{
		Action: "cancelled",
	})
	if err != nil {
		utils.LogError("Cancel transition failed for %s: %v", txn.TransactionID, err)
		utils.InternalServerError(c, "Failed to cancel payment", nil)
		return
	}

	utils.Success(c, "Payment cancelled", gin.H{
		"transaction_id": updated.TransactionID,
		"status":         updated.Status,
	})
}

// RefundRequest is the refund input; a missing amount means refund the
// outstanding remainder in full.
type RefundRequest struct {
	Amount int64 `json:"amount"`
}

// resolveRefundAmount validates a requested refund against what is
// still refundable. Zero means the full remainder.
func resolveRefundAmount(txn *models.Transaction, requested int64) (int64, error) {
	remaining := txn.Amount - txn.RefundedAmount
	if remaining <= 0 {
		return 0, fmt.Errorf("nothing left to refund")
	}
	if requested == 0 {
		return remaining, nil
	}
	if requested < 0 || requested > remaining {
		return 0, fmt.Errorf("refund amount exceeds the refundable remainder of %s", utils.FormatMinorUnits(remaining))
	}
	return requested, nil
}

// executeRefund runs the whole refund under a row lock so the remainder
// check, the provider call and the refunded_amount write are one
// serialized unit. Two concurrent refunds queue on the lock; the second
// re-reads the updated remainder and validates against it, so the
// provider can never be asked to return more than the remainder.
// Returns the refreshed transaction and the amount actually refunded.
func executeRefund(ctx context.Context, transactionID string, requested int64) (*models.Transaction, int64, error) {
	var txn models.Transaction
	var refunded int64

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("transaction_id = ?", transactionID).First(&txn).Error; err != nil {
			return utils.NotFoundError("transaction not found", err)
		}

		if txn.Status != models.TransactionStatusCompleted {
			return utils.ConflictError(fmt.Sprintf("only completed payments can be refunded, status is %s", txn.Status), nil)
		}

		amount, err := resolveRefundAmount(&txn, requested)
		if err != nil {
			return utils.BadRequestError(err.Error(), nil)
		}

		if txn.ExternalID == nil {
			return utils.ConflictError("transaction has no provider payment to refund", nil)
		}

		resolution, err := resolveForTransaction(&txn)
		if err != nil {
			return utils.NewAppError(http.StatusInternalServerError, "failed to resolve payment provider", err)
		}

		if err := resolution.Gateway.RefundPayment(ctx, *txn.ExternalID, amount, resolution.Credentials); err != nil {
			// Log on the base connection so the entry survives the rollback.
			LogPayment(config.DB, txn.ID, "refund_failed", models.LogSeverityError, err.Error())
			return utils.NewAppError(http.StatusBadGateway, "payment provider rejected the refund", err)
		}

		refunded = amount
		newTotal := txn.RefundedAmount + amount

		if newTotal >= txn.Amount {
			if _, err := applyTransition(tx, &txn, models.TransactionStatusRefunded, TransitionOptions{
				Action: "refunded",
			}); err != nil {
				return err
			}
			return nil
		}

		// Partial refund: record the amount, no status change.
		if err := tx.Model(&txn).Update("refunded_amount", newTotal).Error; err != nil {
			return utils.WrapError(err, "failed to record partial refund")
		}
		txn.RefundedAmount = newTotal
		LogPayment(tx, txn.ID, "partial_refund", models.LogSeverityInfo,
			fmt.Sprintf("refunded %s of %s", utils.FormatMinorUnits(newTotal), utils.FormatMinorUnits(txn.Amount)))
		return nil
	})

	return &txn, refunded, err
}

// RefundPayment refunds a completed transaction. A partial refund
// accumulates in refunded_amount and the transaction stays completed;
// status flips to refunded only when the full amount has been returned.
func RefundPayment(c *gin.Context) {
	transactionID := c.Param("transaction_id")
	utils.LogInfo("RefundPayment called for %s", transactionID)

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequest(c, "Invalid refund request", err.Error())
		return
	}

	txn, refunded, err := executeRefund(c.Request.Context(), transactionID, req.Amount)
	if err != nil {
		utils.LogError("Refund failed for %s: %v", transactionID, err)
		if appErr := utils.GetAppError(err); appErr != nil {
			detail := interface{}(nil)
			if appErr.Err != nil {
				detail = appErr.Err.Error()
			}
			utils.Error(c, appErr.Code, appErr.Message, detail)
			return
		}
		utils.InternalServerError(c, "Refund recorded by provider but not locally, manual review needed", nil)
		return
	}

	if txn.Status == models.TransactionStatusRefunded {
		utils.LogInfo("Refund processed for %s in full", txn.TransactionID)
		utils.Success(c, "Payment fully refunded", gin.H{
			"transaction_id":  txn.TransactionID,
			"status":          txn.Status,
			"refunded_amount": utils.FormatMinorUnits(txn.RefundedAmount),
		})
		return
	}

	utils.LogInfo("Refund processed for %s, %s of %s returned", txn.TransactionID,
		utils.FormatMinorUnits(refunded), utils.FormatMinorUnits(txn.Amount))
	utils.Success(c, "Payment partially refunded", gin.H{
		"transaction_id":  txn.TransactionID,
		"status":          txn.Status,
		"refunded_amount": utils.FormatMinorUnits(txn.RefundedAmount),
	})
}
