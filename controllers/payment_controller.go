package controllers

import (
	"errors"
	"net/http"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/gateways"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTransactionID() string {
	return uuid.New().String()
}

// PaymentRequest is the createPayment input
type PaymentRequest struct {
	OrganizationID uint  `json:"organization_id" binding:"required"`
	FundraiserID   *uint `json:"fundraiser_id"`
	ProjectID      *uint `json:"project_id"`
	ProjectStageID *uint `json:"project_stage_id"`

	PaymentMethod string `json:"payment_method" binding:"required"`
	Amount        int64  `json:"amount" binding:"required"`
	Currency      string `json:"currency"`

	DonorName  string `json:"donor_name"`
	DonorEmail string `json:"donor_email"`
	DonorPhone string `json:"donor_phone"`
	Message    string `json:"message"`

	IsRecurring     bool   `json:"is_recurring"`
	RecurringPeriod string `json:"recurring_period"`

	Provider          string            `json:"provider"` // explicit override
	ProviderOverrides map[string]string `json:"provider_overrides"`
}

// findActivePartnerMerchant returns the organization's active partner
// credential set, preferring one matching the requested provider.
func findActivePartnerMerchant(orgID uint, provider string) *models.PartnerMerchant {
	var partner models.PartnerMerchant
	query := config.DB.Where("organization_id = ? AND is_active = ?", orgID, true)
	if provider != "" {
		query = query.Where("provider = ?", provider)
	}
	if err := query.Order("id").First(&partner).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.LogError("Partner merchant lookup failed for org %d: %v", orgID, err)
		}
		return nil
	}
	return &partner
}

// CreatePayment is the single entry point for accepting money: it
// validates, creates the pending ledger row, resolves a gateway and
// returns the provider's redirect/QR/confirmation payload.
func CreatePayment(c *gin.Context) {
	utils.LogInfo("CreatePayment called")

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogError("Invalid payment request: %v", err)
		utils.BadRequest(c, "Invalid request. organization_id, payment_method and amount are required", err.Error())
		return
	}

	method, ok := models.GetPaymentMethod(req.PaymentMethod)
	if !ok || !method.Enabled {
		utils.LogError("Unknown payment method: %s", req.PaymentMethod)
		utils.BadRequest(c, "Unknown payment method", req.PaymentMethod)
		return
	}

	if req.DonorEmail != "" && !utils.IsValidEmail(req.DonorEmail) {
		utils.BadRequest(c, "Invalid donor email", req.DonorEmail)
		return
	}
	if req.DonorPhone != "" && !utils.IsValidPhone(req.DonorPhone) {
		utils.BadRequest(c, "Invalid donor phone number", nil)
		return
	}

	if req.IsRecurring {
		switch req.RecurringPeriod {
		case models.RecurringPeriodDaily, models.RecurringPeriodWeekly, models.RecurringPeriodMonthly:
		case "":
			req.RecurringPeriod = models.RecurringPeriodMonthly
		default:
			utils.BadRequest(c, "Unknown recurring period", req.RecurringPeriod)
			return
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = "RUB"
	}

	var org models.Organization
	if err := config.DB.First(&org, req.OrganizationID).Error; err != nil {
		utils.LogError("Organization %d not found", req.OrganizationID)
		utils.NotFound(c, "Organization not found")
		return
	}

	// Resolve the provider before touching the ledger so a resolution
	// failure leaves nothing behind.
	partner := findActivePartnerMerchant(org.ID, req.Provider)
	resolution, err := gateways.Resolve(&org, method, req.Provider, partner, gateways.Credentials(req.ProviderOverrides))
	if err != nil {
		utils.LogError("Gateway resolution failed for org %d: %v", org.ID, err)
		utils.BadRequest(c, "No usable payment provider", err.Error())
		return
	}
	utils.LogInfo("Resolved provider %s for org %d method %s", resolution.Provider, org.ID, method.Slug)

	txn, err := CreateTransaction(CreateTransactionRequest{
		OrganizationID: req.OrganizationID,
		FundraiserID:   req.FundraiserID,
		ProjectID:      req.ProjectID,
		ProjectStageID: req.ProjectStageID,
		Method:         method,
		Provider:       resolution.Provider,
		Amount:         req.Amount,
		Currency:       currency,
		Details: models.PaymentDetails{
			DonorName:       utils.SanitizeString(req.DonorName),
			DonorEmail:      req.DonorEmail,
			DonorPhone:      req.DonorPhone,
			Message:         utils.SanitizeString(req.Message),
			Description:     "Donation to " + org.Name,
			IsRecurring:     req.IsRecurring,
			RecurringPeriod: req.RecurringPeriod,
		},
	})
	if err != nil {
		if appErr := utils.GetAppError(err); appErr != nil {
			utils.Error(c, appErr.Code, appErr.Message, nil)
			return
		}
		utils.LogError("Transaction creation failed: %v", err)
		utils.InternalServerError(c, "Failed to create transaction", nil)
		return
	}
	utils.LogInfo("Created pending transaction %s", txn.TransactionID)

	result, err := resolution.Gateway.CreatePayment(c.Request.Context(), txn, resolution.Credentials)
	if err != nil {
		utils.LogError("Gateway %s create failed for %s: %v", resolution.Provider, txn.TransactionID, err)
		_, _, terr := TransitionTransaction(txn.ID, models.TransactionStatusFailed, TransitionOptions{
			Action:       "gateway_error",
			ErrorMessage: err.Error(),
		})
		if terr != nil {
			utils.LogError("Failed to mark transaction %s failed: %v", txn.TransactionID, terr)
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"success":        false,
			"transaction_id": txn.TransactionID,
			"error":          "Payment provider is unavailable, please try again",
		})
		return
	}

	if !result.Success {
		utils.LogError("Gateway %s declined %s: %s", resolution.Provider, txn.TransactionID, result.Error)
		_, _, terr := TransitionTransaction(txn.ID, models.TransactionStatusFailed, TransitionOptions{
			Action:          "gateway_declined",
			ErrorMessage:    result.Error,
			GatewayResponse: result.Raw,
		})
		if terr != nil {
			utils.LogError("Failed to mark transaction %s failed: %v", txn.TransactionID, terr)
		}
		c.JSON(http.StatusOK, gin.H{
			"success":        false,
			"transaction_id": txn.TransactionID,
			"error":          result.Error,
		})
		return
	}

	target := models.TransactionStatusPending
	if result.Status == models.TransactionStatusCompleted {
		// Sandbox-style providers complete synchronously; this path
		// materializes the donation right away.
		target = models.TransactionStatusCompleted
	}

	updated, _, err := TransitionTransaction(txn.ID, target, TransitionOptions{
		ExternalID:      result.PaymentID,
		GatewayResponse: result.Raw,
		SavedToken:      result.SavedMethodToken,
		Action:          "gateway_accepted",
	})
	if err != nil {
		utils.LogError("Failed to record gateway acknowledgement for %s: %v", txn.TransactionID, err)
		utils.InternalServerError(c, "Failed to record payment", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"transaction_id":   updated.TransactionID,
		"payment_id":       result.PaymentID,
		"redirect_url":     result.RedirectURL,
		"confirmation_url": result.ConfirmationURL,
		"qr_code":          result.QRCode,
		"deep_link":        result.DeepLink,
		"status":           updated.Status,
	})
}

// GetPaymentMethods lists the enabled payment methods with their bounds
func GetPaymentMethods(c *gin.Context) {
	methods := models.ListPaymentMethods()
	out := make([]gin.H, 0, len(methods))
	for _, m := range methods {
		out = append(out, gin.H{
			"slug":             m.Slug,
			"title":            m.Title,
			"default_provider": m.DefaultProvider,
			"min_amount":       m.MinAmount,
			"max_amount":       m.MaxAmount,
		})
	}
	utils.Success(c, "Payment methods", gin.H{"methods": out})
}
