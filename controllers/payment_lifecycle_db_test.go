package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionMaterializesDonationOnce(t *testing.T) {
	utils.TestSetup(t)
	defer utils.TestTeardown(t)

	org := utils.CreateTestOrganization(t)
	project := utils.CreateTestProject(t, org.ID)

	txn := utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		ProjectID:      &project.ID,
		Amount:         50000,
		PaymentDetails: models.PaymentDetails{DonorName: "Anna"},
	})

	updated, changed, err := TransitionTransaction(txn.ID, models.TransactionStatusCompleted, TransitionOptions{Action: "paid"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.TransactionStatusCompleted, updated.Status)
	require.NotNil(t, updated.PaidAt)

	countDonations := func() int64 {
		var n int64
		require.NoError(t, config.DB.Model(&models.Donation{}).Where("transaction_id = ?", txn.ID).Count(&n).Error)
		return n
	}
	assert.EqualValues(t, 1, countDonations())

	// Replayed transition is an idempotent refresh, not a second donation
	_, changed, err = TransitionTransaction(txn.ID, models.TransactionStatusCompleted, TransitionOptions{Action: "paid"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.EqualValues(t, 1, countDonations())

	// Even a direct re-materialization finds the existing donation
	var reloaded models.Transaction
	require.NoError(t, config.DB.First(&reloaded, txn.ID).Error)
	require.NoError(t, materializeDonation(config.DB, &reloaded))
	assert.EqualValues(t, 1, countDonations())

	// Aggregates are recomputed, not incremented, so they stay correct
	var proj models.Project
	require.NoError(t, config.DB.First(&proj, project.ID).Error)
	assert.EqualValues(t, 50000, proj.CollectedAmount)
	assert.Equal(t, 1, proj.DonationCount)

	var orgReloaded models.Organization
	require.NoError(t, config.DB.First(&orgReloaded, org.ID).Error)
	assert.EqualValues(t, 50000, orgReloaded.TotalCollected)
}

func TestCompletedRefreshKeepsPaidAt(t *testing.T) {
	utils.TestSetup(t)
	defer utils.TestTeardown(t)

	org := utils.CreateTestOrganization(t)
	txn := utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		Amount:         20000,
	})

	first, _, err := TransitionTransaction(txn.ID, models.TransactionStatusCompleted, TransitionOptions{Action: "paid"})
	require.NoError(t, err)
	require.NotNil(t, first.PaidAt)

	// A later duplicate observation merges payloads but never re-stamps
	_, changed, err := TransitionTransaction(txn.ID, models.TransactionStatusCompleted, TransitionOptions{
		Action:      "paid",
		WebhookData: models.JSONMap{"delivery": "second"},
	})
	require.NoError(t, err)
	assert.False(t, changed)

	var reloaded models.Transaction
	require.NoError(t, config.DB.First(&reloaded, txn.ID).Error)
	require.NotNil(t, reloaded.PaidAt)
	assert.True(t, reloaded.PaidAt.Equal(*first.PaidAt))
	assert.Equal(t, "second", reloaded.WebhookData["delivery"])
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	utils.TestSetup(t)
	defer utils.TestTeardown(t)
	gin.SetMode(gin.TestMode)
	t.Setenv("TEST_GATEWAY_SECRET", "whsec")

	org := utils.CreateTestOrganization(t)
	externalID := "test-ext-replay"
	txn := utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		Amount:         70000,
		ExternalID:     &externalID,
	})

	body, err := json.Marshal(gin.H{
		"external_id":    externalID,
		"transaction_id": txn.TransactionID,
		"status":         "completed",
	})
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	router := gin.New()
	router.POST("/v1/webhooks/:provider", HandleWebhook)

	deliver := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/v1/webhooks/test", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Signature", signature)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, deliver().Code)

	var afterFirst models.Transaction
	require.NoError(t, config.DB.First(&afterFirst, txn.ID).Error)
	assert.Equal(t, models.TransactionStatusCompleted, afterFirst.Status)
	require.NotNil(t, afterFirst.PaidAt)

	// The provider retries the same delivery; it must be acknowledged
	// without a second donation or a fresh paid_at.
	assert.Equal(t, http.StatusOK, deliver().Code)

	var donations int64
	require.NoError(t, config.DB.Model(&models.Donation{}).Where("transaction_id = ?", txn.ID).Count(&donations).Error)
	assert.EqualValues(t, 1, donations)

	var afterSecond models.Transaction
	require.NoError(t, config.DB.First(&afterSecond, txn.ID).Error)
	require.NotNil(t, afterSecond.PaidAt)
	assert.True(t, afterSecond.PaidAt.Equal(*afterFirst.PaidAt))
}

func TestRefundAccumulatesUnderRowLock(t *testing.T) {
	utils.TestSetup(t)
	defer utils.TestTeardown(t)

	org := utils.CreateTestOrganization(t)
	externalID := "test-ext-refund"
	txn := utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		Amount:         100000,
		ExternalID:     &externalID,
	})
	_, _, err := TransitionTransaction(txn.ID, models.TransactionStatusCompleted, TransitionOptions{Action: "paid"})
	require.NoError(t, err)

	ctx := context.Background()

	partial, refunded, err := executeRefund(ctx, txn.TransactionID, 30000)
	require.NoError(t, err)
	assert.EqualValues(t, 30000, refunded)
	assert.Equal(t, models.TransactionStatusCompleted, partial.Status)
	assert.EqualValues(t, 30000, partial.RefundedAmount)

	// The remainder is re-read under the lock, so a request above it
	// fails against the current total, not the one from request time.
	_, _, err = executeRefund(ctx, txn.TransactionID, 80000)
	require.Error(t, err)
	appErr := utils.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)

	full, refunded, err := executeRefund(ctx, txn.TransactionID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 70000, refunded)
	assert.Equal(t, models.TransactionStatusRefunded, full.Status)
	assert.EqualValues(t, 100000, full.RefundedAmount)
	require.NotNil(t, full.RefundedAt)

	_, _, err = executeRefund(ctx, txn.TransactionID, 10000)
	require.Error(t, err)
	appErr = utils.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusConflict, appErr.Code)
}

func TestSchedulerSkipsProviderWithoutTokenCharges(t *testing.T) {
	utils.TestSetup(t)
	defer utils.TestTeardown(t)

	org := utils.CreateTestOrganization(t)
	past := time.Now().AddDate(0, -2, 0)
	utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		Provider:       "razorpay",
		PaymentMethod:  "bank_card",
		Amount:         50000,
		Status:         models.TransactionStatusCompleted,
		CreatedAt:      past,
		PaidAt:         &past,
		PaymentDetails: models.PaymentDetails{
			IsRecurring:      true,
			RecurringPeriod:  models.RecurringPeriodMonthly,
			SavedMethodToken: "rzp-token-1",
		},
	})

	outcome := processSubscription(context.Background(),
		subscriptionCandidate{Token: "rzp-token-1", OrganizationID: org.ID}, time.Now(), false)
	assert.Equal(t, "skipped", outcome.Action)
	assert.Contains(t, outcome.Reason, "does not support token charges")

	var total int64
	require.NoError(t, config.DB.Model(&models.Transaction{}).Count(&total).Error)
	assert.EqualValues(t, 1, total)
}

func TestSchedulerChargesDueSubscriptionOnce(t *testing.T) {
	utils.TestSetup(t)
	defer utils.TestTeardown(t)

	org := utils.CreateTestOrganization(t)
	past := time.Now().AddDate(0, 0, -40)
	original := utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		Amount:         30000,
		Status:         models.TransactionStatusCompleted,
		CreatedAt:      past,
		PaidAt:         &past,
		PaymentDetails: models.PaymentDetails{
			DonorName:        "Boris",
			IsRecurring:      true,
			RecurringPeriod:  models.RecurringPeriodMonthly,
			SavedMethodToken: "tok-renewal-1",
		},
	})

	ctx := context.Background()
	cand := subscriptionCandidate{Token: "tok-renewal-1", OrganizationID: org.ID}

	dry := processSubscription(ctx, cand, time.Now(), true)
	assert.Equal(t, "charged", dry.Action)
	assert.Contains(t, dry.Reason, "dry run")
	var total int64
	require.NoError(t, config.DB.Model(&models.Transaction{}).Count(&total).Error)
	assert.EqualValues(t, 1, total)

	outcome := processSubscription(ctx, cand, time.Now(), false)
	require.Equal(t, "charged", outcome.Action, "reason: %s", outcome.Reason)
	require.NotEmpty(t, outcome.TransactionID)

	var renewal models.Transaction
	require.NoError(t, config.DB.Where("transaction_id = ?", outcome.TransactionID).First(&renewal).Error)
	assert.Equal(t, models.TransactionStatusCompleted, renewal.Status)
	assert.EqualValues(t, 30000, renewal.Amount)
	assert.Equal(t, original.TransactionID, renewal.PaymentDetails.OriginalTransactionID)
	assert.Equal(t, "tok-renewal-1", renewal.PaymentDetails.SavedMethodToken)

	var donations int64
	require.NoError(t, config.DB.Model(&models.Donation{}).Where("transaction_id = ?", renewal.ID).Count(&donations).Error)
	assert.EqualValues(t, 1, donations)

	// The renewal just paid, so the subscription is no longer due
	second := processSubscription(ctx, cand, time.Now(), false)
	assert.Equal(t, "skipped", second.Action)
}

func TestSchedulerSkipsWhenRenewalPending(t *testing.T) {
	utils.TestSetup(t)
	defer utils.TestTeardown(t)

	org := utils.CreateTestOrganization(t)
	past := time.Now().AddDate(0, 0, -40)
	utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		Amount:         30000,
		Status:         models.TransactionStatusCompleted,
		CreatedAt:      past,
		PaidAt:         &past,
		PaymentDetails: models.PaymentDetails{
			IsRecurring:      true,
			RecurringPeriod:  models.RecurringPeriodMonthly,
			SavedMethodToken: "tok-pending-1",
		},
	})
	// A renewal is already in flight; the batch must not charge again.
	utils.CreateTestTransaction(t, &models.Transaction{
		OrganizationID: org.ID,
		Amount:         30000,
		Status:         models.TransactionStatusPending,
		PaymentDetails: models.PaymentDetails{
			IsRecurring:      true,
			RecurringPeriod:  models.RecurringPeriodMonthly,
			SavedMethodToken: "tok-pending-1",
		},
	})

	outcome := processSubscription(context.Background(),
		subscriptionCandidate{Token: "tok-pending-1", OrganizationID: org.ID}, time.Now(), false)
	assert.Equal(t, "skipped", outcome.Action)
	assert.Contains(t, outcome.Reason, "renewal already exists")

	var total int64
	require.NoError(t, config.DB.Model(&models.Transaction{}).Count(&total).Error)
	assert.EqualValues(t, 2, total)
}
