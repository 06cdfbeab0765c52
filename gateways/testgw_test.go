package gateways

import (
	"context"
	"testing"

	"github.com/donatehub/donatehub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxCreatePaymentAutoCompletes(t *testing.T) {
	g := &TestGateway{}
	txn := &models.Transaction{Amount: 1000, Currency: "RUB"}

	result, err := g.CreatePayment(context.Background(), txn, Credentials{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.TransactionStatusCompleted, result.Status)
	assert.NotEmpty(t, result.PaymentID)
	assert.Empty(t, result.SavedMethodToken, "no token unless recurring")
}

func TestSandboxCreatePaymentIssuesTokenForRecurring(t *testing.T) {
	g := &TestGateway{}
	txn := &models.Transaction{
		Amount: 1000,
		PaymentDetails: models.PaymentDetails{
			IsRecurring:     true,
			RecurringPeriod: models.RecurringPeriodMonthly,
		},
	}

	result, err := g.CreatePayment(context.Background(), txn, Credentials{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.SavedMethodToken)
}

func TestSandboxChargeTokenSucceeds(t *testing.T) {
	g := &TestGateway{}
	result, err := g.ChargeToken(context.Background(), &models.Transaction{Amount: 1000}, "test-token-1", Credentials{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, models.TransactionStatusCompleted, result.Status)
}

func TestRegistryHasAllProviders(t *testing.T) {
	for _, name := range []string{"cloudpayments", "tinkoff", "razorpay", "test"} {
		g, ok := Get(name)
		require.True(t, ok, name)
		assert.Equal(t, name, g.Name())
	}

	_, ok := Get("stripe")
	assert.False(t, ok)
}

func TestRegistryTokenChargeCapability(t *testing.T) {
	cases := map[string]bool{
		"cloudpayments": true,
		"tinkoff":       true,
		"razorpay":      false,
		"test":          true,
	}
	for name, want := range cases {
		g, ok := Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, g.SupportsTokenCharge(), name)
	}
}
