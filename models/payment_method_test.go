package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaymentMethod(t *testing.T) {
	m, ok := GetPaymentMethod("bank_card")
	require.True(t, ok)
	assert.Equal(t, "cloudpayments", m.DefaultProvider)

	_, ok = GetPaymentMethod("carrier_pigeon")
	assert.False(t, ok)
}

func TestValidateAmountBounds(t *testing.T) {
	card, _ := GetPaymentMethod("bank_card")

	assert.False(t, card.ValidateAmount(0))
	assert.False(t, card.ValidateAmount(-100))
	assert.False(t, card.ValidateAmount(card.MinAmount-1))
	assert.True(t, card.ValidateAmount(card.MinAmount))
	assert.True(t, card.ValidateAmount(card.MaxAmount))
	assert.False(t, card.ValidateAmount(card.MaxAmount+1))
}

func TestValidateAmountUnlimitedMax(t *testing.T) {
	upi, _ := GetPaymentMethod("upi")
	require.Zero(t, upi.MaxAmount)
	assert.True(t, upi.ValidateAmount(10_000_000_000))
}

func TestListPaymentMethodsOnlyEnabled(t *testing.T) {
	methods := ListPaymentMethods()
	require.NotEmpty(t, methods)
	for _, m := range methods {
		assert.True(t, m.Enabled, m.Slug)
	}
}
