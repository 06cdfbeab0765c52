package controllers

import (
	"testing"

	"github.com/donatehub/donatehub/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRefundAmountFullByDefault(t *testing.T) {
	txn := &models.Transaction{Amount: 150000}

	amount, err := resolveRefundAmount(txn, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), amount)
}

func TestResolveRefundAmountPartial(t *testing.T) {
	txn := &models.Transaction{Amount: 150000}

	amount, err := resolveRefundAmount(txn, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)
}

func TestResolveRefundAmountAccountsForPriorRefunds(t *testing.T) {
	txn := &models.Transaction{Amount: 150000, RefundedAmount: 100000}

	// Default refunds only the remainder
	amount, err := resolveRefundAmount(txn, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)

	// Requesting past the remainder is rejected
	_, err = resolveRefundAmount(txn, 50001)
	assert.Error(t, err)

	// Exactly the remainder is fine
	amount, err = resolveRefundAmount(txn, 50000)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)
}

func TestResolveRefundAmountRejectsNegative(t *testing.T) {
	txn := &models.Transaction{Amount: 150000}
	_, err := resolveRefundAmount(txn, -1)
	assert.Error(t, err)
}

func TestResolveRefundAmountNothingLeft(t *testing.T) {
	txn := &models.Transaction{Amount: 150000, RefundedAmount: 150000}
	_, err := resolveRefundAmount(txn, 0)
	assert.Error(t, err)
}

func TestNewTransactionIDIsOpaque(t *testing.T) {
	first := newTransactionID()
	second := newTransactionID()

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 36, "uuid format")
}
