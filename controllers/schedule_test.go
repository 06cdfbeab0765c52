package controllers

import (
	"testing"
	"time"

	"github.com/donatehub/donatehub/models"
	"github.com/stretchr/testify/assert"
)

func TestNextDueDateMonthly(t *testing.T) {
	lastPaid := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	due := NextDueDate(lastPaid, models.RecurringPeriodMonthly)
	assert.Equal(t, time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC), due)
}

func TestNextDueDateMonthlyIsDueAfterThirtyOneDays(t *testing.T) {
	lastPaid := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	due := NextDueDate(lastPaid, models.RecurringPeriodMonthly)

	scan := lastPaid.AddDate(0, 0, 31) // Feb 10
	assert.False(t, due.After(scan), "a monthly renewal from Jan 10 is due by Feb 10")

	early := lastPaid.AddDate(0, 0, 25)
	assert.True(t, due.After(early), "not due before the month boundary")
}

func TestNextDueDateWeekly(t *testing.T) {
	lastPaid := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	due := NextDueDate(lastPaid, models.RecurringPeriodWeekly)
	assert.Equal(t, lastPaid.AddDate(0, 0, 7), due)
}

func TestNextDueDateDaily(t *testing.T) {
	lastPaid := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	due := NextDueDate(lastPaid, models.RecurringPeriodDaily)
	assert.Equal(t, lastPaid.AddDate(0, 0, 1), due)
}

func TestNextDueDateUnknownPeriodTreatedAsMonthly(t *testing.T) {
	lastPaid := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		NextDueDate(lastPaid, models.RecurringPeriodMonthly),
		NextDueDate(lastPaid, "fortnightly"))
	assert.Equal(t,
		NextDueDate(lastPaid, models.RecurringPeriodMonthly),
		NextDueDate(lastPaid, ""))
}

func TestNextDueDateMonthEndClamping(t *testing.T) {
	// AddDate normalizes Jan 31 + 1 month to Mar 2/3; the renewal must
	// still land strictly after the last payment.
	lastPaid := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	due := NextDueDate(lastPaid, models.RecurringPeriodMonthly)
	assert.True(t, due.After(lastPaid))
	assert.True(t, due.Sub(lastPaid) >= 28*24*time.Hour)
}
