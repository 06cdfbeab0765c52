package utils

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// All stored amounts are integer minor units (kopecks, paise, cents).
// Provider wire formats want fixed two-decimal strings; the conversion
// lives here so no gateway adapter hand-rolls rounding.

// FormatMinorUnits renders an amount in minor units as a two-decimal
// string, e.g. 150000 -> "1500.00".
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// ParseDecimalString converts a provider decimal string back to minor
// units, e.g. "1500.00" -> 150000. Fractions beyond two decimals are
// rejected rather than rounded.
func ParseDecimalString(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %v", s, err)
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %q has sub-minor precision", s)
	}
	return minor.IntPart(), nil
}

// FormatAmountDisplay renders an amount with its currency for human
// facing responses, e.g. 150000 RUB -> "1500.00 RUB".
func FormatAmountDisplay(amount int64, currency string) string {
	return fmt.Sprintf("%s %s", FormatMinorUnits(amount), currency)
}
