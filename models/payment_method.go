package models

// PaymentMethod is a statically configured way to pay. Methods are not
// stored in the database; the registry below is the source of truth for
// amount bounds and the default provider per method.
type PaymentMethod struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	DefaultProvider string `json:"default_provider"`
	MinAmount       int64  `json:"min_amount"` // minor units
	MaxAmount       int64  `json:"max_amount"` // minor units, 0 = unlimited
	Enabled         bool   `json:"enabled"`
}

var paymentMethods = map[string]PaymentMethod{
	"bank_card": {
		Slug:            "bank_card",
		Title:           "Bank card",
		DefaultProvider: "cloudpayments",
		MinAmount:       1000,      // 10.00
		MaxAmount:       100000000, // 1 000 000.00
		Enabled:         true,
	},
	"sbp": {
		Slug:            "sbp",
		Title:           "Faster Payments (QR)",
		DefaultProvider: "tinkoff",
		MinAmount:       1000,
		MaxAmount:       60000000,
		Enabled:         true,
	},
	"upi": {
		Slug:            "upi",
		Title:           "UPI / Netbanking",
		DefaultProvider: "razorpay",
		MinAmount:       100,
		MaxAmount:       0,
		Enabled:         true,
	},
	"test": {
		Slug:            "test",
		Title:           "Sandbox",
		DefaultProvider: "test",
		MinAmount:       1,
		MaxAmount:       0,
		Enabled:         true,
	},
}

// GetPaymentMethod looks up a method by slug
func GetPaymentMethod(slug string) (PaymentMethod, bool) {
	m, ok := paymentMethods[slug]
	return m, ok
}

// ListPaymentMethods returns all enabled methods
func ListPaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, 0, len(paymentMethods))
	for _, m := range paymentMethods {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// ValidateAmount checks an amount against the method's configured bounds
func (m PaymentMethod) ValidateAmount(amount int64) bool {
	if amount <= 0 {
		return false
	}
	if amount < m.MinAmount {
		return false
	}
	if m.MaxAmount > 0 && amount > m.MaxAmount {
		return false
	}
	return true
}
