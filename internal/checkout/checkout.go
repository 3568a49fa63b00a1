package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/example/storefront/internal/cart"
)

// TaxRatePercent is the fixed tax rate applied to the discounted subtotal.
const TaxRatePercent = 10

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrPaymentFailed = errors.New("payment failed")
)

// Totals is the derived money breakdown for a cart. All values are in minor
// currency units.
type Totals struct {
	Subtotal           int `json:"subtotal"`
	Discount           int `json:"discount"`
	DiscountedSubtotal int `json:"discounted_subtotal"`
	Tax                int `json:"tax"`
	Total              int `json:"total"`
}

// ComputeTotals combines a subtotal and a discount amount into the final
// payable total: tax applies to the discounted subtotal, which is floored at
// zero.
func ComputeTotals(subtotal, discountAmount int) Totals {
	discounted := subtotal - discountAmount
	if discounted < 0 {
		discounted = 0
	}
	tax := discounted * TaxRatePercent / 100
	return Totals{
		Subtotal:           subtotal,
		Discount:           discountAmount,
		DiscountedSubtotal: discounted,
		Tax:                tax,
		Total:              discounted + tax,
	}
}

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	digitsPattern = regexp.MustCompile(`^[0-9 ]+$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cvvPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// BillingDetails is the customer-supplied billing and payment form. Checks are
// presence and shape only; there is no real card validation.
type BillingDetails struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	City           string `json:"city"`
	Zip            string `json:"zip"`
	Country        string `json:"country"`
	CardNumber     string `json:"card_number"`
	CardExpiry     string `json:"card_expiry"`
	CardCVV        string `json:"card_cvv"`
	CardholderName string `json:"cardholder_name"`
}

// ValidationError names the first billing field that failed validation.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid or missing field: %s", e.Field)
}

// Validate checks every required billing field.
func (b *BillingDetails) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", b.FirstName},
		{"last_name", b.LastName},
		{"email", b.Email},
		{"phone", b.Phone},
		{"address", b.Address},
		{"city", b.City},
		{"zip", b.Zip},
		{"country", b.Country},
		{"card_number", b.CardNumber},
		{"card_expiry", b.CardExpiry},
		{"card_cvv", b.CardCVV},
		{"cardholder_name", b.CardholderName},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.field}
		}
	}

	if !emailPattern.MatchString(b.Email) {
		return &ValidationError{Field: "email"}
	}
	if !digitsPattern.MatchString(strings.TrimSpace(b.CardNumber)) {
		return &ValidationError{Field: "card_number"}
	}
	if !expiryPattern.MatchString(b.CardExpiry) {
		return &ValidationError{Field: "card_expiry"}
	}
	if !cvvPattern.MatchString(b.CardCVV) {
		return &ValidationError{Field: "card_cvv"}
	}
	return nil
}

// Order is a completed checkout.
type Order struct {
	ID           string      `json:"id"`
	Number       string      `json:"number"`
	UserID       string      `json:"user_id,omitempty"`
	CustomerName string      `json:"customer_name"`
	Email        string      `json:"email"`
	Items        []cart.Item `json:"items"`
	Totals       Totals      `json:"totals"`
	DiscountCode string      `json:"discount_code,omitempty"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}
