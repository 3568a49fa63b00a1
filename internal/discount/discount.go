package discount

import (
	"errors"
	"slices"
	"strings"
	"time"
)

var (
	ErrInvalidKind  = errors.New("unknown discount kind")
	ErrInvalidCode  = errors.New("invalid or expired discount code")
	ErrMissingCode  = errors.New("code is required")
	ErrInvalidValue = errors.New("discount value out of range")
)

// Kind is the closed set of discount calculation strategies.
type Kind string

const (
	KindPercentage   Kind = "percentage"
	KindFixedAmount  Kind = "fixed_amount"
	KindBuyOneGetOne Kind = "buy_one_get_one"
)

// Known reports whether k is one of the supported kinds.
func (k Kind) Known() bool {
	switch k {
	case KindPercentage, KindFixedAmount, KindBuyOneGetOne:
		return true
	}
	return false
}

// Discount is a promotional rule from the catalog. All monetary fields are in
// minor currency units. Zero values of MinPurchase, MaxDiscount and UsageLimit
// mean "no bound".
type Discount struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Kind        Kind      `json:"kind"`
	Value       int       `json:"value"`
	MinPurchase int       `json:"min_purchase,omitempty"`
	MaxDiscount int       `json:"max_discount,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Active      bool      `json:"active"`
	UsageLimit  int       `json:"usage_limit,omitempty"`
	UsageCount  int       `json:"usage_count"`
	Categories  []string  `json:"categories,omitempty"`
	Products    []string  `json:"products,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeCode is the canonical form used for storage and lookup. Codes are
// case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid reports whether the discount can be applied at the given time:
// it must be active, inside its date window, and under its usage limit.
func (d *Discount) IsValid(now time.Time) bool {
	if !d.Active {
		return false
	}
	if now.Before(d.StartsAt) || now.After(d.EndsAt) {
		return false
	}
	if d.UsageLimit > 0 && d.UsageCount >= d.UsageLimit {
		return false
	}
	return true
}

// AppliesTo checks the category/product scoping. An empty scope set matches
// everything; a supplied id must be present in a non-empty set.
func (d *Discount) AppliesTo(categoryID, productID string) bool {
	if categoryID != "" && len(d.Categories) > 0 && !slices.Contains(d.Categories, categoryID) {
		return false
	}
	if productID != "" && len(d.Products) > 0 && !slices.Contains(d.Products, productID) {
		return false
	}
	return true
}

// AmountFor computes the discount amount for a subtotal, optionally scoped to
// a category or product. Returns 0 when the subtotal is under the minimum
// purchase or the scope does not match. The result is clamped to MaxDiscount
// when that bound is set, and never exceeds the subtotal.
func (d *Discount) AmountFor(subtotal int, categoryID, productID string) int {
	if subtotal <= 0 {
		return 0
	}
	if d.MinPurchase > 0 && subtotal < d.MinPurchase {
		return 0
	}
	if !d.AppliesTo(categoryID, productID) {
		return 0
	}

	var amount int
	switch d.Kind {
	case KindPercentage:
		amount = subtotal * d.Value / 100
	case KindFixedAmount:
		amount = d.Value
	case KindBuyOneGetOne:
		// Flag-only promotion: fulfilment adds the free unit, the price
		// is not reduced.
		amount = 0
	default:
		amount = 0
	}

	if d.MaxDiscount > 0 && amount > d.MaxDiscount {
		amount = d.MaxDiscount
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}

// DiscountedTotal returns the subtotal after applying the discount, floored
// at zero.
func (d *Discount) DiscountedTotal(subtotal int) int {
	total := subtotal - d.AmountFor(subtotal, "", "")
	if total < 0 {
		return 0
	}
	return total
}

// validate checks catalog-management input before it reaches the store.
func (d *Discount) validate() error {
	if NormalizeCode(d.Code) == "" {
		return ErrMissingCode
	}
	if !d.Kind.Known() {
		return ErrInvalidKind
	}
	if d.Value < 0 {
		return ErrInvalidValue
	}
	// BOGO is flag-only; every other kind needs a positive value.
	if d.Kind != KindBuyOneGetOne && d.Value == 0 {
		return ErrInvalidValue
	}
	if d.Kind == KindPercentage && d.Value > 100 {
		return ErrInvalidValue
	}
	return nil
}
