package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validDiscount(kind Kind, value int) *Discount {
	now := time.Now()
	return &Discount{
		ID:       "disc-1",
		Code:     "SAVE10",
		Kind:     kind,
		Value:    value,
		StartsAt: now.Add(-24 * time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
		Active:   true,
	}
}

// ============================================
// IsValid Tests
// ============================================

func TestDiscount_IsValid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(d *Discount)
		want   bool
	}{
		{"active inside window", func(d *Discount) {}, true},
		{"inactive", func(d *Discount) { d.Active = false }, false},
		{"not started yet", func(d *Discount) { d.StartsAt = now.Add(time.Hour) }, false},
		{"expired", func(d *Discount) { d.EndsAt = now.Add(-time.Hour) }, false},
		{"usage limit exhausted", func(d *Discount) {
			d.UsageLimit = 5
			d.UsageCount = 5
		}, false},
		{"usage under limit", func(d *Discount) {
			d.UsageLimit = 5
			d.UsageCount = 4
		}, true},
		{"no usage limit", func(d *Discount) {
			d.UsageLimit = 0
			d.UsageCount = 1000
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDiscount(KindPercentage, 10)
			tt.mutate(d)
			assert.Equal(t, tt.want, d.IsValid(now))
		})
	}
}

// ============================================
// AmountFor Tests
// ============================================

func TestDiscount_AmountFor_Percentage(t *testing.T) {
	d := validDiscount(KindPercentage, 10)

	assert.Equal(t, 250, d.AmountFor(2500, "", ""))
	assert.Equal(t, 100, d.AmountFor(1000, "", ""))
	assert.Equal(t, 0, d.AmountFor(0, "", ""))
}

func TestDiscount_AmountFor_FixedAmount(t *testing.T) {
	d := validDiscount(KindFixedAmount, 500)

	assert.Equal(t, 500, d.AmountFor(2500, "", ""))
}

func TestDiscount_AmountFor_FixedClampedToSubtotal(t *testing.T) {
	d := validDiscount(KindFixedAmount, 500)

	// A fixed discount never exceeds the subtotal.
	assert.Equal(t, 300, d.AmountFor(300, "", ""))
}

func TestDiscount_AmountFor_MaxDiscountCap(t *testing.T) {
	d := validDiscount(KindFixedAmount, 500)
	d.MaxDiscount = 200

	assert.Equal(t, 200, d.AmountFor(2500, "", ""))
}

func TestDiscount_AmountFor_PercentageMaxDiscountCap(t *testing.T) {
	d := validDiscount(KindPercentage, 50)
	d.MaxDiscount = 400

	// 50% of 2500 is 1250, capped at 400.
	assert.Equal(t, 400, d.AmountFor(2500, "", ""))
}

func TestDiscount_AmountFor_MinPurchase(t *testing.T) {
	d := validDiscount(KindPercentage, 10)
	d.MinPurchase = 1000

	assert.Equal(t, 0, d.AmountFor(999, "", ""))
	assert.Equal(t, 100, d.AmountFor(1000, "", ""))
	assert.Equal(t, 150, d.AmountFor(1500, "", ""))
}

func TestDiscount_AmountFor_CategoryScope(t *testing.T) {
	d := validDiscount(KindPercentage, 10)
	d.Categories = []string{"seo", "ads"}

	assert.Equal(t, 100, d.AmountFor(1000, "seo", ""))
	assert.Equal(t, 0, d.AmountFor(1000, "video", ""))
	// No category supplied: scope check is skipped.
	assert.Equal(t, 100, d.AmountFor(1000, "", ""))
}

func TestDiscount_AmountFor_ProductScope(t *testing.T) {
	d := validDiscount(KindPercentage, 10)
	d.Products = []string{"prod-1"}

	assert.Equal(t, 100, d.AmountFor(1000, "", "prod-1"))
	assert.Equal(t, 0, d.AmountFor(1000, "", "prod-2"))
}

func TestDiscount_AmountFor_EmptyScopeMatchesAll(t *testing.T) {
	d := validDiscount(KindPercentage, 10)

	assert.Equal(t, 100, d.AmountFor(1000, "anything", "prod-x"))
}

func TestDiscount_AmountFor_BuyOneGetOne(t *testing.T) {
	d := validDiscount(KindBuyOneGetOne, 1)

	// Flag-only promotion: no numeric effect on the subtotal.
	assert.Equal(t, 0, d.AmountFor(2500, "", ""))
}

// ============================================
// DiscountedTotal Tests
// ============================================

func TestDiscount_DiscountedTotal(t *testing.T) {
	d := validDiscount(KindPercentage, 10)
	assert.Equal(t, 2250, d.DiscountedTotal(2500))

	fixed := validDiscount(KindFixedAmount, 5000)
	assert.Equal(t, 0, fixed.DiscountedTotal(2500))
}

// ============================================
// NormalizeCode Tests
// ============================================

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SAVE10", NormalizeCode("save10"))
	assert.Equal(t, "SAVE10", NormalizeCode("  Save10 "))
	assert.Equal(t, "", NormalizeCode("   "))
}
