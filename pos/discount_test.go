package pos_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pos-core/pos"
)

// =============================================================================
// LINE DISCOUNTS
// =============================================================================

func TestAddLineDiscount_Amount(t *testing.T) {
	c := saleCart(line("4901", "1000", "1", "01"))

	require.NoError(t, pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountAmount, Value: dec("150")}))

	assertMoney(t, "150", c.LineItems[0].LineDiscountTotal(), "applied discount")
	assertMoney(t, "850", c.LineItems[0].NetAmount(), "net after discount")
}

func TestAddLineDiscount_PercentRoundsWithTaxMode(t *testing.T) {
	// GIVEN: 10% of 105 = 10.5, floored by the line's tax master
	c := saleCart(line("4901", "105", "1", "01"))

	require.NoError(t, pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountPercent, Value: dec("10")}))

	assertMoney(t, "10.5", c.LineItems[0].Discounts[0].AmountApplied, "percent discount")
}

func TestAddLineDiscount_StacksOnBaseAmount(t *testing.T) {
	// GIVEN: Two 10% discounts on a 1000 line
	c := saleCart(line("4901", "1000", "1", "01"))

	require.NoError(t, pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountPercent, Value: dec("10")}))
	require.NoError(t, pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountPercent, Value: dec("10")}))

	// THEN: Each computes on the base 1000, not the remainder
	assertMoney(t, "200", c.LineItems[0].LineDiscountTotal(), "stacked discounts")
}

func TestAddLineDiscount_RejectsExcess(t *testing.T) {
	c := saleCart(line("4901", "1000", "1", "01"))

	err := pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountAmount, Value: dec("1001")})
	assert.ErrorIs(t, err, pos.ErrDiscountExceedsLine)

	// Stacking past the line amount is also rejected
	require.NoError(t, pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountAmount, Value: dec("800")}))
	err = pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountAmount, Value: dec("300")})
	assert.ErrorIs(t, err, pos.ErrDiscountExceedsLine)
}

func TestAddLineDiscount_RestrictedItem(t *testing.T) {
	c := saleCart(line("4905", "1000", "1", "03"))
	c.LineItems[0].IsDiscountRestricted = true

	err := pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountAmount, Value: dec("10")})
	assert.ErrorIs(t, err, pos.ErrDiscountRestricted)
}

func TestAddLineDiscount_MissingOrCancelledLine(t *testing.T) {
	c := saleCart(line("4901", "1000", "1", "01"))

	err := pos.AddLineDiscount(c, 9, pos.Discount{Type: pos.DiscountAmount, Value: dec("10")})
	assert.ErrorIs(t, err, pos.ErrLineNotFound)

	c.LineItems[0].IsCancelled = true
	err = pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountAmount, Value: dec("10")})
	assert.ErrorIs(t, err, pos.ErrLineCancelled)
}

// =============================================================================
// CART DISCOUNTS
// =============================================================================

func TestAddCartDiscount_ProportionalAllocation(t *testing.T) {
	// GIVEN: Eligible bases 600 and 400
	c := saleCart(
		line("4901", "600", "1", "01"),
		line("4902", "400", "1", "01"),
	)

	// WHEN: A 100 cart discount is added
	require.NoError(t, pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("100")}))

	// THEN: Shares split 60/40
	assertMoney(t, "60", c.LineItems[0].CartDiscountAmount, "line 1 share")
	assertMoney(t, "40", c.LineItems[1].CartDiscountAmount, "line 2 share")
}

func TestAddCartDiscount_LargestRemainderSumsExactly(t *testing.T) {
	// GIVEN: Three equal lines and a discount that does not divide evenly
	c := saleCart(
		line("4901", "100", "1", "01"),
		line("4902", "100", "1", "01"),
		line("4903", "100", "1", "02"),
	)

	require.NoError(t, pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("100")}))

	// THEN: 33.33 each plus one leftover cent, and the shares sum exactly
	total := decimal.Zero
	for _, l := range c.LineItems {
		total = total.Add(l.CartDiscountAmount)
	}
	assertMoney(t, "100", total, "allocated total")
	assertMoney(t, "33.34", c.LineItems[0].CartDiscountAmount, "first line gets the extra cent")
	assertMoney(t, "33.33", c.LineItems[1].CartDiscountAmount, "second line")
	assertMoney(t, "33.33", c.LineItems[2].CartDiscountAmount, "third line")
}

func TestAddCartDiscount_SkipsRestrictedLines(t *testing.T) {
	c := saleCart(
		line("4901", "500", "1", "01"),
		line("4905", "1000", "1", "03"),
	)
	c.LineItems[1].IsDiscountRestricted = true

	require.NoError(t, pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("100")}))

	assertMoney(t, "100", c.LineItems[0].CartDiscountAmount, "unrestricted line takes it all")
	assertMoney(t, "0", c.LineItems[1].CartDiscountAmount, "restricted line untouched")
}

func TestAddCartDiscount_RejectsExceedingEligibleBase(t *testing.T) {
	c := saleCart(line("4901", "500", "1", "01"))

	err := pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("501")})
	assert.ErrorIs(t, err, pos.ErrDiscountExceedsBalance)

	// Cumulative excess across discounts is rejected too
	require.NoError(t, pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("400")}))
	err = pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("200")})
	assert.ErrorIs(t, err, pos.ErrDiscountExceedsBalance)
}

func TestAddCartDiscount_NoEligibleLines(t *testing.T) {
	c := saleCart(line("4905", "1000", "1", "03"))
	c.LineItems[0].IsDiscountRestricted = true

	err := pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("10")})
	assert.ErrorIs(t, err, pos.ErrDiscountExceedsBalance)
}

func TestAllocateCartDiscounts_ReallocatesAfterLineChange(t *testing.T) {
	// GIVEN: A 100 discount allocated over 600/400
	c := saleCart(
		line("4901", "600", "1", "01"),
		line("4902", "400", "1", "01"),
	)
	require.NoError(t, pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountAmount, Value: dec("100")}))

	// WHEN: The second line is cancelled and the subtotal recomputed
	c.LineItems[1].IsCancelled = true
	require.NoError(t, pos.CalcSubtotal(c))

	// THEN: The full discount moves to the surviving line
	assertMoney(t, "100", c.LineItems[0].CartDiscountAmount, "reallocated share")
}

func TestAddCartDiscount_Percent(t *testing.T) {
	// GIVEN: Eligible base 1000, 10% cart discount
	c := saleCart(
		line("4901", "600", "1", "01"),
		line("4902", "400", "1", "01"),
	)

	require.NoError(t, pos.AddCartDiscount(c, pos.Discount{Type: pos.DiscountPercent, Value: dec("10")}))
	require.NoError(t, pos.CalcSubtotal(c))

	assertMoney(t, "100", c.TotalDiscountAmount, "percent cart discount")
	assertMoney(t, "900", c.Taxes[0].TargetAmount, "tax target after discount")
}
