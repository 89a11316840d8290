/*
discount.go - Line and cart discount application

PURPOSE:
  Implements the two discount layers:
  - Line discounts apply to a single line, in order of addition.
  - Cart (subtotal) discounts are recorded on the cart and allocated
    across eligible lines in proportion to each line's post-line-discount
    amount, using largest-remainder rounding so the allocated shares sum
    to the discount exactly.

ROUNDING:
  Percent line discounts round with the line's tax-master mode (floor when
  the tax code is unknown). Cart discount shares are floored to the cent
  and the remainder distributed by largest fractional part.

INVARIANTS:
  - No line amount goes below zero after all discounts
  - Discount-restricted lines accept no line discount and are excluded
    from cart discount allocation
  - Allocation recomputes from scratch on any line mutation

SEE ALSO:
  - tax.go: CalcSubtotal re-allocates before computing taxes
*/
package pos

import (
	"sort"

	"github.com/shopspring/decimal"
)

var oneCent = decimal.New(1, -2)
var hundred = decimal.NewFromInt(100)

// roundingModeFor returns the rounding mode configured for the line's tax
// code, defaulting to floor.
func roundingModeFor(c *Cart, taxCode string) RoundingMode {
	if m, ok := c.Masters.Taxes[taxCode]; ok && m.Rounding != "" {
		return m.Rounding
	}
	return RoundFloor
}

// discountAmount materializes a discount against a base amount.
func discountAmount(d Discount, base decimal.Decimal, mode RoundingMode) decimal.Decimal {
	if d.Type == DiscountPercent {
		return Round(base.Mul(d.Value).Div(hundred), mode)
	}
	return d.Value
}

// AddLineDiscount applies a discount to a single line. Discounts stack in
// order of addition; each percent discount is computed on the base line
// amount, not the discounted remainder.
func AddLineDiscount(c *Cart, lineNo int, d Discount) error {
	line := c.FindLine(lineNo)
	if line == nil {
		return ErrLineNotFound.WithDetail("line %d", lineNo)
	}
	if line.IsCancelled {
		return ErrLineCancelled.WithDetail("line %d", lineNo)
	}
	if line.IsDiscountRestricted {
		return ErrDiscountRestricted.WithDetail("item %s", line.ItemCode)
	}
	if !d.Value.IsPositive() {
		return ErrInvalidRequest.WithDetail("discount value must be positive")
	}

	applied := discountAmount(d, line.Amount, roundingModeFor(c, line.TaxCode))
	if line.Amount.Sub(line.LineDiscountTotal()).Sub(applied).IsNegative() {
		return ErrDiscountExceedsLine.WithDetail(
			"line %d amount %s, discount %s", lineNo, line.Amount, applied)
	}

	d.AmountApplied = applied
	line.Discounts = append(line.Discounts, d)
	return nil
}

// AddCartDiscount records a subtotal discount on the cart. The discount is
// validated against the current eligible base; actual per-line shares are
// materialized by AllocateCartDiscounts.
func AddCartDiscount(c *Cart, d Discount) error {
	if !d.Value.IsPositive() {
		return ErrInvalidRequest.WithDetail("discount value must be positive")
	}

	base := eligibleBase(c)
	existing := decimal.Zero
	for _, sd := range c.SubtotalDiscounts {
		existing = existing.Add(discountAmount(sd, base, RoundFloor))
	}
	amount := discountAmount(d, base, RoundFloor)
	if existing.Add(amount).GreaterThan(base) {
		return ErrDiscountExceedsBalance.WithDetail(
			"eligible base %s, total discount %s", base, existing.Add(amount))
	}

	c.SubtotalDiscounts = append(c.SubtotalDiscounts, d)
	return AllocateCartDiscounts(c)
}

// eligibleBase sums the post-line-discount amounts of lines that can carry
// a cart discount share.
func eligibleBase(c *Cart) decimal.Decimal {
	base := decimal.Zero
	for _, l := range c.ActiveLines() {
		if l.IsDiscountRestricted {
			continue
		}
		base = base.Add(l.Amount.Sub(l.LineDiscountTotal()))
	}
	return base
}

// AllocateCartDiscounts recomputes every line's cart-discount share from
// scratch. Each recorded discount allocates proportionally over the
// eligible base with largest-remainder rounding, so the shares sum to the
// discount to the cent.
func AllocateCartDiscounts(c *Cart) error {
	var eligible []discountShare
	base := decimal.Zero
	for _, l := range c.ActiveLines() {
		l.CartDiscountAmount = decimal.Zero
		if l.IsDiscountRestricted {
			continue
		}
		b := l.Amount.Sub(l.LineDiscountTotal())
		eligible = append(eligible, discountShare{line: l, base: b})
		base = base.Add(b)
	}

	if len(c.SubtotalDiscounts) == 0 {
		return nil
	}
	if len(eligible) == 0 || !base.IsPositive() {
		return ErrDiscountExceedsBalance.WithDetail("no eligible lines for cart discount")
	}

	for i := range c.SubtotalDiscounts {
		d := &c.SubtotalDiscounts[i]
		amount := discountAmount(*d, base, RoundFloor)
		if amount.GreaterThan(base) {
			return ErrDiscountExceedsBalance.WithDetail(
				"eligible base %s, discount %s", base, amount)
		}
		d.AmountApplied = amount
		allocateLargestRemainder(eligible, base, amount)
	}
	return nil
}

// discountShare pairs a line with its allocation base.
type discountShare struct {
	line *LineItem
	base decimal.Decimal
}

// allocateLargestRemainder distributes amount over the eligible lines in
// proportion to their base, flooring each share to the cent and handing
// the leftover cents to the largest fractional remainders first.
func allocateLargestRemainder(eligible []discountShare, base, amount decimal.Decimal) {
	type alloc struct {
		idx       int
		floored   decimal.Decimal
		remainder decimal.Decimal
	}

	allocs := make([]alloc, len(eligible))
	distributed := decimal.Zero
	for i, e := range eligible {
		raw := amount.Mul(e.base).Div(base)
		floored := raw.RoundFloor(2)
		allocs[i] = alloc{idx: i, floored: floored, remainder: raw.Sub(floored)}
		distributed = distributed.Add(floored)
	}

	// Hand out the missing cents by descending fractional remainder,
	// breaking ties by line order.
	leftover := amount.Sub(distributed)
	sort.SliceStable(allocs, func(i, j int) bool {
		return allocs[i].remainder.GreaterThan(allocs[j].remainder)
	})
	for i := 0; leftover.IsPositive() && i < len(allocs); i++ {
		allocs[i].floored = allocs[i].floored.Add(oneCent)
		leftover = leftover.Sub(oneCent)
	}

	for _, a := range allocs {
		l := eligible[a.idx].line
		l.CartDiscountAmount = l.CartDiscountAmount.Add(a.floored)
	}
}
