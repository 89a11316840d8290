/*
tax.go - Subtotal computation: discounts, tax groups, totals

PURPOSE:
  CalcSubtotal recomputes every derived value on the cart:
    1. Line net = unitPrice * quantity - line discounts
    2. Cart discount allocation across eligible lines
    3. Per-tax-code target amounts from assigned lines
    4. Tax per type:
         exclusive: round(target * rate)          added to total
         inclusive: round(target * rate/(1+rate)) included in line amount
         exempt:    zero
    5. totalAmount = sum(line net) + sum(exclusive tax)
       balanceAmount = totalAmount - payments

ROUNDING:
  The rounding mode comes from the tax master for each tax code; floor is
  the default. Per-line tax amounts are informational; the per-group tax
  line is authoritative and the two agree within one minor unit per line.

SEE ALSO:
  - discount.go: Allocation invoked in step 2
  - payment.go: Consumes balanceAmount
*/
package pos

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CalcSubtotal recomputes all derived monetary values on the cart. It is
// invoked by the CALC_SUBTOTAL event and re-run after any line mutation in
// the Paying-bound path.
func CalcSubtotal(c *Cart) error {
	// Step 1: refresh base amounts.
	for _, l := range c.ActiveLines() {
		l.Recompute()
	}

	// Step 2: re-allocate cart discounts over the fresh amounts.
	if err := AllocateCartDiscounts(c); err != nil {
		return err
	}

	// Step 3: group active lines by tax code.
	type group struct {
		master   TaxMaster
		amount   decimal.Decimal
		quantity decimal.Decimal
	}
	groups := make(map[string]*group)
	var codes []string

	subtotal := decimal.Zero
	lineNet := decimal.Zero
	lineDiscounts := decimal.Zero

	for _, l := range c.ActiveLines() {
		net := l.NetAmount()
		if net.IsNegative() {
			return ErrDiscountExceedsLine.WithDetail("line %d net %s", l.LineNo, net)
		}
		subtotal = subtotal.Add(l.Amount.Sub(l.LineDiscountTotal()))
		lineNet = lineNet.Add(net)
		lineDiscounts = lineDiscounts.Add(l.LineDiscountTotal())

		master, ok := c.Masters.Taxes[l.TaxCode]
		if !ok {
			master = TaxMaster{TaxCode: l.TaxCode, TaxType: TaxExempt, Rounding: RoundFloor}
		}
		g, ok := groups[l.TaxCode]
		if !ok {
			g = &group{master: master}
			groups[l.TaxCode] = g
			codes = append(codes, l.TaxCode)
		}
		g.amount = g.amount.Add(net)
		g.quantity = g.quantity.Add(l.Quantity)
	}
	sort.Strings(codes)

	// Step 4: per-group tax.
	c.Taxes = c.Taxes[:0]
	totalTax := decimal.Zero
	exclusiveTax := decimal.Zero

	for _, code := range codes {
		g := groups[code]
		tax := taxFor(g.master, g.amount)
		c.Taxes = append(c.Taxes, TaxLine{
			TaxCode:        g.master.TaxCode,
			TaxName:        g.master.TaxName,
			TaxType:        g.master.TaxType,
			Rate:           g.master.Rate,
			TargetAmount:   g.amount,
			TargetQuantity: g.quantity,
			TaxAmount:      tax,
		})
		totalTax = totalTax.Add(tax)
		if g.master.TaxType == TaxExclusive {
			exclusiveTax = exclusiveTax.Add(tax)
		}
	}

	// Informational per-line tax.
	for _, l := range c.ActiveLines() {
		if m, ok := c.Masters.Taxes[l.TaxCode]; ok {
			l.TaxAmount = taxFor(m, l.NetAmount())
		} else {
			l.TaxAmount = decimal.Zero
		}
	}

	// Step 5: totals.
	cartDiscounts := decimal.Zero
	for _, d := range c.SubtotalDiscounts {
		cartDiscounts = cartDiscounts.Add(d.AmountApplied)
	}

	c.SubtotalAmount = subtotal
	c.TotalDiscountAmount = lineDiscounts.Add(cartDiscounts)
	c.TotalTaxAmount = totalTax
	c.TotalAmount = lineNet.Add(exclusiveTax)
	c.BalanceAmount = c.TotalAmount.Sub(c.PaidAmount())
	return nil
}

// taxFor computes the tax amount for a target amount under one tax master.
func taxFor(m TaxMaster, target decimal.Decimal) decimal.Decimal {
	rate := m.Rate.Div(hundred)
	switch m.TaxType {
	case TaxExclusive:
		return Round(target.Mul(rate), m.Rounding)
	case TaxInclusive:
		return Round(target.Mul(rate).Div(decimal.NewFromInt(1).Add(rate)), m.Rounding)
	default:
		return decimal.Zero
	}
}
