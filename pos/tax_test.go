package pos_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pos-core/pos"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// demoMasters mirrors the seeded catalog: 01 exclusive 10%, 02 inclusive
// 8%, 03 exempt, all floored.
func demoMasters() pos.MastersSnapshot {
	return pos.MastersSnapshot{
		Taxes: map[string]pos.TaxMaster{
			"01": {TaxCode: "01", TaxName: "Standard 10%", TaxType: pos.TaxExclusive, Rate: dec("10"), Rounding: pos.RoundFloor},
			"02": {TaxCode: "02", TaxName: "Reduced 8%", TaxType: pos.TaxInclusive, Rate: dec("8"), Rounding: pos.RoundFloor},
			"03": {TaxCode: "03", TaxName: "Exempt", TaxType: pos.TaxExempt, Rate: decimal.Zero, Rounding: pos.RoundFloor},
		},
	}
}

func saleCart(lines ...pos.LineItem) *pos.Cart {
	c := &pos.Cart{
		CartID:          "cart-1",
		TenantID:        "demo",
		StoreCode:       "0001",
		TerminalNo:      1,
		Status:          pos.StatusEnteringItem,
		TransactionType: pos.TransactionTypeSale,
		Masters:         demoMasters(),
	}
	for i := range lines {
		lines[i].LineNo = i + 1
		lines[i].Recompute()
	}
	c.LineItems = lines
	return c
}

func line(itemCode, unitPrice, qty, taxCode string) pos.LineItem {
	return pos.LineItem{
		ItemCode:  itemCode,
		UnitPrice: dec(unitPrice),
		Quantity:  dec(qty),
		TaxCode:   taxCode,
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

// =============================================================================
// SUBTOTAL
// =============================================================================

func TestCalcSubtotal_ExclusiveTax(t *testing.T) {
	// GIVEN: One line of 1000 under the 10% exclusive code
	c := saleCart(line("4901", "1000", "1", "01"))

	// WHEN: The subtotal is computed
	require.NoError(t, pos.CalcSubtotal(c))

	// THEN: Tax is added on top
	assertMoney(t, "1000", c.SubtotalAmount, "subtotal")
	assertMoney(t, "100", c.TotalTaxAmount, "tax")
	assertMoney(t, "1100", c.TotalAmount, "total")
	assertMoney(t, "1100", c.BalanceAmount, "balance")
}

func TestCalcSubtotal_InclusiveTax(t *testing.T) {
	// GIVEN: One line of 108 under the 8% inclusive code
	c := saleCart(line("4903", "108", "1", "02"))

	require.NoError(t, pos.CalcSubtotal(c))

	// THEN: Tax is carved out, not added: 108 * 8/108 = 8
	assertMoney(t, "108", c.SubtotalAmount, "subtotal")
	assertMoney(t, "8", c.TotalTaxAmount, "tax")
	assertMoney(t, "108", c.TotalAmount, "total includes the tax")
}

func TestCalcSubtotal_UnknownTaxCodeIsExempt(t *testing.T) {
	// GIVEN: A line whose tax code has no master
	c := saleCart(line("9999", "500", "1", "99"))

	require.NoError(t, pos.CalcSubtotal(c))

	assertMoney(t, "0", c.TotalTaxAmount, "tax")
	assertMoney(t, "500", c.TotalAmount, "total")
	require.Len(t, c.Taxes, 1)
	assert.Equal(t, pos.TaxExempt, c.Taxes[0].TaxType)
}

func TestCalcSubtotal_GroupsByTaxCode(t *testing.T) {
	// GIVEN: Two exclusive lines, one inclusive, one exempt
	c := saleCart(
		line("4901", "1200", "1", "01"),
		line("4902", "800", "1", "01"),
		line("4903", "150", "2", "02"),
		line("4905", "1000", "1", "03"),
	)

	require.NoError(t, pos.CalcSubtotal(c))

	// THEN: Three tax groups, ordered by code
	require.Len(t, c.Taxes, 3)
	assert.Equal(t, "01", c.Taxes[0].TaxCode)
	assertMoney(t, "2000", c.Taxes[0].TargetAmount, "exclusive target")
	assertMoney(t, "200", c.Taxes[0].TaxAmount, "exclusive tax")

	assert.Equal(t, "02", c.Taxes[1].TaxCode)
	assertMoney(t, "300", c.Taxes[1].TargetAmount, "inclusive target")
	// 300 * 8/108 = 22.22...; floored
	assertMoney(t, "22.22", c.Taxes[1].TaxAmount, "inclusive tax")

	assert.Equal(t, "03", c.Taxes[2].TaxCode)
	assertMoney(t, "0", c.Taxes[2].TaxAmount, "exempt tax")

	// Total = line net (3300) + exclusive tax only
	assertMoney(t, "3300", c.SubtotalAmount, "subtotal")
	assertMoney(t, "3500", c.TotalAmount, "total")
	assertMoney(t, "222.22", c.TotalTaxAmount, "total tax")
}

func TestCalcSubtotal_CancelledLinesAreExcluded(t *testing.T) {
	c := saleCart(
		line("4901", "1000", "1", "01"),
		line("4902", "800", "1", "01"),
	)
	c.LineItems[1].IsCancelled = true

	require.NoError(t, pos.CalcSubtotal(c))

	assertMoney(t, "1000", c.SubtotalAmount, "subtotal")
	assertMoney(t, "1100", c.TotalAmount, "total")
}

func TestCalcSubtotal_TaxAfterDiscounts(t *testing.T) {
	// GIVEN: A 1000 line with a 100 line discount under exclusive 10%
	c := saleCart(line("4901", "1000", "1", "01"))
	require.NoError(t, pos.AddLineDiscount(c, 1, pos.Discount{Type: pos.DiscountAmount, Value: dec("100")}))

	require.NoError(t, pos.CalcSubtotal(c))

	// THEN: Tax applies to the discounted amount
	assertMoney(t, "900", c.SubtotalAmount, "subtotal after discount")
	assertMoney(t, "90", c.TotalTaxAmount, "tax on 900")
	assertMoney(t, "990", c.TotalAmount, "total")
	assertMoney(t, "100", c.TotalDiscountAmount, "discount total")
}

func TestCalcSubtotal_RoundingModes(t *testing.T) {
	// GIVEN: 10% on 10.05 -> raw tax 1.005
	cases := []struct {
		mode pos.RoundingMode
		want string
	}{
		{pos.RoundFloor, "1"},
		{pos.RoundHalfUp, "1.01"},
		{pos.RoundCeil, "1.01"},
	}

	for _, tc := range cases {
		c := saleCart(line("4901", "10.05", "1", "01"))
		m := c.Masters.Taxes["01"]
		m.Rounding = tc.mode
		c.Masters.Taxes["01"] = m

		require.NoError(t, pos.CalcSubtotal(c))
		assertMoney(t, tc.want, c.TotalTaxAmount, string(tc.mode))
	}
}

func TestCalcSubtotal_BalanceReflectsPayments(t *testing.T) {
	c := saleCart(line("4901", "1000", "1", "01"))
	require.NoError(t, pos.CalcSubtotal(c))

	reg := pos.DefaultPaymentRegistry()
	cash, err := reg.Lookup("01")
	require.NoError(t, err)
	require.NoError(t, cash.Pay(c, pos.PaymentRequest{PaymentCode: "01", Amount: dec("600")}))

	require.NoError(t, pos.CalcSubtotal(c))
	assertMoney(t, "500", c.BalanceAmount, "balance after partial payment")
}
