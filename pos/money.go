/*
money.go - Monetary rounding and identifier helpers

PURPOSE:
  Centralizes the rounding policy applied to tax and percent-discount
  computation, and the conversions between decimal currency amounts and
  the integer minor units used on the payment wire.

ROUNDING:
  Three modes, selected per tax code by the tax master:
  - floor (default): round toward zero at 2 decimal places
  - half-up: standard commercial rounding
  - ceil: round away from zero

  Voids and returns carry negative amounts; rounding is defined on the
  magnitude so a reversal always mirrors the original to the cent.

SEE ALSO:
  - tax.go: Applies rounding to per-tax-group amounts
  - discount.go: Applies rounding to percent discounts
*/
package pos

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROUNDING
// =============================================================================

type RoundingMode string

const (
	RoundFloor  RoundingMode = "floor"
	RoundHalfUp RoundingMode = "halfUp"
	RoundCeil   RoundingMode = "ceil"
)

// moneyScale is the number of decimal places in the currency minor unit.
const moneyScale = 2

var one = decimal.NewFromInt(1)

// Round rounds d to the currency scale using the given mode. The mode acts
// on the magnitude: -10.005 floors to -10.00, ceils to -10.01.
func Round(d decimal.Decimal, mode RoundingMode) decimal.Decimal {
	neg := d.IsNegative()
	abs := d.Abs()

	var r decimal.Decimal
	switch mode {
	case RoundHalfUp:
		r = abs.Round(moneyScale)
	case RoundCeil:
		r = abs.RoundCeil(moneyScale)
	default: // RoundFloor
		r = abs.RoundFloor(moneyScale)
	}

	if neg {
		return r.Neg()
	}
	return r
}

// FromMinorUnits converts integer minor units (e.g. cents) to a decimal
// currency amount: 11000 -> 110.00.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -moneyScale)
}

// ToMinorUnits converts a decimal currency amount to integer minor units.
// The amount must already be rounded to the currency scale.
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(moneyScale).IntPart()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// TerminalID builds the canonical {tenant}-{store}-{terminal} identifier.
func TerminalID(tenantID, storeCode string, terminalNo int) string {
	return fmt.Sprintf("%s-%s-%d", tenantID, storeCode, terminalNo)
}
