/*
payment.go - Payment strategy registry and built-in strategies

PURPOSE:
  Dispatches ADD_PAYMENT to a strategy selected by payment code. The
  original design loaded strategies from a runtime manifest; here they are
  compiled in and activated through a registry, so new payment methods
  ship as new registered strategies and operators control the active set
  via configuration.

STRATEGY CONTRACT:
  Pay:    validate the tender and append a Payment to the cart
  Refund: flag a prior payment refunded and restore the balance

BUILT-INS:
  Cash ("01"):     deposit >= amount, overpayment becomes change
  Cashless ("11"): deposit must equal amount, no change

INVARIANTS (after every Pay):
  - sum(payments.amount) <= totalAmount  (no balance overshoot)
  - balanceAmount = totalAmount - sum(payments.amount)
  - changeAmount accumulates from cash-type tenders only

  Cash-type classification is the strategy's CashType() flag, not a
  payment-code prefix. The registry is the single source of truth.

SEE ALSO:
  - cart/service.go: ADD_PAYMENT and BILL flow
*/
package pos

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PaymentRequest carries a validated tender.
type PaymentRequest struct {
	PaymentCode   string
	Amount        decimal.Decimal
	DepositAmount decimal.Decimal
	Detail        string
}

// PaymentStrategy handles one family of payment codes.
type PaymentStrategy interface {
	// Description is the human label recorded on the payment.
	Description() string

	// CashType reports whether this tender produces change.
	CashType() bool

	// Pay validates the tender and appends a Payment to the cart.
	Pay(c *Cart, req PaymentRequest) error

	// Refund flags the payment at index refunded and restores balance.
	Refund(c *Cart, paymentNo int) error
}

// =============================================================================
// REGISTRY
// =============================================================================

// PaymentRegistry maps payment codes to strategies. Registration happens
// at composition time; lookups during a sale are read-only.
type PaymentRegistry struct {
	strategies map[string]PaymentStrategy
}

func NewPaymentRegistry() *PaymentRegistry {
	return &PaymentRegistry{strategies: make(map[string]PaymentStrategy)}
}

// DefaultPaymentRegistry returns a registry with the built-in strategies.
func DefaultPaymentRegistry() *PaymentRegistry {
	r := NewPaymentRegistry()
	r.Register("01", &CashStrategy{})
	r.Register("11", &CashlessStrategy{})
	return r
}

func (r *PaymentRegistry) Register(code string, s PaymentStrategy) {
	r.strategies[code] = s
}

func (r *PaymentRegistry) Lookup(code string) (PaymentStrategy, error) {
	s, ok := r.strategies[code]
	if !ok {
		return nil, ErrPaymentCodeUnknown.WithDetail("payment code %q", code)
	}
	return s, nil
}

// Codes returns the registered payment codes, sorted.
func (r *PaymentRegistry) Codes() []string {
	codes := make([]string, 0, len(r.strategies))
	for c := range r.strategies {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// =============================================================================
// SHARED TENDER LOGIC
// =============================================================================

// appendPayment performs the checks common to every strategy and appends
// the payment. Change is passed in by the strategy; zero for non-cash.
func appendPayment(c *Cart, req PaymentRequest, description string, change decimal.Decimal) error {
	if !req.Amount.IsPositive() {
		return ErrInvalidRequest.WithDetail("payment amount must be positive")
	}
	if req.Amount.GreaterThan(c.BalanceAmount) {
		return ErrOverPayment.WithDetail(
			"amount %s exceeds balance %s", req.Amount, c.BalanceAmount)
	}

	c.Payments = append(c.Payments, Payment{
		PaymentNo:     len(c.Payments) + 1,
		PaymentCode:   req.PaymentCode,
		Description:   description,
		Amount:        req.Amount,
		DepositAmount: req.DepositAmount,
		ChangeAmount:  change,
		Detail:        req.Detail,
	})
	c.DepositAmount = c.DepositAmount.Add(req.DepositAmount)
	c.ChangeAmount = c.ChangeAmount.Add(change)
	c.BalanceAmount = c.TotalAmount.Sub(c.PaidAmount())
	return nil
}

// refundPayment reverses a prior payment's effect on the running totals.
func refundPayment(c *Cart, paymentNo int) error {
	for i := range c.Payments {
		p := &c.Payments[i]
		if p.PaymentNo != paymentNo {
			continue
		}
		if p.IsRefunded {
			return ErrInvalidRequest.WithDetail("payment %d already refunded", paymentNo)
		}
		p.IsRefunded = true
		c.DepositAmount = c.DepositAmount.Sub(p.DepositAmount)
		c.ChangeAmount = c.ChangeAmount.Sub(p.ChangeAmount)
		c.BalanceAmount = c.TotalAmount.Sub(c.PaidAmount())
		return nil
	}
	return ErrInvalidRequest.WithDetail("payment %d not found", paymentNo)
}

// =============================================================================
// CASH
// =============================================================================

// CashStrategy accepts a deposit at or above the payment amount and turns
// the overage into change.
type CashStrategy struct{}

func (s *CashStrategy) Description() string { return "Cash" }
func (s *CashStrategy) CashType() bool      { return true }

func (s *CashStrategy) Pay(c *Cart, req PaymentRequest) error {
	if req.DepositAmount.IsZero() {
		req.DepositAmount = req.Amount
	}
	if req.DepositAmount.LessThan(req.Amount) {
		return ErrInsufficientDeposit.WithDetail(
			"deposit %s < amount %s", req.DepositAmount, req.Amount)
	}
	change := req.DepositAmount.Sub(req.Amount)
	return appendPayment(c, req, s.Description(), change)
}

func (s *CashStrategy) Refund(c *Cart, paymentNo int) error {
	return refundPayment(c, paymentNo)
}

// =============================================================================
// CASHLESS
// =============================================================================

// CashlessStrategy requires an exact tender; card terminals settle the
// precise amount and never produce change.
type CashlessStrategy struct{}

func (s *CashlessStrategy) Description() string { return "Cashless" }
func (s *CashlessStrategy) CashType() bool      { return false }

func (s *CashlessStrategy) Pay(c *Cart, req PaymentRequest) error {
	if req.DepositAmount.IsZero() {
		req.DepositAmount = req.Amount
	}
	if !req.DepositAmount.Equal(req.Amount) {
		return ErrOverPayment.WithDetail(
			"cashless deposit %s must equal amount %s", req.DepositAmount, req.Amount)
	}
	return appendPayment(c, req, s.Description(), decimal.Zero)
}

func (s *CashlessStrategy) Refund(c *Cart, paymentNo int) error {
	return refundPayment(c, paymentNo)
}
