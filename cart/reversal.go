/*
reversal.go - Void and return of completed transactions

PURPOSE:
  Voids and returns never touch the original record. Each produces a new
  transaction referencing the original through originTransactionNo, and
  flips flags on the original's status row.

AUTHORITY RULES:
  - A void must come from the terminal that produced the sale, on the
    same business context the operator can still see.
  - A return may come from any terminal in the originating store.
  - Neither applies twice: a voided transaction cannot be voided or
    returned again; a fully refunded one cannot take further returns.

PARTIAL RETURNS:
  Returned quantity accumulates per line on the status row across return
  rounds. The refunded flag flips only when every active line of the
  original is fully returned. Discounts on the original are carried into
  the return pro-rata by quantity, floored, so a sequence of partials
  never refunds more discount than was granted.

SIGN CONVENTION:
  Reversal math runs on positive values, then every quantity and amount
  on the record is negated before it is logged. Downstream consumers sum
  transaction amounts as-is, so a sale and its void cancel out. Request
  quantities and the cumulative status counters stay positive.

SEE ALSO:
  - finalize.go: Shared numbering and publication
*/
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/warp/pos-core/counter"
	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
)

// =============================================================================
// VOID
// =============================================================================

// Void reverses a completed sale in full. The caller must be the
// terminal that produced it.
func (s *Service) Void(ctx context.Context, sess Session, transactionNo int64) (*pos.Transaction, error) {
	rec, err := s.preflight(ctx, sess)
	if err != nil {
		return nil, err
	}

	origin, err := s.Trans.FindTranInStore(ctx, sess.TenantID, sess.StoreCode, transactionNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, pos.ErrTransactionNotFound.WithDetail("transaction %d", transactionNo)
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	if origin.TerminalNo != sess.TerminalNo {
		return nil, pos.ErrVoidTerminalMismatch.WithDetail("sale was on terminal %d", origin.TerminalNo)
	}
	if origin.TransactionType != pos.TransactionTypeSale {
		return nil, pos.ErrInvalidRequest.WithDetail("transaction type %d cannot be voided", origin.TransactionType)
	}

	status, err := s.Trans.GetTranStatus(ctx, origin.TenantID, origin.StoreCode, origin.TerminalNo, origin.BusinessDate, origin.TransactionNo)
	if err != nil {
		return nil, fmt.Errorf("load transaction status: %w", err)
	}
	if status.IsVoided {
		return nil, pos.ErrTransactionAlreadyVoided.WithDetail("voided by transaction %d", status.VoidTransactionNo)
	}
	if status.IsRefunded || len(status.ReturnedQuantities) > 0 {
		return nil, pos.ErrAlreadyRefunded.WithDetail("transaction %d has returns", origin.TransactionNo)
	}

	void := &pos.Cart{
		TenantID:     origin.TenantID,
		StoreCode:    origin.StoreCode,
		TerminalNo:   origin.TerminalNo,
		BusinessDate: rec.BusinessDate,
		CartID:       origin.CartID,
		StaffID:      rec.SignedInStaff,
		UserID:       origin.UserID,

		LineItems:         append([]pos.LineItem(nil), origin.LineItems...),
		SubtotalDiscounts: append([]pos.Discount(nil), origin.SubtotalDiscounts...),
		Payments:          append([]pos.Payment(nil), origin.Payments...),
		Taxes:             append([]pos.TaxLine(nil), origin.Taxes...),

		SubtotalAmount:      origin.SubtotalAmount,
		TotalAmount:         origin.TotalAmount,
		TotalDiscountAmount: origin.TotalDiscountAmount,
		TotalTaxAmount:      origin.TotalTaxAmount,
		DepositAmount:       origin.DepositAmount,
		ChangeAmount:        origin.ChangeAmount,
	}

	tran, err := s.logReversal(ctx, void, pos.TransactionTypeVoidSale, origin.TransactionNo)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	status.IsVoided = true
	status.VoidTransactionNo = tran.TransactionNo
	status.VoidDateTime = &now
	status.VoidStaffID = rec.SignedInStaff
	if err := s.Trans.SaveTranStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("save transaction status: %w", err)
	}
	return tran, nil
}

// =============================================================================
// RETURN
// =============================================================================

// ReturnLine requests the return of part of one original line.
type ReturnLine struct {
	LineNo   int
	Quantity decimal.Decimal
}

// Return refunds quantities of a completed sale. An empty lines slice
// returns everything still outstanding. Refund tenders default to the
// original payment code for the full refund amount.
func (s *Service) Return(ctx context.Context, sess Session, originStoreCode string, transactionNo int64, lines []ReturnLine, payments []pos.PaymentRequest) (*pos.Transaction, error) {
	rec, err := s.preflight(ctx, sess)
	if err != nil {
		return nil, err
	}
	if originStoreCode != "" && originStoreCode != sess.StoreCode {
		return nil, pos.ErrReturnStoreMismatch.WithDetail("sale was in store %s", originStoreCode)
	}

	origin, err := s.Trans.FindTranInStore(ctx, sess.TenantID, sess.StoreCode, transactionNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, pos.ErrTransactionNotFound.WithDetail("transaction %d", transactionNo)
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	if origin.TransactionType != pos.TransactionTypeSale {
		return nil, pos.ErrInvalidRequest.WithDetail("transaction type %d cannot be returned", origin.TransactionType)
	}

	status, err := s.Trans.GetTranStatus(ctx, origin.TenantID, origin.StoreCode, origin.TerminalNo, origin.BusinessDate, origin.TransactionNo)
	if err != nil {
		return nil, fmt.Errorf("load transaction status: %w", err)
	}
	if status.IsVoided {
		return nil, pos.ErrTransactionAlreadyVoided.WithDetail("voided by transaction %d", status.VoidTransactionNo)
	}
	if status.IsRefunded {
		return nil, pos.ErrAlreadyRefunded
	}

	if len(lines) == 0 {
		lines = remainingLines(origin, status)
		if len(lines) == 0 {
			return nil, pos.ErrAlreadyRefunded
		}
	}

	scratch, err := s.buildReturnCart(origin, status, lines, rec.BusinessDate, rec.SignedInStaff, sess.TerminalNo)
	if err != nil {
		return nil, err
	}

	if err := s.tenderRefund(scratch, origin, payments); err != nil {
		return nil, err
	}

	tran, err := s.logReversal(ctx, scratch, pos.TransactionTypeReturn, origin.TransactionNo)
	if err != nil {
		return nil, err
	}

	if status.ReturnedQuantities == nil {
		status.ReturnedQuantities = make(map[int]decimal.Decimal)
	}
	for _, rl := range lines {
		status.ReturnedQuantities[rl.LineNo] = status.ReturnedQuantities[rl.LineNo].Add(rl.Quantity)
	}
	now := s.now().UTC()
	status.ReturnTransactionNo = tran.TransactionNo
	status.ReturnDateTime = &now
	status.ReturnStaffID = rec.SignedInStaff
	status.IsRefunded = fullyReturned(origin, status)
	if err := s.Trans.SaveTranStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("save transaction status: %w", err)
	}
	return tran, nil
}

// remainingLines lists every active origin line with quantity still
// outstanding.
func remainingLines(origin *pos.Transaction, status *pos.TransactionStatus) []ReturnLine {
	var lines []ReturnLine
	for _, l := range origin.LineItems {
		if l.IsCancelled {
			continue
		}
		remaining := l.Quantity.Sub(status.ReturnedQuantities[l.LineNo])
		if remaining.IsPositive() {
			lines = append(lines, ReturnLine{LineNo: l.LineNo, Quantity: remaining})
		}
	}
	return lines
}

// fullyReturned reports whether every active line has been returned in full.
func fullyReturned(origin *pos.Transaction, status *pos.TransactionStatus) bool {
	for _, l := range origin.LineItems {
		if l.IsCancelled {
			continue
		}
		if status.ReturnedQuantities[l.LineNo].LessThan(l.Quantity) {
			return false
		}
	}
	return true
}

// buildReturnCart assembles a scratch cart holding the returned lines with
// discounts carried pro-rata by quantity.
func (s *Service) buildReturnCart(origin *pos.Transaction, status *pos.TransactionStatus, lines []ReturnLine, businessDate, staffID string, terminalNo int) (*pos.Cart, error) {
	scratch := &pos.Cart{
		TenantID:     origin.TenantID,
		StoreCode:    origin.StoreCode,
		TerminalNo:   terminalNo,
		BusinessDate: businessDate,
		CartID:       origin.CartID,
		StaffID:      staffID,
		UserID:       origin.UserID,
		Masters:      pos.MastersSnapshot{Taxes: taxMastersFrom(origin)},
	}

	for i, rl := range lines {
		if rl.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, pos.ErrInvalidQuantity.WithDetail("line %d quantity %s", rl.LineNo, rl.Quantity)
		}
		src := origin.FindLine(rl.LineNo)
		if src == nil || src.IsCancelled {
			return nil, pos.ErrLineNotFound.WithDetail("line %d", rl.LineNo)
		}
		already := status.ReturnedQuantities[rl.LineNo]
		if already.Add(rl.Quantity).GreaterThan(src.Quantity) {
			return nil, pos.ErrReturnQuantity.WithDetail("line %d: %s of %s already returned", rl.LineNo, already, src.Quantity)
		}

		line := pos.LineItem{
			LineNo:            i + 1,
			ItemCode:          src.ItemCode,
			Description:       src.Description,
			UnitPrice:         src.UnitPrice,
			UnitPriceOriginal: src.UnitPriceOriginal,
			Quantity:          rl.Quantity,
			TaxCode:           src.TaxCode,
		}
		line.Recompute()

		// Carry the original discount pro-rata by quantity, floored, so
		// repeated partials never refund more than was granted.
		granted := src.LineDiscountTotal().Add(src.CartDiscountAmount)
		if granted.IsPositive() {
			share := pos.Round(granted.Mul(rl.Quantity).Div(src.Quantity), pos.RoundFloor)
			line.Discounts = append(line.Discounts, pos.Discount{
				Type:          pos.DiscountAmount,
				Value:         share,
				Detail:        "carried from original sale",
				AmountApplied: share,
			})
		}
		scratch.LineItems = append(scratch.LineItems, line)
	}

	if err := pos.CalcSubtotal(scratch); err != nil {
		return nil, err
	}
	return scratch, nil
}

// taxMastersFrom reconstructs the tax masters in effect at sale time from
// the original's tax lines.
func taxMastersFrom(origin *pos.Transaction) map[string]pos.TaxMaster {
	masters := make(map[string]pos.TaxMaster, len(origin.Taxes))
	for _, t := range origin.Taxes {
		masters[t.TaxCode] = pos.TaxMaster{
			TaxCode:  t.TaxCode,
			TaxName:  t.TaxName,
			TaxType:  t.TaxType,
			Rate:     t.Rate,
			Rounding: pos.RoundFloor,
		}
	}
	return masters
}

// tenderRefund applies the refund tenders to the scratch cart. The
// strategies enforce settlement exactly as on a sale.
func (s *Service) tenderRefund(scratch *pos.Cart, origin *pos.Transaction, payments []pos.PaymentRequest) error {
	if len(payments) == 0 {
		code := "01"
		if len(origin.Payments) > 0 {
			code = origin.Payments[0].PaymentCode
		}
		payments = []pos.PaymentRequest{{PaymentCode: code, Amount: scratch.BalanceAmount}}
	}
	for _, req := range payments {
		strategy, err := s.Payments.Lookup(req.PaymentCode)
		if err != nil {
			return err
		}
		if err := strategy.Pay(scratch, req); err != nil {
			return err
		}
	}
	if !scratch.BalanceAmount.IsZero() {
		return pos.ErrInsufficientPayment.WithDetail("refund balance %s remains", scratch.BalanceAmount)
	}
	return nil
}

// =============================================================================
// SHARED REVERSAL LOGGING
// =============================================================================

// reverseSigns negates every quantity and monetary amount on the scratch
// cart. Reversal records carry the movement they represent, so a void or
// return sums against its origin to zero.
func reverseSigns(c *pos.Cart) {
	for i := range c.LineItems {
		l := &c.LineItems[i]
		l.Quantity = l.Quantity.Neg()
		l.Amount = l.Amount.Neg()
		l.TaxAmount = l.TaxAmount.Neg()
		l.CartDiscountAmount = l.CartDiscountAmount.Neg()
		for j := range l.Discounts {
			l.Discounts[j].Value = l.Discounts[j].Value.Neg()
			l.Discounts[j].AmountApplied = l.Discounts[j].AmountApplied.Neg()
		}
	}
	for i := range c.SubtotalDiscounts {
		c.SubtotalDiscounts[i].Value = c.SubtotalDiscounts[i].Value.Neg()
		c.SubtotalDiscounts[i].AmountApplied = c.SubtotalDiscounts[i].AmountApplied.Neg()
	}
	for i := range c.Payments {
		c.Payments[i].Amount = c.Payments[i].Amount.Neg()
		c.Payments[i].DepositAmount = c.Payments[i].DepositAmount.Neg()
		c.Payments[i].ChangeAmount = c.Payments[i].ChangeAmount.Neg()
	}
	for i := range c.Taxes {
		c.Taxes[i].TargetAmount = c.Taxes[i].TargetAmount.Neg()
		c.Taxes[i].TargetQuantity = c.Taxes[i].TargetQuantity.Neg()
		c.Taxes[i].TaxAmount = c.Taxes[i].TaxAmount.Neg()
	}
	c.SubtotalAmount = c.SubtotalAmount.Neg()
	c.TotalAmount = c.TotalAmount.Neg()
	c.TotalDiscountAmount = c.TotalDiscountAmount.Neg()
	c.TotalTaxAmount = c.TotalTaxAmount.Neg()
	c.DepositAmount = c.DepositAmount.Neg()
	c.ChangeAmount = c.ChangeAmount.Neg()
}

// logReversal numbers, logs and publishes a reversal built on a scratch
// cart. Unlike finalize it never touches the cart store; reversals have
// no persisted cart of their own.
func (s *Service) logReversal(ctx context.Context, scratch *pos.Cart, tranType pos.TransactionType, originTranNo int64) (*pos.Transaction, error) {
	reverseSigns(scratch)
	terminalID := scratch.TerminalID()

	tranNo, err := s.Counters.Allocate(ctx, terminalID, counter.TransactionNo)
	if err != nil {
		return nil, pos.ErrCounterAllocationFailed.WithDetail("transaction_no: %v", err)
	}
	receiptNo, err := s.Counters.Allocate(ctx, terminalID, counter.ReceiptNo)
	if err != nil {
		return nil, pos.ErrCounterAllocationFailed.WithDetail("receipt_no: %v", err)
	}

	tran := s.buildTransaction(scratch, tranType, tranNo, receiptNo, originTranNo)
	if err := s.Trans.InsertTran(ctx, tran); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}
		log.Printf("[Cart] reversal %d on %s already logged, treating as settled", tranNo, terminalID)
	}

	if s.Publisher != nil {
		if _, err := s.Publisher.Publish(ctx, tran); err != nil {
			log.Printf("[Cart] publish failed for reversal %d on %s: %v", tranNo, terminalID, err)
		}
	}
	return tran, nil
}
