/*
finalize.go - Cart completion: billing and cancellation

PURPOSE:
  Converts a settled cart into an immutable transaction:

    1. Allocate transaction_no and receipt_no from the terminal counters
    2. Build the Transaction snapshot and render its receipt text
    3. Insert into the append-only log; a duplicate insert means a retry
       of an already-finalized cart and reports success idempotently
    4. Complete the cart (durable save, primary eviction)
    5. Publish the transaction event; delivery failures are recorded for
       the republisher, never surfaced to the operator

  Cancellation of a cart that already holds lines follows the same path
  with a cancel transaction type, so the journal keeps a trace of aborted
  sales. An empty cart cancels without a log entry.

SEE ALSO:
  - counter: Number allocation
  - event: Publication and redelivery
*/
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/warp/pos-core/counter"
	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
)

// Bill settles the cart and writes the transaction log.
func (s *Service) Bill(ctx context.Context, sess Session, cartID string) (*pos.Cart, *pos.Transaction, error) {
	if _, err := s.preflight(ctx, sess); err != nil {
		return nil, nil, err
	}

	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		cart, err := s.Carts.Load(ctx, sess.TenantID, cartID)
		if err != nil {
			return nil, nil, err
		}

		next, err := pos.Guard(cart.Status, pos.EventBill)
		if err != nil {
			return nil, nil, err
		}
		if !cart.BalanceAmount.IsZero() {
			return nil, nil, pos.ErrInsufficientPayment.WithDetail("balance %s remains", cart.BalanceAmount)
		}
		if len(cart.Payments) == 0 {
			return nil, nil, pos.ErrInsufficientPayment.WithDetail("no payment taken")
		}
		cart.Status = next

		tranType := cart.TransactionType
		tran, err := s.finalize(ctx, cart, tranType, 0)
		if err != nil {
			if errors.Is(err, store.ErrEtagMismatch) {
				continue
			}
			return nil, nil, err
		}
		return cart, tran, nil
	}
	return nil, nil, pos.ErrConcurrencyRetryExhausted.WithDetail("cart %s", cartID)
}

// Cancel aborts the cart. Carts that already hold lines leave a cancel
// transaction in the journal.
func (s *Service) Cancel(ctx context.Context, sess Session, cartID string) (*pos.Cart, error) {
	if _, err := s.preflight(ctx, sess); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		cart, err := s.Carts.Load(ctx, sess.TenantID, cartID)
		if err != nil {
			return nil, err
		}

		next, err := pos.Guard(cart.Status, pos.EventCancelCart)
		if err != nil {
			return nil, err
		}
		cart.Status = next

		if len(cart.LineItems) == 0 {
			err = s.Carts.Complete(ctx, cart)
			if errors.Is(err, store.ErrEtagMismatch) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("complete cart: %w", err)
			}
			return cart, nil
		}

		cancelType := pos.TransactionTypeCancelSale
		if cart.TransactionType == pos.TransactionTypeReturn {
			cancelType = pos.TransactionTypeCancelReturn
		}
		if _, err := s.finalize(ctx, cart, cancelType, 0); err != nil {
			if errors.Is(err, store.ErrEtagMismatch) {
				continue
			}
			return nil, err
		}
		return cart, nil
	}
	return nil, pos.ErrConcurrencyRetryExhausted.WithDetail("cart %s", cartID)
}

// finalize numbers, logs, completes and publishes one cart. The cart's
// status must already be terminal. originTranNo is zero except for
// reversal transactions built elsewhere.
func (s *Service) finalize(ctx context.Context, cart *pos.Cart, tranType pos.TransactionType, originTranNo int64) (*pos.Transaction, error) {
	terminalID := cart.TerminalID()

	tranNo, err := s.Counters.Allocate(ctx, terminalID, counter.TransactionNo)
	if err != nil {
		return nil, pos.ErrCounterAllocationFailed.WithDetail("transaction_no: %v", err)
	}
	receiptNo, err := s.Counters.Allocate(ctx, terminalID, counter.ReceiptNo)
	if err != nil {
		return nil, pos.ErrCounterAllocationFailed.WithDetail("receipt_no: %v", err)
	}

	tran := s.buildTransaction(cart, tranType, tranNo, receiptNo, originTranNo)

	if err := s.Trans.InsertTran(ctx, tran); err != nil {
		// A duplicate means a previous attempt already committed this
		// number; treat the retry as settled.
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}
		log.Printf("[Cart] transaction %d on %s already logged, treating as settled", tranNo, terminalID)
	}

	if err := s.Carts.Complete(ctx, cart); err != nil {
		return nil, err
	}

	if s.Publisher != nil {
		if _, err := s.Publisher.Publish(ctx, tran); err != nil {
			// The transaction is durable; delivery is the republisher's
			// problem from here.
			log.Printf("[Cart] publish failed for transaction %d on %s: %v", tranNo, terminalID, err)
		}
	}
	return tran, nil
}

// buildTransaction snapshots the cart into its immutable record.
func (s *Service) buildTransaction(cart *pos.Cart, tranType pos.TransactionType, tranNo, receiptNo, originTranNo int64) *pos.Transaction {
	tran := &pos.Transaction{
		TenantID:        cart.TenantID,
		StoreCode:       cart.StoreCode,
		TerminalNo:      cart.TerminalNo,
		TransactionNo:   tranNo,
		ReceiptNo:       receiptNo,
		TransactionType: tranType,
		BusinessDate:    cart.BusinessDate,
		CartID:          cart.CartID,
		StaffID:         cart.StaffID,
		UserID:          cart.UserID,

		LineItems:         append([]pos.LineItem(nil), cart.LineItems...),
		SubtotalDiscounts: append([]pos.Discount(nil), cart.SubtotalDiscounts...),
		Payments:          append([]pos.Payment(nil), cart.Payments...),
		Taxes:             append([]pos.TaxLine(nil), cart.Taxes...),

		SubtotalAmount:      cart.SubtotalAmount,
		TotalAmount:         cart.TotalAmount,
		TotalDiscountAmount: cart.TotalDiscountAmount,
		TotalTaxAmount:      cart.TotalTaxAmount,
		DepositAmount:       cart.DepositAmount,
		ChangeAmount:        cart.ChangeAmount,

		OriginTransactionNo: originTranNo,
		GenerateDateTime:    s.now().UTC(),
	}
	if s.Renderer != nil {
		tran.ReceiptText, tran.JournalText = s.Renderer.Render(tran)
	}
	return tran
}
