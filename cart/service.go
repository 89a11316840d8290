/*
Package cart implements the cart lifecycle service.

PURPOSE:
  The service is the single write path for carts. Every operation follows
  the same shape:

    1. Resolve the terminal and check its session (opened, staff signed in)
    2. Load the cart from the dual store
    3. Ask the state machine whether the operation is legal
    4. Apply the domain mutation (pos package engines)
    5. Save with the optimistic etag; on conflict, reload and re-apply

  BILL and CANCEL_CART additionally finalize: they allocate transaction
  numbers, write the immutable transaction log, complete the cart and
  publish the event (finalize.go). Voids and returns of past transactions
  live in reversal.go.

KEY FILES:
  - service.go:  The façade and the load-mutate-save loop
  - finalize.go: Cart -> Transaction conversion, numbering, publication
  - reversal.go: Void and return of completed transactions

SEE ALSO:
  - pos: Domain engines the mutations delegate to
  - store: DualCartStore and the transaction log
*/
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/pos-core/counter"
	"github.com/warp/pos-core/event"
	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
	"github.com/warp/pos-core/terminal"
)

// maxSaveRetries bounds the reload-and-reapply loop on etag conflicts.
const maxSaveRetries = 3

// Service orchestrates cart operations.
type Service struct {
	Carts     store.CartStore
	Trans     store.TranStore
	Masters   store.MasterStore
	Counters  counter.Service
	Terminals *terminal.Resolver
	Payments  *pos.PaymentRegistry
	Publisher *event.Publisher
	Renderer  pos.ReceiptRenderer

	// now is swappable for tests.
	now func() time.Time
}

// New wires the service.
func New(carts store.CartStore, trans store.TranStore, masters store.MasterStore,
	counters counter.Service, terminals *terminal.Resolver,
	payments *pos.PaymentRegistry, publisher *event.Publisher, renderer pos.ReceiptRenderer) *Service {
	return &Service{
		Carts:     carts,
		Trans:     trans,
		Masters:   masters,
		Counters:  counters,
		Terminals: terminals,
		Payments:  payments,
		Publisher: publisher,
		Renderer:  renderer,
		now:       time.Now,
	}
}

// Session identifies the authenticated caller of every operation.
type Session struct {
	TenantID   string
	StoreCode  string
	TerminalNo int
	APIKey     string
}

// preflight authenticates the terminal and checks its session state.
func (s *Service) preflight(ctx context.Context, sess Session) (*store.TerminalRecord, error) {
	rec, err := s.Terminals.Authenticate(ctx, sess.TenantID, sess.StoreCode, sess.TerminalNo, sess.APIKey)
	if err != nil {
		return nil, err
	}
	if err := s.Terminals.RequireSession(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// =============================================================================
// CART CREATION AND RETRIEVAL
// =============================================================================

// Create opens a new cart on the caller's terminal.
func (s *Service) Create(ctx context.Context, sess Session, transactionType pos.TransactionType, userID string) (*pos.Cart, error) {
	rec, err := s.preflight(ctx, sess)
	if err != nil {
		return nil, err
	}
	if transactionType == 0 {
		transactionType = pos.TransactionTypeSale
	}
	if transactionType != pos.TransactionTypeSale && transactionType != pos.TransactionTypeReturn {
		return nil, pos.ErrInvalidRequest.WithDetail("transaction type %d cannot open a cart", transactionType)
	}

	now := s.now().UTC()
	cart := &pos.Cart{
		CartID:          uuid.NewString(),
		TenantID:        sess.TenantID,
		StoreCode:       sess.StoreCode,
		TerminalNo:      sess.TerminalNo,
		Status:          pos.StatusInitial,
		TransactionType: transactionType,
		BusinessDate:    rec.BusinessDate,
		UserID:          userID,
		StaffID:         rec.SignedInStaff,
		SubtotalAmount:  decimal.Zero,
		TotalAmount:     decimal.Zero,
		BalanceAmount:   decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Carts.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

// Get returns the cart. The first access of a fresh cart advances it from
// initial to idle.
func (s *Service) Get(ctx context.Context, sess Session, cartID string) (*pos.Cart, error) {
	if _, err := s.preflight(ctx, sess); err != nil {
		return nil, err
	}
	cart, err := s.Carts.Load(ctx, sess.TenantID, cartID)
	if err != nil {
		return nil, err
	}
	next, err := pos.Guard(cart.Status, pos.EventGetCart)
	if err != nil {
		return nil, err
	}
	if next != cart.Status {
		cart.Status = next
		if err := s.Carts.Save(ctx, cart); err != nil && !errors.Is(err, store.ErrEtagMismatch) {
			return nil, fmt.Errorf("advance cart: %w", err)
		}
	}
	return cart, nil
}

// FindActive returns the in-flight cart on the caller's terminal, if any.
func (s *Service) FindActive(ctx context.Context, sess Session) (*pos.Cart, error) {
	if _, err := s.preflight(ctx, sess); err != nil {
		return nil, err
	}
	return s.Carts.FindActive(ctx, sess.TenantID, sess.StoreCode, sess.TerminalNo)
}

// =============================================================================
// LOAD-MUTATE-SAVE LOOP
// =============================================================================

// mutate runs one guarded mutation with etag-conflict retries. The fn is
// re-applied against a freshly loaded cart on every attempt, so it must be
// a pure function of the request.
func (s *Service) mutate(ctx context.Context, sess Session, cartID string, ev pos.Event, fn func(*pos.Cart) error) (*pos.Cart, error) {
	if _, err := s.preflight(ctx, sess); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		cart, err := s.Carts.Load(ctx, sess.TenantID, cartID)
		if err != nil {
			return nil, err
		}

		next, err := pos.Guard(cart.Status, ev)
		if err != nil {
			return nil, err
		}
		if err := fn(cart); err != nil {
			return nil, err
		}
		cart.Status = next

		err = s.Carts.Save(ctx, cart)
		if errors.Is(err, store.ErrEtagMismatch) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
		return cart, nil
	}
	return nil, pos.ErrConcurrencyRetryExhausted.WithDetail("cart %s", cartID)
}

// =============================================================================
// ITEM ENTRY
// =============================================================================

// AddItem resolves the item master, appends a line and recomputes totals.
func (s *Service) AddItem(ctx context.Context, sess Session, cartID, itemCode string, quantity decimal.Decimal, unitPrice *decimal.Decimal) (*pos.Cart, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, pos.ErrInvalidQuantity.WithDetail("quantity %s", quantity)
	}
	return s.mutate(ctx, sess, cartID, pos.EventAddItem, func(c *pos.Cart) error {
		item, err := s.resolveItem(ctx, c, itemCode)
		if err != nil {
			return err
		}
		if err := s.snapshotTax(ctx, c, item.TaxCode); err != nil {
			return err
		}

		line := pos.LineItem{
			LineNo:               len(c.LineItems) + 1,
			ItemCode:             item.ItemCode,
			Description:          item.Description,
			UnitPrice:            item.UnitPrice,
			UnitPriceOriginal:    item.UnitPrice,
			Quantity:             quantity,
			TaxCode:              item.TaxCode,
			IsDiscountRestricted: item.IsDiscountRestricted,
		}
		if unitPrice != nil {
			if unitPrice.IsNegative() {
				return pos.ErrInvalidRequest.WithDetail("unit price %s", unitPrice)
			}
			line.UnitPrice = *unitPrice
			line.IsUnitPriceChanged = !unitPrice.Equal(item.UnitPrice)
		}
		line.Recompute()
		c.LineItems = append(c.LineItems, line)
		return pos.CalcSubtotal(c)
	})
}

// CancelLine soft-deletes a line; its slot and number remain.
func (s *Service) CancelLine(ctx context.Context, sess Session, cartID string, lineNo int) (*pos.Cart, error) {
	return s.mutate(ctx, sess, cartID, pos.EventCancelLine, func(c *pos.Cart) error {
		line := c.FindLine(lineNo)
		if line == nil {
			return pos.ErrLineNotFound.WithDetail("line %d", lineNo)
		}
		if line.IsCancelled {
			return pos.ErrLineCancelled.WithDetail("line %d", lineNo)
		}
		line.IsCancelled = true
		return pos.CalcSubtotal(c)
	})
}

// UpdateQuantity replaces a line's quantity.
func (s *Service) UpdateQuantity(ctx context.Context, sess Session, cartID string, lineNo int, quantity decimal.Decimal) (*pos.Cart, error) {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, pos.ErrInvalidQuantity.WithDetail("quantity %s", quantity)
	}
	return s.mutate(ctx, sess, cartID, pos.EventUpdateQty, func(c *pos.Cart) error {
		line := c.FindLine(lineNo)
		if line == nil {
			return pos.ErrLineNotFound.WithDetail("line %d", lineNo)
		}
		if line.IsCancelled {
			return pos.ErrLineCancelled.WithDetail("line %d", lineNo)
		}
		line.Quantity = quantity
		line.Recompute()
		return pos.CalcSubtotal(c)
	})
}

// UpdateUnitPrice overrides a line's unit price.
func (s *Service) UpdateUnitPrice(ctx context.Context, sess Session, cartID string, lineNo int, unitPrice decimal.Decimal) (*pos.Cart, error) {
	if unitPrice.IsNegative() {
		return nil, pos.ErrInvalidRequest.WithDetail("unit price %s", unitPrice)
	}
	return s.mutate(ctx, sess, cartID, pos.EventUpdatePrice, func(c *pos.Cart) error {
		line := c.FindLine(lineNo)
		if line == nil {
			return pos.ErrLineNotFound.WithDetail("line %d", lineNo)
		}
		if line.IsCancelled {
			return pos.ErrLineCancelled.WithDetail("line %d", lineNo)
		}
		line.UnitPrice = unitPrice
		line.IsUnitPriceChanged = !unitPrice.Equal(line.UnitPriceOriginal)
		line.Recompute()
		return pos.CalcSubtotal(c)
	})
}

// =============================================================================
// DISCOUNTS
// =============================================================================

// AddLineDiscount applies a discount to one line.
func (s *Service) AddLineDiscount(ctx context.Context, sess Session, cartID string, lineNo int, d pos.Discount) (*pos.Cart, error) {
	return s.mutate(ctx, sess, cartID, pos.EventAddLineDiscount, func(c *pos.Cart) error {
		if err := pos.AddLineDiscount(c, lineNo, d); err != nil {
			return err
		}
		return pos.CalcSubtotal(c)
	})
}

// AddCartDiscount applies a discount to the whole cart, allocated across
// eligible lines.
func (s *Service) AddCartDiscount(ctx context.Context, sess Session, cartID string, d pos.Discount) (*pos.Cart, error) {
	return s.mutate(ctx, sess, cartID, pos.EventAddCartDiscount, func(c *pos.Cart) error {
		if err := pos.AddCartDiscount(c, d); err != nil {
			return err
		}
		return pos.CalcSubtotal(c)
	})
}

// =============================================================================
// SUBTOTAL AND PAYMENT
// =============================================================================

// Subtotal finalizes totals and moves the cart to paying.
func (s *Service) Subtotal(ctx context.Context, sess Session, cartID string) (*pos.Cart, error) {
	return s.mutate(ctx, sess, cartID, pos.EventCalcSubtotal, func(c *pos.Cart) error {
		if len(c.ActiveLines()) == 0 {
			return pos.ErrInvalidRequest.WithDetail("cart has no active lines")
		}
		return pos.CalcSubtotal(c)
	})
}

// AddPayment tenders one payment against the balance.
func (s *Service) AddPayment(ctx context.Context, sess Session, cartID string, req pos.PaymentRequest) (*pos.Cart, error) {
	strategy, err := s.Payments.Lookup(req.PaymentCode)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sess, cartID, pos.EventAddPayment, func(c *pos.Cart) error {
		if err := s.snapshotPayment(ctx, c, req.PaymentCode); err != nil {
			return err
		}
		return strategy.Pay(c, req)
	})
}

// ResumeItemEntry returns a paying cart to item entry, refunding any
// tenders already taken so the totals may change again.
func (s *Service) ResumeItemEntry(ctx context.Context, sess Session, cartID string) (*pos.Cart, error) {
	return s.mutate(ctx, sess, cartID, pos.EventResumeItemEntry, func(c *pos.Cart) error {
		for i := range c.Payments {
			p := &c.Payments[i]
			if p.IsRefunded {
				continue
			}
			strategy, err := s.Payments.Lookup(p.PaymentCode)
			if err != nil {
				return err
			}
			if err := strategy.Refund(c, p.PaymentNo); err != nil {
				return err
			}
		}
		return pos.CalcSubtotal(c)
	})
}

// =============================================================================
// MASTER RESOLUTION
// =============================================================================

// resolveItem consults the cart's snapshot first so a mid-sale catalog
// change cannot shift totals, then the master store.
func (s *Service) resolveItem(ctx context.Context, c *pos.Cart, itemCode string) (*pos.ItemMaster, error) {
	if m, ok := c.Masters.Items[itemCode]; ok {
		return &m, nil
	}
	m, err := s.Masters.GetItem(ctx, c.TenantID, c.StoreCode, itemCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, pos.ErrItemNotFound.WithDetail("item %q", itemCode)
		}
		return nil, fmt.Errorf("item lookup: %w", err)
	}
	if c.Masters.Items == nil {
		c.Masters.Items = make(map[string]pos.ItemMaster)
	}
	c.Masters.Items[itemCode] = *m
	return m, nil
}

func (s *Service) snapshotTax(ctx context.Context, c *pos.Cart, taxCode string) error {
	if taxCode == "" {
		return nil
	}
	if _, ok := c.Masters.Taxes[taxCode]; ok {
		return nil
	}
	m, err := s.Masters.GetTax(ctx, c.TenantID, taxCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Unknown tax codes fall back to exempt at calculation time.
			return nil
		}
		return fmt.Errorf("tax lookup: %w", err)
	}
	if c.Masters.Taxes == nil {
		c.Masters.Taxes = make(map[string]pos.TaxMaster)
	}
	c.Masters.Taxes[taxCode] = *m
	return nil
}

func (s *Service) snapshotPayment(ctx context.Context, c *pos.Cart, paymentCode string) error {
	if _, ok := c.Masters.Payments[paymentCode]; ok {
		return nil
	}
	m, err := s.Masters.GetPayment(ctx, c.TenantID, paymentCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The registry already vouched for the code; the master only
			// refines the description.
			return nil
		}
		return fmt.Errorf("payment lookup: %w", err)
	}
	if c.Masters.Payments == nil {
		c.Masters.Payments = make(map[string]pos.PaymentMaster)
	}
	c.Masters.Payments[paymentCode] = *m
	return nil
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
