/*
Package pos provides the transactional core of the POS backend.

PURPOSE:
  This package contains the domain types and algorithms shared by every
  service in the cluster: the cart document, the state machine that guards
  its mutations, the tax and discount engine, and the payment strategy
  registry. Persistence and transport live elsewhere; this package is pure
  computation over in-memory carts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cart: The mutable working document for an in-flight sale
  - LineItem / Discount / Payment / TaxLine: Cart components
  - Transaction: The immutable record written when a cart is billed
  - TransactionStatus: After-the-fact void/return flags for a transaction
  - EventDelivery: Per-published-event fan-out tracking record

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified; voids and returns
     produce new transactions referencing the original
  2. Precision: Uses decimal.Decimal for all monetary values
  3. Multi-tenancy: TenantID is mandatory on every persisted record
  4. Recompute, don't patch: derived totals are recomputed from line
     items on every subtotal, never incrementally adjusted

SEE ALSO:
  - statemachine.go: Event-in-state legality
  - tax.go, discount.go: Derived-value computation
  - payment.go: Payment strategy registry
*/
package pos

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS AND TRANSACTION TYPES
// =============================================================================

// Status is the cart lifecycle state.
type Status string

const (
	StatusInitial      Status = "initial"
	StatusIdle         Status = "idle"
	StatusEnteringItem Status = "enteringItem"
	StatusPaying       Status = "paying"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

// IsTerminal reports whether the cart accepts no further mutation.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TransactionType codes follow the fixed integer convention shared with
// downstream consumers.
type TransactionType int

const (
	TransactionTypeSale         TransactionType = 101
	TransactionTypeReturn       TransactionType = 102
	TransactionTypeVoidSale     TransactionType = -101
	TransactionTypeCancelSale   TransactionType = 201
	TransactionTypeCancelReturn TransactionType = 202
)

// =============================================================================
// CART - The mutable working document
// =============================================================================

type Cart struct {
	CartID          string          `json:"cartId"`
	TenantID        string          `json:"tenantId"`
	StoreCode       string          `json:"storeCode"`
	TerminalNo      int             `json:"terminalNo"`
	Status          Status          `json:"status"`
	TransactionType TransactionType `json:"transactionType"`
	BusinessDate    string          `json:"businessDate"` // YYYYMMDD
	UserID          string          `json:"userId,omitempty"`
	StaffID         string          `json:"staffId"`

	LineItems         []LineItem `json:"lineItems"`
	SubtotalDiscounts []Discount `json:"subtotalDiscounts"`
	Payments          []Payment  `json:"payments"`
	Taxes             []TaxLine  `json:"taxes"`

	SubtotalAmount      decimal.Decimal `json:"subtotalAmount"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	TotalDiscountAmount decimal.Decimal `json:"totalDiscountAmount"`
	TotalTaxAmount      decimal.Decimal `json:"totalTaxAmount"`
	DepositAmount       decimal.Decimal `json:"depositAmount"`
	ChangeAmount        decimal.Decimal `json:"changeAmount"`
	BalanceAmount       decimal.Decimal `json:"balanceAmount"`

	// Masters snapshot used by this cart (items, taxes, settings) so a
	// mid-sale master-data change cannot shift totals under the operator.
	Masters MastersSnapshot `json:"masters"`

	// Etag is the optimistic-concurrency token assigned by the store on
	// every read. Save preconditions on it; it never round-trips to clients.
	Etag string `json:"etag,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TerminalID returns the canonical {tenant}-{store}-{terminal} identifier.
func (c *Cart) TerminalID() string {
	return TerminalID(c.TenantID, c.StoreCode, c.TerminalNo)
}

// FindLine returns the line item with the given line number, or nil.
// Line numbers are 1-based and stable; cancelled lines keep their slot.
func (c *Cart) FindLine(lineNo int) *LineItem {
	for i := range c.LineItems {
		if c.LineItems[i].LineNo == lineNo {
			return &c.LineItems[i]
		}
	}
	return nil
}

// ActiveLines returns the non-cancelled line items.
func (c *Cart) ActiveLines() []*LineItem {
	var lines []*LineItem
	for i := range c.LineItems {
		if !c.LineItems[i].IsCancelled {
			lines = append(lines, &c.LineItems[i])
		}
	}
	return lines
}

// PaidAmount is the sum of non-refunded payment amounts.
func (c *Cart) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range c.Payments {
		if !p.IsRefunded {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// =============================================================================
// LINE ITEM
// =============================================================================

type LineItem struct {
	LineNo               int             `json:"lineNo"`
	ItemCode             string          `json:"itemCode"`
	Description          string          `json:"description"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	UnitPriceOriginal    decimal.Decimal `json:"unitPriceOriginal"`
	IsUnitPriceChanged   bool            `json:"isUnitPriceChanged"`
	Quantity             decimal.Decimal `json:"quantity"`
	Amount               decimal.Decimal `json:"amount"` // unitPrice * quantity
	Discounts            []Discount      `json:"discounts"`
	CartDiscountAmount   decimal.Decimal `json:"cartDiscountAmount"` // allocated share of subtotal discounts
	TaxCode              string          `json:"taxCode"`
	TaxAmount            decimal.Decimal `json:"taxAmount"`
	IsCancelled          bool            `json:"isCancelled"`
	IsDiscountRestricted bool            `json:"isDiscountRestricted"`
}

// Recompute refreshes the base amount from unit price and quantity.
// Callers must re-run the subtotal afterwards; discounts allocated against
// the old amount are stale once this runs.
func (l *LineItem) Recompute() {
	l.Amount = l.UnitPrice.Mul(l.Quantity)
}

// NetAmount is the line amount after line discounts and the allocated
// cart discount share.
func (l *LineItem) NetAmount() decimal.Decimal {
	net := l.Amount
	for _, d := range l.Discounts {
		net = net.Sub(d.AmountApplied)
	}
	return net.Sub(l.CartDiscountAmount)
}

// LineDiscountTotal is the sum of applied line-level discounts.
func (l *LineItem) LineDiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range l.Discounts {
		total = total.Add(d.AmountApplied)
	}
	return total
}

// =============================================================================
// DISCOUNT
// =============================================================================

type DiscountType string

const (
	DiscountAmount  DiscountType = "amount"
	DiscountPercent DiscountType = "percent"
)

type Discount struct {
	Type          DiscountType    `json:"type"`
	Value         decimal.Decimal `json:"value"` // amount, or percent rate (e.g. 10 for 10%)
	Detail        string          `json:"detail,omitempty"`
	AmountApplied decimal.Decimal `json:"amountApplied"`
}

// =============================================================================
// PAYMENT
// =============================================================================

type Payment struct {
	PaymentNo     int             `json:"paymentNo"`
	PaymentCode   string          `json:"paymentCode"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	DepositAmount decimal.Decimal `json:"depositAmount"`
	ChangeAmount  decimal.Decimal `json:"changeAmount"`
	Detail        string          `json:"detail,omitempty"`
	IsRefunded    bool            `json:"isRefunded"`
}

// =============================================================================
// TAX LINE
// =============================================================================

type TaxType string

const (
	TaxExclusive TaxType = "exclusive"
	TaxInclusive TaxType = "inclusive"
	TaxExempt    TaxType = "exempt"
)

type TaxLine struct {
	TaxCode        string          `json:"taxCode"`
	TaxName        string          `json:"taxName"`
	TaxType        TaxType         `json:"taxType"`
	Rate           decimal.Decimal `json:"rate"` // percent, e.g. 10 for 10%
	TargetAmount   decimal.Decimal `json:"targetAmount"`
	TargetQuantity decimal.Decimal `json:"targetQuantity"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
}

// =============================================================================
// MASTER DATA SNAPSHOT
// =============================================================================

// ItemMaster is the catalog entry consulted on ADD_ITEM.
type ItemMaster struct {
	ItemCode             string          `json:"itemCode"`
	Description          string          `json:"description"`
	UnitPrice            decimal.Decimal `json:"unitPrice"`
	TaxCode              string          `json:"taxCode"`
	IsDiscountRestricted bool            `json:"isDiscountRestricted"`
}

// TaxMaster defines one tax code, its type, rate and rounding behavior.
type TaxMaster struct {
	TaxCode  string          `json:"taxCode"`
	TaxName  string          `json:"taxName"`
	TaxType  TaxType         `json:"taxType"`
	Rate     decimal.Decimal `json:"rate"`
	Rounding RoundingMode    `json:"rounding"`
}

// PaymentMaster defines one accepted payment code.
type PaymentMaster struct {
	PaymentCode string `json:"paymentCode"`
	Description string `json:"description"`
}

// MastersSnapshot caches the masters a cart has used. Lookups during a
// sale hit the snapshot first so totals stay stable for the cart lifetime.
type MastersSnapshot struct {
	Items    map[string]ItemMaster    `json:"items,omitempty"`
	Taxes    map[string]TaxMaster     `json:"taxes,omitempty"`
	Payments map[string]PaymentMaster `json:"payments,omitempty"`
}

// =============================================================================
// TRANSACTION - Immutable record of a completed cart
// =============================================================================

type Transaction struct {
	TenantID        string          `json:"tenantId"`
	StoreCode       string          `json:"storeCode"`
	TerminalNo      int             `json:"terminalNo"`
	TransactionNo   int64           `json:"transactionNo"`
	ReceiptNo       int64           `json:"receiptNo"`
	TransactionType TransactionType `json:"transactionType"`
	BusinessDate    string          `json:"businessDate"`
	CartID          string          `json:"cartId"`
	StaffID         string          `json:"staffId"`
	UserID          string          `json:"userId,omitempty"`

	LineItems         []LineItem `json:"lineItems"`
	SubtotalDiscounts []Discount `json:"subtotalDiscounts"`
	Payments          []Payment  `json:"payments"`
	Taxes             []TaxLine  `json:"taxes"`

	SubtotalAmount      decimal.Decimal `json:"subtotalAmount"`
	TotalAmount         decimal.Decimal `json:"totalAmount"`
	TotalDiscountAmount decimal.Decimal `json:"totalDiscountAmount"`
	TotalTaxAmount      decimal.Decimal `json:"totalTaxAmount"`
	DepositAmount       decimal.Decimal `json:"depositAmount"`
	ChangeAmount        decimal.Decimal `json:"changeAmount"`

	// Set on voids and returns: the transaction_no being reversed.
	OriginTransactionNo int64 `json:"originTransactionNo,omitempty"`

	GenerateDateTime time.Time `json:"generateDateTime"`
	ReceiptText      string    `json:"receiptText"`
	JournalText      string    `json:"journalText"`
}

// TerminalID returns the canonical {tenant}-{store}-{terminal} identifier.
func (t *Transaction) TerminalID() string {
	return TerminalID(t.TenantID, t.StoreCode, t.TerminalNo)
}

// FindLine returns the line item with the given line number, or nil.
func (t *Transaction) FindLine(lineNo int) *LineItem {
	for i := range t.LineItems {
		if t.LineItems[i].LineNo == lineNo {
			return &t.LineItems[i]
		}
	}
	return nil
}

// TransactionStatus tracks void/return flags for a completed transaction.
// It is the only record allowed to change after a transaction is written.
type TransactionStatus struct {
	TenantID      string `json:"tenantId"`
	StoreCode     string `json:"storeCode"`
	TerminalNo    int    `json:"terminalNo"`
	BusinessDate  string `json:"businessDate"`
	TransactionNo int64  `json:"transactionNo"`

	IsVoided          bool       `json:"isVoided"`
	VoidTransactionNo int64      `json:"voidTransactionNo,omitempty"`
	VoidDateTime      *time.Time `json:"voidDateTime,omitempty"`
	VoidStaffID       string     `json:"voidStaffId,omitempty"`

	IsRefunded          bool       `json:"isRefunded"`
	ReturnTransactionNo int64      `json:"returnTransactionNo,omitempty"`
	ReturnDateTime      *time.Time `json:"returnDateTime,omitempty"`
	ReturnStaffID       string     `json:"returnStaffId,omitempty"`

	// Cumulative returned quantity per line number across return rounds.
	// IsRefunded flips only when every line is fully returned.
	ReturnedQuantities map[int]decimal.Decimal `json:"returnedQuantities,omitempty"`
}

// =============================================================================
// EVENT DELIVERY - Fan-out progress for one published event
// =============================================================================

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryPartial   DeliveryStatus = "partially_delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

type ServiceDelivery struct {
	ServiceName  string         `json:"serviceName"`
	Status       DeliveryStatus `json:"status"`
	DeliveredAt  *time.Time     `json:"deliveredAt,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

type EventDelivery struct {
	EventID       string            `json:"eventId"`
	TenantID      string            `json:"tenantId"`
	StoreCode     string            `json:"storeCode"`
	TerminalNo    int               `json:"terminalNo"`
	BusinessDate  string            `json:"businessDate"`
	TransactionNo int64             `json:"transactionNo"`
	PublishedAt   time.Time         `json:"publishedAt"`
	OverallStatus DeliveryStatus    `json:"overallStatus"`
	Payload       []byte            `json:"payload"`
	Services      []ServiceDelivery `json:"services"`
}

// RecomputeOverall derives the overall status from the per-service entries:
// delivered if all delivered, failed if all failed, partially_delivered if
// mixed with at least one delivered, pending otherwise.
func (d *EventDelivery) RecomputeOverall() {
	delivered, failed := 0, 0
	for _, s := range d.Services {
		switch s.Status {
		case DeliveryDelivered:
			delivered++
		case DeliveryFailed:
			failed++
		}
	}
	switch {
	case delivered == len(d.Services) && len(d.Services) > 0:
		d.OverallStatus = DeliveryDelivered
	case failed == len(d.Services) && len(d.Services) > 0:
		d.OverallStatus = DeliveryFailed
	case delivered > 0:
		d.OverallStatus = DeliveryPartial
	default:
		d.OverallStatus = DeliveryPending
	}
}

// Service returns the delivery entry for a subscriber, or nil.
func (d *EventDelivery) Service(name string) *ServiceDelivery {
	for i := range d.Services {
		if d.Services[i].ServiceName == name {
			return &d.Services[i]
		}
	}
	return nil
}
