/*
Package store defines the persistence interfaces of the POS core and the
dual-backed cart store.

PURPOSE:
  Every stateful component talks to storage through these interfaces.
  Concrete implementations:
    store/sqlite  durable document DB: carts (authoritative), log_tran,
                  status_tran, counters, deliveries, masters, terminals
    store/kv      goleveldb fast KV for active carts (TTL)
    store/memory  in-memory doubles for tests

MULTI-TENANCY:
  TenantID is a mandatory key on every query; implementations must never
  return a record for a different tenant. The original deployment shards
  into db_cart_{tenant} databases; here tenancy is a leading key column.

SEE ALSO:
  - dual.go: Primary/fallback composition with circuit breakers
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/warp/pos-core/pos"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEtagMismatch is returned when a conditional cart save sees a
	// stored version different from the one the caller read.
	ErrEtagMismatch = errors.New("etag mismatch")

	// ErrDuplicate is returned when a unique-key insert collides.
	ErrDuplicate = errors.New("duplicate record")
)

// =============================================================================
// CART STORAGE
// =============================================================================

// CartPrimary is the fast KV side of the dual store. Writes are
// unconditional; the fallback owns the etag precondition.
type CartPrimary interface {
	Get(ctx context.Context, tenantID, cartID string) (*pos.Cart, error)
	Put(ctx context.Context, cart *pos.Cart) error
	Delete(ctx context.Context, tenantID, cartID string) error
}

// CartFallback is the durable, authoritative cart store.
type CartFallback interface {
	GetCart(ctx context.Context, tenantID, cartID string) (*pos.Cart, error)

	// SaveCart preconditions on prevEtag (empty for a new cart), assigns
	// the cart a fresh etag and persists it. ErrEtagMismatch on conflict.
	SaveCart(ctx context.Context, cart *pos.Cart, prevEtag string) error

	// FindActiveCart returns the non-terminal cart on a terminal, if any.
	FindActiveCart(ctx context.Context, tenantID, storeCode string, terminalNo int) (*pos.Cart, error)
}

// CartStore is what the cart service façade consumes.
type CartStore interface {
	Load(ctx context.Context, tenantID, cartID string) (*pos.Cart, error)
	Save(ctx context.Context, cart *pos.Cart) error
	FindActive(ctx context.Context, tenantID, storeCode string, terminalNo int) (*pos.Cart, error)

	// Complete persists the terminal-state cart and evicts it from the
	// primary; the fallback keeps the completed snapshot.
	Complete(ctx context.Context, cart *pos.Cart) error
}

// =============================================================================
// TRANSACTION LOG STORAGE
// =============================================================================

// TranFilter narrows transaction queries. Zero fields are ignored except
// the mandatory terminal tuple.
type TranFilter struct {
	TenantID     string
	StoreCode    string
	TerminalNo   int
	BusinessDate string
	Limit        int
}

// TranStore persists immutable transactions and their sibling status rows.
// Transactions are append-only: no update or delete methods exist.
type TranStore interface {
	// InsertTran writes the transaction and its initial status row.
	// Inserting the same (terminal tuple, transaction_no) twice returns
	// ErrDuplicate, which finalize treats as idempotent success.
	InsertTran(ctx context.Context, t *pos.Transaction) error

	GetTran(ctx context.Context, tenantID, storeCode string, terminalNo int, businessDate string, transactionNo int64) (*pos.Transaction, error)

	// FindTran locates a transaction by number across business dates on
	// one terminal tuple (used by void, which references only the number).
	FindTran(ctx context.Context, tenantID, storeCode string, terminalNo int, transactionNo int64) (*pos.Transaction, error)

	// FindTranInStore locates a transaction by number on any terminal in
	// a store (returns may originate from a sibling terminal).
	FindTranInStore(ctx context.Context, tenantID, storeCode string, transactionNo int64) (*pos.Transaction, error)

	ListTrans(ctx context.Context, f TranFilter) ([]*pos.Transaction, error)

	GetTranStatus(ctx context.Context, tenantID, storeCode string, terminalNo int, businessDate string, transactionNo int64) (*pos.TransactionStatus, error)
	SaveTranStatus(ctx context.Context, s *pos.TransactionStatus) error
}

// =============================================================================
// EVENT DELIVERY STORAGE
// =============================================================================

// DeliveryStore tracks fan-out progress per published event.
type DeliveryStore interface {
	InsertDelivery(ctx context.Context, d *pos.EventDelivery) error
	GetDelivery(ctx context.Context, eventID string) (*pos.EventDelivery, error)
	SaveDelivery(ctx context.Context, d *pos.EventDelivery) error

	// FindDeliveryByTran returns the most recently published delivery for
	// one transaction, so subscribers can acknowledge by transaction number.
	FindDeliveryByTran(ctx context.Context, tenantID, storeCode string, terminalNo int, transactionNo int64) (*pos.EventDelivery, error)

	// ListUndelivered returns events still short of full delivery whose
	// publish time falls in (now-window, now-grace].
	ListUndelivered(ctx context.Context, olderThan, newerThan time.Time) ([]*pos.EventDelivery, error)
}

// =============================================================================
// MASTER DATA AND TERMINALS
// =============================================================================

// MasterStore resolves catalog entries. The cart caches what it uses.
type MasterStore interface {
	GetItem(ctx context.Context, tenantID, storeCode, itemCode string) (*pos.ItemMaster, error)
	GetTax(ctx context.Context, tenantID, taxCode string) (*pos.TaxMaster, error)
	GetPayment(ctx context.Context, tenantID, paymentCode string) (*pos.PaymentMaster, error)
}

// TerminalRecord is the persisted state of one POS device.
type TerminalRecord struct {
	TenantID      string `json:"tenantId"`
	StoreCode     string `json:"storeCode"`
	TerminalNo    int    `json:"terminalNo"`
	APIKey        string `json:"-"`
	Status        string `json:"status"` // "opened" | "closed"
	SignedInStaff string `json:"signedInStaff,omitempty"`
	BusinessDate  string `json:"businessDate"`
}

// TerminalStore persists terminal registrations.
type TerminalStore interface {
	GetTerminal(ctx context.Context, tenantID, storeCode string, terminalNo int) (*TerminalRecord, error)
	SaveTerminal(ctx context.Context, t *TerminalRecord) error
}
