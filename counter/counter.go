/*
Package counter allocates per-terminal monotonic sequence numbers.

PURPOSE:
  Transaction numbers and receipt numbers must be strictly increasing per
  terminal and must never repeat, even across business date changes or
  process restarts. Allocation is a single atomic upsert-and-read on the
  durable store; there is no in-process cache to lose.

COUNTER NAMES:
  "transaction_no"  stamped on every finalized transaction
  "receipt_no"      stamped on every printed receipt

  Both advance independently. Neither resets, ever: a gap is acceptable,
  a duplicate is not.

SEE ALSO:
  - store/sqlite: The durable allocator implementation
*/
package counter

import "context"

// Counter names used by finalization.
const (
	TransactionNo = "transaction_no"
	ReceiptNo     = "receipt_no"
)

// Service hands out the next value of a named per-terminal counter.
// Implementations must be safe for concurrent allocation and must never
// return the same value twice for one (terminalID, counterName) pair.
type Service interface {
	Allocate(ctx context.Context, terminalID, counterName string) (int64, error)
}
