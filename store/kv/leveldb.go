/*
Package kv provides the goleveldb-backed primary cart store.

PURPOSE:
  Fast read/write of active cart documents keyed by (tenant, cart_id).
  This side of the dual store is a cache: values carry a TTL header and
  expire lazily; the durable fallback remains authoritative.

LAYOUT:
  key    "cart/{tenant}/{cart_id}"
  value  8-byte big-endian unix expiry seconds, then the cart JSON

  Expired entries read as a miss and are deleted opportunistically; there
  is no background sweeper because the fallback retention already bounds
  how long a stale entry can matter.

SEE ALSO:
  - store/dual.go: Composition with the fallback
*/
package kv

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"

	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
)

const expiryHeaderLen = 8

// Store is the primary cart KV.
type Store struct {
	db  *leveldb.DB
	ttl time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// Open opens (or creates) the LevelDB database at path.
func Open(path string, ttl time.Duration) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func cartKey(tenantID, cartID string) []byte {
	return []byte("cart/" + tenantID + "/" + cartID)
}

// Get returns the cached cart, or store.ErrNotFound on miss or expiry.
func (s *Store) Get(_ context.Context, tenantID, cartID string) (*pos.Cart, error) {
	raw, err := s.db.Get(cartKey(tenantID, cartID), nil)
	if err != nil {
		if errors.Is(err, ldberrors.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("leveldb get: %w", err)
	}
	if len(raw) < expiryHeaderLen {
		return nil, store.ErrNotFound
	}

	expiry := int64(binary.BigEndian.Uint64(raw[:expiryHeaderLen]))
	if s.now().Unix() >= expiry {
		// Lazy expiry: drop the entry and report a miss.
		_ = s.db.Delete(cartKey(tenantID, cartID), nil)
		return nil, store.ErrNotFound
	}

	var cart pos.Cart
	if err := json.Unmarshal(raw[expiryHeaderLen:], &cart); err != nil {
		return nil, fmt.Errorf("decode cached cart: %w", err)
	}
	return &cart, nil
}

// Put caches the cart with the store TTL.
func (s *Store) Put(_ context.Context, cart *pos.Cart) error {
	doc, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	value := make([]byte, expiryHeaderLen+len(doc))
	binary.BigEndian.PutUint64(value[:expiryHeaderLen], uint64(s.now().Add(s.ttl).Unix()))
	copy(value[expiryHeaderLen:], doc)

	if err := s.db.Put(cartKey(cart.TenantID, cart.CartID), value, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

// Delete evicts the cart. Missing keys are not an error.
func (s *Store) Delete(_ context.Context, tenantID, cartID string) error {
	if err := s.db.Delete(cartKey(tenantID, cartID), nil); err != nil {
		return fmt.Errorf("leveldb delete: %w", err)
	}
	return nil
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }
