/*
dual.go - Dual-backed cart store with circuit breakers

PURPOSE:
  Composes the fast KV primary with the durable fallback:

  Load:  primary first; on miss, breaker-open or primary error, read the
         fallback and re-fill the primary (cache fill).
  Save:  fallback first (authoritative, etag precondition); then primary
         best-effort - a primary failure is logged, never surfaced.
  Complete: save to fallback, evict from primary. The fallback retains
         the completed snapshot for later queries.

  Each side has its own breaker. A fallback failure means the cart store
  is down (StoreUnavailable); a primary failure alone only costs speed.

SEE ALSO:
  - store/kv: Primary implementation
  - store/sqlite: Fallback implementation
  - breaker: Failure accounting
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/warp/pos-core/breaker"
	"github.com/warp/pos-core/pos"
)

// DualCartStore is the production CartStore.
type DualCartStore struct {
	Primary  CartPrimary
	Fallback CartFallback

	PrimaryBreaker  *breaker.Breaker
	FallbackBreaker *breaker.Breaker
}

// NewDualCartStore wires the two backends with their breakers.
func NewDualCartStore(primary CartPrimary, fallback CartFallback, pb, fb *breaker.Breaker) *DualCartStore {
	return &DualCartStore{
		Primary:         primary,
		Fallback:        fallback,
		PrimaryBreaker:  pb,
		FallbackBreaker: fb,
	}
}

// Load attempts the primary, then falls back and cache-fills.
func (s *DualCartStore) Load(ctx context.Context, tenantID, cartID string) (*pos.Cart, error) {
	var cart *pos.Cart
	err := s.PrimaryBreaker.Do(func() error {
		var e error
		cart, e = s.Primary.Get(ctx, tenantID, cartID)
		if errors.Is(e, ErrNotFound) {
			// A miss is not a primary failure; don't trip the breaker.
			cart = nil
			return nil
		}
		return e
	})
	if err == nil && cart != nil {
		return cart, nil
	}
	if err != nil && !errors.Is(err, breaker.ErrOpen) {
		log.Printf("[CartStore] primary read failed for %s: %v", cartID, err)
	}

	err = s.FallbackBreaker.Do(func() error {
		var e error
		cart, e = s.Fallback.GetCart(ctx, tenantID, cartID)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pos.ErrCartNotFound.WithDetail("cart %s", cartID)
		}
		if errors.Is(err, breaker.ErrOpen) {
			return nil, pos.ErrStoreUnavailable.WithDetail("cart store circuit open")
		}
		return nil, fmt.Errorf("fallback read: %w", err)
	}

	s.fillPrimary(ctx, cart)
	return cart, nil
}

// Save writes the fallback first; the primary write is best-effort.
func (s *DualCartStore) Save(ctx context.Context, cart *pos.Cart) error {
	prev := cart.Etag
	err := s.FallbackBreaker.Do(func() error {
		return s.Fallback.SaveCart(ctx, cart, prev)
	})
	if err != nil {
		if errors.Is(err, ErrEtagMismatch) {
			return err
		}
		if errors.Is(err, breaker.ErrOpen) {
			return pos.ErrStoreUnavailable.WithDetail("cart store circuit open")
		}
		return fmt.Errorf("fallback save: %w", err)
	}

	s.fillPrimary(ctx, cart)
	return nil
}

// Complete persists the terminal-state cart and evicts it from primary.
func (s *DualCartStore) Complete(ctx context.Context, cart *pos.Cart) error {
	prev := cart.Etag
	err := s.FallbackBreaker.Do(func() error {
		return s.Fallback.SaveCart(ctx, cart, prev)
	})
	if err != nil {
		if errors.Is(err, ErrEtagMismatch) {
			return err
		}
		if errors.Is(err, breaker.ErrOpen) {
			return pos.ErrStoreUnavailable.WithDetail("cart store circuit open")
		}
		return fmt.Errorf("fallback save: %w", err)
	}

	if perr := s.PrimaryBreaker.Do(func() error {
		return s.Primary.Delete(ctx, cart.TenantID, cart.CartID)
	}); perr != nil && !errors.Is(perr, breaker.ErrOpen) {
		log.Printf("[CartStore] primary evict failed for %s: %v", cart.CartID, perr)
	}
	return nil
}

// FindActive consults the fallback's terminal index directly; the primary
// is keyed by cart_id only.
func (s *DualCartStore) FindActive(ctx context.Context, tenantID, storeCode string, terminalNo int) (*pos.Cart, error) {
	var cart *pos.Cart
	err := s.FallbackBreaker.Do(func() error {
		var e error
		cart, e = s.Fallback.FindActiveCart(ctx, tenantID, storeCode, terminalNo)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pos.ErrCartNotFound
		}
		if errors.Is(err, breaker.ErrOpen) {
			return nil, pos.ErrStoreUnavailable.WithDetail("cart store circuit open")
		}
		return nil, err
	}
	return cart, nil
}

func (s *DualCartStore) fillPrimary(ctx context.Context, cart *pos.Cart) {
	if err := s.PrimaryBreaker.Do(func() error {
		return s.Primary.Put(ctx, cart)
	}); err != nil && !errors.Is(err, breaker.ErrOpen) {
		log.Printf("[CartStore] primary write failed for %s: %v", cart.CartID, err)
	}
}
