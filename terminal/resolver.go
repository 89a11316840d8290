/*
Package terminal authenticates POS devices and enforces their session
preconditions.

PURPOSE:
  Every cart operation arrives with an api key and the caller's terminal
  identity {tenant}-{store}-{terminal}. The resolver checks the key
  against the registered terminal, verifies the terminal is opened and a
  staff member is signed in, and hands the validated record to the
  service layer.

CACHING:
  Terminal records change rarely (open/close, staff sign-in) but are read
  on every request. Lookups go through a fastcache layer with a short TTL
  so a key rotation or close propagates within the TTL without a database
  round trip per request.

SEE ALSO:
  - store: TerminalStore and TerminalRecord
  - api: Middleware that calls the resolver per request
*/
package terminal

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
)

// Statuses a terminal record can carry.
const (
	StatusOpened = "opened"
	StatusClosed = "closed"
)

const cacheMaxBytes = 32 << 20

// Resolver validates terminal identity and session state.
type Resolver struct {
	store store.TerminalStore
	cache *fastcache.Cache
	ttl   time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewResolver builds a resolver over the terminal store with the given
// cache TTL. A zero TTL disables caching.
func NewResolver(ts store.TerminalStore, ttl time.Duration) *Resolver {
	return &Resolver{
		store: ts,
		cache: fastcache.New(cacheMaxBytes),
		ttl:   ttl,
		now:   time.Now,
	}
}

// cachedRecord carries the api key, which TerminalRecord deliberately
// excludes from its JSON form.
type cachedRecord struct {
	Record store.TerminalRecord `json:"record"`
	APIKey string               `json:"apiKey"`
	Expiry int64                `json:"expiry"`
}

// Authenticate resolves the terminal and checks its api key. It returns
// ErrUnauthorized for an unknown terminal or a wrong key; callers cannot
// distinguish the two.
func (r *Resolver) Authenticate(ctx context.Context, tenantID, storeCode string, terminalNo int, apiKey string) (*store.TerminalRecord, error) {
	rec, key, err := r.lookup(ctx, tenantID, storeCode, terminalNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, pos.ErrUnauthorized
		}
		return nil, fmt.Errorf("resolve terminal: %w", err)
	}
	if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) != 1 {
		return nil, pos.ErrUnauthorized
	}
	return rec, nil
}

// RequireSession verifies the terminal is opened with a signed-in staff
// member, the preconditions for every cart mutation.
func (r *Resolver) RequireSession(rec *store.TerminalRecord) error {
	if rec.Status != StatusOpened {
		return pos.ErrTerminalNotOpened.WithDetail("terminal %s", pos.TerminalID(rec.TenantID, rec.StoreCode, rec.TerminalNo))
	}
	if rec.SignedInStaff == "" {
		return pos.ErrStaffNotSignedIn
	}
	return nil
}

// Invalidate drops the cached record after a terminal state change.
func (r *Resolver) Invalidate(tenantID, storeCode string, terminalNo int) {
	r.cache.Del(cacheKey(tenantID, storeCode, terminalNo))
}

func cacheKey(tenantID, storeCode string, terminalNo int) []byte {
	return []byte("terminal/" + pos.TerminalID(tenantID, storeCode, terminalNo))
}

func (r *Resolver) lookup(ctx context.Context, tenantID, storeCode string, terminalNo int) (*store.TerminalRecord, string, error) {
	key := cacheKey(tenantID, storeCode, terminalNo)

	if r.ttl > 0 {
		if raw := r.cache.Get(nil, key); len(raw) > 0 {
			var c cachedRecord
			if err := json.Unmarshal(raw, &c); err == nil && r.now().Unix() < c.Expiry {
				return &c.Record, c.APIKey, nil
			}
			r.cache.Del(key)
		}
	}

	rec, err := r.store.GetTerminal(ctx, tenantID, storeCode, terminalNo)
	if err != nil {
		return nil, "", err
	}

	if r.ttl > 0 {
		c := cachedRecord{Record: *rec, APIKey: rec.APIKey, Expiry: r.now().Add(r.ttl).Unix()}
		if raw, err := json.Marshal(c); err == nil {
			r.cache.Set(key, raw)
		}
	}
	return rec, rec.APIKey, nil
}

// SetClock overrides the time source. Tests only.
func (r *Resolver) SetClock(now func() time.Time) { r.now = now }
