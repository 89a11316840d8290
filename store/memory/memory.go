// Package memory provides in-memory implementations of the storage
// interfaces for tests and local development.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
)

// =============================================================================
// MEMORY STORE - Implements every storage interface
// =============================================================================

type Store struct {
	mu sync.RWMutex

	carts      map[string][]byte // cart_id -> JSON doc
	cartEtags  map[string]string
	trans      map[tranKey][]byte
	statuses   map[tranKey][]byte
	counters   map[counterKey]int64
	deliveries map[string][]byte
	items      map[string]pos.ItemMaster    // tenant/store/code
	taxes      map[string]pos.TaxMaster     // tenant/code
	payments   map[string]pos.PaymentMaster // tenant/code
	terminals  map[string]store.TerminalRecord

	// FailPrimary simulates a dead KV side when this store doubles as the
	// primary in dual-store tests.
	FailPrimary error
}

type tranKey struct {
	TenantID      string
	StoreCode     string
	TerminalNo    int
	BusinessDate  string
	TransactionNo int64
}

type counterKey struct {
	TerminalID  string
	CounterName string
}

func New() *Store {
	return &Store{
		carts:      make(map[string][]byte),
		cartEtags:  make(map[string]string),
		trans:      make(map[tranKey][]byte),
		statuses:   make(map[tranKey][]byte),
		counters:   make(map[counterKey]int64),
		deliveries: make(map[string][]byte),
		items:      make(map[string]pos.ItemMaster),
		taxes:      make(map[string]pos.TaxMaster),
		payments:   make(map[string]pos.PaymentMaster),
		terminals:  make(map[string]store.TerminalRecord),
	}
}

// Documents round-trip through JSON so tests exercise the same
// serialization path as the real stores.
func encodeCart(c *pos.Cart) []byte {
	b, _ := json.Marshal(c)
	return b
}

func decodeCart(b []byte) *pos.Cart {
	var c pos.Cart
	_ = json.Unmarshal(b, &c)
	return &c
}

// =============================================================================
// CART PRIMARY (store.CartPrimary)
// =============================================================================

func (s *Store) Get(_ context.Context, tenantID, cartID string) (*pos.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailPrimary != nil {
		return nil, s.FailPrimary
	}
	b, ok := s.carts[cartID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := decodeCart(b)
	if c.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	c.Etag = s.cartEtags[cartID]
	return c, nil
}

func (s *Store) Put(_ context.Context, cart *pos.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPrimary != nil {
		return s.FailPrimary
	}
	s.carts[cart.CartID] = encodeCart(cart)
	s.cartEtags[cart.CartID] = cart.Etag
	return nil
}

func (s *Store) Delete(_ context.Context, tenantID, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPrimary != nil {
		return s.FailPrimary
	}
	delete(s.carts, cartID)
	delete(s.cartEtags, cartID)
	return nil
}

// =============================================================================
// CART FALLBACK (store.CartFallback)
// =============================================================================

func (s *Store) GetCart(_ context.Context, tenantID, cartID string) (*pos.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.carts[cartID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := decodeCart(b)
	if c.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	c.Etag = s.cartEtags[cartID]
	return c, nil
}

func (s *Store) SaveCart(_ context.Context, cart *pos.Cart, prevEtag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.cartEtags[cart.CartID]
	if prevEtag == "" && exists {
		return store.ErrEtagMismatch
	}
	if prevEtag != "" && current != prevEtag {
		return store.ErrEtagMismatch
	}

	cart.Etag = uuid.NewString()
	cart.UpdatedAt = time.Now().UTC()
	s.carts[cart.CartID] = encodeCart(cart)
	s.cartEtags[cart.CartID] = cart.Etag
	return nil
}

func (s *Store) FindActiveCart(_ context.Context, tenantID, storeCode string, terminalNo int) (*pos.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *pos.Cart
	for id, b := range s.carts {
		c := decodeCart(b)
		if c.TenantID != tenantID || c.StoreCode != storeCode || c.TerminalNo != terminalNo {
			continue
		}
		if c.Status.IsTerminal() {
			continue
		}
		c.Etag = s.cartEtags[id]
		if newest == nil || c.UpdatedAt.After(newest.UpdatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, store.ErrNotFound
	}
	return newest, nil
}

// =============================================================================
// COUNTERS (counter.Service)
// =============================================================================

func (s *Store) Allocate(_ context.Context, terminalID, counterName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := counterKey{TerminalID: terminalID, CounterName: counterName}
	s.counters[k]++
	return s.counters[k], nil
}

// =============================================================================
// TRANSACTION LOG (store.TranStore)
// =============================================================================

func keyOf(t *pos.Transaction) tranKey {
	return tranKey{
		TenantID:      t.TenantID,
		StoreCode:     t.StoreCode,
		TerminalNo:    t.TerminalNo,
		BusinessDate:  t.BusinessDate,
		TransactionNo: t.TransactionNo,
	}
}

func (s *Store) InsertTran(_ context.Context, t *pos.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(t)
	if _, exists := s.trans[k]; exists {
		return store.ErrDuplicate
	}
	b, _ := json.Marshal(t)
	s.trans[k] = b

	status := pos.TransactionStatus{
		TenantID:      t.TenantID,
		StoreCode:     t.StoreCode,
		TerminalNo:    t.TerminalNo,
		BusinessDate:  t.BusinessDate,
		TransactionNo: t.TransactionNo,
	}
	sb, _ := json.Marshal(&status)
	s.statuses[k] = sb
	return nil
}

func (s *Store) GetTran(_ context.Context, tenantID, storeCode string, terminalNo int, businessDate string, transactionNo int64) (*pos.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.trans[tranKey{tenantID, storeCode, terminalNo, businessDate, transactionNo}]
	if !ok {
		return nil, store.ErrNotFound
	}
	var t pos.Transaction
	_ = json.Unmarshal(b, &t)
	return &t, nil
}

func (s *Store) FindTran(_ context.Context, tenantID, storeCode string, terminalNo int, transactionNo int64) (*pos.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, b := range s.trans {
		if k.TenantID == tenantID && k.StoreCode == storeCode &&
			k.TerminalNo == terminalNo && k.TransactionNo == transactionNo {
			var t pos.Transaction
			_ = json.Unmarshal(b, &t)
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindTranInStore(_ context.Context, tenantID, storeCode string, transactionNo int64) (*pos.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, b := range s.trans {
		if k.TenantID == tenantID && k.StoreCode == storeCode && k.TransactionNo == transactionNo {
			var t pos.Transaction
			_ = json.Unmarshal(b, &t)
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTrans(_ context.Context, f store.TranFilter) ([]*pos.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*pos.Transaction
	for k, b := range s.trans {
		if k.TenantID != f.TenantID || k.StoreCode != f.StoreCode || k.TerminalNo != f.TerminalNo {
			continue
		}
		if f.BusinessDate != "" && k.BusinessDate != f.BusinessDate {
			continue
		}
		var t pos.Transaction
		_ = json.Unmarshal(b, &t)
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BusinessDate != out[j].BusinessDate {
			return out[i].BusinessDate > out[j].BusinessDate
		}
		return out[i].TransactionNo > out[j].TransactionNo
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetTranStatus(_ context.Context, tenantID, storeCode string, terminalNo int, businessDate string, transactionNo int64) (*pos.TransactionStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.statuses[tranKey{tenantID, storeCode, terminalNo, businessDate, transactionNo}]
	if !ok {
		return nil, store.ErrNotFound
	}
	var st pos.TransactionStatus
	_ = json.Unmarshal(b, &st)
	return &st, nil
}

func (s *Store) SaveTranStatus(_ context.Context, st *pos.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tranKey{st.TenantID, st.StoreCode, st.TerminalNo, st.BusinessDate, st.TransactionNo}
	if _, ok := s.statuses[k]; !ok {
		return store.ErrNotFound
	}
	b, _ := json.Marshal(st)
	s.statuses[k] = b
	return nil
}

// =============================================================================
// EVENT DELIVERIES (store.DeliveryStore)
// =============================================================================

func (s *Store) InsertDelivery(_ context.Context, d *pos.EventDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.deliveries[d.EventID]; exists {
		return store.ErrDuplicate
	}
	b, _ := json.Marshal(d)
	s.deliveries[d.EventID] = b
	return nil
}

func (s *Store) GetDelivery(_ context.Context, eventID string) (*pos.EventDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.deliveries[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	var d pos.EventDelivery
	_ = json.Unmarshal(b, &d)
	return &d, nil
}

func (s *Store) FindDeliveryByTran(_ context.Context, tenantID, storeCode string, terminalNo int, transactionNo int64) (*pos.EventDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *pos.EventDelivery
	for _, b := range s.deliveries {
		var d pos.EventDelivery
		_ = json.Unmarshal(b, &d)
		if d.TenantID != tenantID || d.StoreCode != storeCode ||
			d.TerminalNo != terminalNo || d.TransactionNo != transactionNo {
			continue
		}
		if found == nil || d.PublishedAt.After(found.PublishedAt) {
			c := d
			found = &c
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) SaveDelivery(_ context.Context, d *pos.EventDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[d.EventID]; !ok {
		return store.ErrNotFound
	}
	b, _ := json.Marshal(d)
	s.deliveries[d.EventID] = b
	return nil
}

func (s *Store) ListUndelivered(_ context.Context, olderThan, newerThan time.Time) ([]*pos.EventDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*pos.EventDelivery
	for _, b := range s.deliveries {
		var d pos.EventDelivery
		_ = json.Unmarshal(b, &d)
		if d.OverallStatus == pos.DeliveryDelivered {
			continue
		}
		if d.PublishedAt.After(olderThan) || !d.PublishedAt.After(newerThan) {
			continue
		}
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, nil
}

// =============================================================================
// MASTER DATA (store.MasterStore)
// =============================================================================

func (s *Store) GetItem(_ context.Context, tenantID, storeCode, itemCode string) (*pos.ItemMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.items[tenantID+"/"+storeCode+"/"+itemCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) SaveItem(_ context.Context, tenantID, storeCode string, m *pos.ItemMaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[tenantID+"/"+storeCode+"/"+m.ItemCode] = *m
	return nil
}

func (s *Store) GetTax(_ context.Context, tenantID, taxCode string) (*pos.TaxMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.taxes[tenantID+"/"+taxCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) SaveTax(_ context.Context, tenantID string, m *pos.TaxMaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taxes[tenantID+"/"+m.TaxCode] = *m
	return nil
}

func (s *Store) GetPayment(_ context.Context, tenantID, paymentCode string) (*pos.PaymentMaster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.payments[tenantID+"/"+paymentCode]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) SavePayment(_ context.Context, tenantID string, m *pos.PaymentMaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[tenantID+"/"+m.PaymentCode] = *m
	return nil
}

// =============================================================================
// TERMINALS (store.TerminalStore)
// =============================================================================

func (s *Store) GetTerminal(_ context.Context, tenantID, storeCode string, terminalNo int) (*store.TerminalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.terminals[pos.TerminalID(tenantID, storeCode, terminalNo)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) SaveTerminal(_ context.Context, t *store.TerminalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminals[pos.TerminalID(t.TenantID, t.StoreCode, t.TerminalNo)] = *t
	return nil
}
