/*
Package sqlite provides the durable SQLite-backed implementation of the
POS storage interfaces.

PURPOSE:
  The authoritative side of the dual cart store, plus the immutable
  transaction log and everything that must survive a restart. In
  production the same patterns apply to a document DB - the cart and
  transaction rows hold the full JSON document alongside the indexed
  key columns.

INTERFACES IMPLEMENTED:
  store.CartFallback   cache_cart (active + recently completed carts)
  store.TranStore      log_tran (append-only) + status_tran
  store.DeliveryStore  status_tran_delivery
  store.MasterStore    master_item / master_tax / master_payment
  store.TerminalStore  info_terminal
  counter.Service      info_terminal_counter (atomic increment)

APPEND-ONLY ENFORCEMENT:
  log_tran has no UPDATE or DELETE path. Void and return write NEW rows;
  only the sibling status_tran row changes.

KEY UNIQUENESS:
  log_tran:   (tenant, store, terminal, business_date, transaction_no)
  cache_cart: cart_id
  counters:   (terminal_id, counter_name)
  deliveries: event_id

WAL MODE:
  Opened with WAL for concurrent readers and better crash recovery.

SEE ALSO:
  - store/store.go: Interface definitions
  - store/dual.go: Composition with the KV primary
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
)

// Store implements the durable storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes the write path; SQLite allows one writer
}

// New creates a SQLite store at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Active and recently-completed cart documents
	CREATE TABLE IF NOT EXISTS cache_cart (
		cart_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		store_code TEXT NOT NULL,
		terminal_no INTEGER NOT NULL,
		status TEXT NOT NULL,
		etag TEXT NOT NULL,
		doc TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_cart_terminal
		ON cache_cart(tenant_id, store_code, terminal_no, status);

	-- Immutable transactions (append-only; no UPDATE/DELETE path exists)
	CREATE TABLE IF NOT EXISTS log_tran (
		tenant_id TEXT NOT NULL,
		store_code TEXT NOT NULL,
		terminal_no INTEGER NOT NULL,
		business_date TEXT NOT NULL,
		transaction_no INTEGER NOT NULL,
		transaction_type INTEGER NOT NULL,
		receipt_no INTEGER NOT NULL,
		cart_id TEXT NOT NULL,
		generate_date_time TEXT NOT NULL,
		doc TEXT NOT NULL,
		PRIMARY KEY (tenant_id, store_code, terminal_no, business_date, transaction_no)
	);

	CREATE INDEX IF NOT EXISTS idx_log_tran_cart
		ON log_tran(cart_id);
	CREATE INDEX IF NOT EXISTS idx_log_tran_store_no
		ON log_tran(tenant_id, store_code, transaction_no);

	-- Void/return flags, one per transaction
	CREATE TABLE IF NOT EXISTS status_tran (
		tenant_id TEXT NOT NULL,
		store_code TEXT NOT NULL,
		terminal_no INTEGER NOT NULL,
		business_date TEXT NOT NULL,
		transaction_no INTEGER NOT NULL,
		doc TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, store_code, terminal_no, business_date, transaction_no)
	);

	-- Per-terminal monotonic counters
	CREATE TABLE IF NOT EXISTS info_terminal_counter (
		terminal_id TEXT NOT NULL,
		counter_name TEXT NOT NULL,
		value INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (terminal_id, counter_name)
	);

	-- Fan-out progress, one row per published event
	CREATE TABLE IF NOT EXISTS status_tran_delivery (
		event_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		store_code TEXT NOT NULL DEFAULT '',
		terminal_no INTEGER NOT NULL DEFAULT 0,
		transaction_no INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		published_at TEXT NOT NULL,
		doc TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_delivery_status_published
		ON status_tran_delivery(status, published_at);
	CREATE INDEX IF NOT EXISTS idx_delivery_tran
		ON status_tran_delivery(tenant_id, store_code, terminal_no, transaction_no);

	-- Master data
	CREATE TABLE IF NOT EXISTS master_item (
		tenant_id TEXT NOT NULL,
		store_code TEXT NOT NULL,
		item_code TEXT NOT NULL,
		doc TEXT NOT NULL,
		PRIMARY KEY (tenant_id, store_code, item_code)
	);

	CREATE TABLE IF NOT EXISTS master_tax (
		tenant_id TEXT NOT NULL,
		tax_code TEXT NOT NULL,
		doc TEXT NOT NULL,
		PRIMARY KEY (tenant_id, tax_code)
	);

	CREATE TABLE IF NOT EXISTS master_payment (
		tenant_id TEXT NOT NULL,
		payment_code TEXT NOT NULL,
		doc TEXT NOT NULL,
		PRIMARY KEY (tenant_id, payment_code)
	);

	-- Terminal registry
	CREATE TABLE IF NOT EXISTS info_terminal (
		tenant_id TEXT NOT NULL,
		store_code TEXT NOT NULL,
		terminal_no INTEGER NOT NULL,
		api_key TEXT NOT NULL,
		status TEXT NOT NULL,
		signed_in_staff TEXT,
		business_date TEXT NOT NULL,
		PRIMARY KEY (tenant_id, store_code, terminal_no)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// =============================================================================
// CART FALLBACK (store.CartFallback)
// =============================================================================

func (s *Store) GetCart(ctx context.Context, tenantID, cartID string) (*pos.Cart, error) {
	var doc, etag string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, etag FROM cache_cart WHERE cart_id = ? AND tenant_id = ?`,
		cartID, tenantID).Scan(&doc, &etag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var cart pos.Cart
	if err := json.Unmarshal([]byte(doc), &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	cart.Etag = etag
	return &cart, nil
}

func (s *Store) SaveCart(ctx context.Context, cart *pos.Cart, prevEtag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newEtag := uuid.NewString()
	cart.Etag = newEtag
	cart.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if prevEtag == "" {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO cache_cart (cart_id, tenant_id, store_code, terminal_no, status, etag, doc, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			cart.CartID, cart.TenantID, cart.StoreCode, cart.TerminalNo,
			string(cart.Status), newEtag, string(doc), nowUTC())
		if err != nil {
			cart.Etag = prevEtag
			if isUniqueViolation(err) {
				return store.ErrEtagMismatch
			}
			return fmt.Errorf("insert cart: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE cache_cart SET status = ?, etag = ?, doc = ?, updated_at = ?
		 WHERE cart_id = ? AND tenant_id = ? AND etag = ?`,
		string(cart.Status), newEtag, string(doc), nowUTC(),
		cart.CartID, cart.TenantID, prevEtag)
	if err != nil {
		cart.Etag = prevEtag
		return fmt.Errorf("update cart: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		cart.Etag = prevEtag
		return store.ErrEtagMismatch
	}
	return nil
}

func (s *Store) FindActiveCart(ctx context.Context, tenantID, storeCode string, terminalNo int) (*pos.Cart, error) {
	var doc, etag string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, etag FROM cache_cart
		 WHERE tenant_id = ? AND store_code = ? AND terminal_no = ?
		   AND status NOT IN (?, ?)
		 ORDER BY updated_at DESC LIMIT 1`,
		tenantID, storeCode, terminalNo,
		string(pos.StatusCompleted), string(pos.StatusCancelled)).Scan(&doc, &etag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active cart: %w", err)
	}

	var cart pos.Cart
	if err := json.Unmarshal([]byte(doc), &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	cart.Etag = etag
	return &cart, nil
}

// PurgeCompletedBefore removes completed/cancelled cart snapshots older
// than cutoff. Invoked by the retention sweep, never by the request path.
func (s *Store) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_cart WHERE status IN (?, ?) AND updated_at < ?`,
		string(pos.StatusCompleted), string(pos.StatusCancelled),
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge carts: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// COUNTERS (counter.Service)
// =============================================================================

// Allocate atomically increments the named counter for a terminal and
// returns the new value. The first allocation upserts the row at 1.
func (s *Store) Allocate(ctx context.Context, terminalID, counterName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("counter begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO info_terminal_counter (terminal_id, counter_name, value, updated_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(terminal_id, counter_name) DO UPDATE SET value = value + 1, updated_at = excluded.updated_at`,
		terminalID, counterName, nowUTC())
	if err != nil {
		return 0, fmt.Errorf("counter upsert: %w", err)
	}

	var value int64
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM info_terminal_counter WHERE terminal_id = ? AND counter_name = ?`,
		terminalID, counterName).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("counter read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("counter commit: %w", err)
	}
	return value, nil
}

// =============================================================================
// TRANSACTION LOG (store.TranStore)
// =============================================================================

func (s *Store) InsertTran(ctx context.Context, t *pos.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tran begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO log_tran (tenant_id, store_code, terminal_no, business_date, transaction_no,
		                       transaction_type, receipt_no, cart_id, generate_date_time, doc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TenantID, t.StoreCode, t.TerminalNo, t.BusinessDate, t.TransactionNo,
		int(t.TransactionType), t.ReceiptNo, t.CartID,
		t.GenerateDateTime.UTC().Format(time.RFC3339Nano), string(doc))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	status := pos.TransactionStatus{
		TenantID:      t.TenantID,
		StoreCode:     t.StoreCode,
		TerminalNo:    t.TerminalNo,
		BusinessDate:  t.BusinessDate,
		TransactionNo: t.TransactionNo,
	}
	sdoc, err := json.Marshal(&status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO status_tran (tenant_id, store_code, terminal_no, business_date, transaction_no, doc, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TenantID, t.StoreCode, t.TerminalNo, t.BusinessDate, t.TransactionNo,
		string(sdoc), nowUTC())
	if err != nil {
		return fmt.Errorf("insert status: %w", err)
	}

	return tx.Commit()
}

func scanTran(doc string) (*pos.Transaction, error) {
	var t pos.Transaction
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTran(ctx context.Context, tenantID, storeCode string, terminalNo int, businessDate string, transactionNo int64) (*pos.Transaction, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM log_tran
		 WHERE tenant_id = ? AND store_code = ? AND terminal_no = ? AND business_date = ? AND transaction_no = ?`,
		tenantID, storeCode, terminalNo, businessDate, transactionNo).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return scanTran(doc)
}

func (s *Store) FindTran(ctx context.Context, tenantID, storeCode string, terminalNo int, transactionNo int64) (*pos.Transaction, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM log_tran
		 WHERE tenant_id = ? AND store_code = ? AND terminal_no = ? AND transaction_no = ?
		 ORDER BY business_date DESC LIMIT 1`,
		tenantID, storeCode, terminalNo, transactionNo).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return scanTran(doc)
}

func (s *Store) FindTranInStore(ctx context.Context, tenantID, storeCode string, transactionNo int64) (*pos.Transaction, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM log_tran
		 WHERE tenant_id = ? AND store_code = ? AND transaction_no = ?
		 ORDER BY business_date DESC LIMIT 1`,
		tenantID, storeCode, transactionNo).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction in store: %w", err)
	}
	return scanTran(doc)
}

func (s *Store) ListTrans(ctx context.Context, f store.TranFilter) ([]*pos.Transaction, error) {
	query := `SELECT doc FROM log_tran
	          WHERE tenant_id = ? AND store_code = ? AND terminal_no = ?`
	args := []any{f.TenantID, f.StoreCode, f.TerminalNo}
	if f.BusinessDate != "" {
		query += ` AND business_date = ?`
		args = append(args, f.BusinessDate)
	}
	query += ` ORDER BY business_date DESC, transaction_no DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var trans []*pos.Transaction
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		t, err := scanTran(doc)
		if err != nil {
			return nil, err
		}
		trans = append(trans, t)
	}
	return trans, rows.Err()
}

func (s *Store) GetTranStatus(ctx context.Context, tenantID, storeCode string, terminalNo int, businessDate string, transactionNo int64) (*pos.TransactionStatus, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM status_tran
		 WHERE tenant_id = ? AND store_code = ? AND terminal_no = ? AND business_date = ? AND transaction_no = ?`,
		tenantID, storeCode, terminalNo, businessDate, transactionNo).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	var st pos.TransactionStatus
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}

func (s *Store) SaveTranStatus(ctx context.Context, st *pos.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE status_tran SET doc = ?, updated_at = ?
		 WHERE tenant_id = ? AND store_code = ? AND terminal_no = ? AND business_date = ? AND transaction_no = ?`,
		string(doc), nowUTC(),
		st.TenantID, st.StoreCode, st.TerminalNo, st.BusinessDate, st.TransactionNo)
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// =============================================================================
// EVENT DELIVERIES (store.DeliveryStore)
// =============================================================================

func (s *Store) InsertDelivery(ctx context.Context, d *pos.EventDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO status_tran_delivery (event_id, tenant_id, store_code, terminal_no, transaction_no, status, published_at, doc, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.EventID, d.TenantID, d.StoreCode, d.TerminalNo, d.TransactionNo, string(d.OverallStatus),
		d.PublishedAt.UTC().Format(time.RFC3339Nano), string(doc), nowUTC())
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, eventID string) (*pos.EventDelivery, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM status_tran_delivery WHERE event_id = ?`, eventID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}

	var d pos.EventDelivery
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("decode delivery: %w", err)
	}
	return &d, nil
}

func (s *Store) FindDeliveryByTran(ctx context.Context, tenantID, storeCode string, terminalNo int, transactionNo int64) (*pos.EventDelivery, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM status_tran_delivery
		 WHERE tenant_id = ? AND store_code = ? AND terminal_no = ? AND transaction_no = ?
		 ORDER BY published_at DESC LIMIT 1`,
		tenantID, storeCode, terminalNo, transactionNo).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find delivery: %w", err)
	}

	var d pos.EventDelivery
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return nil, fmt.Errorf("decode delivery: %w", err)
	}
	return &d, nil
}

func (s *Store) SaveDelivery(ctx context.Context, d *pos.EventDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode delivery: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE status_tran_delivery SET status = ?, doc = ?, updated_at = ? WHERE event_id = ?`,
		string(d.OverallStatus), string(doc), nowUTC(), d.EventID)
	if err != nil {
		return fmt.Errorf("save delivery: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListUndelivered(ctx context.Context, olderThan, newerThan time.Time) ([]*pos.EventDelivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM status_tran_delivery
		 WHERE status IN (?, ?, ?) AND published_at <= ? AND published_at > ?
		 ORDER BY published_at ASC`,
		string(pos.DeliveryPending), string(pos.DeliveryPartial), string(pos.DeliveryFailed),
		olderThan.UTC().Format(time.RFC3339Nano), newerThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("list undelivered: %w", err)
	}
	defer rows.Close()

	var out []*pos.EventDelivery
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var d pos.EventDelivery
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, fmt.Errorf("decode delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// =============================================================================
// MASTER DATA (store.MasterStore)
// =============================================================================

func (s *Store) GetItem(ctx context.Context, tenantID, storeCode, itemCode string) (*pos.ItemMaster, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM master_item WHERE tenant_id = ? AND store_code = ? AND item_code = ?`,
		tenantID, storeCode, itemCode).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	var m pos.ItemMaster
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return &m, nil
}

func (s *Store) SaveItem(ctx context.Context, tenantID, storeCode string, m *pos.ItemMaster) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO master_item (tenant_id, store_code, item_code, doc) VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant_id, store_code, item_code) DO UPDATE SET doc = excluded.doc`,
		tenantID, storeCode, m.ItemCode, string(doc))
	return err
}

func (s *Store) GetTax(ctx context.Context, tenantID, taxCode string) (*pos.TaxMaster, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM master_tax WHERE tenant_id = ? AND tax_code = ?`,
		tenantID, taxCode).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tax: %w", err)
	}
	var m pos.TaxMaster
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("decode tax: %w", err)
	}
	return &m, nil
}

func (s *Store) SaveTax(ctx context.Context, tenantID string, m *pos.TaxMaster) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO master_tax (tenant_id, tax_code, doc) VALUES (?, ?, ?)
		 ON CONFLICT(tenant_id, tax_code) DO UPDATE SET doc = excluded.doc`,
		tenantID, m.TaxCode, string(doc))
	return err
}

func (s *Store) GetPayment(ctx context.Context, tenantID, paymentCode string) (*pos.PaymentMaster, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM master_payment WHERE tenant_id = ? AND payment_code = ?`,
		tenantID, paymentCode).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment master: %w", err)
	}
	var m pos.PaymentMaster
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("decode payment master: %w", err)
	}
	return &m, nil
}

func (s *Store) SavePayment(ctx context.Context, tenantID string, m *pos.PaymentMaster) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO master_payment (tenant_id, payment_code, doc) VALUES (?, ?, ?)
		 ON CONFLICT(tenant_id, payment_code) DO UPDATE SET doc = excluded.doc`,
		tenantID, m.PaymentCode, string(doc))
	return err
}

// =============================================================================
// TERMINALS (store.TerminalStore)
// =============================================================================

func (s *Store) GetTerminal(ctx context.Context, tenantID, storeCode string, terminalNo int) (*store.TerminalRecord, error) {
	var t store.TerminalRecord
	var staff sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, store_code, terminal_no, api_key, status, signed_in_staff, business_date
		 FROM info_terminal WHERE tenant_id = ? AND store_code = ? AND terminal_no = ?`,
		tenantID, storeCode, terminalNo).Scan(
		&t.TenantID, &t.StoreCode, &t.TerminalNo, &t.APIKey, &t.Status, &staff, &t.BusinessDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get terminal: %w", err)
	}
	t.SignedInStaff = staff.String
	return &t, nil
}

func (s *Store) SaveTerminal(ctx context.Context, t *store.TerminalRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO info_terminal (tenant_id, store_code, terminal_no, api_key, status, signed_in_staff, business_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, store_code, terminal_no) DO UPDATE SET
		   api_key = excluded.api_key, status = excluded.status,
		   signed_in_staff = excluded.signed_in_staff, business_date = excluded.business_date`,
		t.TenantID, t.StoreCode, t.TerminalNo, t.APIKey, t.Status, t.SignedInStaff, t.BusinessDate)
	if err != nil {
		return fmt.Errorf("save terminal: %w", err)
	}
	return nil
}
