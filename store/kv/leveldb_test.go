package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
	"github.com/warp/pos-core/store/kv"
)

func openStore(t *testing.T, ttl time.Duration) *kv.Store {
	t.Helper()
	s, err := kv.Open(t.TempDir(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKV_PutGetRoundTrip(t *testing.T) {
	s := openStore(t, time.Hour)
	ctx := context.Background()

	cart := &pos.Cart{CartID: "c1", TenantID: "demo", StoreCode: "0001", TerminalNo: 1, Status: pos.StatusIdle}
	require.NoError(t, s.Put(ctx, cart))

	got, err := s.Get(ctx, "demo", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.CartID)
	assert.Equal(t, pos.StatusIdle, got.Status)
}

func TestKV_MissAndTenantIsolation(t *testing.T) {
	s := openStore(t, time.Hour)
	ctx := context.Background()

	_, err := s.Get(ctx, "demo", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Put(ctx, &pos.Cart{CartID: "c2", TenantID: "demo"}))
	_, err = s.Get(ctx, "other", "c2")
	assert.ErrorIs(t, err, store.ErrNotFound, "keys are tenant-scoped")
}

func TestKV_ExpiredEntryReadsAsMiss(t *testing.T) {
	s := openStore(t, time.Hour)
	ctx := context.Background()

	now := time.Now()
	s.SetClock(func() time.Time { return now })
	require.NoError(t, s.Put(ctx, &pos.Cart{CartID: "c3", TenantID: "demo"}))

	// Still fresh
	_, err := s.Get(ctx, "demo", "c3")
	require.NoError(t, err)

	// WHEN: The TTL elapses
	now = now.Add(time.Hour + time.Second)

	// THEN: The entry reads as a miss and stays gone
	_, err = s.Get(ctx, "demo", "c3")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Get(ctx, "demo", "c3")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestKV_DeleteIsIdempotent(t *testing.T) {
	s := openStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, &pos.Cart{CartID: "c4", TenantID: "demo"}))
	require.NoError(t, s.Delete(ctx, "demo", "c4"))
	require.NoError(t, s.Delete(ctx, "demo", "c4"), "missing key is not an error")

	_, err := s.Get(ctx, "demo", "c4")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
