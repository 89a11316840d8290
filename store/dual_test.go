package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pos-core/breaker"
	"github.com/warp/pos-core/pos"
	"github.com/warp/pos-core/store"
	"github.com/warp/pos-core/store/memory"
)

func newDual(primary, fallback *memory.Store) *store.DualCartStore {
	return store.NewDualCartStore(
		primary, fallback,
		breaker.New("primary", 3, time.Minute),
		breaker.New("fallback", 3, time.Minute),
	)
}

func testCart(id string) *pos.Cart {
	return &pos.Cart{
		CartID:     id,
		TenantID:   "demo",
		StoreCode:  "0001",
		TerminalNo: 1,
		Status:     pos.StatusIdle,
	}
}

func TestDual_SaveThenLoadFromPrimary(t *testing.T) {
	primary, fallback := memory.New(), memory.New()
	dual := newDual(primary, fallback)
	ctx := context.Background()

	// GIVEN: A saved cart
	c := testCart("c1")
	require.NoError(t, dual.Save(ctx, c))
	require.NotEmpty(t, c.Etag, "save assigns an etag")

	// THEN: Both sides hold it and Load serves the primary copy
	got, err := dual.Load(ctx, "demo", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.CartID)

	_, err = primary.Get(ctx, "demo", "c1")
	assert.NoError(t, err, "primary was filled on save")
}

func TestDual_LoadMissFallsBackAndFillsPrimary(t *testing.T) {
	primary, fallback := memory.New(), memory.New()
	dual := newDual(primary, fallback)
	ctx := context.Background()

	// GIVEN: A cart present only in the fallback
	c := testCart("c2")
	require.NoError(t, fallback.SaveCart(ctx, c, ""))

	// WHEN: The cart is loaded
	got, err := dual.Load(ctx, "demo", "c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", got.CartID)

	// THEN: The primary has been cache-filled
	_, err = primary.Get(ctx, "demo", "c2")
	assert.NoError(t, err)
}

func TestDual_LoadUnknownCart(t *testing.T) {
	dual := newDual(memory.New(), memory.New())

	_, err := dual.Load(context.Background(), "demo", "nope")
	assert.ErrorIs(t, err, pos.ErrCartNotFound)
}

func TestDual_SaveEtagMismatch(t *testing.T) {
	dual := newDual(memory.New(), memory.New())
	ctx := context.Background()

	c := testCart("c3")
	require.NoError(t, dual.Save(ctx, c))

	// GIVEN: A second writer updated the cart in between
	stale := *c
	stale.Etag = "stale-etag"

	err := dual.Save(ctx, &stale)
	assert.ErrorIs(t, err, store.ErrEtagMismatch)
}

func TestDual_PrimaryOutageDegradesToFallback(t *testing.T) {
	primary, fallback := memory.New(), memory.New()
	dual := newDual(primary, fallback)
	ctx := context.Background()

	c := testCart("c4")
	require.NoError(t, dual.Save(ctx, c))

	// GIVEN: The primary starts failing hard
	primary.FailPrimary = errors.New("kv down")

	// THEN: Reads keep succeeding off the fallback, before and after the
	// primary breaker opens
	for i := 0; i < 5; i++ {
		got, err := dual.Load(ctx, "demo", "c4")
		require.NoError(t, err, "read %d", i)
		assert.Equal(t, "c4", got.CartID)
	}
	assert.Equal(t, "open", dual.PrimaryBreaker.State())

	// Writes also keep succeeding; the primary fill is best-effort
	got, _ := dual.Load(ctx, "demo", "c4")
	require.NoError(t, dual.Save(ctx, got))
}

// failingFallback simulates a dead durable store.
type failingFallback struct{}

func (f *failingFallback) GetCart(context.Context, string, string) (*pos.Cart, error) {
	return nil, errors.New("db down")
}
func (f *failingFallback) SaveCart(context.Context, *pos.Cart, string) error {
	return errors.New("db down")
}
func (f *failingFallback) FindActiveCart(context.Context, string, string, int) (*pos.Cart, error) {
	return nil, errors.New("db down")
}

func TestDual_FallbackOutageReportsStoreUnavailable(t *testing.T) {
	dual := store.NewDualCartStore(
		memory.New(), &failingFallback{},
		breaker.New("primary", 3, time.Minute),
		breaker.New("fallback", 3, time.Minute),
	)
	ctx := context.Background()

	// Failures trip the fallback breaker
	for i := 0; i < 3; i++ {
		_, err := dual.Load(ctx, "demo", "c5")
		require.Error(t, err)
	}

	// Once open, callers see the stable store-unavailable error
	_, err := dual.Load(ctx, "demo", "c5")
	assert.ErrorIs(t, err, pos.ErrStoreUnavailable)

	err = dual.Save(ctx, testCart("c5"))
	assert.ErrorIs(t, err, pos.ErrStoreUnavailable)
}

func TestDual_CompleteEvictsPrimary(t *testing.T) {
	primary, fallback := memory.New(), memory.New()
	dual := newDual(primary, fallback)
	ctx := context.Background()

	c := testCart("c6")
	require.NoError(t, dual.Save(ctx, c))

	// WHEN: The cart completes
	c.Status = pos.StatusCompleted
	require.NoError(t, dual.Complete(ctx, c))

	// THEN: The primary no longer holds it; the fallback keeps the snapshot
	_, err := primary.Get(ctx, "demo", "c6")
	assert.ErrorIs(t, err, store.ErrNotFound)

	kept, err := fallback.GetCart(ctx, "demo", "c6")
	require.NoError(t, err)
	assert.Equal(t, pos.StatusCompleted, kept.Status)
}

func TestDual_FindActive(t *testing.T) {
	primary, fallback := memory.New(), memory.New()
	dual := newDual(primary, fallback)
	ctx := context.Background()

	// GIVEN: One active and one completed cart on the terminal
	active := testCart("c7")
	require.NoError(t, dual.Save(ctx, active))
	done := testCart("c8")
	done.Status = pos.StatusCompleted
	require.NoError(t, dual.Save(ctx, done))

	got, err := dual.FindActive(ctx, "demo", "0001", 1)
	require.NoError(t, err)
	assert.Equal(t, "c7", got.CartID)

	_, err = dual.FindActive(ctx, "demo", "0002", 1)
	assert.ErrorIs(t, err, pos.ErrCartNotFound)
}
