package store

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id int64, amount int) domain.CartEntry {
	return domain.CartEntry{Product: domain.Product{ID: id, Title: "product"}, Amount: amount}
}

func setupStore(t *testing.T, entries ...domain.CartEntry) *MemoryStore {
	s := NewMemoryStore()
	for _, e := range entries {
		require.NoError(t, s.ApplyAdd(e))
	}
	return s
}

func TestMemoryStore_ApplyAdd_PreservesInsertionOrder(t *testing.T) {
	s := setupStore(t, entry(3, 1), entry(1, 2), entry(2, 1))

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(3), snap[0].ID)
	assert.Equal(t, int64(1), snap[1].ID)
	assert.Equal(t, int64(2), snap[2].ID)
}

func TestMemoryStore_ApplyAdd_Duplicate(t *testing.T) {
	s := setupStore(t, entry(1, 1))

	err := s.ApplyAdd(entry(1, 4))
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	e, ok := s.Find(1)
	require.True(t, ok)
	assert.Equal(t, 1, e.Amount)
}

func TestMemoryStore_ApplyAdd_NonPositiveAmount(t *testing.T) {
	s := setupStore(t)

	assert.ErrorIs(t, s.ApplyAdd(entry(1, 0)), ErrInvalidAmount)
	assert.Empty(t, s.Snapshot())
}

func TestMemoryStore_ApplySetQuantity(t *testing.T) {
	s := setupStore(t, entry(7, 3))

	require.NoError(t, s.ApplySetQuantity(7, 5))
	e, _ := s.Find(7)
	assert.Equal(t, 5, e.Amount)

	assert.ErrorIs(t, s.ApplySetQuantity(7, 0), ErrInvalidAmount)
	assert.ErrorIs(t, s.ApplySetQuantity(7, -2), ErrInvalidAmount)
	assert.ErrorIs(t, s.ApplySetQuantity(8, 1), ErrEntryNotFound)

	e, _ = s.Find(7)
	assert.Equal(t, 5, e.Amount)
}

func TestMemoryStore_ApplyRemove(t *testing.T) {
	s := setupStore(t, entry(1, 1), entry(2, 1))

	require.NoError(t, s.ApplyRemove(1))
	assert.ErrorIs(t, s.ApplyRemove(1), ErrEntryNotFound)

	require.NoError(t, s.ApplyRemove(2))
	assert.Empty(t, s.Snapshot())
}

func TestMemoryStore_SnapshotIsDetached(t *testing.T) {
	s := setupStore(t, entry(1, 1), entry(2, 1))

	snap := s.Snapshot()
	require.NoError(t, s.ApplySetQuantity(1, 9))
	require.NoError(t, s.ApplyRemove(2))

	if diff := cmp.Diff(domain.Cart{entry(1, 1), entry(2, 1)}, snap); diff != "" {
		t.Errorf("snapshot changed after mutation (-want +got):\n%s", diff)
	}
}

func TestMemoryStore_Replace(t *testing.T) {
	s := setupStore(t, entry(1, 1))

	require.NoError(t, s.Replace(domain.Cart{entry(4, 2), entry(5, 1)}))
	assert.Len(t, s.Snapshot(), 2)

	assert.ErrorIs(t, s.Replace(domain.Cart{entry(4, 2), entry(4, 1)}), ErrDuplicateEntry)
	assert.ErrorIs(t, s.Replace(domain.Cart{entry(4, 0)}), ErrInvalidAmount)

	if diff := cmp.Diff(domain.Cart{entry(4, 2), entry(5, 1)}, s.Snapshot()); diff != "" {
		t.Errorf("rejected replace modified the cart (-want +got):\n%s", diff)
	}
}

// Random operation sequences must never produce duplicate ids or non-positive amounts.
func TestMemoryStore_InvariantsHoldUnderRandomOps(t *testing.T) {
	s := NewMemoryStore()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		id := int64(rng.Intn(6))
		switch rng.Intn(3) {
		case 0:
			_ = s.ApplyAdd(entry(id, rng.Intn(4)))
		case 1:
			_ = s.ApplySetQuantity(id, rng.Intn(5)-1)
		case 2:
			_ = s.ApplyRemove(id)
		}
		require.NoError(t, Validate(s.Snapshot()), "iteration %d", i)
	}
}

func TestMemoryStore_ConcurrentReaders(t *testing.T) {
	s := setupStore(t, entry(1, 1))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
		go func(n int) {
			defer wg.Done()
			_ = s.ApplySetQuantity(1, n+1)
		}(i)
	}
	wg.Wait()

	e, ok := s.Find(1)
	require.True(t, ok)
	assert.GreaterOrEqual(t, e.Amount, 1)
}
