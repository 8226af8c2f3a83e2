package store

import (
	"sync"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
)

// MemoryStore implements CartStore on an insertion-ordered slice
type MemoryStore struct {
	mu      sync.RWMutex
	entries domain.Cart
}

// NewMemoryStore creates an empty cart store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: domain.Cart{}}
}

func (s *MemoryStore) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Clone()
}

func (s *MemoryStore) Find(productID int64) (domain.CartEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Find(productID)
}

func (s *MemoryStore) ApplyAdd(entry domain.CartEntry) error {
	if entry.Amount < 1 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(entry.ID) >= 0 {
		return ErrDuplicateEntry
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryStore) ApplySetQuantity(productID int64, amount int) error {
	if amount < 1 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return ErrEntryNotFound
	}
	s.entries[i].Amount = amount
	return nil
}

func (s *MemoryStore) ApplyRemove(productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return ErrEntryNotFound
	}
	// build a fresh slice so snapshots handed out earlier never observe the shift
	next := make(domain.Cart, 0, len(s.entries)-1)
	next = append(next, s.entries[:i]...)
	next = append(next, s.entries[i+1:]...)
	s.entries = next
	return nil
}

func (s *MemoryStore) Replace(cart domain.Cart) error {
	if err := Validate(cart); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = cart.Clone()
	return nil
}

// indexOf must be called with mu held
func (s *MemoryStore) indexOf(productID int64) int {
	for i := range s.entries {
		if s.entries[i].ID == productID {
			return i
		}
	}
	return -1
}
