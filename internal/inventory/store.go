package inventory

import (
	"errors"
	"sync"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNegativeStock   = errors.New("stock cannot be negative")
)

// Store holds stock levels for the development inventory service.
type Store interface {
	GetStock(productID int64) (int32, error)
	SetStock(productID int64, quantity int32) error
}

// MemoryStore implements Store with in-memory storage
type MemoryStore struct {
	mu     sync.RWMutex
	stocks map[int64]int32 // productID -> available units
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stocks: make(map[int64]int32)}
}

// GetStock returns the units available for productID
func (s *MemoryStore) GetStock(productID int64) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, exists := s.stocks[productID]
	if !exists {
		return 0, ErrProductNotFound
	}
	return n, nil
}

// SetStock sets the stock level for a product
func (s *MemoryStore) SetStock(productID int64, quantity int32) error {
	if quantity < 0 {
		return ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stocks[productID] = quantity
	return nil
}

// Seed loads initial stock levels, stopping at the first invalid one.
func Seed(s Store, levels map[int64]int32) error {
	for id, n := range levels {
		if err := s.SetStock(id, n); err != nil {
			return err
		}
	}
	return nil
}
