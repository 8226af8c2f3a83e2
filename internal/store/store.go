package store

import (
	"errors"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
)

// Common errors returned by the store
var (
	ErrDuplicateEntry = errors.New("product already in cart")
	ErrEntryNotFound  = errors.New("product not in cart")
	ErrInvalidAmount  = errors.New("amount must be at least 1")
)

// CartStore defines the in-memory cart operations.
// Implementations enforce key uniqueness and positive amounts only;
// they know nothing about stock.
type CartStore interface {
	// Snapshot returns a copy of the current cart
	Snapshot() domain.Cart

	// Find returns the entry for productID, if present
	Find(productID int64) (domain.CartEntry, bool)

	// ApplyAdd appends a new entry. Fails with ErrDuplicateEntry if the product is present.
	ApplyAdd(entry domain.CartEntry) error

	// ApplySetQuantity changes the amount of an existing entry in place
	ApplySetQuantity(productID int64, amount int) error

	// ApplyRemove deletes an existing entry
	ApplyRemove(productID int64) error

	// Replace swaps the whole cart, after validating it.
	// Used for restoring a persisted snapshot and for rollback.
	Replace(cart domain.Cart) error
}

// Validate checks the uniqueness and positive-amount invariants of a cart.
func Validate(cart domain.Cart) error {
	seen := make(map[int64]struct{}, len(cart))
	for _, e := range cart {
		if e.Amount < 1 {
			return ErrInvalidAmount
		}
		if _, dup := seen[e.ID]; dup {
			return ErrDuplicateEntry
		}
		seen[e.ID] = struct{}{}
	}
	return nil
}
