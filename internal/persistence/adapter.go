package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
)

// DefaultKey is the logical name the cart snapshot is stored under.
const DefaultKey = "@RocketShoes:cart"

// Adapter durably stores one serialized cart snapshot under a fixed key.
type Adapter interface {
	// Load returns ErrNotFound when no snapshot has been stored yet
	Load(ctx context.Context) ([]byte, error)
	Store(ctx context.Context, data []byte) error
}

var ErrNotFound = errors.New("no persisted cart")

// Encode serializes a cart as a JSON array of entries.
func Encode(cart domain.Cart) ([]byte, error) {
	if cart == nil {
		cart = domain.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if cart == nil {
		cart = domain.Cart{}
	}
	return cart, nil
}
