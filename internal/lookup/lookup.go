// Package lookup contains the clients for the two external collaborators the
// cart consults before a mutation: the stock oracle and the product catalog.
package lookup

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrMalformedResponse = errors.New("malformed lookup response")
)

// StockOracle reports the currently available quantity of a product.
type StockOracle interface {
	GetStock(ctx context.Context, productID int64) (domain.StockSnapshot, error)
}

// ProductCatalog returns the display attributes of a product.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}

// StockOracleFunc adapts a function to StockOracle.
type StockOracleFunc func(ctx context.Context, productID int64) (domain.StockSnapshot, error)

func (f StockOracleFunc) GetStock(ctx context.Context, productID int64) (domain.StockSnapshot, error) {
	return f(ctx, productID)
}

// ProductCatalogFunc adapts a function to ProductCatalog.
type ProductCatalogFunc func(ctx context.Context, productID int64) (domain.Product, error)

func (f ProductCatalogFunc) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	return f(ctx, productID)
}
