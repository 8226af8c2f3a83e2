package lookup

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
	"github.com/redis/go-redis/v9"
)

const stockKeyPrefix = "stock:"

// RedisStockOracle reads stock counters kept as integers under stock:{id}.
type RedisStockOracle struct {
	client *redis.Client
}

func NewRedisStockOracle(client *redis.Client) *RedisStockOracle {
	return &RedisStockOracle{client: client}
}

func (r *RedisStockOracle) GetStock(ctx context.Context, productID int64) (domain.StockSnapshot, error) {
	n, err := r.client.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return domain.StockSnapshot{}, ErrNotFound
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return domain.StockSnapshot{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err != nil {
		return domain.StockSnapshot{}, fmt.Errorf("redis get stock failed: %w", err)
	}
	if n < 0 {
		return domain.StockSnapshot{}, fmt.Errorf("%w: stock %d is negative", ErrMalformedResponse, productID)
	}

	return domain.StockSnapshot{ProductID: productID, Available: n}, nil
}

// SetStock seeds the counter for a product
func (r *RedisStockOracle) SetStock(ctx context.Context, productID int64, quantity int) error {
	return r.client.Set(ctx, stockKey(productID), quantity, 0).Err()
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}
