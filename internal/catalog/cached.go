package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
	"github.com/fjod/go_cart/cartkeeper/internal/lookup"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var errCacheMiss = errors.New("cache miss")

// CachedCatalog puts a Redis read-through cache in front of a ProductCatalog.
// Only catalog attributes are cached; stock never goes through here.
type CachedCatalog struct {
	next    lookup.ProductCatalog
	client  *redis.Client
	baseTTL time.Duration
	log     logrus.FieldLogger
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCachedCatalog(next lookup.ProductCatalog, client *redis.Client, baseTTL time.Duration, log logrus.FieldLogger) *CachedCatalog {
	return &CachedCatalog{
		next:    next,
		client:  client,
		baseTTL: baseTTL,
		log:     log,
	}
}

func (c *CachedCatalog) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	key := cacheKey(productID)

	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		p, err := c.get(ctx, key)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, errCacheMiss) {
			c.log.WithError(err).WithField("product_id", productID).Warn("catalog cache get failed")
		}

		p, err = c.next.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}

		if errSet := c.set(ctx, key, p); errSet != nil {
			c.log.WithError(errSet).WithField("product_id", productID).Warn("catalog cache set failed")
		}
		return p, nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	return v.(domain.Product), nil
}

func (c *CachedCatalog) get(ctx context.Context, key string) (domain.Product, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, errCacheMiss
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("redis get failed: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Product{}, fmt.Errorf("unmarshal product failed: %w", err)
	}
	return p, nil
}

func (c *CachedCatalog) set(ctx context.Context, key string, p domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := c.client.Set(ctx, key, data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func cacheKey(productID int64) string {
	return "product:" + strconv.FormatInt(productID, 10)
}
