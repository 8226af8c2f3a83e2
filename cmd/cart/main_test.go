package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CATALOG_CACHE_TTL", "")
	t.Setenv("LOOKUP_TIMEOUT", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PERSISTENCE_BACKEND", "")
	t.Setenv("CART_STORAGE_KEY", "")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Zero(t, cfg.CatalogCacheTTL, "product cache is off unless configured")
	assert.Equal(t, 5*time.Second, cfg.LookupTimeout)
	assert.Equal(t, "redis", cfg.PersistenceBackend)
	assert.Equal(t, "@RocketShoes:cart", cfg.StorageKey)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("CATALOG_CACHE_TTL", "15m")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("PERSISTENCE_BACKEND", "mongo")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.CatalogCacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "mongo", cfg.PersistenceBackend)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("LOOKUP_TIMEOUT", "soon")

	_, err := loadConfig()
	assert.ErrorContains(t, err, "LOOKUP_TIMEOUT")
}
