package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T, key string) *MongoAdapter {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Skipf("MongoDB container not available: %v", err)
	}
	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	adapter, err := ConnectMongoAdapter(ctx, uri, "testdb", key)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close(ctx) })

	return adapter
}

func TestMongo_LoadNotFound(t *testing.T) {
	adapter := setupTestMongo(t, "")

	data, err := adapter.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, data)
}

func TestMongo_StoreOverwritesSnapshot(t *testing.T) {
	adapter := setupTestMongo(t, "cart:test")
	ctx := context.Background()

	require.NoError(t, adapter.Store(ctx, []byte(`[]`)))

	want := testCart()
	data, err := Encode(want)
	require.NoError(t, err)
	require.NoError(t, adapter.Store(ctx, data))

	loaded, err := adapter.Load(ctx)
	require.NoError(t, err)
	got, err := Decode(loaded)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	count, err := adapter.collection.CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConnectMongoAdapter_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := ConnectMongoAdapter(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", "testdb", "")
	assert.ErrorContains(t, err, "failed to ping MongoDB")
}

func TestMongo_UsesDefaultKey(t *testing.T) {
	adapter := setupTestMongo(t, "")

	assert.Equal(t, DefaultKey, adapter.key)
	assert.Equal(t, snapshotCollection, adapter.collection.Name())
}
