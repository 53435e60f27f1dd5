package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatelog/internal/auditlog"
)

func openIntegrationCache(t *testing.T) *RedisFacetCache {
	t.Helper()

	url := os.Getenv("GATELOG_TEST_REDIS_URL")
	if url == "" {
		t.Skip("GATELOG_TEST_REDIS_URL not set, skipping redis integration test")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return NewRedisFacetCache(client, time.Minute, nil)
}

func TestIntegrationFacetCacheRoundTrip(t *testing.T) {
	cache := openIntegrationCache(t)
	ctx := context.Background()
	key := "org-" + uuid.NewString() + ":0:1000"

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok, "unknown keys miss")

	facets := auditlog.Facets{
		Actors:    []string{"alice", "bob"},
		Resources: []auditlog.ResourceRef{{ID: 7, Name: "web"}},
		Locations: []string{"de-fra"},
	}
	cache.Set(ctx, key, facets)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, facets, got)
}
