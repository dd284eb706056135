package state

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStateManager(t *testing.T, s StateManager, root string) {
	ctx := context.Background()

	completed, err := s.CompletedURLs(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, completed)

	require.NoError(t, s.MarkCompleted(ctx, root, "https://s.test/p/1", "https://s.test/p/2"))
	require.NoError(t, s.MarkCompleted(ctx, root, "https://s.test/p/2"))
	require.NoError(t, s.MarkCompleted(ctx, root))
	require.NoError(t, s.MarkCompleted(ctx, root+"-other", "https://s.test/p/9"))

	completed, err = s.CompletedURLs(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"https://s.test/p/1": {}, "https://s.test/p/2": {}}, completed)

	require.NoError(t, s.Reset(ctx, root))
	completed, err = s.CompletedURLs(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, completed)

	other, err := s.CompletedURLs(ctx, root+"-other")
	require.NoError(t, err)
	assert.Len(t, other, 1)
	require.NoError(t, s.Reset(ctx, root+"-other"))
}

func TestMemoryStateManager(t *testing.T) {
	exerciseStateManager(t, NewMemoryStateManager(), "https://s.test/sitemap.xml")
}

// Runs against a disposable redis named by INGEST_TEST_REDIS_ADDR.
func TestRedisStateManager(t *testing.T) {
	addr := os.Getenv("INGEST_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INGEST_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	exerciseStateManager(t, NewRedisStateManager(rdb), "https://s.test/"+uuid.NewString()+".xml")
}
