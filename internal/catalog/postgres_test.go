package catalog

import (
	"context"
	"oemcatalog/ingest/internal/config"
	"oemcatalog/ingest/internal/domain"
	"oemcatalog/ingest/internal/repository"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database named by INGEST_TEST_DATABASE_DSN, where
// concurrent transactions really do collide on the model's natural key.
func TestMerge_Postgres_ConcurrentMergesShareOneModel(t *testing.T) {
	dsn := os.Getenv("INGEST_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("INGEST_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	repo, err := repository.Open(ctx, config.DatabaseConfig{Driver: config.DriverPostgres, DSN: dsn, MaxConns: 16})
	require.NoError(t, err)
	defer repo.Close()

	u := NewUpserter(repo)
	makeName := "Make " + uuid.NewString()

	const merges = 12
	var wg sync.WaitGroup
	results := make(chan domain.MergeCounts, merges)
	errs := make(chan error, merges)
	for i := 0; i < merges; i++ {
		wg.Add(1)
		go func(year int) {
			defer wg.Done()
			rec := record(year, "Engine", "A-1")
			rec.Make = makeName
			counts, err := u.Merge(ctx, []domain.CatalogRecord{rec})
			errs <- err
			results <- counts
		}(2000 + i)
	}
	wg.Wait()
	close(errs)
	close(results)

	for err := range errs {
		require.NoError(t, err)
	}

	total := domain.NewMergeCounts()
	for counts := range results {
		total.Add(counts)
	}
	assert.Equal(t, merges, total.Merged)
	assert.Equal(t, 1, total.Created[domain.CatalogLevelMake])
	assert.Equal(t, 1, total.Created[domain.CatalogLevelModel])
	assert.Equal(t, merges, total.Created[domain.CatalogLevelModelYear])
	assert.Equal(t, merges-1, total.Unchanged[domain.CatalogLevelModel])
}
