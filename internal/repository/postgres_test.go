package repository

import (
	"context"
	"oemcatalog/ingest/internal/config"
	"oemcatalog/ingest/internal/domain"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a disposable database named by INGEST_TEST_DATABASE_DSN.
func TestPostgres_UpsertCreatesThenFindsExisting(t *testing.T) {
	dsn := os.Getenv("INGEST_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("INGEST_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	repo, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverPostgres, DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	defer repo.Close()

	partNumber := "TEST-" + t.Name()

	var first, second map[domain.CatalogLevel]domain.UpsertResult
	require.NoError(t, repo.InTx(ctx, func(tx CatalogTx) error {
		first, err = upsertChain(ctx, tx, partNumber)
		return err
	}))
	require.NoError(t, repo.InTx(ctx, func(tx CatalogTx) error {
		second, err = upsertChain(ctx, tx, partNumber)
		return err
	}))

	for _, level := range domain.CatalogLevels {
		assert.False(t, second[level].Created, "second %s", level)
		assert.False(t, second[level].Updated, "second %s", level)
		assert.Equal(t, first[level].ID, second[level].ID, "id of %s", level)
	}
}
