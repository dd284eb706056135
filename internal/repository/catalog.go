package repository

import (
	"context"
	"fmt"
	"oemcatalog/ingest/internal/config"
	"oemcatalog/ingest/internal/domain"
)

// CatalogRepository is the catalog store handle for one ingestion run.
type CatalogRepository interface {
	// Migrate creates the catalog tables if they do not exist.
	Migrate(ctx context.Context) error
	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(tx CatalogTx) error) error
	Counts(ctx context.Context) (domain.CatalogCounts, error)
	Close()
}

// CatalogTx exposes natural-key upserts. Every method is a single
// insert-or-refresh at the store level, never a read followed by an insert,
// and fills in the row id on its argument.
type CatalogTx interface {
	UpsertMake(ctx context.Context, m *domain.Make) (domain.UpsertResult, error)
	UpsertModel(ctx context.Context, m *domain.Model) (domain.UpsertResult, error)
	UpsertModelYear(ctx context.Context, y *domain.ModelYear) (domain.UpsertResult, error)
	UpsertAssembly(ctx context.Context, a *domain.Assembly) (domain.UpsertResult, error)
	UpsertPart(ctx context.Context, p *domain.Part) (domain.UpsertResult, error)
	UpsertAssemblyPart(ctx context.Context, ap *domain.AssemblyPart) (domain.UpsertResult, error)
}

// Open connects to the configured catalog store and applies the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (CatalogRepository, error) {
	var (
		repo CatalogRepository
		err  error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		repo, err = NewPostgresRepository(ctx, cfg.PostgresDSN(), cfg.MaxConns)
	case config.DriverSQLite:
		repo, err = NewSQLiteRepository(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
