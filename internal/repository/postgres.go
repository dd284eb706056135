package repository

import (
	"context"
	"errors"
	"fmt"
	"oemcatalog/ingest/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, dsn string, maxConns int32) (CatalogRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infof("🐘 Connected to Postgres catalog (max %d connections)", poolConfig.MaxConns)
	return &postgresRepository{db: pool}, nil
}

func (r *postgresRepository) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (r *postgresRepository) InTx(ctx context.Context, fn func(tx CatalogTx) error) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&postgresTx{tx: tx})
	})
}

func (r *postgresRepository) Counts(ctx context.Context) (domain.CatalogCounts, error) {
	counts := make(domain.CatalogCounts, len(domain.CatalogLevels))
	for _, level := range domain.CatalogLevels {
		var n int64
		if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+level.TableName()).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", level.TableName(), err)
		}
		counts[level] = n
	}
	return counts, nil
}

func (r *postgresRepository) Close() {
	r.db.Close()
}

type postgresTx struct {
	tx pgx.Tx
}

// upsert runs an INSERT ... ON CONFLICT ... RETURNING id, (xmax = 0).
// xmax is zero only for a tuple this statement inserted. The conflict branch
// only rewrites rows whose attributes differ, so no row back means the
// existing one was already current and lookup fetches its id.
func (t *postgresTx) upsert(ctx context.Context, level domain.CatalogLevel, query string, args []any, lookup string, lookupArgs []any) (domain.UpsertResult, error) {
	var res domain.UpsertResult
	err := t.tx.QueryRow(ctx, query, args...).Scan(&res.ID, &res.Created)
	switch {
	case err == nil:
		res.Updated = !res.Created
		return res, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return res, fmt.Errorf("failed to upsert %s: %w", level, err)
	}

	if err := t.tx.QueryRow(ctx, lookup, lookupArgs...).Scan(&res.ID); err != nil {
		return res, fmt.Errorf("failed to look up %s: %w", level, err)
	}
	return res, nil
}

func (t *postgresTx) UpsertMake(ctx context.Context, m *domain.Make) (domain.UpsertResult, error) {
	query := `
	INSERT INTO oem_makes (name, display_name)
	VALUES ($1, $2)
	ON CONFLICT (name)
	DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = now()
	WHERE oem_makes.display_name IS DISTINCT FROM EXCLUDED.display_name
	RETURNING id, (xmax = 0)`
	res, err := t.upsert(ctx, domain.CatalogLevelMake, query, []any{m.Name, m.DisplayName},
		`SELECT id FROM oem_makes WHERE name = $1`, []any{m.Name})
	m.ID = res.ID
	return res, err
}

func (t *postgresTx) UpsertModel(ctx context.Context, m *domain.Model) (domain.UpsertResult, error) {
	query := `
	INSERT INTO oem_models (make_id, name, display_name)
	VALUES ($1, $2, $3)
	ON CONFLICT (make_id, name)
	DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = now()
	WHERE oem_models.display_name IS DISTINCT FROM EXCLUDED.display_name
	RETURNING id, (xmax = 0)`
	res, err := t.upsert(ctx, domain.CatalogLevelModel, query, []any{m.MakeID, m.Name, m.DisplayName},
		`SELECT id FROM oem_models WHERE make_id = $1 AND name = $2`, []any{m.MakeID, m.Name})
	m.ID = res.ID
	return res, err
}

func (t *postgresTx) UpsertModelYear(ctx context.Context, y *domain.ModelYear) (domain.UpsertResult, error) {
	query := `
	INSERT INTO oem_model_years (model_id, year)
	VALUES ($1, $2)
	ON CONFLICT (model_id, year) DO NOTHING
	RETURNING id, (xmax = 0)`
	res, err := t.upsert(ctx, domain.CatalogLevelModelYear, query, []any{y.ModelID, y.Year},
		`SELECT id FROM oem_model_years WHERE model_id = $1 AND year = $2`, []any{y.ModelID, y.Year})
	y.ID = res.ID
	return res, err
}

func (t *postgresTx) UpsertAssembly(ctx context.Context, a *domain.Assembly) (domain.UpsertResult, error) {
	query := `
	INSERT INTO oem_assemblies (model_year_id, code, name, source_url)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (model_year_id, code)
	DO UPDATE SET name = EXCLUDED.name, source_url = EXCLUDED.source_url, updated_at = now()
	WHERE (oem_assemblies.name, oem_assemblies.source_url) IS DISTINCT FROM (EXCLUDED.name, EXCLUDED.source_url)
	RETURNING id, (xmax = 0)`
	res, err := t.upsert(ctx, domain.CatalogLevelAssembly, query, []any{a.ModelYearID, a.Code, a.Name, a.SourceURL},
		`SELECT id FROM oem_assemblies WHERE model_year_id = $1 AND code = $2`, []any{a.ModelYearID, a.Code})
	a.ID = res.ID
	return res, err
}

func (t *postgresTx) UpsertPart(ctx context.Context, p *domain.Part) (domain.UpsertResult, error) {
	// An empty description never overwrites a known one.
	query := `
	INSERT INTO oem_parts (part_number, description)
	VALUES ($1, $2)
	ON CONFLICT (part_number)
	DO UPDATE SET description = EXCLUDED.description, updated_at = now()
	WHERE EXCLUDED.description <> '' AND oem_parts.description IS DISTINCT FROM EXCLUDED.description
	RETURNING id, (xmax = 0)`
	res, err := t.upsert(ctx, domain.CatalogLevelPart, query, []any{p.PartNumber, p.Description},
		`SELECT id FROM oem_parts WHERE part_number = $1`, []any{p.PartNumber})
	p.ID = res.ID
	return res, err
}

func (t *postgresTx) UpsertAssemblyPart(ctx context.Context, ap *domain.AssemblyPart) (domain.UpsertResult, error) {
	query := `
	INSERT INTO oem_assembly_parts (assembly_id, part_id, quantity, position)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (assembly_id, part_id)
	DO UPDATE SET quantity = EXCLUDED.quantity, position = EXCLUDED.position, updated_at = now()
	WHERE (oem_assembly_parts.quantity, oem_assembly_parts.position) IS DISTINCT FROM (EXCLUDED.quantity, EXCLUDED.position)
	RETURNING id, (xmax = 0)`
	res, err := t.upsert(ctx, domain.CatalogLevelAssemblyPart, query, []any{ap.AssemblyID, ap.PartID, ap.Quantity, ap.Position},
		`SELECT id FROM oem_assembly_parts WHERE assembly_id = $1 AND part_id = $2`, []any{ap.AssemblyID, ap.PartID})
	ap.ID = res.ID
	return res, err
}
