package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"oemcatalog/ingest/internal/domain"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteRepository struct {
	db   *sql.DB
	path string
}

// NewSQLiteRepository opens (creating if needed) a catalog file at path.
// A single connection serializes writers, so concurrent InTx calls queue up.
func NewSQLiteRepository(ctx context.Context, path string) (CatalogRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	log.Infof("🗄️ Opened SQLite catalog at %s", path)
	return &sqliteRepository{db: db, path: path}, nil
}

func (r *sqliteRepository) Migrate(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (r *sqliteRepository) InTx(ctx context.Context, fn func(tx CatalogTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *sqliteRepository) Counts(ctx context.Context) (domain.CatalogCounts, error) {
	counts := make(domain.CatalogCounts, len(domain.CatalogLevels))
	for _, level := range domain.CatalogLevels {
		var n int64
		if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+level.TableName()).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", level.TableName(), err)
		}
		counts[level] = n
	}
	return counts, nil
}

func (r *sqliteRepository) Close() {
	if err := r.db.Close(); err != nil {
		log.Warnf("⚠️ Failed to close SQLite catalog %s: %v", r.path, err)
	}
}

type sqliteTx struct {
	tx *sql.Tx
}

// sqliteUpsert is one natural-key upsert split in the statements SQLite needs:
// insert with ON CONFLICT DO NOTHING, refresh the existing row only when an
// attribute differs (ending in RETURNING id), otherwise look up its id.
type sqliteUpsert struct {
	insert      string
	insertArgs  []any
	refresh     string // Empty for levels without attributes
	refreshArgs []any
	lookup      string
	lookupArgs  []any
}

func (t *sqliteTx) upsert(ctx context.Context, level domain.CatalogLevel, u sqliteUpsert) (domain.UpsertResult, error) {
	var res domain.UpsertResult

	result, err := t.tx.ExecContext(ctx, u.insert, u.insertArgs...)
	if err != nil {
		return res, fmt.Errorf("failed to upsert %s: %w", level, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return res, fmt.Errorf("failed to upsert %s: %w", level, err)
	}
	if affected == 1 {
		id, err := result.LastInsertId()
		if err != nil {
			return res, fmt.Errorf("failed to upsert %s: %w", level, err)
		}
		return domain.UpsertResult{ID: id, Created: true}, nil
	}

	if u.refresh != "" {
		err := t.tx.QueryRowContext(ctx, u.refresh, u.refreshArgs...).Scan(&res.ID)
		switch {
		case err == nil:
			res.Updated = true
			return res, nil
		case !errors.Is(err, sql.ErrNoRows):
			return res, fmt.Errorf("failed to refresh %s: %w", level, err)
		}
	}

	if err := t.tx.QueryRowContext(ctx, u.lookup, u.lookupArgs...).Scan(&res.ID); err != nil {
		return res, fmt.Errorf("failed to look up %s: %w", level, err)
	}
	return res, nil
}

func (t *sqliteTx) UpsertMake(ctx context.Context, m *domain.Make) (domain.UpsertResult, error) {
	res, err := t.upsert(ctx, domain.CatalogLevelMake, sqliteUpsert{
		insert:      `INSERT INTO oem_makes (name, display_name) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		insertArgs:  []any{m.Name, m.DisplayName},
		refresh:     `UPDATE oem_makes SET display_name = ?, updated_at = CURRENT_TIMESTAMP WHERE name = ? AND display_name IS NOT ? RETURNING id`,
		refreshArgs: []any{m.DisplayName, m.Name, m.DisplayName},
		lookup:      `SELECT id FROM oem_makes WHERE name = ?`,
		lookupArgs:  []any{m.Name},
	})
	m.ID = res.ID
	return res, err
}

func (t *sqliteTx) UpsertModel(ctx context.Context, m *domain.Model) (domain.UpsertResult, error) {
	res, err := t.upsert(ctx, domain.CatalogLevelModel, sqliteUpsert{
		insert:      `INSERT INTO oem_models (make_id, name, display_name) VALUES (?, ?, ?) ON CONFLICT (make_id, name) DO NOTHING`,
		insertArgs:  []any{m.MakeID, m.Name, m.DisplayName},
		refresh:     `UPDATE oem_models SET display_name = ?, updated_at = CURRENT_TIMESTAMP WHERE make_id = ? AND name = ? AND display_name IS NOT ? RETURNING id`,
		refreshArgs: []any{m.DisplayName, m.MakeID, m.Name, m.DisplayName},
		lookup:      `SELECT id FROM oem_models WHERE make_id = ? AND name = ?`,
		lookupArgs:  []any{m.MakeID, m.Name},
	})
	m.ID = res.ID
	return res, err
}

func (t *sqliteTx) UpsertModelYear(ctx context.Context, y *domain.ModelYear) (domain.UpsertResult, error) {
	res, err := t.upsert(ctx, domain.CatalogLevelModelYear, sqliteUpsert{
		insert:     `INSERT INTO oem_model_years (model_id, year) VALUES (?, ?) ON CONFLICT (model_id, year) DO NOTHING`,
		insertArgs: []any{y.ModelID, y.Year},
		lookup:     `SELECT id FROM oem_model_years WHERE model_id = ? AND year = ?`,
		lookupArgs: []any{y.ModelID, y.Year},
	})
	y.ID = res.ID
	return res, err
}

func (t *sqliteTx) UpsertAssembly(ctx context.Context, a *domain.Assembly) (domain.UpsertResult, error) {
	res, err := t.upsert(ctx, domain.CatalogLevelAssembly, sqliteUpsert{
		insert:      `INSERT INTO oem_assemblies (model_year_id, code, name, source_url) VALUES (?, ?, ?, ?) ON CONFLICT (model_year_id, code) DO NOTHING`,
		insertArgs:  []any{a.ModelYearID, a.Code, a.Name, a.SourceURL},
		refresh:     `UPDATE oem_assemblies SET name = ?, source_url = ?, updated_at = CURRENT_TIMESTAMP WHERE model_year_id = ? AND code = ? AND (name IS NOT ? OR source_url IS NOT ?) RETURNING id`,
		refreshArgs: []any{a.Name, a.SourceURL, a.ModelYearID, a.Code, a.Name, a.SourceURL},
		lookup:      `SELECT id FROM oem_assemblies WHERE model_year_id = ? AND code = ?`,
		lookupArgs:  []any{a.ModelYearID, a.Code},
	})
	a.ID = res.ID
	return res, err
}

func (t *sqliteTx) UpsertPart(ctx context.Context, p *domain.Part) (domain.UpsertResult, error) {
	u := sqliteUpsert{
		insert:     `INSERT INTO oem_parts (part_number, description) VALUES (?, ?) ON CONFLICT (part_number) DO NOTHING`,
		insertArgs: []any{p.PartNumber, p.Description},
		lookup:     `SELECT id FROM oem_parts WHERE part_number = ?`,
		lookupArgs: []any{p.PartNumber},
	}
	// An empty description never overwrites a known one.
	if p.Description != "" {
		u.refresh = `UPDATE oem_parts SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE part_number = ? AND description IS NOT ? RETURNING id`
		u.refreshArgs = []any{p.Description, p.PartNumber, p.Description}
	}
	res, err := t.upsert(ctx, domain.CatalogLevelPart, u)
	p.ID = res.ID
	return res, err
}

func (t *sqliteTx) UpsertAssemblyPart(ctx context.Context, ap *domain.AssemblyPart) (domain.UpsertResult, error) {
	res, err := t.upsert(ctx, domain.CatalogLevelAssemblyPart, sqliteUpsert{
		insert:      `INSERT INTO oem_assembly_parts (assembly_id, part_id, quantity, position) VALUES (?, ?, ?, ?) ON CONFLICT (assembly_id, part_id) DO NOTHING`,
		insertArgs:  []any{ap.AssemblyID, ap.PartID, ap.Quantity, ap.Position},
		refresh:     `UPDATE oem_assembly_parts SET quantity = ?, position = ?, updated_at = CURRENT_TIMESTAMP WHERE assembly_id = ? AND part_id = ? AND (quantity IS NOT ? OR position IS NOT ?) RETURNING id`,
		refreshArgs: []any{ap.Quantity, ap.Position, ap.AssemblyID, ap.PartID, ap.Quantity, ap.Position},
		lookup:      `SELECT id FROM oem_assembly_parts WHERE assembly_id = ? AND part_id = ?`,
		lookupArgs:  []any{ap.AssemblyID, ap.PartID},
	})
	ap.ID = res.ID
	return res, err
}
