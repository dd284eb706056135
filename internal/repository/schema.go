package repository

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS oem_makes (
		id           BIGSERIAL PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS oem_models (
		id           BIGSERIAL PRIMARY KEY,
		make_id      BIGINT NOT NULL REFERENCES oem_makes(id),
		name         TEXT NOT NULL,
		display_name TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (make_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS oem_model_years (
		id         BIGSERIAL PRIMARY KEY,
		model_id   BIGINT NOT NULL REFERENCES oem_models(id),
		year       INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (model_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS oem_assemblies (
		id            BIGSERIAL PRIMARY KEY,
		model_year_id BIGINT NOT NULL REFERENCES oem_model_years(id),
		code          TEXT NOT NULL,
		name          TEXT NOT NULL,
		source_url    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (model_year_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS oem_parts (
		id          BIGSERIAL PRIMARY KEY,
		part_number TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS oem_assembly_parts (
		id          BIGSERIAL PRIMARY KEY,
		assembly_id BIGINT NOT NULL REFERENCES oem_assemblies(id),
		part_id     BIGINT NOT NULL REFERENCES oem_parts(id),
		quantity    INTEGER NOT NULL DEFAULT 1,
		position    TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (assembly_id, part_id)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS oem_makes (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS oem_models (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		make_id      INTEGER NOT NULL REFERENCES oem_makes(id),
		name         TEXT NOT NULL,
		display_name TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (make_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS oem_model_years (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id   INTEGER NOT NULL REFERENCES oem_models(id),
		year       INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (model_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS oem_assemblies (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		model_year_id INTEGER NOT NULL REFERENCES oem_model_years(id),
		code          TEXT NOT NULL,
		name          TEXT NOT NULL,
		source_url    TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (model_year_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS oem_parts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		part_number TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS oem_assembly_parts (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		assembly_id INTEGER NOT NULL REFERENCES oem_assemblies(id),
		part_id     INTEGER NOT NULL REFERENCES oem_parts(id),
		quantity    INTEGER NOT NULL DEFAULT 1,
		position    TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (assembly_id, part_id)
	)`,
}
