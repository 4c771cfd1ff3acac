package database

// Statements are applied in order and are safe to re-run.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS import_jobs (
		id             TEXT PRIMARY KEY,
		source         TEXT NOT NULL,
		filename       TEXT NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED')),
		total_rows     INTEGER NOT NULL DEFAULT 0,
		valid_rows     INTEGER NOT NULL DEFAULT 0,
		invalid_rows   INTEGER NOT NULL DEFAULT 0,
		processed_rows INTEGER NOT NULL DEFAULT 0,
		error          TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		completed_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS import_jobs_created_at_idx ON import_jobs (created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS staging_rows (
		id           TEXT PRIMARY KEY,
		job_id       TEXT NOT NULL REFERENCES import_jobs (id) ON DELETE CASCADE,
		row_number   INTEGER NOT NULL,
		raw_text     TEXT NOT NULL,
		sku          TEXT,
		name         TEXT,
		quantity     INTEGER,
		threshold    INTEGER,
		status       TEXT NOT NULL CHECK (status IN ('VALID', 'INVALID', 'PROCESSED')),
		error        TEXT,
		created_at   TIMESTAMPTZ NOT NULL,
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS staging_rows_job_status_idx ON staging_rows (job_id, status)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		sku        TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		quantity   INTEGER NOT NULL,
		threshold  INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_levels (
		id         TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products (id),
		quantity   INTEGER NOT NULL,
		taken_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS inventory_levels_product_idx ON inventory_levels (product_id, taken_at)`,
}

// SQLite stores timestamps as unix milliseconds.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS import_jobs (
		id             TEXT PRIMARY KEY,
		source         TEXT NOT NULL,
		filename       TEXT NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED')),
		total_rows     INTEGER NOT NULL DEFAULT 0,
		valid_rows     INTEGER NOT NULL DEFAULT 0,
		invalid_rows   INTEGER NOT NULL DEFAULT 0,
		processed_rows INTEGER NOT NULL DEFAULT 0,
		error          TEXT,
		created_at     INTEGER NOT NULL,
		completed_at   INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS import_jobs_created_at_idx ON import_jobs (created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS staging_rows (
		id           TEXT PRIMARY KEY,
		job_id       TEXT NOT NULL REFERENCES import_jobs (id) ON DELETE CASCADE,
		row_number   INTEGER NOT NULL,
		raw_text     TEXT NOT NULL,
		sku          TEXT,
		name         TEXT,
		quantity     INTEGER,
		threshold    INTEGER,
		status       TEXT NOT NULL CHECK (status IN ('VALID', 'INVALID', 'PROCESSED')),
		error        TEXT,
		created_at   INTEGER NOT NULL,
		processed_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS staging_rows_job_status_idx ON staging_rows (job_id, status)`,
	`CREATE TABLE IF NOT EXISTS products (
		id         TEXT PRIMARY KEY,
		sku        TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		quantity   INTEGER NOT NULL,
		threshold  INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_levels (
		id         TEXT PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products (id),
		quantity   INTEGER NOT NULL,
		taken_at   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS inventory_levels_product_idx ON inventory_levels (product_id, taken_at)`,
}
