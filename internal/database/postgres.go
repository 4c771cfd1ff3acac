package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PoolOptions tunes the pgx connection pool.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Postgres is the PostgreSQL store.
type Postgres struct {
	*pgQueries
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, url string, opts PoolOptions) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewPostgres(pool), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pgQueries: &pgQueries{db: pool}, pool: pool}
}

func (p *Postgres) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgQueries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

type pgQueries struct {
	db DBTX
}

const jobColumns = `id, source, filename, status, total_rows, valid_rows, invalid_rows, processed_rows, error, created_at, completed_at`

func scanPgJob(row pgx.Row) (ImportJob, error) {
	var j ImportJob
	var status string
	err := row.Scan(
		&j.ID,
		&j.Source,
		&j.Filename,
		&status,
		&j.TotalRows,
		&j.ValidRows,
		&j.InvalidRows,
		&j.ProcessedRows,
		&j.Error,
		&j.CreatedAt,
		&j.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportJob{}, ErrNotFound
	}
	j.Status = JobStatus(status)
	return j, err
}

const createJob = `-- name: CreateJob :one
INSERT INTO import_jobs (id, source, filename, status, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + jobColumns

func (q *pgQueries) CreateJob(ctx context.Context, arg CreateJobParams) (ImportJob, error) {
	row := q.db.QueryRow(ctx, createJob, arg.ID, arg.Source, arg.Filename, string(arg.Status), arg.CreatedAt)
	return scanPgJob(row)
}

const getJob = `-- name: GetJob :one
SELECT ` + jobColumns + ` FROM import_jobs WHERE id = $1`

func (q *pgQueries) GetJob(ctx context.Context, id string) (ImportJob, error) {
	return scanPgJob(q.db.QueryRow(ctx, getJob, id))
}

const lockJob = getJob + ` FOR UPDATE`

func (q *pgQueries) LockJob(ctx context.Context, id string) (ImportJob, error) {
	return scanPgJob(q.db.QueryRow(ctx, lockJob, id))
}

const listJobs = `-- name: ListJobs :many
SELECT ` + jobColumns + ` FROM import_jobs
ORDER BY created_at DESC, id DESC
LIMIT $1`

func (q *pgQueries) ListJobs(ctx context.Context, limit int) ([]ImportJob, error) {
	rows, err := q.db.Query(ctx, listJobs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ImportJob
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	return items, rows.Err()
}

const finishJob = `-- name: FinishJob :exec
UPDATE import_jobs
SET status = $2, total_rows = $3, valid_rows = $4, invalid_rows = $5, error = $6, completed_at = $7
WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')`

func (q *pgQueries) FinishJob(ctx context.Context, arg FinishJobParams) error {
	tag, err := q.db.Exec(ctx, finishJob,
		arg.ID,
		string(arg.Status),
		arg.TotalRows,
		arg.ValidRows,
		arg.InvalidRows,
		arg.Error,
		arg.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := q.GetJob(ctx, arg.ID); err != nil {
			return err
		}
		return ErrJobFinished
	}
	return nil
}

const setProcessedRows = `-- name: SetProcessedRows :exec
UPDATE import_jobs SET processed_rows = $2 WHERE id = $1`

func (q *pgQueries) SetProcessedRows(ctx context.Context, id string, processed int) error {
	tag, err := q.db.Exec(ctx, setProcessedRows, id, processed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const failStaleJobs = `-- name: FailStaleJobs :execrows
UPDATE import_jobs
SET status = 'FAILED', error = $2, completed_at = $3
WHERE status = 'PROCESSING' AND created_at < $1`

func (q *pgQueries) FailStaleJobs(ctx context.Context, createdBefore time.Time, reason string, now time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, failStaleJobs, createdBefore, reason, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteJob = `-- name: DeleteJob :exec
DELETE FROM import_jobs WHERE id = $1`

func (q *pgQueries) DeleteJob(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, deleteJob, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const deleteAllJobs = `-- name: DeleteAllJobs :execrows
DELETE FROM import_jobs`

func (q *pgQueries) DeleteAllJobs(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAllJobs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var stagingRowColumns = []string{
	"id", "job_id", "row_number", "raw_text", "sku", "name", "quantity", "threshold",
	"status", "error", "created_at", "processed_at",
}

func (q *pgQueries) InsertStagingRows(ctx context.Context, rows []StagingRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"staging_rows"},
		stagingRowColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.ID, r.JobID, r.RowNumber, r.RawText, r.SKU, r.Name, r.Quantity, r.Threshold,
				string(r.Status), r.Error, r.CreatedAt, r.ProcessedAt,
			}, nil
		}),
	)
}

const listStagingRows = `-- name: ListStagingRows :many
SELECT id, job_id, row_number, raw_text, sku, name, quantity, threshold, status, error, created_at, processed_at
FROM staging_rows
WHERE job_id = $1 AND status = $2
ORDER BY row_number, id`

func (q *pgQueries) ListStagingRows(ctx context.Context, jobID string, status RowStatus) ([]StagingRow, error) {
	rows, err := q.db.Query(ctx, listStagingRows, jobID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StagingRow
	for rows.Next() {
		var r StagingRow
		var st string
		if err := rows.Scan(
			&r.ID,
			&r.JobID,
			&r.RowNumber,
			&r.RawText,
			&r.SKU,
			&r.Name,
			&r.Quantity,
			&r.Threshold,
			&st,
			&r.Error,
			&r.CreatedAt,
			&r.ProcessedAt,
		); err != nil {
			return nil, err
		}
		r.Status = RowStatus(st)
		items = append(items, r)
	}
	return items, rows.Err()
}

const markRowsProcessed = `-- name: MarkRowsProcessed :execrows
UPDATE staging_rows
SET status = 'PROCESSED', processed_at = $2
WHERE id = ANY($1) AND status = 'VALID'`

func (q *pgQueries) MarkRowsProcessed(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.db.Exec(ctx, markRowsProcessed, ids, at)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteStagingRows = `-- name: DeleteStagingRows :execrows
DELETE FROM staging_rows WHERE job_id = $1`

func (q *pgQueries) DeleteStagingRows(ctx context.Context, jobID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteStagingRows, jobID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteAllStagingRows = `-- name: DeleteAllStagingRows :execrows
DELETE FROM staging_rows`

func (q *pgQueries) DeleteAllStagingRows(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAllStagingRows)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const upsertProduct = `-- name: UpsertProduct :one
INSERT INTO products (id, sku, name, quantity, threshold, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (sku) DO UPDATE
SET name = EXCLUDED.name,
    quantity = EXCLUDED.quantity,
    threshold = EXCLUDED.threshold,
    updated_at = EXCLUDED.updated_at
RETURNING id, sku, name, quantity, threshold, created_at, updated_at, (xmax = 0) AS inserted`

func (q *pgQueries) UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, bool, error) {
	var p Product
	var inserted bool
	err := q.db.QueryRow(ctx, upsertProduct,
		arg.ID,
		arg.SKU,
		arg.Name,
		arg.Quantity,
		arg.Threshold,
		arg.Now,
	).Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Quantity,
		&p.Threshold,
		&p.CreatedAt,
		&p.UpdatedAt,
		&inserted,
	)
	return p, inserted, err
}

const getProductBySKU = `-- name: GetProductBySKU :one
SELECT id, sku, name, quantity, threshold, created_at, updated_at FROM products WHERE sku = $1`

func (q *pgQueries) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, getProductBySKU, sku).Scan(
		&p.ID,
		&p.SKU,
		&p.Name,
		&p.Quantity,
		&p.Threshold,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (q *pgQueries) InsertInventoryLevels(ctx context.Context, levels []InventoryLevel) (int64, error) {
	if len(levels) == 0 {
		return 0, nil
	}
	return q.db.CopyFrom(ctx,
		pgx.Identifier{"inventory_levels"},
		[]string{"id", "product_id", "quantity", "taken_at"},
		pgx.CopyFromSlice(len(levels), func(i int) ([]any, error) {
			l := levels[i]
			return []any{l.ID, l.ProductID, l.Quantity, l.TakenAt}, nil
		}),
	)
}

const listInventoryLevels = `-- name: ListInventoryLevels :many
SELECT id, product_id, quantity, taken_at FROM inventory_levels
WHERE product_id = $1
ORDER BY taken_at, id`

func (q *pgQueries) ListInventoryLevels(ctx context.Context, productID string) ([]InventoryLevel, error) {
	rows, err := q.db.Query(ctx, listInventoryLevels, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InventoryLevel
	for rows.Next() {
		var l InventoryLevel
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.TakenAt); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

var _ Store = (*Postgres)(nil)
