package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLite is the embedded store used for local runs and tests.
// It holds a single connection, so statements inside WithTx must use the
// Queries passed to fn rather than the store itself.
type SQLite struct {
	*liteQueries
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullInt32(value *int32) sql.NullInt32 {
	if value == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *value, Valid: true}
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &SQLite{liteQueries: &liteQueries{db: sqlDB}, db: sqlDB}, nil
}

func (s *SQLite) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&liteQueries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *SQLite) EnsureSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

type sqlDBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type liteQueries struct {
	db sqlDBTX
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLiteJob(row rowScanner) (ImportJob, error) {
	var (
		j           ImportJob
		status      string
		errText     sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(
		&j.ID,
		&j.Source,
		&j.Filename,
		&status,
		&j.TotalRows,
		&j.ValidRows,
		&j.InvalidRows,
		&j.ProcessedRows,
		&errText,
		&createdAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportJob{}, ErrNotFound
	}
	if err != nil {
		return ImportJob{}, err
	}
	j.Status = JobStatus(status)
	j.CreatedAt = fromMillis(createdAt)
	if errText.Valid {
		j.Error = &errText.String
	}
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		j.CompletedAt = &t
	}
	return j, nil
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (q *liteQueries) CreateJob(ctx context.Context, arg CreateJobParams) (ImportJob, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO import_jobs (id, source, filename, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		arg.ID, arg.Source, arg.Filename, string(arg.Status), toMillis(arg.CreatedAt),
	)
	if err != nil {
		return ImportJob{}, err
	}
	return q.GetJob(ctx, arg.ID)
}

func (q *liteQueries) GetJob(ctx context.Context, id string) (ImportJob, error) {
	return scanLiteJob(q.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE id = ?`, id))
}

// LockJob has no row lock in SQLite; the write transaction is already exclusive.
func (q *liteQueries) LockJob(ctx context.Context, id string) (ImportJob, error) {
	return q.GetJob(ctx, id)
}

func (q *liteQueries) ListJobs(ctx context.Context, limit int) ([]ImportJob, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM import_jobs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ImportJob
	for rows.Next() {
		j, err := scanLiteJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	return items, rows.Err()
}

func (q *liteQueries) FinishJob(ctx context.Context, arg FinishJobParams) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE import_jobs
		 SET status = ?, total_rows = ?, valid_rows = ?, invalid_rows = ?, error = ?, completed_at = ?
		 WHERE id = ? AND status NOT IN ('COMPLETED', 'FAILED')`,
		string(arg.Status), arg.TotalRows, arg.ValidRows, arg.InvalidRows, nullString(arg.Error), toMillis(arg.CompletedAt),
		arg.ID,
	)
	if err != nil {
		return err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := q.GetJob(ctx, arg.ID); err != nil {
			return err
		}
		return ErrJobFinished
	}
	return nil
}

func (q *liteQueries) SetProcessedRows(ctx context.Context, id string, processed int) error {
	res, err := q.db.ExecContext(ctx, `UPDATE import_jobs SET processed_rows = ? WHERE id = ?`, processed, id)
	if err != nil {
		return err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *liteQueries) FailStaleJobs(ctx context.Context, createdBefore time.Time, reason string, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE import_jobs SET status = 'FAILED', error = ?, completed_at = ?
		 WHERE status = 'PROCESSING' AND created_at < ?`,
		reason, toMillis(now), toMillis(createdBefore),
	)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func (q *liteQueries) DeleteJob(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM import_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *liteQueries) DeleteAllJobs(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM import_jobs`)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func (q *liteQueries) InsertStagingRows(ctx context.Context, rows []StagingRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := q.db.PrepareContext(ctx,
		`INSERT INTO staging_rows (`+strings.Join(stagingRowColumns, ", ")+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare staging insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.JobID, r.RowNumber, r.RawText,
			nullString(r.SKU), nullString(r.Name), nullInt32(r.Quantity), nullInt32(r.Threshold),
			string(r.Status), nullString(r.Error), toMillis(r.CreatedAt), nullMillis(r.ProcessedAt),
		); err != nil {
			return inserted, fmt.Errorf("insert staging row %d: %w", r.RowNumber, err)
		}
		inserted++
	}
	return inserted, nil
}

func (q *liteQueries) ListStagingRows(ctx context.Context, jobID string, status RowStatus) ([]StagingRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+strings.Join(stagingRowColumns, ", ")+`
		 FROM staging_rows WHERE job_id = ? AND status = ?
		 ORDER BY row_number, id`,
		jobID, string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StagingRow
	for rows.Next() {
		var (
			r           StagingRow
			st          string
			sku, name   sql.NullString
			errText     sql.NullString
			qty, thr    sql.NullInt32
			createdAt   int64
			processedAt sql.NullInt64
		)
		if err := rows.Scan(
			&r.ID,
			&r.JobID,
			&r.RowNumber,
			&r.RawText,
			&sku,
			&name,
			&qty,
			&thr,
			&st,
			&errText,
			&createdAt,
			&processedAt,
		); err != nil {
			return nil, err
		}
		r.Status = RowStatus(st)
		r.CreatedAt = fromMillis(createdAt)
		if sku.Valid {
			r.SKU = &sku.String
		}
		if name.Valid {
			r.Name = &name.String
		}
		if qty.Valid {
			r.Quantity = &qty.Int32
		}
		if thr.Valid {
			r.Threshold = &thr.Int32
		}
		if errText.Valid {
			r.Error = &errText.String
		}
		if processedAt.Valid {
			t := fromMillis(processedAt.Int64)
			r.ProcessedAt = &t
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const markChunk = 500

func (q *liteQueries) MarkRowsProcessed(ctx context.Context, ids []string, at time.Time) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += markChunk {
		end := min(start+markChunk, len(ids))
		chunk := ids[start:end]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, toMillis(at))
		for _, id := range chunk {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")

		res, err := q.db.ExecContext(ctx,
			`UPDATE staging_rows SET status = 'PROCESSED', processed_at = ?
			 WHERE status = 'VALID' AND id IN (`+placeholders+`)`,
			args...,
		)
		if err != nil {
			return total, err
		}
		n, err := rowsAffected(res)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (q *liteQueries) DeleteStagingRows(ctx context.Context, jobID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM staging_rows WHERE job_id = ?`, jobID)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

func (q *liteQueries) DeleteAllStagingRows(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM staging_rows`)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

// UpsertProduct inserts first and falls back to an update when the SKU is
// taken. A failed statement does not abort the surrounding transaction.
func (q *liteQueries) UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, bool, error) {
	now := toMillis(arg.Now)
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO products (id, sku, name, quantity, threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.SKU, arg.Name, arg.Quantity, arg.Threshold, now, now,
	)
	inserted := err == nil
	if err != nil {
		if !isSKUUniqueViolation(err) {
			return Product{}, false, err
		}
		if _, err := q.db.ExecContext(ctx,
			`UPDATE products SET name = ?, quantity = ?, threshold = ?, updated_at = ? WHERE sku = ?`,
			arg.Name, arg.Quantity, arg.Threshold, now, arg.SKU,
		); err != nil {
			return Product{}, false, err
		}
	}
	p, err := q.GetProductBySKU(ctx, arg.SKU)
	return p, inserted, err
}

func (q *liteQueries) GetProductBySKU(ctx context.Context, sku string) (Product, error) {
	var p Product
	var createdAt, updatedAt int64
	err := q.db.QueryRowContext(ctx,
		`SELECT id, sku, name, quantity, threshold, created_at, updated_at FROM products WHERE sku = ?`, sku,
	).Scan(&p.ID, &p.SKU, &p.Name, &p.Quantity, &p.Threshold, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

func (q *liteQueries) InsertInventoryLevels(ctx context.Context, levels []InventoryLevel) (int64, error) {
	if len(levels) == 0 {
		return 0, nil
	}
	stmt, err := q.db.PrepareContext(ctx,
		`INSERT INTO inventory_levels (id, product_id, quantity, taken_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare inventory insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, l := range levels {
		if _, err := stmt.ExecContext(ctx, l.ID, l.ProductID, l.Quantity, toMillis(l.TakenAt)); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (q *liteQueries) ListInventoryLevels(ctx context.Context, productID string) ([]InventoryLevel, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, product_id, quantity, taken_at FROM inventory_levels
		 WHERE product_id = ? ORDER BY taken_at, id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InventoryLevel
	for rows.Next() {
		var l InventoryLevel
		var takenAt int64
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &takenAt); err != nil {
			return nil, err
		}
		l.TakenAt = fromMillis(takenAt)
		items = append(items, l)
	}
	return items, rows.Err()
}

func isSKUUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return strings.Contains(err.Error(), "products.sku")
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "products.sku")
}

var _ Store = (*SQLite)(nil)
