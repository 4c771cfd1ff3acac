// Package database persists import jobs, staging rows and the product
// catalog. It has two backends with the same behavior: PostgreSQL through
// pgx for deployments and SQLite for local runs and tests.
package database

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a job or product does not exist.
var ErrNotFound = errors.New("not found")

// ErrJobFinished is returned when finishing a job that is already COMPLETED or FAILED.
var ErrJobFinished = errors.New("job already finished")

// Queries is the set of statements the pipeline runs. Every method is
// usable both on the store and inside a transaction passed to WithTx.
type Queries interface {
	CreateJob(ctx context.Context, arg CreateJobParams) (ImportJob, error)
	GetJob(ctx context.Context, id string) (ImportJob, error)
	// LockJob returns the job and holds a row lock on it until the
	// enclosing transaction ends, where the backend supports one.
	LockJob(ctx context.Context, id string) (ImportJob, error)
	ListJobs(ctx context.Context, limit int) ([]ImportJob, error)
	FinishJob(ctx context.Context, arg FinishJobParams) error
	SetProcessedRows(ctx context.Context, id string, processed int) error
	FailStaleJobs(ctx context.Context, createdBefore time.Time, reason string, now time.Time) (int64, error)
	DeleteJob(ctx context.Context, id string) error
	DeleteAllJobs(ctx context.Context) (int64, error)

	InsertStagingRows(ctx context.Context, rows []StagingRow) (int64, error)
	ListStagingRows(ctx context.Context, jobID string, status RowStatus) ([]StagingRow, error)
	MarkRowsProcessed(ctx context.Context, ids []string, at time.Time) (int64, error)
	DeleteStagingRows(ctx context.Context, jobID string) (int64, error)
	DeleteAllStagingRows(ctx context.Context) (int64, error)

	// UpsertProduct reports inserted=true when no product with the SKU existed.
	UpsertProduct(ctx context.Context, arg UpsertProductParams) (p Product, inserted bool, err error)
	GetProductBySKU(ctx context.Context, sku string) (Product, error)
	InsertInventoryLevels(ctx context.Context, levels []InventoryLevel) (int64, error)
	ListInventoryLevels(ctx context.Context, productID string) ([]InventoryLevel, error)
}

// Store is a Queries backend that can also run transactions.
type Store interface {
	Queries

	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(q Queries) error) error
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}
