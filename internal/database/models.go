package database

import "time"

// JobStatus is the lifecycle state of an ImportJob.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RowStatus is the verdict recorded for a StagingRow.
type RowStatus string

const (
	RowValid     RowStatus = "VALID"
	RowInvalid   RowStatus = "INVALID"
	RowProcessed RowStatus = "PROCESSED"
)

// ImportJob is one upload attempt and its aggregate counters.
type ImportJob struct {
	ID            string     `json:"id"`
	Source        string     `json:"source"`
	Filename      string     `json:"filename"`
	Status        JobStatus  `json:"status"`
	TotalRows     int        `json:"totalRows"`
	ValidRows     int        `json:"validRows"`
	InvalidRows   int        `json:"invalidRows"`
	ProcessedRows int        `json:"processedRows"`
	Error         *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// StagingRow is one input row with its validation verdict.
// Typed fields are set only for VALID and PROCESSED rows.
type StagingRow struct {
	ID          string     `json:"id"`
	JobID       string     `json:"jobId"`
	RowNumber   int        `json:"rowNumber"`
	RawText     string     `json:"rawText"`
	SKU         *string    `json:"sku"`
	Name        *string    `json:"name"`
	Quantity    *int32     `json:"quantity"`
	Threshold   *int32     `json:"threshold"`
	Status      RowStatus  `json:"status"`
	Error       *string    `json:"error"`
	CreatedAt   time.Time  `json:"createdAt"`
	ProcessedAt *time.Time `json:"processedAt"`
}

// Complete reports whether all four typed fields are present.
func (r StagingRow) Complete() bool {
	return r.SKU != nil && r.Name != nil && r.Quantity != nil && r.Threshold != nil
}

// Product is a catalog entry keyed by SKU.
type Product struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Quantity  int32     `json:"quantity"`
	Threshold int32     `json:"threshold"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// InventoryLevel is an append-only quantity snapshot for a product.
type InventoryLevel struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int32     `json:"quantity"`
	TakenAt   time.Time `json:"takenAt"`
}

// CreateJobParams holds the fields for a new job.
type CreateJobParams struct {
	ID        string
	Source    string
	Filename  string
	Status    JobStatus
	CreatedAt time.Time
}

// FinishJobParams moves a job to a terminal status with its final counts.
type FinishJobParams struct {
	ID          string
	Status      JobStatus
	TotalRows   int
	ValidRows   int
	InvalidRows int
	Error       *string
	CompletedAt time.Time
}

// UpsertProductParams creates or overwrites the product with SKU.
type UpsertProductParams struct {
	ID        string // used only when the product is created
	SKU       string
	Name      string
	Quantity  int32
	Threshold int32
	Now       time.Time
}
