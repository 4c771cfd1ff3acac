package core

// service_ingest.go stages an uploaded file.
//
// Flow:
//  1. Open an ImportJob in PROCESSING
//  2. Decode: spreadsheet read, or encoding normalize + delimiter sniff + tokenize
//  3. Reject empty, unparseable or header-incomplete uploads (job FAILED)
//  4. Validate every row
//  5. Insert all staging rows and complete the job in one transaction
//
// A job therefore never shows COMPLETED with a partial set of rows.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/opsdash/internal/database"
	"github.com/JonMunkholm/opsdash/internal/logging"
)

// Upload sources recorded on the job.
const (
	SourceCSV  = "csv"
	SourceXLSX = "xlsx"
)

// IngestResult summarizes a staged upload.
type IngestResult struct {
	JobID       string   `json:"jobId"`
	Filename    string   `json:"filename"`
	Source      string   `json:"source"`
	Encoding    Encoding `json:"encoding"`
	Delimiter   string   `json:"delimiter"`
	Header      []string `json:"header"`
	TotalRows   int      `json:"totalRows"`
	ValidRows   int      `json:"validRows"`
	InvalidRows int      `json:"invalidRows"`
}

// decodedUpload is an upload turned into a table, before validation.
type decodedUpload struct {
	Source   string
	Encoding Encoding
	Table    *Table
}

// decodeUpload turns raw bytes into a table. It returns emptyInputError or
// unparseableError without a job id; callers attach one.
func decodeUpload(filename string, data []byte) (*decodedUpload, error) {
	if len(data) == 0 {
		return nil, emptyInputError("")
	}

	if isSpreadsheet(filename, data) {
		table, err := ReadSpreadsheet(data)
		if err != nil {
			return nil, unparseableError("", err)
		}
		return &decodedUpload{Source: SourceXLSX, Encoding: EncodingUTF8, Table: table}, nil
	}

	text, enc := NormalizeEncoding(data)
	if strings.TrimSpace(text) == "" {
		return nil, emptyInputError("")
	}

	table, err := Tokenize(text, SniffDelimiter(text))
	if err != nil {
		return nil, unparseableError("", err)
	}
	return &decodedUpload{Source: SourceCSV, Encoding: enc, Table: table}, nil
}

// sourceOf guesses the job source before decoding.
func sourceOf(filename string, data []byte) string {
	if isSpreadsheet(filename, data) {
		return SourceXLSX
	}
	return SourceCSV
}

// Ingest records an ImportJob for the upload and stages every row as VALID
// or INVALID. Input failures return an *Error of KindInput whose JobID names
// the FAILED job.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	start := time.Now()
	defer s.metrics.ObserveSince("ingest", start)

	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyUploads) {
			return nil, &Error{Kind: KindBusy, Message: "ingest", Err: err}
		}
		return nil, err
	}
	defer s.limiter.Release()

	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	jobID := s.newID()
	source := sourceOf(filename, data)
	log := logging.WithFields(ctx,
		"job_id", jobID,
		"filename", filename,
		"source", source,
		"bytes", len(data),
	)
	if ip := ClientIPFromContext(ctx); ip != "" {
		log = log.With("client_ip", ip, "user_agent", UserAgentFromContext(ctx))
	}

	if _, err := s.store.CreateJob(ctx, database.CreateJobParams{
		ID:        jobID,
		Source:    source,
		Filename:  filename,
		Status:    database.JobProcessing,
		CreatedAt: s.now(),
	}); err != nil {
		return nil, persistenceError("", "create import job", err)
	}
	log.Info("ingest started")

	decoded, err := decodeUpload(filename, data)
	if err != nil {
		s.failJob(ctx, log, jobID, 0, ReasonOf(err))
		return nil, withJobID(err, jobID)
	}
	table := decoded.Table

	if err := CheckRequiredColumns(table.Header); err != nil {
		s.failJob(ctx, log, jobID, len(table.Rows), ReasonOf(err))
		return nil, withJobID(err, jobID)
	}

	rows, valid, invalid := s.classifyRows(jobID, table.Rows)

	err = s.store.WithTx(ctx, func(q database.Queries) error {
		if _, err := q.InsertStagingRows(ctx, rows); err != nil {
			return fmt.Errorf("insert staging rows: %w", err)
		}
		return q.FinishJob(ctx, database.FinishJobParams{
			ID:          jobID,
			Status:      database.JobCompleted,
			TotalRows:   len(rows),
			ValidRows:   valid,
			InvalidRows: invalid,
			CompletedAt: s.now(),
		})
	})
	if err != nil {
		log.Error("staging transaction failed", "error", err)
		s.failJob(ctx, log, jobID, 0, "staging insert failed")
		return nil, persistenceError(jobID, "stage rows", err)
	}

	s.metrics.JobFinished(string(database.JobCompleted))
	s.metrics.RowsStaged(string(database.RowValid), valid)
	s.metrics.RowsStaged(string(database.RowInvalid), invalid)

	log.Info("ingest completed",
		"encoding", decoded.Encoding,
		"delimiter", delimiterName(table.Delimiter),
		"total_rows", len(rows),
		"valid_rows", valid,
		"invalid_rows", invalid,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &IngestResult{
		JobID:       jobID,
		Filename:    filename,
		Source:      decoded.Source,
		Encoding:    decoded.Encoding,
		Delimiter:   delimiterName(table.Delimiter),
		Header:      table.Header,
		TotalRows:   len(rows),
		ValidRows:   valid,
		InvalidRows: invalid,
	}, nil
}

// classifyRows validates each record and builds its staging row.
func (s *Service) classifyRows(jobID string, records []Record) (rows []database.StagingRow, valid, invalid int) {
	now := s.now()
	rows = make([]database.StagingRow, 0, len(records))

	for _, rec := range records {
		row := database.StagingRow{
			ID:        s.newID(),
			JobID:     jobID,
			RowNumber: rec.Line,
			RawText:   rec.RawJSON(),
			CreatedAt: now,
		}

		norm, err := ValidateRow(rec)
		if err != nil {
			msg := err.Error()
			row.Status = database.RowInvalid
			row.Error = &msg
			invalid++
		} else {
			row.Status = database.RowValid
			row.SKU = &norm.SKU
			row.Name = &norm.Name
			row.Quantity = &norm.Quantity
			row.Threshold = &norm.Threshold
			valid++
		}
		rows = append(rows, row)
	}
	return rows, valid, invalid
}

// failJob marks the job FAILED. It runs on a context detached from the
// request so a cancelled upload still leaves a terminal job behind.
func (s *Service) failJob(ctx context.Context, log *slog.Logger, jobID string, totalRows int, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failJobTimeout)
	defer cancel()

	err := s.store.FinishJob(ctx, database.FinishJobParams{
		ID:          jobID,
		Status:      database.JobFailed,
		TotalRows:   totalRows,
		InvalidRows: totalRows,
		Error:       &reason,
		CompletedAt: s.now(),
	})
	if err != nil {
		log.Error("failed to mark job FAILED", "error", err, "reason", reason)
		return
	}
	s.metrics.JobFinished(string(database.JobFailed))
	log.Warn("ingest failed", "reason", reason, "total_rows", totalRows)
}

func withJobID(err error, jobID string) error {
	var e *Error
	if errors.As(err, &e) {
		e.JobID = jobID
	}
	return err
}
