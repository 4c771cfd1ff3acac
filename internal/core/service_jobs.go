package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/opsdash/internal/database"
	"github.com/JonMunkholm/opsdash/internal/logging"
)

// DeleteResult counts what a delete removed.
type DeleteResult struct {
	Jobs int64 `json:"jobs"`
	Rows int64 `json:"rows"`
}

// ListJobs returns the most recent jobs first. A non-positive limit uses
// the configured default; limits above MaxListLimit are capped.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]database.ImportJob, error) {
	if limit <= 0 {
		limit = s.defaultListLimit
	}
	limit = min(limit, MaxListLimit)

	jobs, err := s.store.ListJobs(ctx, limit)
	if err != nil {
		return nil, persistenceError("", "list jobs", err)
	}
	if jobs == nil {
		jobs = []database.ImportJob{}
	}
	return jobs, nil
}

// GetJob returns a single job.
func (s *Service) GetJob(ctx context.Context, jobID string) (*database.ImportJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, jobNotFoundError(jobID)
		}
		return nil, persistenceError(jobID, "get job", err)
	}
	return &job, nil
}

// ListInvalidRows returns a job's INVALID staging rows in row order.
func (s *Service) ListInvalidRows(ctx context.Context, jobID string) ([]database.StagingRow, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := s.store.ListStagingRows(ctx, jobID, database.RowInvalid)
	if err != nil {
		return nil, persistenceError(jobID, "list invalid rows", err)
	}
	if rows == nil {
		rows = []database.StagingRow{}
	}
	return rows, nil
}

// DeleteJob removes a job and its staging rows. Products and inventory
// levels already promoted from it are kept.
func (s *Service) DeleteJob(ctx context.Context, jobID string) (DeleteResult, error) {
	unlock := s.locks.lock(jobID)
	defer unlock()

	var res DeleteResult
	err := s.store.WithTx(ctx, func(q database.Queries) error {
		n, err := q.DeleteStagingRows(ctx, jobID)
		if err != nil {
			return fmt.Errorf("delete staging rows: %w", err)
		}
		if err := q.DeleteJob(ctx, jobID); err != nil {
			return err
		}
		res = DeleteResult{Jobs: 1, Rows: n}
		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return DeleteResult{}, jobNotFoundError(jobID)
		}
		return DeleteResult{}, persistenceError(jobID, "delete job", err)
	}

	logging.WithFields(ctx, "job_id", jobID).Info("job deleted", "rows_deleted", res.Rows)
	return res, nil
}

// DeleteAllJobs removes every job and staging row.
func (s *Service) DeleteAllJobs(ctx context.Context) (DeleteResult, error) {
	var res DeleteResult
	err := s.store.WithTx(ctx, func(q database.Queries) error {
		rows, err := q.DeleteAllStagingRows(ctx)
		if err != nil {
			return fmt.Errorf("delete staging rows: %w", err)
		}
		jobs, err := q.DeleteAllJobs(ctx)
		if err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}
		res = DeleteResult{Jobs: jobs, Rows: rows}
		return nil
	})
	if err != nil {
		return DeleteResult{}, persistenceError("", "delete all jobs", err)
	}

	logging.FromContext(ctx).Warn("all jobs deleted", "jobs_deleted", res.Jobs, "rows_deleted", res.Rows)
	return res, nil
}
