package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/opsdash/internal/database"
	"github.com/JonMunkholm/opsdash/internal/logging"
)

// PromoteResult counts what a promotion changed.
type PromoteResult struct {
	JobID     string `json:"jobId"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Snapshots int    `json:"snapshots"`
}

// Promote moves a job's VALID staging rows into the product catalog.
//
// Everything happens in one transaction: each row upserts its product by
// SKU, one inventory level is appended per distinct product touched, and
// the rows become PROCESSED. When several rows share a SKU the last one in
// row order decides the stored values. Promoting the same job again finds
// no VALID rows and changes nothing.
func (s *Service) Promote(ctx context.Context, jobID string) (*PromoteResult, error) {
	start := time.Now()
	defer s.metrics.ObserveSince("promote", start)

	unlock := s.locks.lock(jobID)
	defer unlock()

	log := logging.WithFields(ctx, "job_id", jobID)
	result := &PromoteResult{JobID: jobID}
	var promoted int

	err := s.store.WithTx(ctx, func(q database.Queries) error {
		job, err := q.LockJob(ctx, jobID)
		if err != nil {
			return err
		}

		rows, err := q.ListStagingRows(ctx, jobID, database.RowValid)
		if err != nil {
			return fmt.Errorf("list valid rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		now := s.now()
		latest := make(map[string]database.Product, len(rows))
		var order []string
		ids := make([]string, 0, len(rows))

		for _, row := range rows {
			if !row.Complete() {
				log.Warn("skipping valid row without typed fields",
					"row_id", row.ID,
					"row_number", row.RowNumber,
				)
				continue
			}

			p, inserted, err := q.UpsertProduct(ctx, database.UpsertProductParams{
				ID:        s.newID(),
				SKU:       *row.SKU,
				Name:      *row.Name,
				Quantity:  *row.Quantity,
				Threshold: *row.Threshold,
				Now:       now,
			})
			if err != nil {
				return fmt.Errorf("upsert product %q: %w", *row.SKU, err)
			}
			if inserted {
				result.Created++
			} else {
				result.Updated++
			}

			if _, seen := latest[p.ID]; !seen {
				order = append(order, p.ID)
			}
			latest[p.ID] = p
			ids = append(ids, row.ID)
		}

		levels := make([]database.InventoryLevel, 0, len(order))
		for _, productID := range order {
			levels = append(levels, database.InventoryLevel{
				ID:        s.newID(),
				ProductID: productID,
				Quantity:  latest[productID].Quantity,
				TakenAt:   now,
			})
		}
		n, err := q.InsertInventoryLevels(ctx, levels)
		if err != nil {
			return fmt.Errorf("insert inventory levels: %w", err)
		}
		result.Snapshots = int(n)

		if _, err := q.MarkRowsProcessed(ctx, ids, now); err != nil {
			return fmt.Errorf("mark rows processed: %w", err)
		}
		promoted = len(ids)

		if len(order) > 0 {
			if err := q.SetProcessedRows(ctx, jobID, job.ProcessedRows+len(order)); err != nil {
				return fmt.Errorf("set processed rows: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, jobNotFoundError(jobID)
		}
		log.Error("promotion failed", "error", err)
		return nil, persistenceError(jobID, "promote job", err)
	}

	s.metrics.Promoted(result.Created, result.Updated, result.Snapshots)
	s.metrics.RowsStaged(string(database.RowProcessed), promoted)

	log.Info("promotion completed",
		"created", result.Created,
		"updated", result.Updated,
		"snapshots", result.Snapshots,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
