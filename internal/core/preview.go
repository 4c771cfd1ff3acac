package core

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/opsdash/internal/database"
)

// PreviewSummary contains the summary counts for an upload preview.
type PreviewSummary struct {
	TotalRows       int `json:"totalRows"`
	ValidRows       int `json:"validRows"`
	InvalidRows     int `json:"invalidRows"`
	NewProducts     int `json:"newProducts"`
	UpdatedProducts int `json:"updatedProducts"`
	DuplicateInFile int `json:"duplicateInFile"`
}

// ErrorPreview represents a row that would be staged INVALID.
type ErrorPreview struct {
	LineNumber int               `json:"lineNumber"`
	SKU        string            `json:"sku,omitempty"`
	Values     map[string]string `json:"values"`
	Error      string            `json:"error"`
}

// DuplicatePreview represents a SKU that appears on several valid rows.
type DuplicatePreview struct {
	SKU         string `json:"sku"`
	LineNumbers []int  `json:"lineNumbers"`
}

// PreviewResult is what an ingestion of the same bytes would do.
type PreviewResult struct {
	Filename         string             `json:"filename"`
	Source           string             `json:"source"`
	Encoding         Encoding           `json:"encoding"`
	Delimiter        string             `json:"delimiter"`
	Header           []string           `json:"header"`
	Summary          PreviewSummary     `json:"summary"`
	ErrorSamples     []ErrorPreview     `json:"errorSamples"`
	DuplicateSamples []DuplicatePreview `json:"duplicateSamples"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

const maxDuplicateSamples = 10

// Preview performs read-only analysis of an upload. It decodes and
// validates like Ingest and looks up each distinct valid SKU in the catalog,
// but writes nothing. Input errors are returned as from Ingest, without a
// job id.
func (s *Service) Preview(ctx context.Context, filename string, data []byte) (*PreviewResult, error) {
	startTime := time.Now()
	defer s.metrics.ObserveSince("preview", startTime)

	decoded, err := decodeUpload(filename, data)
	if err != nil {
		return nil, err
	}
	table := decoded.Table
	if err := CheckRequiredColumns(table.Header); err != nil {
		return nil, err
	}

	resp := &PreviewResult{
		Filename:         filename,
		Source:           decoded.Source,
		Encoding:         decoded.Encoding,
		Delimiter:        delimiterName(table.Delimiter),
		Header:           table.Header,
		Summary:          PreviewSummary{TotalRows: len(table.Rows)},
		ErrorSamples:     []ErrorPreview{},
		DuplicateSamples: []DuplicatePreview{},
	}

	seen := make(map[string][]int) // sku -> line numbers
	var skus []string

	for _, rec := range table.Rows {
		norm, err := ValidateRow(rec)
		if err != nil {
			resp.Summary.InvalidRows++
			if len(resp.ErrorSamples) < s.previewSampleSize {
				resp.ErrorSamples = append(resp.ErrorSamples, ErrorPreview{
					LineNumber: rec.Line,
					SKU:        rec.Get(ColumnSKU),
					Values:     rec.Fields,
					Error:      err.Error(),
				})
			}
			continue
		}

		resp.Summary.ValidRows++
		if _, ok := seen[norm.SKU]; !ok {
			skus = append(skus, norm.SKU)
		}
		seen[norm.SKU] = append(seen[norm.SKU], rec.Line)
	}

	for _, sku := range skus {
		lines := seen[sku]
		if len(lines) > 1 {
			resp.Summary.DuplicateInFile += len(lines) - 1
			if len(resp.DuplicateSamples) < maxDuplicateSamples {
				resp.DuplicateSamples = append(resp.DuplicateSamples, DuplicatePreview{
					SKU:         sku,
					LineNumbers: lines,
				})
			}
		}

		_, err := s.store.GetProductBySKU(ctx, sku)
		switch {
		case err == nil:
			resp.Summary.UpdatedProducts++
		case errors.Is(err, database.ErrNotFound):
			resp.Summary.NewProducts++
		default:
			return nil, persistenceError("", "look up product", err)
		}
	}

	resp.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	return resp, nil
}
