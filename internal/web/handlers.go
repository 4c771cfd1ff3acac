package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/opsdash/internal/core"
	"github.com/JonMunkholm/opsdash/internal/logging"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before spilling to temp files.
const multipartMemory = 8 << 20

type statusResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    string                   `json:"uptime"`
	Database  string                   `json:"database"`
	Uploads   core.UploadLimiterStatus `json:"uploads"`
}

type ingestResponse struct {
	Message string `json:"message"`
	Total   int    `json:"total"`
	*core.IngestResult
}

type promoteResponse struct {
	Message string `json:"message"`
	*core.PromoteResult
}

type deleteResponse struct {
	Message string `json:"message"`
	core.DeleteResult
}

// handleStatus reports liveness plus database reachability.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Database:  "ok",
		Uploads:   s.service.Limiter().Status(),
	}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// handleIngest stages an uploaded file.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, uploadStatus(err))
		return
	}

	ctx := withRequestMetadata(r.Context(), r)
	result, err := s.service.Ingest(ctx, filename, data)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	writeJSON(w, r, http.StatusCreated, ingestResponse{
		Message:      "Rows staged",
		Total:        result.TotalRows,
		IngestResult: result,
	})
}

// handlePreview analyzes a file and returns what an ingest would do.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	filename, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, uploadStatus(err))
		return
	}

	result, err := s.service.Preview(r.Context(), filename, data)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// readUpload reads the multipart "file" field, bounded by the configured
// maximum upload size.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, fmt.Errorf("%w: limit is %d bytes", errTooLarge, maxSize)
		}
		return "", nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return header.Filename, data, nil
}

func uploadStatus(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// handleTemplate downloads an import template.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format, err := core.ParseTemplateFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Message: err.Error(),
			Code:    "FILE002",
		})
		return
	}

	var buf bytes.Buffer
	if err := core.WriteTemplate(&buf, format); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}

// handlePromote promotes a job's VALID rows into the catalog.
func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Promote(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, promoteResponse{
		Message:       "Normalization complete",
		PromoteResult: result,
	})
}

// handleListJobs lists jobs newest first; ?limit=N bounds the result.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
				Error:   "limit must be a positive integer",
				Message: "limit must be a positive integer",
				Code:    "ERR001",
			})
			return
		}
		limit = n
	}

	jobs, err := s.service.ListJobs(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

// handleInvalidRows returns a job's rejected rows as JSON, or as a CSV
// download with ?format=csv.
func (s *Server) handleInvalidRows(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	rows, err := s.service.ListInvalidRows(r.Context(), jobID)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, r, http.StatusOK, rows)
		return
	}

	var buf bytes.Buffer
	if err := core.WriteInvalidRowsCSV(&buf, rows); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("invalid_rows_%s.csv", jobID)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.DeleteJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, deleteResponse{Message: "Job deleted", DeleteResult: result})
}

func (s *Server) handleDeleteAllJobs(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.DeleteAllJobs(r.Context())
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, http.StatusOK, deleteResponse{Message: "All jobs deleted", DeleteResult: result})
}
