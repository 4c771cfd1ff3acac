package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/opsdash/internal/database"
)

// ErrorKind classifies pipeline failures so callers can react without
// inspecting error strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindInput covers empty, unparseable and structurally wrong uploads.
	KindInput
	// KindNotFound is returned for operations on a job id that does not exist.
	KindNotFound
	// KindPersistence covers failed batch commits and other storage errors.
	KindPersistence
	// KindBusy means the ingestion limiter had no free slot.
	KindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Reasons reported for input failures.
const (
	ReasonEmpty         = "empty"
	ReasonUnparseable   = "unparseable"
	ReasonMissingColumn = "missing-column"
	ReasonNotFound      = "not-found"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind    ErrorKind
	Reason  string // machine-readable, e.g. "missing-column:threshold"
	Message string // human-readable
	JobID   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MissingColumn returns the column name for a missing-column failure.
func (e *Error) MissingColumn() (string, bool) {
	return strings.CutPrefix(e.Reason, ReasonMissingColumn+":")
}

func emptyInputError(jobID string) *Error {
	return &Error{Kind: KindInput, Reason: ReasonEmpty, Message: "empty file", JobID: jobID}
}

func unparseableError(jobID string, err error) *Error {
	return &Error{Kind: KindInput, Reason: ReasonUnparseable, Message: "unparseable input", JobID: jobID, Err: err}
}

func missingColumnError(column string) *Error {
	return &Error{
		Kind:    KindInput,
		Reason:  ReasonMissingColumn + ":" + column,
		Message: fmt.Sprintf("Missing required column '%s'", column),
	}
}

func jobNotFoundError(jobID string) *Error {
	return &Error{Kind: KindNotFound, Reason: ReasonNotFound, Message: "Job not found", JobID: jobID}
}

func persistenceError(jobID, op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op, JobID: jobID, Err: err}
}

// KindOf reports the kind of err. Unclassified non-nil errors are
// treated as persistence failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrTooManyUploads):
		return KindBusy
	case errors.Is(err, database.ErrNotFound):
		return KindNotFound
	default:
		return KindPersistence
	}
}

// IsNotFound reports whether err means the job does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// ReasonOf returns the machine-readable reason attached to err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// JobIDOf returns the job a pipeline error belongs to, if any.
func JobIDOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.JobID
	}
	return ""
}
