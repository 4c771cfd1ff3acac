package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Classified pipeline errors (see errors.go) are mapped by kind and reason first;
// anything else falls back to substring patterns over the error text.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Empty file: The uploaded file has no content
//	         Action: Upload a file with a header row and at least one data row
//	         Reason: "empty"
//
//	IMP002 - Unparseable: No delimiter produced any data rows
//	         Action: Save the file as CSV or XLSX with a header row
//	         Reason: "unparseable"
//
//	IMP003 - Missing column: A required column is absent from the header
//	         Action: Include sku, name, quantity and threshold columns
//	         Reason: "missing-column:<name>"
//
//	IMP004 - Job not found: The import job does not exist
//	         Action: Refresh the job list
//	         Reason: "not-found"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key          Patterns: "duplicate key"
//	DB002 - Unique constraint      Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key            Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused     Patterns: "connection refused"
//	DB005 - Connection reset       Patterns: "connection reset"
//	DB006 - Timeout                Patterns: "timeout"
//	DB007 - Deadlock               Patterns: "deadlock"
//	DB008 - Database busy          Patterns: "database is locked"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large       Patterns: "file too large", "request body too large"
//	FILE004 - No file              Patterns: "no file provided"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy           Kind: busy, Patterns: "too many concurrent uploads"
//	UPL004 - Request cancelled     Patterns: "context canceled"
//	UPL005 - Request timeout       Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited         Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check application logs
// for the original technical error when users report ERR000.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgEmpty = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row and at least one data row",
		Code:    "IMP001",
	}
	msgUnparseable = UserMessage{
		Message: "The file could not be parsed as delimited text",
		Action:  "Save the file as CSV or XLSX with a header row",
		Code:    "IMP002",
	}
	msgMissingColumn = UserMessage{
		Message: "Required column is missing",
		Action:  "Include sku, name, quantity and threshold columns",
		Code:    "IMP003",
	}
	msgJobNotFound = UserMessage{
		Message: "Import job not found",
		Action:  "Refresh the job list",
		Code:    "IMP004",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other uploads",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Please try again",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Review your data for duplicate key values",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Refresh the job list and try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "Referenced record does not exist",
			Action:  "Refresh the job list and try again",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB008)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try uploading a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with another write",
			Action:  "Please try again",
			Code:    "DB008",
		},
	},

	// =========================================================================
	// File Errors
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Upload Errors
	// =========================================================================
	{
		pattern: "too many concurrent uploads",
		msg:     msgBusy,
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Classified errors are mapped by kind and reason; other errors are matched
// against known patterns. If nothing matches, ERR000 is returned.
//
// Example:
//
//	_, err := svc.Ingest(ctx, "stock.csv", data)
//	msg := MapError(err)
//	// msg.Code == "IMP003"
//	// msg.Message == "Missing required column 'threshold'"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var e *Error
	if errors.As(err, &e) {
		if msg, ok := mapClassified(e); ok {
			return msg
		}
	}
	if errors.Is(err, ErrTooManyUploads) {
		return msgBusy
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func mapClassified(e *Error) (UserMessage, bool) {
	switch e.Kind {
	case KindInput:
		switch {
		case e.Reason == ReasonEmpty:
			return msgEmpty, true
		case e.Reason == ReasonUnparseable:
			return msgUnparseable, true
		}
		if col, ok := e.MissingColumn(); ok {
			msg := msgMissingColumn
			msg.Message = fmt.Sprintf("Missing required column '%s'", col)
			return msg, true
		}
	case KindNotFound:
		return msgJobNotFound, true
	case KindBusy:
		return msgBusy, true
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Import job not found (Code: IMP004). Refresh the job list"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}
