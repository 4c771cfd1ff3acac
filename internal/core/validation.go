package core

// validation.go provides row-level validation for staged inventory rows.
//
// Validation happens at two levels:
//  1. Header validation: all required columns must be present, checked once
//  2. Row validation: six ordered rules, the first failing rule wins
//
// Validation is pure. The verdict is persisted by the staging orchestration.

import (
	"strconv"
	"strings"
)

// Canonical column names, matched case-insensitively.
const (
	ColumnSKU       = "sku"
	ColumnName      = "name"
	ColumnQuantity  = "quantity"
	ColumnThreshold = "threshold"
)

// RequiredColumns lists the header columns an upload must carry, in the
// order they are checked.
var RequiredColumns = []string{ColumnSKU, ColumnName, ColumnQuantity, ColumnThreshold}

// Row rejection messages.
const (
	MsgSKURequired       = "SKU is required"
	MsgNameRequired      = "Name is required"
	MsgQuantityInteger   = "Quantity must be an integer"
	MsgQuantityNegative  = "Quantity cannot be negative"
	MsgThresholdInteger  = "Threshold must be an integer"
	MsgThresholdNegative = "Threshold cannot be negative"
)

// ValidationError is the rejection reason for one row.
type ValidationError struct {
	Field   string // Canonical column name
	Value   string // The rejected value
	Message string // One of the Msg* constants
}

func (e ValidationError) Error() string {
	return e.Message
}

// NormalizedRow is a row that passed validation.
type NormalizedRow struct {
	SKU       string
	Name      string
	Quantity  int32
	Threshold int32
}

// CheckRequiredColumns returns a missing-column input error for the first
// required column absent from header.
func CheckRequiredColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.ToLower(strings.TrimSpace(h))] = true
	}
	for _, col := range RequiredColumns {
		if !present[col] {
			return missingColumnError(col)
		}
	}
	return nil
}

// ValidateRow applies the row rules in order and returns the normalized row
// or a ValidationError for the first rule that fails.
func ValidateRow(rec Record) (NormalizedRow, error) {
	sku := strings.TrimSpace(rec.Get(ColumnSKU))
	if sku == "" {
		return NormalizedRow{}, ValidationError{Field: ColumnSKU, Message: MsgSKURequired}
	}

	name := strings.TrimSpace(rec.Get(ColumnName))
	if name == "" {
		return NormalizedRow{}, ValidationError{Field: ColumnName, Message: MsgNameRequired}
	}

	quantity, err := parseCount(rec.Get(ColumnQuantity), ColumnQuantity, MsgQuantityInteger, MsgQuantityNegative)
	if err != nil {
		return NormalizedRow{}, err
	}

	threshold, err := parseCount(rec.Get(ColumnThreshold), ColumnThreshold, MsgThresholdInteger, MsgThresholdNegative)
	if err != nil {
		return NormalizedRow{}, err
	}

	return NormalizedRow{SKU: sku, Name: name, Quantity: quantity, Threshold: threshold}, nil
}

// parseCount parses a base-10 integer that fits in 32 bits and is not negative.
func parseCount(raw, field, notInteger, negative string) (int32, error) {
	value := strings.TrimSpace(raw)
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, ValidationError{Field: field, Value: value, Message: notInteger}
	}
	if n < 0 {
		return 0, ValidationError{Field: field, Value: value, Message: negative}
	}
	return int32(n), nil
}
