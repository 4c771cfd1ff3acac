package core

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// ErrUnparseable is returned when no candidate delimiter yields a data row.
var ErrUnparseable = errors.New("no delimiter produced any data rows")

// Cell is one header/value pair exactly as it appeared in the input.
type Cell struct {
	Column string
	Value  string
}

// Record is one data row. Fields is keyed by lower-cased column name so
// lookups are case-insensitive; Cells keeps the original pairs in order.
type Record struct {
	Line   int // 1-based data row number, header excluded
	Fields map[string]string
	Cells  []Cell
}

// Get returns the trimmed value for a lower-cased column name.
func (r Record) Get(column string) string {
	return r.Fields[column]
}

// RawJSON serializes the original cells as a JSON object, preserving
// column order.
func (r Record) RawJSON() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(c.Column)
		v, _ := json.Marshal(c.Value)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.String()
}

// Table is a tokenized upload.
type Table struct {
	Delimiter rune // 0 for spreadsheets
	Header    []string
	Rows      []Record
}

// Tokenize splits normalized text into records. The guessed delimiter is
// tried first, then the remaining candidates, until one yields at least one
// data row. Rows may have more or fewer cells than the header.
func Tokenize(text string, guess rune) (*Table, error) {
	for _, d := range delimiterCandidates(guess) {
		records, err := readDelimited(text, d)
		if err != nil {
			continue
		}
		if table := buildTable(d, records); len(table.Rows) > 0 {
			return table, nil
		}
	}
	return nil, ErrUnparseable
}

func readDelimited(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// buildTable treats the first non-blank record as the header. Blank rows are
// skipped; later duplicate header names never shadow the first.
func buildTable(delim rune, records [][]string) *Table {
	table := &Table{Delimiter: delim}

	start := -1
	for i, rec := range records {
		if !isEmptyRow(rec) {
			start = i
			break
		}
	}
	if start < 0 {
		return table
	}

	header := make([]string, len(records[start]))
	for i, h := range records[start] {
		header[i] = strings.TrimSpace(h)
	}
	table.Header = header

	line := 0
	for _, rec := range records[start+1:] {
		if isEmptyRow(rec) {
			continue
		}
		line++
		n := min(len(rec), len(header))
		record := Record{
			Line:   line,
			Fields: make(map[string]string, n),
			Cells:  make([]Cell, 0, n),
		}
		for i := 0; i < n; i++ {
			value := strings.TrimSpace(rec[i])
			record.Cells = append(record.Cells, Cell{Column: header[i], Value: value})
			key := strings.ToLower(header[i])
			if _, seen := record.Fields[key]; !seen {
				record.Fields[key] = value
			}
		}
		table.Rows = append(table.Rows, record)
	}
	return table
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
