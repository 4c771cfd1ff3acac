package core

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/opsdash/internal/database"
)

// WriteInvalidRowsCSV writes rejected rows back out as CSV so they can be
// fixed and uploaded again. The first two columns are the row number and
// the rejection reason; the rest are the original columns in the order
// they first appear. A header repeated within a row gets one output column
// per occurrence, matched by position among the same-named cells.
func WriteInvalidRowsCSV(w io.Writer, rows []database.StagingRow) error {
	var columns []string
	index := make(map[columnSlot]int)
	decoded := make([][]Cell, len(rows))

	for i, row := range rows {
		cells, err := decodeRawCells(row.RawText)
		if err != nil {
			return fmt.Errorf("decode row %d: %w", row.RowNumber, err)
		}
		decoded[i] = cells
		for _, slot := range cellSlots(cells) {
			if _, ok := index[slot]; !ok {
				index[slot] = len(columns)
				columns = append(columns, slot.name)
			}
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"_line", "_error"}, columns...)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		record := make([]string, 2+len(columns))
		record[0] = strconv.Itoa(row.RowNumber)
		if row.Error != nil {
			record[1] = *row.Error
		}
		for j, slot := range cellSlots(decoded[i]) {
			record[2+index[slot]] = decoded[i][j].Value
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", row.RowNumber, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// columnSlot identifies the nth cell named name within a row.
type columnSlot struct {
	name string
	nth  int
}

func cellSlots(cells []Cell) []columnSlot {
	seen := make(map[string]int, len(cells))
	slots := make([]columnSlot, len(cells))
	for i, c := range cells {
		slots[i] = columnSlot{name: c.Column, nth: seen[c.Column]}
		seen[c.Column]++
	}
	return slots
}

// decodeRawCells reads a rawText JSON object back into ordered cells.
func decodeRawCells(raw string) ([]Cell, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("raw text is not a JSON object")
	}

	var cells []Cell
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		cells = append(cells, Cell{Column: key, Value: value})
	}
	return cells, nil
}
