package core

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var zipSignature = []byte("PK\x03\x04")

// isSpreadsheet reports whether an upload should be read as XLSX.
func isSpreadsheet(filename string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".xlsx") || bytes.HasPrefix(data, zipSignature)
}

// ReadSpreadsheet reads the first worksheet of an XLSX workbook.
func ReadSpreadsheet(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrUnparseable
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	table := buildTable(0, rows)
	if len(table.Rows) == 0 {
		return nil, ErrUnparseable
	}
	return table, nil
}
