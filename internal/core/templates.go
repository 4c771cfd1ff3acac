package core

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TemplateFormat is a downloadable import template type.
type TemplateFormat string

const (
	TemplateCSV  TemplateFormat = "csv"
	TemplateXLSX TemplateFormat = "xlsx"
)

// templateSheet is the sheet name used for XLSX templates.
const templateSheet = "Inventory"

// templateExample is the sample row shipped in every template.
var templateExample = []string{"WID-001", "Widget", "10", "2"}

// ParseTemplateFormat accepts "csv" or "xlsx", case-insensitively. An empty
// string means CSV.
func ParseTemplateFormat(s string) (TemplateFormat, error) {
	switch TemplateFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", TemplateCSV:
		return TemplateCSV, nil
	case TemplateXLSX:
		return TemplateXLSX, nil
	default:
		return "", fmt.Errorf("unknown template format %q (want csv or xlsx)", s)
	}
}

// ContentType returns the MIME type for the format.
func (f TemplateFormat) ContentType() string {
	if f == TemplateXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Filename returns the suggested download name.
func (f TemplateFormat) Filename() string {
	return "inventory_import_template." + string(f)
}

// WriteTemplate writes an import template with the required header and
// one example row.
func WriteTemplate(w io.Writer, format TemplateFormat) error {
	switch format {
	case TemplateXLSX:
		return writeTemplateXLSX(w)
	case TemplateCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(RequiredColumns); err != nil {
			return fmt.Errorf("write template header: %w", err)
		}
		if err := cw.Write(templateExample); err != nil {
			return fmt.Errorf("write template row: %w", err)
		}
		cw.Flush()
		return cw.Error()
	default:
		return fmt.Errorf("unknown template format %q", format)
	}
}

func writeTemplateXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(RequiredColumns))
	for i, c := range RequiredColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(templateSheet, "A1", &header); err != nil {
		return fmt.Errorf("write template header: %w", err)
	}

	example := make([]any, len(templateExample))
	for i, v := range templateExample {
		example[i] = v
	}
	if err := f.SetSheetRow(templateSheet, "A2", &example); err != nil {
		return fmt.Errorf("write template row: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
