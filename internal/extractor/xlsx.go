package extractor

import (
	"context"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSX turns spreadsheet rows into blocks of "column: value" lines.
type XLSX struct{}

// NewXLSX creates an XLSX extractor.
func NewXLSX() *XLSX { return &XLSX{} }

// Format returns FormatXLSX.
func (x *XLSX) Format() Format { return FormatXLSX }

// Extract reads the first sheet. The first row names the columns and every
// following non-empty row becomes one block.
func (x *XLSX) Extract(_ context.Context, path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, extractionErr(path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, extractionErr(path, errors.New("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, extractionErr(path, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	var blocks []string
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		lines := make([]string, len(header))
		for i, col := range header {
			var v string
			if i < len(row) {
				v = row[i]
			}
			lines[i] = col + ": " + v
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return blocks, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
