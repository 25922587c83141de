// Package spreadsheet converts uploaded workbook bytes into loosely-typed
// row records. It applies no schema validation: column names are carried
// through verbatim and downstream mapping decides what it understands.
package spreadsheet

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"studentpredict/backend/internal/shared"
)

// Row maps a column header to the raw cell value for one spreadsheet row.
type Row map[string]string

// ParseWorkbook reads an uploaded .xlsx file fully into memory and returns
// one Row per data row of the first sheet, preserving row order. The first
// row is treated as the header. An empty workbook or a header-only sheet
// yields an empty slice; the caller treats that as a client error.
func ParseWorkbook(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, shared.WrapError(shared.CodeInvalidArgument, "Excel file is empty or could not be parsed", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []Row{}, nil
	}

	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, shared.WrapError(shared.CodeInvalidArgument, "Excel file is empty or could not be parsed", err)
	}
	if len(cells) < 2 {
		return []Row{}, nil
	}

	headers := cells[0]

	rows := make([]Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		if isBlank(line) {
			continue
		}

		row := Row{}
		for i, header := range headers {
			if header == "" || i >= len(line) {
				continue
			}
			row[header] = line[i]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func isBlank(line []string) bool {
	for _, cell := range line {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
