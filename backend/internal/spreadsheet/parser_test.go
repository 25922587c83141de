package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"studentpredict/backend/internal/shared"
)

// buildWorkbook renders rows into an in-memory .xlsx, first row included as-is.
func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseWorkbook(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"name", "attendance", "study_hours"},
		{"Alice", 92, 5.5},
		{"", "", ""},
		{"Bob", 47, 1},
	})

	rows, err := ParseWorkbook(data)
	require.NoError(t, err)
	require.Len(t, rows, 2, "blank rows should be skipped")

	assert.Equal(t, "Alice", rows[0]["name"])
	assert.Equal(t, "92", rows[0]["attendance"])
	assert.Equal(t, "5.5", rows[0]["study_hours"])
	assert.Equal(t, "Bob", rows[1]["name"])
}

func TestParseWorkbook_HeaderOnly(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"name", "attendance"},
	})

	rows, err := ParseWorkbook(data)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseWorkbook_ShortRows(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"name", "attendance", "email"},
		{"Carol", 80},
	})

	rows, err := ParseWorkbook(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "80", rows[0]["attendance"])
	_, hasEmail := rows[0]["email"]
	assert.False(t, hasEmail, "missing trailing cells should not appear in the row")
}

func TestParseWorkbook_NotAWorkbook(t *testing.T) {
	_, err := ParseWorkbook([]byte("this is not a zip archive"))
	require.Error(t, err)
	assert.Equal(t, shared.CodeInvalidArgument, shared.CodeOf(err))
	assert.Contains(t, err.Error(), "Excel file is empty or could not be parsed")
}
