package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestRead_Workbook(t *testing.T) {
	data := writeWorkbook(t, map[string][][]any{
		"Payroll": {
			{"Full Name", "Annual Salary"},
			{"Ada Lovelace", 120000},
			{"", ""},
			{"Alan Turing", 95000},
		},
		"Notes": {
			{"Comment"},
		},
	}, "Payroll", "Notes")

	wb, err := Read("payroll.xlsx", bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, wb.Tables, 2)
	assert.Equal(t, "Payroll", wb.Tables[0].Name)
	assert.Equal(t, []string{"Full Name", "Annual Salary"}, wb.Tables[0].Header)

	rows, err := wb.Rows("Payroll")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"Full Name": "Ada Lovelace", "Annual Salary": "120000"}, rows[0])
	assert.Equal(t, "Alan Turing", rows[1]["Full Name"])

	notes, err := wb.Rows("Notes")
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = wb.Rows("Missing")
	assert.ErrorIs(t, err, ErrNoSheet)
}

func TestRead_CSV(t *testing.T) {
	input := "\xef\xbb\xbfName,Amount,,Amount\n" +
		"Acme,10.50,x,1\n" +
		",,,\n" +
		"\"Globex, Inc\",7,,2\n"

	wb, err := Read("expenses.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, wb.Tables, 1)

	table := wb.Tables[0]
	assert.Equal(t, "expenses", table.Name)
	assert.Equal(t, []string{"Name", "Amount", "Column 3", "Amount (2)"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Globex, Inc", table.Rows[1][0])

	// CSV has one table, any sheet name resolves to it.
	rows, err := wb.Rows("Sheet1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "10.50", rows[0]["Amount"])

	cols, err := wb.Columns("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, table.Header, cols)
}

func TestTable_RecordsAndColumn(t *testing.T) {
	table := newTable("t", [][]string{
		{"Name", "Dept"},
		{"Ada"},
		{"Alan", "R&D"},
		{"Grace", "Ops", "extra"},
	})

	assert.Len(t, table.Records(0), 3)
	limited := table.Records(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "", limited[0]["Dept"])

	assert.Equal(t, []string{"R&D", "Ops"}, table.Column("Dept", 0))
	assert.Equal(t, []string{"Ada"}, table.Column("Name", 1))
	assert.Nil(t, table.Column("Missing", 0))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "projects.csv")
	require.NoError(t, os.WriteFile(path, []byte("Project\nApollo\n"), 0o644))

	wb, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "projects.csv", wb.Filename)

	_, err = Open(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestRead_Unsupported(t *testing.T) {
	_, err := Read("report.pdf", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, Supported("report.pdf"))
	assert.True(t, Supported("Payroll.XLSX"))
}
