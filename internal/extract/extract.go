// Package extract reads spreadsheet uploads locally so the full dataset of a
// sheet can be sent on import rather than the analysis preview.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrNoSheet     = errors.New("sheet not found")
)

// Table is one sheet: a header row and the data rows below it. Data rows
// are padded or cut to the header width.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Workbook holds every sheet of an upload in file order.
type Workbook struct {
	Filename string
	Tables   []Table
}

// Supported reports whether filename has an extension Read can handle.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx", ".csv":
		return true
	}
	return false
}

func Open(path string) (*Workbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(filepath.Base(path), f)
}

// Read parses r according to the extension of filename. A CSV file becomes a
// single table named after the file.
func Read(filename string, r io.Reader) (*Workbook, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx":
		return readWorkbook(filename, r)
	case ".csv":
		return readCSV(filename, r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filename)
}

func readWorkbook(filename string, r io.Reader) (*Workbook, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", filename, err)
	}
	defer file.Close()

	wb := &Workbook{Filename: filename}
	for _, name := range file.GetSheetList() {
		rows, err := file.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		wb.Tables = append(wb.Tables, newTable(name, rows))
	}
	return wb, nil
}

func readCSV(filename string, r io.Reader) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	rows, err := gocsv.LazyCSVReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing CSV %s: %w", filename, err)
	}

	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	return &Workbook{Filename: filename, Tables: []Table{newTable(name, rows)}}, nil
}

func newTable(name string, rows [][]string) Table {
	t := Table{Name: name}
	if len(rows) == 0 {
		return t
	}

	t.Header = make([]string, len(rows[0]))
	seen := make(map[string]int)
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Column %d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s (%d)", h, n+1)
		} else {
			seen[h] = 1
		}
		t.Header[i] = h
	}

	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		cells := make([]string, len(t.Header))
		copy(cells, row)
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Table returns the sheet called name. A single-table workbook (CSV) answers
// to any name.
func (wb *Workbook) Table(name string) (*Table, error) {
	for i := range wb.Tables {
		if wb.Tables[i].Name == name {
			return &wb.Tables[i], nil
		}
	}
	if len(wb.Tables) == 1 && strings.EqualFold(filepath.Ext(wb.Filename), ".csv") {
		return &wb.Tables[0], nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoSheet, name)
}

// Columns returns the header of sheet after cleanup: trimmed, blanks named
// "Column N", repeats suffixed " (2)" and so on.
func (wb *Workbook) Columns(sheet string) ([]string, error) {
	t, err := wb.Table(sheet)
	if err != nil {
		return nil, err
	}
	return t.Header, nil
}

// Rows returns every data row of sheet keyed by header.
func (wb *Workbook) Rows(sheet string) ([]map[string]any, error) {
	t, err := wb.Table(sheet)
	if err != nil {
		return nil, err
	}
	return t.Records(0), nil
}

// Records converts up to limit rows to header keyed maps. limit <= 0 means
// all rows.
func (t *Table) Records(limit int) []map[string]any {
	n := len(t.Rows)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]map[string]any, 0, n)
	for _, row := range t.Rows[:n] {
		rec := make(map[string]any, len(t.Header))
		for i, h := range t.Header {
			rec[h] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// Column returns the non-empty values of the named column, at most limit
// of them when limit > 0.
func (t *Table) Column(name string, limit int) []string {
	idx := -1
	for i, h := range t.Header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	var out []string
	for _, row := range t.Rows {
		if v := strings.TrimSpace(row[idx]); v != "" {
			out = append(out, v)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
