// Package sheet reads uploaded spreadsheets into raw rows and writes processed rows
// back out as a styled workbook.
package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrNoRows      = errors.New("spreadsheet has no data rows")
	ErrUnsupported = errors.New("unsupported spreadsheet format")
)

// Table is the first non-empty sheet of an upload. Each row maps header to cell text.
type Table struct {
	Sheet   string
	Headers []string
	Rows    []map[string]string
}

// Read parses an upload, choosing the format from the file name's extension.
func Read(r io.Reader, filename string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(filename))
	}
}

// ReadXLSX returns the first sheet that has a header and at least one data row.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	for _, name := range f.GetSheetList() {
		records, err := sheetRecords(f, name)
		if err != nil {
			return nil, err
		}
		t := fromRecords(records)
		if len(t.Rows) == 0 {
			continue
		}
		t.Sheet = name
		return t, nil
	}
	return nil, ErrNoRows
}

func sheetRecords(f *excelize.File, name string) ([][]string, error) {
	iter, err := f.Rows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}
	defer func() {
		_ = iter.Close()
	}()

	var records [][]string
	for iter.Next() {
		cols, err := iter.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row in sheet %s: %w", name, err)
		}
		records = append(records, cols)
	}
	return records, nil
}

// ReadCSV parses comma separated text. A UTF-8 byte order mark is ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	t := fromRecords(records)
	if len(t.Rows) == 0 {
		return nil, ErrNoRows
	}
	t.Sheet = "csv"
	return t, nil
}

// fromRecords takes the first non-blank record as the header. Blank headers become
// "column_N" and repeated headers get a numeric suffix. Blank data rows are skipped.
func fromRecords(records [][]string) *Table {
	t := &Table{}
	i := 0
	for ; i < len(records); i++ {
		if !blank(records[i]) {
			break
		}
	}
	if i == len(records) {
		return t
	}
	t.Headers = cleanHeaders(records[i])

	for _, rec := range records[i+1:] {
		if blank(rec) {
			continue
		}
		row := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(rec) {
				row[h] = strings.TrimSpace(rec[j])
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func cleanHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = h + "_" + strconv.Itoa(n)
		}
		headers[i] = h
	}
	return headers
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
