// Package importer turns uploaded CSV and Excel files into executions or
// trades, collecting per-row problems instead of failing the whole file.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor Excel.
var ErrUnsupportedFormat = errors.New("file must be CSV or Excel format")

// Sheet is a header row plus data rows, all as raw strings.
type Sheet struct {
	Headers []string
	Rows    [][]string
}

// ReadFile parses name's content according to its extension.
func ReadFile(name string, r io.Reader) (*Sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return readCSV(r)
	case ".xlsx", ".xlsm", ".xls":
		return readExcel(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func readCSV(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return toSheet(records), nil
}

func readExcel(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Sheet{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return toSheet(rows), nil
}

func toSheet(records [][]string) *Sheet {
	s := &Sheet{}
	if len(records) == 0 {
		return s
	}
	s.Headers = make([]string, len(records[0]))
	for i, h := range records[0] {
		s.Headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	}
	for _, row := range records[1:] {
		if blank(row) {
			continue
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
