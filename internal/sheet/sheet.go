// Package sheet reads lead lists and geo directory exports from xlsx workbooks.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrEmptyWorkbook  = errors.New("workbook has no rows")
)

// readFirstSheet returns the header (as written) and data rows of the first sheet.
func readFirstSheet(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook failed: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s failed: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmptyWorkbook
	}
	return rows[0], rows[1:], nil
}

// columnIndex maps lowercased, trimmed header names to their first position.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := idx[key]; !seen && key != "" {
			idx[key] = i
		}
	}
	return idx
}

func firstColumn(idx map[string]int, aliases ...string) int {
	for _, a := range aliases {
		if i, ok := idx[a]; ok {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return cleanNumber(strings.TrimSpace(row[i]))
}

// cleanNumber undoes float rendering of integer cells such as "560001.0" or "9.876543210E9".
func cleanNumber(s string) string {
	if s == "" || !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return s
	}
	return strconv.FormatInt(int64(f), 10)
}
