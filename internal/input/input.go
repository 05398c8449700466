// Package input reads the product registration list. The crawler only needs
// an ordered sequence of rows with an identifier and an optional display
// name; CSV and XLSX are the formats the agencies actually publish.
package input

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"ppls/internal"
	"ppls/internal/util"
)

const (
	identifierColumn  = "epa_registration_number"
	displayNameColumn = "product_name"
)

// ReadRows loads every row from path, dispatching on the file extension.
// A missing file or a missing identifier column is a hard error; this is
// the one fatal condition of a crawl.
func ReadRows(path string) ([]internal.InputRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		return readXLSX(path)
	default:
		return readCSV(path)
	}
}

func readCSV(path string) ([]internal.InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return fromRows(path, rows)
}

func readXLSX(path string) ([]internal.InputRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return fromRows(path, rows)
}

func fromRows(path string, rows [][]string) ([]internal.InputRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty input: %s", path)
	}

	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idIdx, nameIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case identifierColumn:
			idIdx = i
		case displayNameColumn:
			nameIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("input %s has no %s column", path, identifierColumn)
	}

	out := make([]internal.InputRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := internal.InputRecord{Identifier: strings.TrimSpace(cell(row, idIdx))}
		if nameIdx >= 0 {
			rec.DisplayName = util.CollapseSpaces(cell(row, nameIdx))
		}
		out = append(out, rec)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}
