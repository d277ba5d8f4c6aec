package timetable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrSheetNotFound is returned when the requested worksheet does not exist.
var ErrSheetNotFound = errors.New("timetable: sheet not found")

// ReadWorkbook decodes an xlsx stream into raw rows. An empty sheet name selects
// the first worksheet. Cells come back as raw values, so date cells arrive as
// Excel serial numbers and are resolved by the parser.
func ReadWorkbook(r io.Reader, sheet string) ([][]any, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("timetable: open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrSheetNotFound
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("timetable: read rows: %w", err)
	}
	return toCells(rows), nil
}

// ReadCSV decodes comma-separated rows. Ragged rows are accepted.
func ReadCSV(r io.Reader) ([][]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("timetable: read csv: %w", err)
	}
	return toCells(records), nil
}

func toCells(records [][]string) [][]any {
	rows := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(record))
		for j, value := range record {
			row[j] = value
		}
		rows[i] = row
	}
	return rows
}
