package core

// ingest.go turns an uploaded CSV into RawRows for validation.
//
// Exported sheets often carry a title or a blank line above the real header,
// so the header is searched for among the first few rows: the first row that
// has every column the import mode requires wins.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxHeaderSearchRows bounds how far down the file the header may appear.
const MaxHeaderSearchRows = 10

var ErrEmptyFile = errors.New("file has no rows")

// ReadRows parses the CSV, locates the header and returns the data rows
// keyed by canonical column name. Blank rows are skipped; Line is the
// 1-based position of the row below the header.
func ReadRows(r io.Reader, mode ImportMode, maxBytes int64) ([]RawRow, error) {
	src, _ := WrapUpload(r, maxBytes)

	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		header  HeaderIndex
		first   []string
		scanned int
		rows    []RawRow
		line    int
	)

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, ErrFileTooLarge) {
				return nil, err
			}
			return nil, fmt.Errorf("parse csv: %w", err)
		}

		if header == nil {
			if isEmptyRow(rec) {
				continue
			}
			idx := MakeHeaderIndex(rec)
			if ValidateHeaders(idx, mode) == nil {
				header = idx
				continue
			}
			if first == nil {
				first = rec
			}
			scanned++
			if scanned >= MaxHeaderSearchRows {
				break
			}
			continue
		}

		line++
		if isEmptyRow(rec) {
			continue
		}
		rows = append(rows, rowFromRecord(rec, header, line))
	}

	if header == nil {
		if first == nil {
			return nil, ErrEmptyFile
		}
		// Report against the first non-blank row, the likeliest header.
		return nil, ValidateHeaders(MakeHeaderIndex(first), mode)
	}
	return rows, nil
}

func rowFromRecord(rec []string, header HeaderIndex, line int) RawRow {
	values := make(map[string]string, len(header))
	for col, i := range header {
		if i < len(rec) {
			values[col] = rec[i]
		}
	}
	return RawRow{Line: line, Values: values}
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
