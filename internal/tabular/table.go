package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
)

// ErrEmptyTable reports an input file with a header but no data rows, or no
// content at all.
var ErrEmptyTable = errors.New("input table has no rows")

// ErrMissingColumn reports an input file whose header lacks a required column.
var ErrMissingColumn = errors.New("input table is missing a required column")

// Table holds a fully-read CSV input: the header and every data row, in file
// order. Rows are positional; ColumnIndex maps a named field to its position.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable loads a CSV file into memory. Rows with a different field count
// than the header are rejected by the csv reader, so every returned row is
// index-safe against the header.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse input csv: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyTable)
	}

	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// ColumnIndex returns the position of the named column, or an error wrapping
// ErrMissingColumn when the header does not contain it.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, field := range t.Header {
		if field == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
}
