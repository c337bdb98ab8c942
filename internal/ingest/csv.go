package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// table reads a headed CSV file whose columns are located by name.
type table struct {
	path    string
	columns map[string]int
	reader  *csv.Reader
	file    *os.File
	line    int
}

func openTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	t := &table{path: path, columns: make(map[string]int, len(header)), reader: r, file: f, line: 1}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.columns[name] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			f.Close()
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}
	return t, nil
}

// column returns the index of the first present name, or -1.
func (t *table) column(names ...string) int {
	for _, name := range names {
		if i, ok := t.columns[name]; ok {
			return i
		}
	}
	return -1
}

// next returns the following record or io.EOF. Errors satisfying
// isRowError leave the table readable.
func (t *table) next() ([]string, error) {
	record, err := t.reader.Read()
	t.line++
	if err != nil && err != io.EOF && !isRowError(err) {
		return nil, fmt.Errorf("failed to read %s: %w", t.path, err)
	}
	return record, err
}

func isRowError(err error) bool {
	var parseErr *csv.ParseError
	return errors.As(err, &parseErr)
}

func (t *table) Close() error {
	return t.file.Close()
}

// field returns the trimmed value at index i, or "" when the record is short
// or the column is absent.
func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
