package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingColumns is wrapped by ReadTable when required columns are absent.
var ErrMissingColumns = errors.New("missing required columns")

// Table is a header plus string records read from or written to CSV.
type Table struct {
	Header  []string
	Records [][]string
	index   map[string]int
}

// NewTable creates a table with the given header.
func NewTable(header []string) *Table {
	t := &Table{Header: header}
	t.buildIndex()
	return t
}

func (t *Table) buildIndex() {
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		t.index[strings.TrimSpace(name)] = i
	}
}

// Column returns the position of a column, or -1.
func (t *Table) Column(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Get returns the value of column name in record i, or "" when absent.
func (t *Table) Get(i int, name string) string {
	col := t.Column(name)
	if col < 0 || i < 0 || i >= len(t.Records) || col >= len(t.Records[i]) {
		return ""
	}
	return t.Records[i][col]
}

// Append adds a record; it must match the header width.
func (t *Table) Append(record []string) error {
	if len(record) != len(t.Header) {
		return fmt.Errorf("record has %d fields, header has %d", len(record), len(t.Header))
	}
	t.Records = append(t.Records, record)
	return nil
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// ReadTable loads a CSV file and checks that every required column exists.
func ReadTable(path string, required ...string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewStorageError("read", "", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = false

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewStorageError("read", "", path, fmt.Errorf("file is empty"))
		}
		return nil, NewStorageError("read", "", path, fmt.Errorf("failed to read header: %w", err))
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := NewTable(header)
	var missing []string
	for _, name := range required {
		if table.Column(name) < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, NewStorageError("read", "", path, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", ")))
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, NewStorageError("read", "", path, fmt.Errorf("failed to read records: %w", err))
	}
	table.Records = records
	return table, nil
}

// WriteTable writes the table as CSV, atomically.
func WriteTable(path string, table *Table) error {
	return WriteFileAtomic(path, func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(table.Header); err != nil {
			return err
		}
		if err := cw.WriteAll(table.Records); err != nil {
			return err
		}
		return cw.Error()
	})
}
