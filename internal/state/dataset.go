package state

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrMalformedInput is returned when a CSV payload has no usable header.
var ErrMalformedInput = errors.New("malformed input")

const (
	utf8BOM      = "\ufeff"
	maxLineBytes = 1 << 20
)

// Row is one parsed data record. Values are the raw strings from the file,
// aligned with the header of the dataset the row belongs to.
type Row struct {
	values []string
	cols   map[string]int
	index  int
}

// Get returns the raw value of column, or "" when the column does not exist.
func (r Row) Get(column string) string {
	v, _ := r.Lookup(column)
	return v
}

// Lookup returns the raw value of column and whether the column exists.
func (r Row) Lookup(column string) (string, bool) {
	i, ok := r.cols[column]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// At returns the value at column position i.
func (r Row) At(i int) string {
	if i < 0 || i >= len(r.values) {
		return ""
	}
	return r.values[i]
}

// Values returns a copy of the row's values in header order.
func (r Row) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Len returns the number of values in the row.
func (r Row) Len() int { return len(r.values) }

// Index is the position of the row in the dataset it was parsed into.
func (r Row) Index() int { return r.index }

// MalformedRow records a data line that was dropped during parsing.
type MalformedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Dataset is a parsed CSV file: a header plus rows of equal width.
// It is never mutated after Parse returns.
type Dataset struct {
	Name    string
	Header  []string
	Rows    []Row
	Skipped []MalformedRow

	cols map[string]int
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// ColumnIndex returns the position of an exact header name, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	if i, ok := d.cols[name]; ok {
		return i
	}
	return -1
}

// Column returns the raw values of column i in row order.
func (d *Dataset) Column(i int) []string {
	out := make([]string, len(d.Rows))
	for k, row := range d.Rows {
		out[k] = row.At(i)
	}
	return out
}

// Subset returns a dataset sharing the header and holding the given rows.
// Rows keep their original Index.
func (d *Dataset) Subset(rows []Row) *Dataset {
	return &Dataset{
		Name:   d.Name,
		Header: d.Header,
		Rows:   rows,
		cols:   d.cols,
	}
}

// Parse parses CSV text already held in memory.
func Parse(name, text string) (*Dataset, error) {
	return ParseReader(name, strings.NewReader(text))
}

// ParseReader reads a comma-separated file whose first non-blank line is the
// header. Each physical line is one record: quotes group commas only within
// their own line, so an unbalanced quote cannot swallow the lines after it.
// Cells are kept exactly as written. Rows whose width differs from the header
// are dropped and recorded in Skipped.
func ParseReader(name string, r io.Reader) (*Dataset, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var ds *Dataset
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}

		record, err := splitLine(text)
		if ds == nil {
			if err != nil {
				return nil, fmt.Errorf("%w: %s: read header: %v", ErrMalformedInput, name, err)
			}
			if ds, err = newDataset(name, record); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			ds.skip(line, err.Error())
			continue
		}
		ds.add(line, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if ds == nil {
		return nil, fmt.Errorf("%w: %s: empty file", ErrMalformedInput, name)
	}

	return ds, nil
}

func splitLine(text string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	record, err := reader.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, perr.Err
		}
		return nil, err
	}
	return record, nil
}

// FromRecords builds a dataset from a header and records that were read by
// other means, applying the same width policy as ParseReader. Line numbers in
// Skipped count the header as line 1.
func FromRecords(name string, header []string, records [][]string) (*Dataset, error) {
	ds, err := newDataset(name, header)
	if err != nil {
		return nil, err
	}
	for i, record := range records {
		ds.add(i+2, record)
	}
	return ds, nil
}

func newDataset(name string, header []string) (*Dataset, error) {
	header = cleanHeader(header)
	if !hasNamedColumn(header) {
		return nil, fmt.Errorf("%w: %s: header has no column names", ErrMalformedInput, name)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return &Dataset{Name: name, Header: header, cols: cols}, nil
}

func (d *Dataset) add(line int, record []string) {
	if len(record) != len(d.Header) {
		d.skip(line, fmt.Sprintf("expected %d fields, got %d", len(d.Header), len(record)))
		return
	}
	values := make([]string, len(record))
	copy(values, record)
	d.Rows = append(d.Rows, Row{values: values, cols: d.cols, index: len(d.Rows)})
}

func (d *Dataset) skip(line int, reason string) {
	d.Skipped = append(d.Skipped, MalformedRow{Line: line, Reason: reason})
	slog.Warn("skipping malformed row", "file", d.Name, "line", line, "reason", reason)
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func hasNamedColumn(header []string) bool {
	for _, h := range header {
		if h != "" {
			return true
		}
	}
	return false
}
