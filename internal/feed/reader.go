// Package feed reads CSV product feeds into rows keyed by attribute code.
//
// The first record is the header. Header cells are cleaned and lower-cased;
// data cells are passed through untouched except for Excel's ="..." text
// wrapper, so the validator sees the raw values the operator exported.
//
// Input is decoded as UTF-8 with a leading BOM removed and invalid bytes
// replaced, so feeds saved by spreadsheet tools on Windows parse cleanly.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptyFeed is returned when the feed has no header record.
var ErrEmptyFeed = errors.New("empty feed: no header row")

// Row is one data record keyed by lower-cased header.
// Columns missing from a short record are absent from Data.
type Row struct {
	Line int
	Data map[string]string
}

// Reader reads rows from a CSV feed.
type Reader struct {
	csv    *csv.Reader
	header []string
}

// NewReader reads the header of r and returns a Reader positioned at the first data row.
func NewReader(r io.Reader) (*Reader, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFeed
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}

	header := make([]string, len(record))
	seen := make(map[string]bool, len(record))
	for i, cell := range record {
		name := CleanHeader(cell)
		if name != "" && seen[name] {
			return nil, fmt.Errorf("invalid csv: duplicate column %q", name)
		}
		seen[name] = true
		header[i] = name
	}

	return &Reader{csv: cr, header: header}, nil
}

// Header returns the cleaned column names.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// Next returns the next row, or io.EOF after the last one.
func (r *Reader) Next() (Row, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		return Row{}, fmt.Errorf("invalid csv: %w", err)
	}

	line, _ := r.csv.FieldPos(0)
	data := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if name == "" || i >= len(record) {
			continue
		}
		data[name] = CleanValue(record[i])
	}
	return Row{Line: line, Data: data}, nil
}

// ReadAll returns every remaining row.
func (r *Reader) ReadAll() ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// CleanHeader trims a header cell, unwraps Excel text formulas and quotes,
// and lower-cases the result.
func CleanHeader(s string) string {
	s = strings.TrimSpace(CleanValue(strings.TrimSpace(s)))
	s = strings.Trim(s, `"'`)
	return strings.ToLower(strings.TrimSpace(s))
}

// CleanValue unwraps Excel's ="..." text wrapper. Anything else is returned as is.
func CleanValue(s string) string {
	if len(s) >= 3 && strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		return s[2 : len(s)-1]
	}
	return s
}
