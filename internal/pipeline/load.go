package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// Load reads comma-separated data with a header row into a Dataset.
func Load(source io.Reader) (*Dataset, error) {
	reader := csv.NewReader(source)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := normalizeHeader(header)

	l := loader{columns: columns}
	for _, c := range columns {
		switch c {
		case FieldDate:
			l.hasDate = true
		case FieldSales, FieldProfit:
			l.measures = append(l.measures, c)
		}
	}

	var records []Record
	for row := 1; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}
		rec, err := l.record(row, fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if l.hasDate && !slices.Contains(columns, FieldMonth) {
		columns = append(columns, FieldMonth)
	}
	return newDataset(columns, records), nil
}

type loader struct {
	columns  []string
	measures []string
	hasDate  bool
}

func (l loader) record(row int, fields []string) (Record, error) {
	if len(fields) > len(l.columns) {
		return Record{}, &MalformedRowError{Row: row, Fields: len(fields), Expected: len(l.columns)}
	}

	rec := Record{
		row:      row,
		values:   make(map[string]string, len(l.columns)+1),
		measures: make(map[string]decimal.Decimal, len(l.measures)),
	}
	for i, c := range l.columns {
		if i < len(fields) {
			rec.values[c] = fields[i]
		} else {
			rec.values[c] = ""
		}
	}

	for _, c := range l.measures {
		raw := strings.TrimSpace(rec.values[c])
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return Record{}, &NumberParseError{Column: c, Row: row, Value: raw, Err: err}
		}
		rec.measures[c] = v
	}

	if l.hasDate {
		raw := strings.TrimSpace(rec.values[FieldDate])
		if raw != "" {
			t, err := parseDate(raw)
			if err != nil {
				return Record{}, &DateParseError{Row: row, Value: raw}
			}
			rec.date = t
			rec.hasDate = true
			rec.values[FieldMonth] = t.Month().String()
		} else {
			rec.values[FieldMonth] = ""
		}
	}
	return rec, nil
}

// parseDate reads ambiguous numeric dates month first, so 03/04/2024 is
// March 4. A value that only makes sense day first, such as 13/01/2024, is
// retried with day and month swapped.
func parseDate(s string) (time.Time, error) {
	return dateparse.ParseIn(s, time.UTC,
		dateparse.PreferMonthFirst(true),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
}

// normalizeHeader strips a UTF-8 byte order mark and renames repeated
// column names to "Name.1", "Name.2" so every column stays addressable.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		seen[name] = true
		columns[i] = name
	}
	return columns
}
