package pipeline

import (
	"errors"
	"fmt"
)

var ErrEmptySource = errors.New("source has no header row")

// DateParseError reports the first Date value that matched no known layout.
// Rows are numbered from 1, excluding the header.
type DateParseError struct {
	Row   int
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("row %d: cannot parse %q as a date", e.Row, e.Value)
}

type NumberParseError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *NumberParseError) Error() string {
	return fmt.Sprintf("row %d: column %s: cannot parse %q as a number", e.Row, e.Column, e.Value)
}

func (e *NumberParseError) Unwrap() error {
	return e.Err
}

type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q missing", e.Column)
}

type MalformedRowError struct {
	Row      int
	Fields   int
	Expected int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("row %d: expected at most %d fields, got %d", e.Row, e.Expected, e.Fields)
}

func requireColumns(d *Dataset, columns ...string) error {
	for _, c := range columns {
		if !d.Has(c) {
			return &MissingColumnError{Column: c}
		}
	}
	return nil
}
