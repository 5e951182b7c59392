package pipeline

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	FieldSales    = "Sales"
	FieldProfit   = "Profit"
	FieldRegion   = "Region"
	FieldCategory = "Category"
	FieldProduct  = "Product"
	FieldDate     = "Date"
	FieldMonth    = "Month"
)

var measureFields = []string{FieldSales, FieldProfit}

// Record is one data row. Values are kept verbatim; Sales and Profit are
// additionally parsed into decimals when present and non-blank. row is the
// 1-based data row the record was read from and survives filtering.
type Record struct {
	row      int
	values   map[string]string
	measures map[string]decimal.Decimal
	date     time.Time
	hasDate  bool
}

func (r Record) Value(field string) string {
	return r.values[field]
}

func (r Record) Measure(field string) (decimal.Decimal, bool) {
	v, ok := r.measures[field]
	return v, ok
}

func (r Record) Date() (time.Time, bool) {
	return r.date, r.hasDate
}

// Dataset is an ordered, immutable collection of records. Filtering returns
// a new Dataset that shares records with its parent.
type Dataset struct {
	columns []string
	present map[string]bool
	records []Record
}

func newDataset(columns []string, records []Record) *Dataset {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	return &Dataset{columns: columns, present: present, records: records}
}

func (d *Dataset) derive(records []Record) *Dataset {
	return &Dataset{columns: d.columns, present: d.present, records: records}
}

// Columns returns the schema in header order, with Month appended when it
// was derived from Date.
func (d *Dataset) Columns() []string {
	return slices.Clone(d.columns)
}

func (d *Dataset) Has(field string) bool {
	return d.present[field]
}

func (d *Dataset) Len() int {
	return len(d.records)
}

func (d *Dataset) Record(i int) Record {
	return d.records[i]
}

// Rows returns up to limit rows as string cells in column order. A limit of
// zero or less returns every row.
func (d *Dataset) Rows(limit int) [][]string {
	n := len(d.records)
	if limit > 0 && limit < n {
		n = limit
	}
	rows := make([][]string, n)
	for i := range n {
		row := make([]string, len(d.columns))
		for j, c := range d.columns {
			row[j] = d.records[i].values[c]
		}
		rows[i] = row
	}
	return rows
}
