package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Entry struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// AggregationResult is a measure summed per group key. Entries keep the
// order in which keys were first seen unless reordered by Ranked or
// CalendarOrder.
type AggregationResult struct {
	GroupField string  `json:"group"`
	Measure    string  `json:"measure"`
	Label      string  `json:"label"`
	Entries    []Entry `json:"entries"`
}

// GroupSum sums measure within each distinct value of group. ok is false
// when group is not part of the schema; a missing measure is an error.
// Records with an empty group value are left out; whitespace is a key.
func GroupSum(d *Dataset, group, measure string) (result AggregationResult, ok bool, err error) {
	if !d.Has(group) {
		return AggregationResult{}, false, nil
	}
	if err := requireColumns(d, measure); err != nil {
		return AggregationResult{}, false, err
	}

	sums := make(map[string]decimal.Decimal)
	order := make([]string, 0)
	for _, r := range d.records {
		key := r.values[group]
		if key == "" {
			continue
		}
		v, err := measureValue(r, measure)
		if err != nil {
			var npe *NumberParseError
			if errors.As(err, &npe) {
				npe.Row = r.row
			}
			return AggregationResult{}, false, err
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
			sums[key] = decimal.Zero
		}
		sums[key] = sums[key].Add(v)
	}

	entries := make([]Entry, len(order))
	for i, key := range order {
		entries[i] = Entry{Key: key, Value: sums[key].InexactFloat64()}
	}
	return AggregationResult{
		GroupField: group,
		Measure:    measure,
		Label:      fmt.Sprintf("%s by %s", measure, group),
		Entries:    entries,
	}, true, nil
}

// measureValue prefers the value parsed at load time and falls back to
// parsing the raw cell for columns other than Sales and Profit.
func measureValue(r Record, field string) (decimal.Decimal, error) {
	if v, ok := r.measures[field]; ok {
		return v, nil
	}
	raw := strings.TrimSpace(r.values[field])
	if raw == "" || slices.Contains(measureFields, field) {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &NumberParseError{Column: field, Value: raw, Err: err}
	}
	return v, nil
}

// Ranked returns a copy sorted by value, highest first. Equal values keep
// their first-occurrence order.
func (a AggregationResult) Ranked() AggregationResult {
	out := a.clone()
	slices.SortStableFunc(out.Entries, func(x, y Entry) int {
		switch {
		case x.Value > y.Value:
			return -1
		case x.Value < y.Value:
			return 1
		default:
			return 0
		}
	})
	return out
}

// CalendarOrder returns a copy with month-name keys sorted January to
// December. Keys that are not month names keep their relative order at the
// end.
func (a AggregationResult) CalendarOrder() AggregationResult {
	out := a.clone()
	slices.SortStableFunc(out.Entries, func(x, y Entry) int {
		return monthIndex(x.Key) - monthIndex(y.Key)
	})
	return out
}

// Limit returns a copy holding at most n entries; n <= 0 keeps all.
func (a AggregationResult) Limit(n int) AggregationResult {
	out := a.clone()
	if n > 0 && len(out.Entries) > n {
		out.Entries = out.Entries[:n]
	}
	return out
}

// Keys returns the group keys in entry order.
func (a AggregationResult) Keys() []string {
	keys := make([]string, len(a.Entries))
	for i, e := range a.Entries {
		keys[i] = e.Key
	}
	return keys
}

// Total is the sum of every entry's value.
func (a AggregationResult) Total() float64 {
	total := decimal.Zero
	for _, e := range a.Entries {
		total = total.Add(decimal.NewFromFloat(e.Value))
	}
	return total.InexactFloat64()
}

func (a AggregationResult) clone() AggregationResult {
	a.Entries = slices.Clone(a.Entries)
	return a
}

func monthIndex(name string) int {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return int(m)
		}
	}
	return 13
}
