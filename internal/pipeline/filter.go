package pipeline

import (
	"slices"
	"sort"
)

// ValueSet is a set of allowed categorical values.
type ValueSet map[string]struct{}

func NewValueSet(values ...string) ValueSet {
	set := make(ValueSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (s ValueSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

// Distinct returns the values of field in first-occurrence order, or nil when
// the field is not part of the schema.
func Distinct(d *Dataset, field string) []string {
	if !d.Has(field) {
		return nil
	}
	seen := make(map[string]bool)
	values := make([]string, 0)
	for _, r := range d.records {
		v := r.values[field]
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	return values
}

// Filter keeps the records whose value for field is in allowed, in their
// original order. When the field is not part of the schema the dataset is
// returned as is.
func Filter(d *Dataset, field string, allowed ValueSet) *Dataset {
	if !d.Has(field) {
		return d
	}
	kept := make([]Record, 0, len(d.records))
	for _, r := range d.records {
		if allowed.Contains(r.values[field]) {
			kept = append(kept, r)
		}
	}
	return d.derive(kept)
}

// Selection maps a field to the values picked for it. A field with no entry
// has no selection and keeps everything; a field mapped to an empty slice
// keeps nothing.
type Selection map[string][]string

// FilterOptions describes one filter control: the values available after
// the preceding filters were applied and the values currently selected.
type FilterOptions struct {
	Field    string   `json:"field"`
	Options  []string `json:"options"`
	Selected []string `json:"selected"`
}

var filterOrder = []string{FieldRegion, FieldCategory}

// Apply filters d by Region, then Category, then any other selected field in
// name order. Options for each filter are computed on the data left by the
// filters before it. Fields missing from the schema are skipped.
func (s Selection) Apply(d *Dataset) (*Dataset, []FilterOptions) {
	fields := slices.Clone(filterOrder)
	extra := make([]string, 0, len(s))
	for f := range s {
		if !slices.Contains(filterOrder, f) {
			extra = append(extra, f)
		}
	}
	sort.Strings(extra)
	fields = append(fields, extra...)

	out := d
	filters := make([]FilterOptions, 0, len(fields))
	for _, f := range fields {
		if !out.Has(f) {
			continue
		}
		options := Distinct(out, f)
		selected, chosen := s[f]
		if !chosen {
			selected = options
		}
		filters = append(filters, FilterOptions{
			Field:    f,
			Options:  options,
			Selected: slices.Clone(selected),
		})
		if chosen {
			out = Filter(out, f, NewValueSet(selected...))
		}
	}
	return out, filters
}
