package models

import (
	"slices"
	"time"

	"sales-dashboard/internal/pipeline"
)

type UploadSummary struct {
	Filename   string    `json:"filename"`
	Records    int       `json:"records"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type UploadResponse struct {
	Upload UploadSummary    `json:"upload"`
	Report *pipeline.Report `json:"report"`
}

// TablePage is the detailed data view, capped at a configured number of rows.
type TablePage struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Total     int        `json:"total"`
	Truncated bool       `json:"truncated"`
}

func NewTablePage(d *pipeline.Dataset, limit int) TablePage {
	rows := d.Rows(limit)
	return TablePage{
		Columns:   d.Columns(),
		Rows:      rows,
		Total:     d.Len(),
		Truncated: len(rows) < d.Len(),
	}
}

// DashboardSignals are the filter selections the browser sends with every
// datastar request. A nil slice means the user has not touched that filter.
// Options holds, per field, the choices the browser last rendered.
type DashboardSignals struct {
	Region   []string            `json:"region"`
	Category []string            `json:"category"`
	Options  map[string][]string `json:"options"`
}

func (s DashboardSignals) Selection() pipeline.Selection {
	sel := pipeline.Selection{}
	if s.Region != nil {
		sel[pipeline.FieldRegion] = s.Region
	}
	if s.Category != nil {
		sel[pipeline.FieldCategory] = s.Category
	}
	return sel
}

// StaleFields lists the selected fields whose options differ from the ones
// the browser last rendered. Their selection no longer matches what the user
// saw and falls back to every option.
func (s DashboardSignals) StaleFields(sel pipeline.Selection, filters []pipeline.FilterOptions) []string {
	var stale []string
	for _, f := range filters {
		if _, selected := sel[f.Field]; !selected {
			continue
		}
		seen, ok := s.Options[f.Field]
		if ok && !slices.Equal(seen, f.Options) {
			stale = append(stale, f.Field)
		}
	}
	return stale
}
