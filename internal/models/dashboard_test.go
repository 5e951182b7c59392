package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sales-dashboard/internal/pipeline"
)

func TestDashboardSignals_Selection(t *testing.T) {
	sel := DashboardSignals{Category: []string{}}.Selection()

	_, hasRegion := sel[pipeline.FieldRegion]
	assert.False(t, hasRegion, "untouched filter selects everything")
	assert.Equal(t, []string{}, sel[pipeline.FieldCategory])
}

func TestDashboardSignals_StaleFields(t *testing.T) {
	filters := []pipeline.FilterOptions{
		{Field: pipeline.FieldRegion, Options: []string{"East", "West"}},
		{Field: pipeline.FieldCategory, Options: []string{"Office"}},
	}

	tests := []struct {
		name    string
		signals DashboardSignals
		want    []string
	}{
		{
			name: "category options changed",
			signals: DashboardSignals{
				Region:   []string{"West"},
				Category: []string{"Furniture"},
				Options:  map[string][]string{"Region": {"East", "West"}, "Category": {"Furniture", "Office"}},
			},
			want: []string{pipeline.FieldCategory},
		},
		{
			name: "nothing changed",
			signals: DashboardSignals{
				Category: []string{"Office"},
				Options:  map[string][]string{"Category": {"Office"}},
			},
		},
		{
			name: "unselected field is never stale",
			signals: DashboardSignals{
				Options: map[string][]string{"Category": {"Furniture"}},
			},
		},
		{
			name: "no options seen yet",
			signals: DashboardSignals{
				Category: []string{"Furniture"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.signals.StaleFields(tt.signals.Selection(), filters)
			assert.Equal(t, tt.want, got)
		})
	}
}
