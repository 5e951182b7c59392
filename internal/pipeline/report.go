package pipeline

import (
	"fmt"
	"strings"
)

type ChartKind string

const (
	ChartCategory ChartKind = "category"
	ChartProducts ChartKind = "products"
	ChartMonthly  ChartKind = "monthly"
	ChartRegion   ChartKind = "region"
)

func ParseChartKind(s string) (ChartKind, error) {
	for _, fc := range fixedCharts {
		if string(fc.kind) == s {
			return fc.kind, nil
		}
	}
	return "", fmt.Errorf("unknown chart %q", s)
}

type MonthOrder string

const (
	// MonthOrderDiscovery lists months in the order they first appear in
	// the data.
	MonthOrderDiscovery MonthOrder = "discovery"
	MonthOrderCalendar  MonthOrder = "calendar"
)

func ParseMonthOrder(s string) (MonthOrder, error) {
	switch MonthOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", MonthOrderDiscovery:
		return MonthOrderDiscovery, nil
	case MonthOrderCalendar:
		return MonthOrderCalendar, nil
	}
	return "", fmt.Errorf("invalid month order %q, must be %q or %q", s, MonthOrderDiscovery, MonthOrderCalendar)
}

type Options struct {
	MonthOrder MonthOrder
	// TopProducts caps the product ranking; zero keeps every product.
	TopProducts int
}

var fixedCharts = []struct {
	kind    ChartKind
	group   string
	measure string
	title   string
}{
	{ChartCategory, FieldCategory, FieldSales, "Sales by Category"},
	{ChartProducts, FieldProduct, FieldSales, "Top Products"},
	{ChartMonthly, FieldMonth, FieldSales, "Monthly Sales Trend"},
	{ChartRegion, FieldRegion, FieldProfit, "Profit by Region"},
}

type Chart struct {
	Kind ChartKind `json:"kind"`
	AggregationResult
}

// Report is everything the dashboard shows for one selection.
type Report struct {
	KPIs    KPIs            `json:"kpis"`
	Filters []FilterOptions `json:"filters"`
	Charts  []Chart         `json:"charts"`
	Records int             `json:"records"`

	Data *Dataset `json:"-"`
}

func (r *Report) Chart(kind ChartKind) (AggregationResult, bool) {
	for _, c := range r.Charts {
		if c.Kind == kind {
			return c.AggregationResult, true
		}
	}
	return AggregationResult{}, false
}

// BuildReport applies sel to d and computes the KPIs and every chart whose
// group column is present.
func BuildReport(d *Dataset, sel Selection, opts Options) (*Report, error) {
	filtered, filters := sel.Apply(d)

	kpis, err := ComputeKPIs(filtered)
	if err != nil {
		return nil, err
	}

	charts := make([]Chart, 0, len(fixedCharts))
	for _, fc := range fixedCharts {
		result, ok, err := GroupSum(filtered, fc.group, fc.measure)
		if err != nil {
			return nil, fmt.Errorf("%s chart: %w", fc.kind, err)
		}
		if !ok {
			continue
		}
		switch fc.kind {
		case ChartProducts:
			result = result.Ranked().Limit(opts.TopProducts)
		case ChartMonthly:
			if opts.MonthOrder == MonthOrderCalendar {
				result = result.CalendarOrder()
			}
		}
		result.Label = fc.title
		charts = append(charts, Chart{Kind: fc.kind, AggregationResult: result})
	}

	return &Report{
		KPIs:    kpis,
		Filters: filters,
		Charts:  charts,
		Records: filtered.Len(),
		Data:    filtered,
	}, nil
}
