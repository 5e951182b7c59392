package charts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/pipeline"
)

const (
	width      = 800
	height     = 480
	maxBars    = 20
	maxWorkers = 4
)

var ErrNotEnoughData = errors.New("not enough data to draw chart")

// Render draws result as a PNG: a pie for categories, a line for the monthly
// trend and bars for products and regions.
func Render(kind pipeline.ChartKind, result pipeline.AggregationResult, w io.Writer) error {
	switch kind {
	case pipeline.ChartCategory:
		return renderPie(result, w)
	case pipeline.ChartMonthly:
		return renderLine(result, w)
	case pipeline.ChartProducts, pipeline.ChartRegion:
		return renderBars(result, w)
	default:
		return fmt.Errorf("unknown chart kind %q", kind)
	}
}

// RenderAll draws every chart of report concurrently. Charts without enough
// data to draw are left out of the result.
func RenderAll(ctx context.Context, report *pipeline.Report) (map[pipeline.ChartKind][]byte, error) {
	images := make([][]byte, len(report.Charts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, c := range report.Charts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			err := Render(c.Kind, c.AggregationResult, &buf)
			if errors.Is(err, ErrNotEnoughData) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("render %s chart: %w", c.Kind, err)
			}
			images[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[pipeline.ChartKind][]byte, len(images))
	for i, img := range images {
		if img != nil {
			out[report.Charts[i].Kind] = img
		}
	}
	return out, nil
}

func renderPie(result pipeline.AggregationResult, w io.Writer) error {
	var total float64
	for _, e := range result.Entries {
		if e.Value > 0 {
			total += e.Value
		}
	}
	if total == 0 {
		return ErrNotEnoughData
	}

	values := make([]chart.Value, 0, len(result.Entries))
	for _, e := range result.Entries {
		if e.Value <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%.1f%%)", e.Key, e.Value/total*100),
			Value: e.Value,
		})
	}

	pie := chart.PieChart{
		Title:  result.Label,
		Width:  width,
		Height: height,
		Values: values,
	}
	return pie.Render(chart.PNG, w)
}

func renderBars(result pipeline.AggregationResult, w io.Writer) error {
	entries := result.Entries
	if len(entries) > maxBars {
		entries = entries[:maxBars]
	}
	if len(entries) == 0 {
		return ErrNotEnoughData
	}

	lo, hi := 0.0, 0.0
	bars := make([]chart.Value, len(entries))
	for i, e := range entries {
		lo = math.Min(lo, e.Value)
		hi = math.Max(hi, e.Value)
		bars[i] = chart.Value{Label: e.Key, Value: e.Value}
	}
	if lo == hi {
		return ErrNotEnoughData
	}

	barWidth := (width - 120) / len(bars) * 2 / 3
	bc := chart.BarChart{
		Title:      result.Label,
		Width:      width,
		Height:     height,
		BarWidth:   max(barWidth, 4),
		BarSpacing: max(barWidth/2, 2),
		Background: chart.Style{Padding: chart.Box{Top: 48}},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func renderLine(result pipeline.AggregationResult, w io.Writer) error {
	if len(result.Entries) < 2 {
		return ErrNotEnoughData
	}

	xs := make([]float64, len(result.Entries))
	ys := make([]float64, len(result.Entries))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, e := range result.Entries {
		xs[i] = float64(i)
		ys[i] = e.Value
		lo = math.Min(lo, e.Value)
		hi = math.Max(hi, e.Value)
	}
	ticks := make([]chart.Tick, 0, len(xs))
	for i, key := range result.Keys() {
		ticks = append(ticks, chart.Tick{Value: xs[i], Label: key})
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	graph := chart.Chart{
		Title:      result.Label,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 24, Bottom: 16}},
		XAxis:      chart.XAxis{Ticks: ticks},
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    result.Measure,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
					DotColor:    chart.ColorBlue,
					DotWidth:    4,
				},
			},
		},
	}
	return graph.Render(chart.PNG, w)
}
