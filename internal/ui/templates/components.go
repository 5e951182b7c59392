package templates

import (
	"context"
	"encoding/base64"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/pipeline"
	"sales-dashboard/internal/reporter"
)

var statusTemplate = template.Must(template.New("status").Parse(
	`<div id="status" class="status">{{.}}</div>`))

var kpiTemplate = template.Must(template.New("kpis").Parse(`<div id="kpis" class="kpi-grid">
{{range .}}<div class="kpi"><span class="kpi-label">{{.Label}}</span><span class="kpi-value">{{.Value}}</span></div>
{{end}}</div>`))

var filterTemplate = template.Must(template.New("filters").Parse(`<div id="filters" class="filters">
{{range .}}{{$signal := .Signal}}<fieldset><legend>{{.Field}}</legend>
{{range .Options}}<label><input type="checkbox" data-bind="{{$signal}}" value="{{.Value}}" data-on-change="@get('/sse/dashboard')"{{if .Checked}} checked{{end}}> {{.Label}}</label>
{{end}}</fieldset>
{{end}}</div>`))

var chartTemplate = template.Must(template.New("charts").Parse(`<div id="charts" class="chart-grid">
{{range .}}<section class="chart" id="chart-{{.Kind}}"><h3>{{.Label}}</h3>
{{if .Src}}<img alt="{{.Label}}" src="{{.Src}}">{{else}}<p class="empty">Not enough data to draw this chart.</p>{{end}}
</section>
{{end}}</div>`))

var tableTemplate = template.Must(template.New("table").Parse(`<div id="data-table"><h2>Detailed Data</h2>
{{if .Truncated}}<p class="note">Showing {{len .Rows}} of {{.Total}} rows.</p>{{end}}
<table class="modern-table">
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</div>`))

// fragment renders an html/template as a templ.Component.
func fragment(t *template.Template, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return t.Execute(w, data)
	})
}

// Status is the banner shown above the dashboard.
func Status(message string) templ.Component {
	return fragment(statusTemplate, message)
}

type kpiCard struct {
	Label string
	Value string
}

func KPICards(k pipeline.KPIs, currency string) templ.Component {
	money := func(v float64) string {
		return currency + " " + reporter.FormatAmount(v)
	}
	return fragment(kpiTemplate, []kpiCard{
		{"Sales", money(k.TotalSales)},
		{"Profit", money(k.TotalProfit)},
		{"Orders", strconv.Itoa(k.OrderCount)},
		{"Avg Order", money(k.AvgOrderValue)},
	})
}

type filterGroup struct {
	Field   string
	Signal  string
	Options []filterOption
}

type filterOption struct {
	Value   string
	Label   string
	Checked bool
}

// FilterPanel renders one checkbox group per filter, bound to the datastar
// signal named after the field.
func FilterPanel(filters []pipeline.FilterOptions) templ.Component {
	groups := make([]filterGroup, len(filters))
	for i, f := range filters {
		selected := pipeline.NewValueSet(f.Selected...)
		g := filterGroup{Field: f.Field, Signal: strings.ToLower(f.Field)}
		for _, opt := range f.Options {
			label := opt
			if label == "" {
				label = "(blank)"
			}
			g.Options = append(g.Options, filterOption{Value: opt, Label: label, Checked: selected.Contains(opt)})
		}
		groups[i] = g
	}
	return fragment(filterTemplate, groups)
}

type chartCard struct {
	Kind  pipeline.ChartKind
	Label string
	Src   template.URL
}

// ChartGrid embeds the rendered PNG charts as data URIs. Charts present in
// the report but missing from images could not be drawn.
func ChartGrid(charts []pipeline.Chart, images map[pipeline.ChartKind][]byte) templ.Component {
	cards := make([]chartCard, len(charts))
	for i, c := range charts {
		cards[i] = chartCard{Kind: c.Kind, Label: c.Label}
		if img, ok := images[c.Kind]; ok {
			cards[i].Src = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(img))
		}
	}
	return fragment(chartTemplate, cards)
}

func DataTable(page models.TablePage) templ.Component {
	return fragment(tableTemplate, page)
}
