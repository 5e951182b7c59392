package reporter

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"sales-dashboard/internal/pipeline"
)

const reportTemplate = `Sales Report{{if .Source}} - {{.Source}}{{end}}
Records: {{.Report.Records}}
{{range .Report.Filters}}{{.Field}}: {{join .Selected}}
{{end}}
Total Sales:     {{money .Report.KPIs.TotalSales}}
Total Profit:    {{money .Report.KPIs.TotalProfit}}
Orders:          {{.Report.KPIs.OrderCount}}
Avg Order Value: {{money .Report.KPIs.AvgOrderValue}}
{{range .Report.Charts}}
=== {{.Label}} ===
{{range .Entries}}{{printf "%-24s" .Key}} {{money .Value}}
{{else}}(no data)
{{end}}{{if .Entries}}{{printf "%-24s" "Total"}} {{money .Total}}
{{end}}{{end}}`

// Reporter writes a report to a terminal in plain text.
type Reporter struct {
	writer   io.Writer
	currency string
	tmpl     *template.Template
}

func New(writer io.Writer, currency string) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	r := &Reporter{writer: writer, currency: currency}
	r.tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
		"money": r.money,
		"join":  func(values []string) string { return strings.Join(values, ", ") },
	}).Parse(reportTemplate))
	return r
}

func (r *Reporter) Write(source string, report *pipeline.Report) error {
	data := struct {
		Source string
		Report *pipeline.Report
	}{source, report}

	if err := r.tmpl.Execute(r.writer, data); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func (r *Reporter) money(v float64) string {
	return r.currency + " " + FormatAmount(v)
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount rounds v to a whole number and groups thousands with commas.
func FormatAmount(v float64) string {
	v = math.Round(v)
	if v == 0 {
		v = 0
	}
	return amountPrinter.Sprintf("%.0f", v)
}
