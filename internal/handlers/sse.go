package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/charts"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

type SSEHandlers struct {
	sessions *services.Sessions
	logger   *slog.Logger
	settings Settings
}

func NewSSEHandlers(sessions *services.Sessions, logger *slog.Logger, settings Settings) *SSEHandlers {
	return &SSEHandlers{
		sessions: sessions,
		logger:   logger,
		settings: settings,
	}
}

func render(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HandleDashboard re-renders every dashboard fragment for the filter
// selection carried in the datastar signals.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var signals models.DashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.WarnContext(ctx, "read signals", "error", err)
		signals = models.DashboardSignals{}
	}

	sse := datastar.NewSSE(w, r)

	id := sessionID(r)
	sel := signals.Selection()
	report, err := h.sessions.Report(id, sel)
	if err == nil {
		if stale := signals.StaleFields(sel, report.Filters); len(stale) > 0 {
			for _, field := range stale {
				delete(sel, field)
			}
			report, err = h.sessions.Report(id, sel)
		}
	}
	if err != nil {
		msg := "Upload a CSV file to begin."
		if !stderrors.Is(err, services.ErrNoDataset) {
			h.logger.ErrorContext(ctx, "build report", "error", err)
			msg = statusMessage(err)
		}
		h.patch(ctx, sse, templates.Status(msg))
		return
	}

	images, err := charts.RenderAll(ctx, report)
	if err != nil {
		h.logger.ErrorContext(ctx, "render charts", "error", err)
		images = nil
	}

	status := fmt.Sprintf("Showing %d records.", report.Records)
	if report.Records == 0 {
		status = "No records match the selected filters."
	}

	fragments := []templ.Component{
		templates.Status(status),
		templates.KPICards(report.KPIs, h.settings.Currency),
		templates.FilterPanel(report.Filters),
		templates.ChartGrid(report.Charts, images),
		templates.DataTable(models.NewTablePage(report.Data, h.settings.TableRows)),
	}
	for _, c := range fragments {
		if !h.patch(ctx, sse, c) {
			return
		}
	}

	options := make(map[string][]string, len(report.Filters))
	patch := map[string]any{"report": report, "options": options}
	for _, f := range report.Filters {
		patch[strings.ToLower(f.Field)] = f.Selected
		options[f.Field] = f.Options
	}
	data, err := json.Marshal(patch)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal dashboard signals", "error", err)
		return
	}
	sse.PatchSignals(data)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func statusMessage(err error) string {
	appErr, ok := classify(err).(*errors.AppError)
	if !ok || appErr.Details == "" {
		return "Failed to build the dashboard."
	}
	return appErr.Message + ": " + appErr.Details
}

func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, c templ.Component) bool {
	html, err := render(ctx, c)
	if err != nil {
		h.logger.ErrorContext(ctx, "render fragment", "error", err)
		return false
	}
	sse.PatchElements(html)
	return true
}
