package handlers

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sales-dashboard/internal/charts"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pipeline"
	"sales-dashboard/internal/services"
)

const (
	uploadField     = "file"
	multipartMemory = 1 << 20
	noStore         = "no-store"
)

// Settings are the request limits and presentation options shared by the
// JSON and SSE handlers.
type Settings struct {
	MaxUploadBytes int64
	TableRows      int
	Currency       string
}

type APIHandlers struct {
	sessions *services.Sessions
	logger   *slog.Logger
	settings Settings
}

func NewAPIHandlers(sessions *services.Sessions, logger *slog.Logger, settings Settings) *APIHandlers {
	return &APIHandlers{
		sessions: sessions,
		logger:   logger,
		settings: settings,
	}
}

// HandleUpload replaces the session's dataset with the CSV posted in the
// "file" multipart field and answers with the unfiltered report.
func (h *APIHandlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	// Bodies without a declared length are capped by the BodyLimit middleware.
	if h.settings.MaxUploadBytes > 0 && r.ContentLength > h.settings.MaxUploadBytes {
		writeError(w, r, h.logger, errors.TooLarge("Uploaded file is too large"))
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var sizeErr *http.MaxBytesError
		if stderrors.As(err, &sizeErr) {
			writeError(w, r, h.logger, err)
			return
		}
		writeError(w, r, h.logger, errors.BadRequestWrap(err, "Expected a multipart form upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, r, h.logger, errors.BadRequestWrap(err, `Missing CSV file in field "file"`))
		return
	}
	defer file.Close()

	resp, err := h.sessions.Upload(r.Context(), sessionID(r), header.Filename, file)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, resp, map[string]string{"Cache-Control": noStore})
}

// HandleReport answers with KPIs, filter options and chart data for the
// selection in the query string.
func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	report, err := h.sessions.Report(id, selectionFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, report, h.datasetHeaders(id))
}

// HandleRows returns the filtered records, capped by the limit parameter.
func (h *APIHandlers) HandleRows(w http.ResponseWriter, r *http.Request) {
	limit := h.settings.TableRows
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, h.logger, errors.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	id := sessionID(r)
	report, err := h.sessions.Report(id, selectionFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, models.NewTablePage(report.Data, limit), h.datasetHeaders(id))
}

// HandleClear forgets the session's dataset. Clearing a session without one
// succeeds as well.
func (h *APIHandlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.sessions.Drop(sessionID(r))
	w.Header().Set("Cache-Control", noStore)
	w.WriteHeader(http.StatusNoContent)
}

// datasetHeaders marks responses derived from the session's dataset with the
// time it was uploaded.
func (h *APIHandlers) datasetHeaders(id string) map[string]string {
	headers := map[string]string{"Cache-Control": noStore}
	if at, ok := h.sessions.UploadedAt(id); ok {
		headers["Last-Modified"] = at.UTC().Format(http.TimeFormat)
	}
	return headers
}

// HandleChart streams one chart of the current selection as a PNG.
func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	kind, err := pipeline.ParseChartKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, h.logger, errors.NotFound("Unknown chart"))
		return
	}

	report, err := h.sessions.Report(sessionID(r), selectionFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, ok := report.Chart(kind)
	if !ok {
		writeError(w, r, h.logger, errors.NotFound("Chart is not available for this dataset"))
		return
	}

	var buf bytes.Buffer
	if err := charts.Render(kind, result, &buf); err != nil {
		if stderrors.Is(err, charts.ErrNotEnoughData) {
			writeError(w, r, h.logger, errors.NotFound("Not enough data to draw this chart"))
			return
		}
		writeError(w, r, h.logger, errors.InternalWrap(err, "Failed to render chart"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", noStore)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.sessions.Stats())
}

func sessionID(r *http.Request) string {
	return observability.GetSessionID(r.Context())
}

// selectionFromQuery reads repeated region and category parameters. A
// parameter that is absent selects everything; one present with only empty
// values selects nothing.
func selectionFromQuery(q url.Values) pipeline.Selection {
	sel := pipeline.Selection{}
	for param, field := range map[string]string{"region": pipeline.FieldRegion, "category": pipeline.FieldCategory} {
		values, ok := q[param]
		if !ok {
			continue
		}
		picked := make([]string, 0, len(values))
		for _, v := range values {
			if v != "" {
				picked = append(picked, v)
			}
		}
		sel[field] = picked
	}
	return sel
}
