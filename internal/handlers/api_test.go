package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pipeline"
	"sales-dashboard/internal/services"
)

const testCSV = `Date,Region,Category,Product,Sales,Profit
2024-01-15,East,Furniture,Desk,200,40
2024-02-10,West,Office,Pen,50,10
2024-02-11,East,Office,Paper,30,5
`

const badDateCSV = "Date,Sales,Profit\n2024-01-01,1,1\nyesterday,2,2\n"

const testSession = "test-session"

var testSettings = Settings{MaxUploadBytes: 1 << 20, TableRows: 50, Currency: "$"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestSessions(t *testing.T, upload bool) *services.Sessions {
	t.Helper()
	s := services.NewSessions(pipeline.Options{}, time.Hour, testLogger())
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	if upload {
		if _, err := s.Upload(context.Background(), testSession, "sales.csv", strings.NewReader(testCSV)); err != nil {
			t.Fatalf("seed upload failed: %v", err)
		}
	}
	return s
}

func newRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(observability.WithSessionID(req.Context(), testSession))
}

func uploadRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := newRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

func TestAPIHandlers_HandleUpload(t *testing.T) {
	sessions := createTestSessions(t, false)
	handlers := NewAPIHandlers(sessions, testLogger(), testSettings)

	w := httptest.NewRecorder()
	handlers.HandleUpload(w, uploadRequest(t, "file", "sales.csv", testCSV))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected cache-control 'no-store', got %q", cc)
	}

	env := decode(t, w)
	if !env.Success {
		t.Fatal("expected success=true in response")
	}

	var data struct {
		Upload struct {
			Filename string `json:"filename"`
			Records  int    `json:"records"`
		} `json:"upload"`
		Report struct {
			KPIs pipeline.KPIs `json:"kpis"`
		} `json:"report"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Upload.Filename != "sales.csv" || data.Upload.Records != 3 {
		t.Errorf("unexpected upload summary: %+v", data.Upload)
	}
	if data.Report.KPIs.TotalSales != 280 || data.Report.KPIs.OrderCount != 3 {
		t.Errorf("unexpected KPIs: %+v", data.Report.KPIs)
	}

	if _, err := sessions.Dataset(testSession); err != nil {
		t.Errorf("dataset should be stored for the session: %v", err)
	}
}

func TestAPIHandlers_HandleUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		settings Settings
		status   int
		code     string
	}{
		{
			name:     "wrong field",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "upload", "sales.csv", testCSV) },
			settings: testSettings,
			status:   http.StatusBadRequest,
			code:     "BAD_REQUEST",
		},
		{
			name:     "not multipart",
			req:      func(t *testing.T) *http.Request { return newRequest(http.MethodPost, "/api/upload", strings.NewReader(testCSV)) },
			settings: testSettings,
			status:   http.StatusBadRequest,
			code:     "BAD_REQUEST",
		},
		{
			name:     "bad date",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "file", "bad.csv", badDateCSV) },
			settings: testSettings,
			status:   http.StatusBadRequest,
			code:     "DATE_PARSE_ERROR",
		},
		{
			name:     "bad number",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "file", "bad.csv", "Sales,Profit\nlots,1\n") },
			settings: testSettings,
			status:   http.StatusBadRequest,
			code:     "NUMBER_PARSE_ERROR",
		},
		{
			name:     "missing sales",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "file", "bad.csv", "Region,Profit\nEast,1\n") },
			settings: testSettings,
			status:   http.StatusBadRequest,
			code:     "MISSING_COLUMN",
		},
		{
			name:     "empty file",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "file", "empty.csv", "") },
			settings: testSettings,
			status:   http.StatusBadRequest,
			code:     "MALFORMED_CSV",
		},
		{
			name:     "too large",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "file", "sales.csv", testCSV) },
			settings: Settings{MaxUploadBytes: 64},
			status:   http.StatusRequestEntityTooLarge,
			code:     "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := createTestSessions(t, false)
			handlers := NewAPIHandlers(sessions, testLogger(), tt.settings)

			w := httptest.NewRecorder()
			handlers.HandleUpload(w, tt.req(t))

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			env := decode(t, w)
			if env.Success {
				t.Error("expected success=false")
			}
			if env.Error.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, env.Error.Code)
			}
			if _, err := sessions.Dataset(testSession); err == nil {
				t.Error("failed upload must not store a dataset")
			}
		})
	}
}

func TestAPIHandlers_HandleUpload_DateErrorDetails(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, false), testLogger(), testSettings)

	w := httptest.NewRecorder()
	handlers.HandleUpload(w, uploadRequest(t, "file", "bad.csv", badDateCSV))

	env := decode(t, w)
	if !strings.Contains(env.Error.Details, "row 2") || !strings.Contains(env.Error.Details, "yesterday") {
		t.Errorf("details should name the row and value, got %q", env.Error.Details)
	}
}

func TestAPIHandlers_HandleReport(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, true), testLogger(), testSettings)

	tests := []struct {
		name   string
		query  string
		sales  float64
		orders int
	}{
		{"no selection", "", 280, 3},
		{"region", "?region=East", 230, 2},
		{"region and category", "?region=East&category=Office", 30, 1},
		{"several regions", "?region=East&region=West", 280, 3},
		{"empty selection", "?region=", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleReport(w, newRequest(http.MethodGet, "/api/report"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			var report struct {
				KPIs pipeline.KPIs `json:"kpis"`
			}
			if err := json.Unmarshal(decode(t, w).Data, &report); err != nil {
				t.Fatal(err)
			}
			if report.KPIs.TotalSales != tt.sales || report.KPIs.OrderCount != tt.orders {
				t.Errorf("got sales=%v orders=%d, want sales=%v orders=%d",
					report.KPIs.TotalSales, report.KPIs.OrderCount, tt.sales, tt.orders)
			}
			if tt.orders == 0 && report.KPIs.AvgOrderValue != 0 {
				t.Errorf("average order value should be 0 for an empty selection, got %v", report.KPIs.AvgOrderValue)
			}
		})
	}
}

func TestAPIHandlers_NoDataset(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, false), testLogger(), testSettings)

	for _, target := range []string{"/api/report", "/api/rows"} {
		w := httptest.NewRecorder()
		req := newRequest(http.MethodGet, target, nil)
		if strings.HasSuffix(target, "rows") {
			handlers.HandleRows(w, req)
		} else {
			handlers.HandleReport(w, req)
		}

		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", target, http.StatusNotFound, w.Code)
		}
		if env := decode(t, w); env.Error.Code != "NO_DATASET" {
			t.Errorf("%s: expected NO_DATASET, got %q", target, env.Error.Code)
		}
	}
}

func TestAPIHandlers_HandleRows(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, true), testLogger(), testSettings)

	w := httptest.NewRecorder()
	handlers.HandleRows(w, newRequest(http.MethodGet, "/api/rows?limit=1&region=East", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var page struct {
		Columns   []string   `json:"columns"`
		Rows      [][]string `json:"rows"`
		Total     int        `json:"total"`
		Truncated bool       `json:"truncated"`
	}
	if err := json.Unmarshal(decode(t, w).Data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 1 || page.Total != 2 || !page.Truncated {
		t.Errorf("unexpected page: rows=%d total=%d truncated=%v", len(page.Rows), page.Total, page.Truncated)
	}
	if page.Columns[len(page.Columns)-1] != pipeline.FieldMonth {
		t.Errorf("expected derived Month column last, got %v", page.Columns)
	}
}

func TestAPIHandlers_LastModified(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, true), testLogger(), testSettings)

	for _, target := range []string{"/api/report", "/api/rows"} {
		w := httptest.NewRecorder()
		req := newRequest(http.MethodGet, target, nil)
		if strings.HasSuffix(target, "rows") {
			handlers.HandleRows(w, req)
		} else {
			handlers.HandleReport(w, req)
		}

		modified, err := http.ParseTime(w.Header().Get("Last-Modified"))
		if err != nil {
			t.Fatalf("%s: expected a Last-Modified header: %v", target, err)
		}
		if time.Since(modified) > time.Minute {
			t.Errorf("%s: Last-Modified %v should be the upload time", target, modified)
		}
	}
}

func TestAPIHandlers_HandleClear(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, true), testLogger(), testSettings)

	w := httptest.NewRecorder()
	handlers.HandleClear(w, newRequest(http.MethodDelete, "/api/dataset", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}

	w = httptest.NewRecorder()
	handlers.HandleReport(w, newRequest(http.MethodGet, "/api/report", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d after clearing, got %d", http.StatusNotFound, w.Code)
	}
	if w.Header().Get("Last-Modified") != "" {
		t.Error("cleared session should not report an upload time")
	}

	w = httptest.NewRecorder()
	handlers.HandleClear(w, newRequest(http.MethodDelete, "/api/dataset", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("clearing twice should succeed, got %d", w.Code)
	}
}

func TestAPIHandlers_HandleRows_InvalidLimit(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, true), testLogger(), testSettings)

	for _, limit := range []string{"abc", "-1"} {
		w := httptest.NewRecorder()
		handlers.HandleRows(w, newRequest(http.MethodGet, "/api/rows?limit="+limit, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected status %d, got %d", limit, http.StatusBadRequest, w.Code)
		}
	}
}

func TestAPIHandlers_HandleChart(t *testing.T) {
	sessions := createTestSessions(t, true)
	if _, err := sessions.Upload(context.Background(), "no-dates", "plain.csv",
		strings.NewReader("Region,Category,Product,Sales,Profit\nEast,A,Desk,10,1\n")); err != nil {
		t.Fatal(err)
	}
	handlers := NewAPIHandlers(sessions, testLogger(), testSettings)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /charts/{kind}", handlers.HandleChart)

	tests := []struct {
		name    string
		session string
		target  string
		status  int
	}{
		{"category", testSession, "/charts/category", http.StatusOK},
		{"region", testSession, "/charts/region", http.StatusOK},
		{"unknown kind", testSession, "/charts/scatter", http.StatusNotFound},
		{"no date column", "no-dates", "/charts/monthly", http.StatusNotFound},
		{"nothing selected", "no-dates", "/charts/region?region=West", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			req = req.WithContext(observability.WithSessionID(req.Context(), tt.session))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status == http.StatusOK {
				if ct := w.Header().Get("Content-Type"); ct != "image/png" {
					t.Errorf("expected content-type 'image/png', got %q", ct)
				}
				if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
					t.Error("body is not a PNG image")
				}
			}
		})
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, false), testLogger(), testSettings)

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var health map[string]string
	if err := json.Unmarshal(decode(t, w).Data, &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", health["status"])
	}
	if _, err := time.Parse(time.RFC3339, health["timestamp"]); err != nil {
		t.Errorf("timestamp should be RFC3339: %v", err)
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestSessions(t, true), testLogger(), testSettings)

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	var stats map[string]float64
	if err := json.Unmarshal(decode(t, w).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats["active_sessions"] != 1 || stats["records_held"] != 3 || stats["uploads_processed"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestSelectionFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  pipeline.Selection
	}{
		{"", pipeline.Selection{}},
		{"region=East", pipeline.Selection{pipeline.FieldRegion: {"East"}}},
		{"region=East&region=West&category=A", pipeline.Selection{
			pipeline.FieldRegion:   {"East", "West"},
			pipeline.FieldCategory: {"A"},
		}},
		{"category=", pipeline.Selection{pipeline.FieldCategory: {}}},
		{"product=Desk", pipeline.Selection{}},
	}

	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		if err != nil {
			t.Fatal(err)
		}
		if got := selectionFromQuery(q); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("selectionFromQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}
