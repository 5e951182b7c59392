package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"sales-dashboard/internal/config"
)

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggerConfig{Level: "warn", Format: "json"})

	logger.Info("dropped")
	logger.Warn("kept", "rows", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "kept" {
		t.Errorf("msg = %v, want kept", entry["msg"])
	}
}

func TestContextIDs(t *testing.T) {
	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want req-1", got)
	}
	if got := GetSessionID(ctx); got != "sess-1" {
		t.Errorf("GetSessionID() = %q, want sess-1", got)
	}
	if got := GetSessionID(context.Background()); got != "" {
		t.Errorf("GetSessionID() on empty context = %q", got)
	}
}

func TestSpan(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "upload")
	_, child := StartSpan(ctx, "load")

	if child.TraceID != parent.TraceID {
		t.Error("child span should share the parent's trace ID")
	}
	if child.ParentID != parent.SpanID {
		t.Error("child span should point at its parent")
	}

	child.SetTag("rows", "12")
	child.SetError(errors.New("boom"))
	child.Finish()

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("span", "span", child)
	out := buf.String()
	for _, want := range []string{"span.operation=load", "span.rows=12", "span.error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q should contain %q", out, want)
		}
	}
}
