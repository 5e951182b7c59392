package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pipeline"
)

var ErrNoDataset = errors.New("no dataset uploaded for this session")

type session struct {
	dataset    *pipeline.Dataset
	filename   string
	uploadedAt time.Time
	lastSeen   time.Time
}

// Sessions holds the dataset uploaded by each browser session. Every upload
// replaces the session's dataset; idle sessions are dropped after the TTL.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
	opts     pipeline.Options
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	uploads atomic.Int64
	evicted atomic.Int64

	janitor  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewSessions(opts pipeline.Options, ttl time.Duration, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		sessions: make(map[string]*session),
		opts:     opts,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Upload parses source and, if it yields a usable report, makes it the
// session's dataset. A failed upload leaves the previous dataset in place.
func (s *Sessions) Upload(ctx context.Context, id, filename string, source io.Reader) (*models.UploadResponse, error) {
	ctx, span := observability.StartSpan(ctx, "sessions.upload")
	defer func() {
		span.Finish()
		s.logger.DebugContext(ctx, "span finished", "span", span)
	}()
	span.SetTag("filename", filename)

	dataset, err := pipeline.Load(source)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("load %s: %w", filename, err)
	}
	span.SetTag("records", strconv.Itoa(dataset.Len()))

	report, err := pipeline.BuildReport(dataset, nil, s.opts)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("report %s: %w", filename, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	s.mu.Lock()
	s.sessions[id] = &session{
		dataset:    dataset,
		filename:   filename,
		uploadedAt: now,
		lastSeen:   now,
	}
	s.mu.Unlock()
	s.uploads.Add(1)

	s.logger.InfoContext(ctx, "dataset uploaded",
		"session_id", id,
		"filename", filename,
		"records", dataset.Len(),
		"columns", dataset.Columns(),
	)

	return &models.UploadResponse{
		Upload: models.UploadSummary{
			Filename:   filename,
			Records:    dataset.Len(),
			Columns:    dataset.Columns(),
			UploadedAt: now,
		},
		Report: report,
	}, nil
}

// Report builds the dashboard for the session's dataset under sel.
func (s *Sessions) Report(id string, sel pipeline.Selection) (*pipeline.Report, error) {
	dataset, err := s.Dataset(id)
	if err != nil {
		return nil, err
	}
	return pipeline.BuildReport(dataset, sel, s.opts)
}

func (s *Sessions) Dataset(id string) (*pipeline.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNoDataset
	}
	sess.lastSeen = s.now()
	return sess.dataset, nil
}

// UploadedAt reports when the session's current dataset was uploaded.
func (s *Sessions) UploadedAt(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return time.Time{}, false
	}
	return sess.uploadedAt, true
}

func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Sessions) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.evicted.Add(int64(removed))
		s.logger.Info("idle sessions evicted", "count", removed)
	}
	return removed
}

// StartJanitor sweeps idle sessions every interval until Close is called.
func (s *Sessions) StartJanitor(interval time.Duration) {
	if !s.janitor.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops the janitor, if running, and releases every dataset.
func (s *Sessions) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	if s.janitor.Load() {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	return nil
}

func (s *Sessions) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := 0
	for _, sess := range s.sessions {
		records += sess.dataset.Len()
	}

	return map[string]any{
		"active_sessions":   len(s.sessions),
		"records_held":      records,
		"uploads_processed": s.uploads.Load(),
		"sessions_evicted":  s.evicted.Load(),
	}
}
