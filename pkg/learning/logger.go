package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

const (
	maxFallbackEvents = 1000
	DefaultRecent     = 10
	MaxRecent         = 50
)

// LogRequest describes a forecast to record.
type LogRequest struct {
	RegionCode    string
	ModelVersion  string
	ForecastStart time.Time
	HorizonHours  int
	Predictions   types.Predictions
	InputFeatures map[string]any
	Metadata      map[string]any
}

// Logger records every generated forecast. Events that cannot be stored
// are kept in a bounded in-memory buffer until Flush succeeds; FlushEvery
// retries it periodically.
type Logger struct {
	db    storage.Database
	sinks Sinks
	now   func() time.Time

	mu       sync.Mutex
	fallback []types.ForecastEvent
}

// NewLogger returns a Logger persisting to db and publishing to sinks. db
// may be nil, in which case only the fallback buffer is used.
func NewLogger(db storage.Database, sinks Sinks) *Logger {
	return &Logger{db: db, sinks: sinks, now: time.Now}
}

func newForecastID(region string, now time.Time) string {
	return fmt.Sprintf("fc_%s_%s_%s", region, now.UTC().Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Log records the forecast and returns the stored event. Storage failures
// are not returned; the event is buffered instead.
func (l *Logger) Log(ctx context.Context, req LogRequest) (types.ForecastEvent, error) {
	if req.RegionCode == "" {
		req.RegionCode = types.DefaultRegionCode
	}
	if req.ModelVersion == "" {
		req.ModelVersion = types.DefaultModelVersion
	}
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}
	now := l.now().UTC()
	event := types.ForecastEvent{
		ForecastID:    newForecastID(req.RegionCode, now),
		RegionCode:    req.RegionCode,
		ModelVersion:  req.ModelVersion,
		ForecastStart: req.ForecastStart,
		HorizonHours:  req.HorizonHours,
		Predictions:   req.Predictions,
		InputFeatures: req.InputFeatures,
		Metadata:      req.Metadata,
		CreatedAt:     now,
	}

	ctx = log.WithAttrs(ctx, slog.String("forecastID", event.ForecastID))
	if l.db == nil {
		l.buffer(ctx, event)
	} else if err := l.db.InsertForecastEvent(ctx, event); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to store forecast event, buffering", slog.Any("error", err))
		l.buffer(ctx, event)
	} else {
		log.Ctx(ctx).DebugContext(ctx, "logged forecast event")
	}

	if err := l.sinks.PublishForecast(ctx, event); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to publish forecast event", slog.Any("error", err))
	}
	return event, nil
}

func (l *Logger) buffer(ctx context.Context, event types.ForecastEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fallback = append(l.fallback, event)
	if n := len(l.fallback); n > maxFallbackEvents {
		l.fallback = append([]types.ForecastEvent(nil), l.fallback[n-maxFallbackEvents:]...)
	}
	log.Ctx(ctx).InfoContext(ctx, "buffered forecast event", slog.String("regionCode", event.RegionCode))
}

// ClampRecent bounds a requested number of recent events.
func ClampRecent(limit int) int {
	if limit <= 0 {
		return DefaultRecent
	}
	return min(limit, MaxRecent)
}

// Recent returns the newest events of a region, merging stored and buffered
// events. An empty region returns every region.
func (l *Logger) Recent(ctx context.Context, region string, limit int) ([]types.ForecastEvent, error) {
	limit = ClampRecent(limit)

	var events []types.ForecastEvent
	if l.db != nil {
		stored, err := l.db.ListForecastEvents(ctx, region, limit)
		if err != nil {
			return nil, fmt.Errorf("listing forecast events: %w", err)
		}
		events = stored
	}

	l.mu.Lock()
	for i := len(l.fallback) - 1; i >= 0; i-- {
		if region == "" || l.fallback[i].RegionCode == region {
			events = append(events, l.fallback[i])
		}
	}
	l.mu.Unlock()

	sortNewestFirst(events)
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func sortNewestFirst(events []types.ForecastEvent) {
	slices.SortStableFunc(events, func(a, b types.ForecastEvent) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// Get returns an event by id from storage or the fallback buffer.
func (l *Logger) Get(ctx context.Context, forecastID string) (types.ForecastEvent, error) {
	l.mu.Lock()
	for _, e := range l.fallback {
		if e.ForecastID == forecastID {
			l.mu.Unlock()
			return e, nil
		}
	}
	l.mu.Unlock()

	if l.db == nil {
		return types.ForecastEvent{}, fmt.Errorf("forecast %s: %w", forecastID, storage.ErrNotFound)
	}
	return l.db.GetForecastEvent(ctx, forecastID)
}

// Flush retries storing buffered events and returns how many were stored.
func (l *Logger) Flush(ctx context.Context) (int, error) {
	if l.db == nil {
		return 0, nil
	}
	l.mu.Lock()
	pending := l.fallback
	l.fallback = nil
	l.mu.Unlock()

	var remaining []types.ForecastEvent
	var errs []error
	for _, e := range pending {
		if err := l.db.InsertForecastEvent(ctx, e); err != nil {
			remaining = append(remaining, e)
			errs = append(errs, err)
		}
	}

	l.mu.Lock()
	l.fallback = append(remaining, l.fallback...)
	l.mu.Unlock()

	flushed := len(pending) - len(remaining)
	if flushed > 0 {
		log.Ctx(ctx).InfoContext(ctx, "flushed buffered forecast events", slog.Int("count", flushed))
	}
	return flushed, errors.Join(errs...)
}

// FlushEvery calls Flush every interval until ctx is canceled.
func (l *Logger) FlushEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Flush(ctx); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "failed to flush buffered forecast events", slog.Any("error", err))
			}
		}
	}
}

// LoggerHealth describes the state of the Logger.
type LoggerHealth struct {
	Status            string `json:"status"`
	DatabaseConnected bool   `json:"database_connected"`
	FallbackLogCount  int    `json:"fallback_log_count"`
}

func (l *Logger) Health() LoggerHealth {
	l.mu.Lock()
	n := len(l.fallback)
	l.mu.Unlock()

	h := LoggerHealth{
		Status:            "healthy",
		DatabaseConnected: l.db != nil,
		FallbackLogCount:  n,
	}
	if l.db == nil || n > 0 {
		h.Status = "degraded"
	}
	return h
}
