package learning

import (
	"context"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

// System groups the forecast logger, the error observer and their sinks.
type System struct {
	Logger   *Logger
	Observer *Observer
	Sinks    Sinks
}

// NewSystem wires a Logger and an Observer on the same storage and sinks.
func NewSystem(db storage.Database, sinks Sinks) *System {
	return &System{
		Logger:   NewLogger(db, sinks),
		Observer: NewObserver(db, sinks),
		Sinks:    sinks,
	}
}

// Configured registers the sink flags and returns a System on db. Sinks
// are attached once flags are parsed.
func Configured(db storage.Database) *System {
	sinks := ConfiguredSinks()

	s := NewSystem(db, nil)

	lflag.Do(func() {
		s.Sinks = *sinks
		s.Logger.sinks = *sinks
		s.Observer.sinks = *sinks
	})

	return s
}

// Evaluate analyzes the logged forecast forecastID against actuals.
func (s *System) Evaluate(ctx context.Context, forecastID string, actuals []float64) ([]types.ForecastError, error) {
	event, err := s.Logger.Get(ctx, forecastID)
	if err != nil {
		return nil, err
	}
	return s.Observer.Analyze(ctx, event, actuals)
}

// PublishSeries forwards uploaded series to the sinks that accept them.
func (s *System) PublishSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error {
	return s.Sinks.PublishSeries(ctx, uploadID, points)
}

type SinkHealth struct {
	Status  string   `json:"status"`
	Enabled []string `json:"enabled"`
}

type Health struct {
	Status     string        `json:"status"`
	Components HealthDetails `json:"components"`
	Timestamp  time.Time     `json:"timestamp"`
}

type HealthDetails struct {
	ForecastLogger LoggerHealth   `json:"forecast_logger"`
	ErrorObserver  ObserverHealth `json:"error_observer"`
	Sinks          SinkHealth     `json:"sinks"`
}

// Health reports "healthy" only when every component is.
func (s *System) Health() Health {
	h := Health{
		Status: "healthy",
		Components: HealthDetails{
			ForecastLogger: s.Logger.Health(),
			ErrorObserver:  s.Observer.Health(),
			Sinks:          SinkHealth{Status: "healthy", Enabled: s.Sinks.Names()},
		},
		Timestamp: time.Now().UTC(),
	}
	if h.Components.ForecastLogger.Status != "healthy" || h.Components.ErrorObserver.Status != "healthy" {
		h.Status = "degraded"
	}
	return h
}
