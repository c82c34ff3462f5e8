package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/powercast/powercast/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Sink receives forecast events and detected errors.
type Sink interface {
	Name() string
	PublishForecast(ctx context.Context, event types.ForecastEvent) error
	PublishError(ctx context.Context, fe types.ForecastError) error
	Close() error
}

// SeriesSink is implemented by sinks that also accept uploaded series.
type SeriesSink interface {
	PublishSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error
}

// Sinks fans out to every sink concurrently.
type Sinks []Sink

func (s Sinks) each(fn func(Sink) error) error {
	var g errgroup.Group
	errs := make([]error, len(s))
	for i, sink := range s {
		g.Go(func() error {
			if err := fn(sink); err != nil {
				errs[i] = fmt.Errorf("%s: %w", sink.Name(), err)
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (s Sinks) PublishForecast(ctx context.Context, event types.ForecastEvent) error {
	return s.each(func(sink Sink) error { return sink.PublishForecast(ctx, event) })
}

func (s Sinks) PublishError(ctx context.Context, fe types.ForecastError) error {
	return s.each(func(sink Sink) error { return sink.PublishError(ctx, fe) })
}

// PublishSeries sends points to every sink implementing SeriesSink.
func (s Sinks) PublishSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error {
	return s.each(func(sink Sink) error {
		ss, ok := sink.(SeriesSink)
		if !ok {
			return nil
		}
		return ss.PublishSeries(ctx, uploadID, points)
	})
}

func (s Sinks) Names() []string {
	names := make([]string, len(s))
	for i, sink := range s {
		names[i] = sink.Name()
	}
	return names
}

func (s Sinks) Close() error {
	var errs []error
	for _, sink := range s {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ConfiguredSinks registers the sink flags and returns the sinks enabled by
// --event-sinks. The returned pointer is filled once flags are parsed.
func ConfiguredSinks() *Sinks {
	enabled := lflag.String("event-sinks", "", "Comma separated list of event sinks to publish to (available: mqtt, influx)")

	mq := configuredMQTT()
	in := configuredInflux()

	sinks := &Sinks{}

	lflag.Do(func() {
		if *enabled == "" {
			return
		}
		for _, name := range strings.Split(*enabled, ",") {
			switch strings.TrimSpace(name) {
			case "mqtt":
				if err := mq.Validate(); err != nil {
					panic(fmt.Sprintf("mqtt validation failed: %v", err))
				}
				if err := mq.Connect(); err != nil {
					panic(fmt.Sprintf("mqtt connect failed: %v", err))
				}
				*sinks = append(*sinks, mq)
			case "influx":
				if err := in.Validate(); err != nil {
					panic(fmt.Sprintf("influx validation failed: %v", err))
				}
				in.Connect()
				*sinks = append(*sinks, in)
			default:
				panic(fmt.Sprintf("unknown event sink: %s", name))
			}
		}
	})

	return sinks
}
