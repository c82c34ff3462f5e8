package learning

import (
	"context"
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/levenlabs/go-lflag"
	"github.com/powercast/powercast/pkg/types"
)

// pointWriter is the subset of api.WriteAPIBlocking used by InfluxSink.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxSink writes forecasts, errors and uploaded series as InfluxDB
// points.
type InfluxSink struct {
	url    string
	token  string
	org    string
	bucket string

	client influxdb2.Client
	writer pointWriter
}

func configuredInflux() *InfluxSink {
	url := lflag.String("influx-url", "http://localhost:8086", "InfluxDB server URL")
	token := lflag.String("influx-token", "", "InfluxDB API token")
	org := lflag.String("influx-org", "powercast", "InfluxDB organization")
	bucket := lflag.String("influx-bucket", "powercast", "InfluxDB bucket")

	in := &InfluxSink{}

	lflag.Do(func() {
		in.url = *url
		in.token = *token
		in.org = *org
		in.bucket = *bucket
	})

	return in
}

func (in *InfluxSink) Validate() error {
	if in.url == "" {
		return errors.New("influx-url is required")
	}
	if in.org == "" || in.bucket == "" {
		return errors.New("influx-org and influx-bucket are required")
	}
	return nil
}

// Connect creates the client and its blocking write API.
func (in *InfluxSink) Connect() {
	in.client = influxdb2.NewClient(in.url, in.token)
	in.writer = in.client.WriteAPIBlocking(in.org, in.bucket)
}

func (in *InfluxSink) Name() string {
	return "influx"
}

// PublishForecast writes one "forecast" point per predicted timestamp.
func (in *InfluxSink) PublishForecast(ctx context.Context, event types.ForecastEvent) error {
	tags := map[string]string{
		"region":      event.RegionCode,
		"forecast_id": event.ForecastID,
		"model":       event.ModelVersion,
	}
	p := event.Predictions
	points := make([]*write.Point, 0, len(p.Timestamps))
	for i, ts := range p.Timestamps {
		fields := map[string]interface{}{}
		if i < len(p.Point) {
			fields["point"] = p.Point[i]
		}
		if i < len(p.Q10) {
			fields["q10"] = p.Q10[i]
		}
		if i < len(p.Q90) {
			fields["q90"] = p.Q90[i]
		}
		if len(fields) == 0 {
			continue
		}
		points = append(points, influxdb2.NewPoint("forecast", tags, fields, ts))
	}
	if len(points) == 0 {
		return nil
	}
	if err := in.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("error writing forecast to InfluxDB: %w", err)
	}
	return nil
}

// PublishError writes a "forecast_error" point.
func (in *InfluxSink) PublishError(ctx context.Context, fe types.ForecastError) error {
	fields := map[string]interface{}{
		"analysis_triggered": fe.AnalysisTriggered,
	}
	for name, v := range map[string]*float64{
		"mape":                   fe.MAPE,
		"mae":                    fe.MAE,
		"peak_error_mw":          fe.PeakErrorMW,
		"ramp_error_mw_per_hour": fe.RampErrorMWPerHour,
		"coverage_pct":           fe.CoveragePct,
	} {
		if v != nil {
			fields[name] = *v
		}
	}
	p := influxdb2.NewPoint(
		"forecast_error",
		map[string]string{
			"region":      fe.RegionCode,
			"forecast_id": fe.ForecastID,
			"error_type":  string(fe.ErrorType),
			"severity":    string(fe.Severity),
		},
		fields,
		fe.ObservedAt,
	)
	if err := in.writer.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("error writing forecast error to InfluxDB: %w", err)
	}
	return nil
}

// PublishSeries writes one "series" point per uploaded row.
func (in *InfluxSink) PublishSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error {
	if len(points) == 0 {
		return nil
	}
	out := make([]*write.Point, 0, len(points))
	for _, sp := range points {
		fields := map[string]interface{}{
			"output_mw":    sp.OutputMW,
			"interpolated": sp.Interpolated,
		}
		for name, v := range map[string]*float64{
			"temperature": sp.Temperature,
			"humidity":    sp.Humidity,
			"wind_speed":  sp.WindSpeed,
			"cloud_cover": sp.CloudCover,
			"irradiance":  sp.Irradiance,
		} {
			if v != nil {
				fields[name] = *v
			}
		}
		tags := map[string]string{
			"region":    sp.RegionCode,
			"upload_id": uploadID,
		}
		if sp.PlantID != nil {
			tags["plant_id"] = *sp.PlantID
		}
		out = append(out, influxdb2.NewPoint("series", tags, fields, sp.Timestamp))
	}
	if err := in.writer.WritePoint(ctx, out...); err != nil {
		return fmt.Errorf("error writing series to InfluxDB: %w", err)
	}
	return nil
}

func (in *InfluxSink) Close() error {
	if in.client != nil {
		in.client.Close()
	}
	return nil
}
