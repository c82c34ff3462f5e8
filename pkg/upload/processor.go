package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

// SeriesPublisher receives every stored series.
type SeriesPublisher interface {
	PublishSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error
}

// ValidationError is returned by Process when the file fails validation.
type ValidationError struct {
	Result Result
}

func (e *ValidationError) Error() string {
	return "Validation failed"
}

// QualityError is returned by Process when a series has gaps too large to
// interpolate.
type QualityError struct {
	Quality Quality
}

func (e *QualityError) Error() string {
	return e.Quality.Message
}

// File is an uploaded CSV file and its form fields.
type File struct {
	Name    string
	Content []byte
	PlantID *string
	// Region is used when the file has no region_code column.
	Region string
}

// Processor validates uploads, stores the upload record and the sanitized
// series, and publishes the series.
type Processor struct {
	db        storage.Database
	publisher SeriesPublisher
	sanitizer Sanitizer
	now       func() time.Time
}

// NewProcessor returns a Processor. publisher may be nil.
func NewProcessor(db storage.Database, publisher SeriesPublisher) *Processor {
	return &Processor{
		db:        db,
		publisher: publisher,
		sanitizer: NewSanitizer(),
		now:       time.Now,
	}
}

// Process runs the whole upload pipeline for userID. Files that are not
// forecast data are recorded without storing a series.
func (p *Processor) Process(ctx context.Context, userID string, f File) (types.Upload, error) {
	if err := CheckFile(f.Name, f.Content); err != nil {
		return types.Upload{}, err
	}
	res := Validate(f.Content)
	if !res.Valid {
		return types.Upload{}, &ValidationError{Result: res}
	}

	region := f.Region
	if region == "" {
		region = DefaultRegion
	}

	var series Series
	var quality Quality
	if res.DataType == DataForecast {
		parsed, err := ParseSeries(f.Content)
		if err != nil {
			return types.Upload{}, &ValidationError{Result: Result{Columns: res.Columns, DataType: res.DataType, Errors: []string{err.Error()}}}
		}
		if parsed.Region != "" {
			region = parsed.Region
			log.Ctx(ctx).DebugContext(ctx, "detected region from csv", slog.String("region", region))
		}
		series, quality = p.sanitizer.Sanitize(parsed)
		if !quality.Valid {
			return types.Upload{}, &QualityError{Quality: quality}
		}
	}

	now := p.now().UTC()
	up := types.Upload{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlantID:   f.PlantID,
		Filename:  f.Name,
		FileSize:  int64(len(f.Content)),
		RowsCount: res.RowsCount,
		Status:    types.UploadProcessing,
		Metadata: map[string]any{
			"columns":           res.Columns,
			"data_type":         res.DataType,
			"region_code":       region,
			"gaps_filled":       quality.MissingIntervals > 0,
			"interpolated_rows": quality.MissingIntervals,
			"size":              SizeLabel(int64(len(f.Content))),
		},
		UploadedAt: now,
	}
	if res.DataType == DataForecast {
		up.RowsCount = len(series.Points)
	}
	if err := p.db.CreateUpload(ctx, up); err != nil {
		return types.Upload{}, fmt.Errorf("failed to create upload record: %w", err)
	}

	series.Assign(region, up.ID, f.PlantID)
	if len(series.Points) > 0 {
		if err := p.db.InsertSeries(ctx, up.ID, series.Points); err != nil {
			msg := err.Error()
			up.Status = types.UploadFailed
			up.ErrorMessage = &msg
			if uerr := p.db.UpdateUpload(ctx, up); uerr != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to mark upload failed", slog.String("uploadID", up.ID), slog.Any("error", uerr))
			}
			return up, fmt.Errorf("failed to store series: %w", err)
		}
	}

	processed := p.now().UTC()
	up.Status = types.UploadCompleted
	up.ProcessedAt = &processed
	up.Metadata["rows_stored"] = len(series.Points)
	if err := p.db.UpdateUpload(ctx, up); err != nil {
		return up, fmt.Errorf("failed to complete upload: %w", err)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"stored upload",
		slog.String("uploadID", up.ID),
		slog.String("region", region),
		slog.Int("rows", len(series.Points)),
		slog.Int("interpolated", quality.MissingIntervals),
	)

	if p.publisher != nil && len(series.Points) > 0 {
		if err := p.publisher.PublishSeries(ctx, up.ID, series.Points); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish series", slog.String("uploadID", up.ID), slog.Any("error", err))
		}
	}
	return up, nil
}
