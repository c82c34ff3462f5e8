package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/powercast/powercast/pkg/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// PlantFilter narrows ListPlants. Zero values match everything and a
// non-positive Limit means no limit.
type PlantFilter struct {
	Type   types.PlantType
	Status types.PlantStatus
	Limit  int
	Offset int
}

type SuggestionFilter struct {
	Type     types.SuggestionType
	Priority types.SuggestionPriority
	Status   types.SuggestionStatus
	Limit    int
	Offset   int
}

type UploadFilter struct {
	Status  types.UploadStatus
	PlantID string
	Limit   int
	Offset  int
}

type ErrorFilter struct {
	RegionCode string
	Severity   types.Severity
	// PendingOnly keeps errors that triggered an analysis.
	PendingOnly bool
	Limit       int
}

// Database defines the interface for persisting plants, suggestions,
// uploads and the forecast learning log.
type Database interface {
	// Plants
	// ListPlants returns a page of the user's plants, newest first, and
	// the number of plants matching the filter.
	ListPlants(ctx context.Context, userID string, filter PlantFilter) ([]types.Plant, int, error)
	GetPlant(ctx context.Context, plantID string) (types.Plant, error)
	CreatePlant(ctx context.Context, plant types.Plant) error
	UpdatePlant(ctx context.Context, plant types.Plant) error
	// DeletePlant removes the plant together with its stored forecast.
	DeletePlant(ctx context.Context, plantID string) error
	ReplacePlantForecast(ctx context.Context, plantID string, points []types.PlantForecastPoint) error
	// GetPlantForecast returns up to limit points ordered by timestamp.
	GetPlantForecast(ctx context.Context, plantID string, limit int) ([]types.PlantForecastPoint, error)

	// Suggestions
	ListSuggestions(ctx context.Context, userID string, filter SuggestionFilter) ([]types.Suggestion, int, error)
	GetSuggestion(ctx context.Context, suggestionID string) (types.Suggestion, error)
	InsertSuggestions(ctx context.Context, suggestions []types.Suggestion) error
	UpdateSuggestion(ctx context.Context, suggestion types.Suggestion) error
	DeleteSuggestion(ctx context.Context, suggestionID string) error

	// Uploads
	ListUploads(ctx context.Context, userID string, filter UploadFilter) ([]types.Upload, int, error)
	GetUpload(ctx context.Context, uploadID string) (types.Upload, error)
	CreateUpload(ctx context.Context, upload types.Upload) error
	UpdateUpload(ctx context.Context, upload types.Upload) error
	// DeleteUpload removes the upload together with its series.
	DeleteUpload(ctx context.Context, uploadID string) error
	InsertSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error

	// Learning
	InsertForecastEvent(ctx context.Context, event types.ForecastEvent) error
	GetForecastEvent(ctx context.Context, forecastID string) (types.ForecastEvent, error)
	// ListForecastEvents returns the newest events of a region, or of
	// every region when regionCode is empty.
	ListForecastEvents(ctx context.Context, regionCode string, limit int) ([]types.ForecastEvent, error)
	InsertForecastError(ctx context.Context, forecastError types.ForecastError) error
	ListForecastErrors(ctx context.Context, filter ErrorFilter) ([]types.ForecastError, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "sqlite", "Storage provider to use (available: sqlite, firestore)")

	var p struct{ Database }

	fs := configuredFirestore()
	sq := configuredSQLite()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "sqlite":
			if err := sq.Validate(); err != nil {
				panic(fmt.Sprintf("sqlite validation failed: %v", err))
			}
			p.Database = sq
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
