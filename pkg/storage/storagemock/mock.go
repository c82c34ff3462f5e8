package storagemock

import (
	"context"

	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) ListPlants(ctx context.Context, userID string, filter storage.PlantFilter) ([]types.Plant, int, error) {
	args := m.Called(ctx, userID, filter)
	if len(args) > 0 {
		return args.Get(0).([]types.Plant), args.Int(1), args.Error(2)
	}
	return nil, 0, nil
}

func (m *MockDatabase) GetPlant(ctx context.Context, plantID string) (types.Plant, error) {
	args := m.Called(ctx, plantID)
	if len(args) > 0 {
		return args.Get(0).(types.Plant), args.Error(1)
	}
	return types.Plant{}, nil
}

func (m *MockDatabase) CreatePlant(ctx context.Context, plant types.Plant) error {
	args := m.Called(ctx, plant)
	return args.Error(0)
}

func (m *MockDatabase) UpdatePlant(ctx context.Context, plant types.Plant) error {
	args := m.Called(ctx, plant)
	return args.Error(0)
}

func (m *MockDatabase) DeletePlant(ctx context.Context, plantID string) error {
	args := m.Called(ctx, plantID)
	return args.Error(0)
}

func (m *MockDatabase) ReplacePlantForecast(ctx context.Context, plantID string, points []types.PlantForecastPoint) error {
	args := m.Called(ctx, plantID, points)
	return args.Error(0)
}

func (m *MockDatabase) GetPlantForecast(ctx context.Context, plantID string, limit int) ([]types.PlantForecastPoint, error) {
	args := m.Called(ctx, plantID, limit)
	if len(args) > 0 {
		return args.Get(0).([]types.PlantForecastPoint), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) ListSuggestions(ctx context.Context, userID string, filter storage.SuggestionFilter) ([]types.Suggestion, int, error) {
	args := m.Called(ctx, userID, filter)
	if len(args) > 0 {
		return args.Get(0).([]types.Suggestion), args.Int(1), args.Error(2)
	}
	return nil, 0, nil
}

func (m *MockDatabase) GetSuggestion(ctx context.Context, suggestionID string) (types.Suggestion, error) {
	args := m.Called(ctx, suggestionID)
	if len(args) > 0 {
		return args.Get(0).(types.Suggestion), args.Error(1)
	}
	return types.Suggestion{}, nil
}

func (m *MockDatabase) InsertSuggestions(ctx context.Context, suggestions []types.Suggestion) error {
	args := m.Called(ctx, suggestions)
	return args.Error(0)
}

func (m *MockDatabase) UpdateSuggestion(ctx context.Context, suggestion types.Suggestion) error {
	args := m.Called(ctx, suggestion)
	return args.Error(0)
}

func (m *MockDatabase) DeleteSuggestion(ctx context.Context, suggestionID string) error {
	args := m.Called(ctx, suggestionID)
	return args.Error(0)
}

func (m *MockDatabase) ListUploads(ctx context.Context, userID string, filter storage.UploadFilter) ([]types.Upload, int, error) {
	args := m.Called(ctx, userID, filter)
	if len(args) > 0 {
		return args.Get(0).([]types.Upload), args.Int(1), args.Error(2)
	}
	return nil, 0, nil
}

func (m *MockDatabase) GetUpload(ctx context.Context, uploadID string) (types.Upload, error) {
	args := m.Called(ctx, uploadID)
	if len(args) > 0 {
		return args.Get(0).(types.Upload), args.Error(1)
	}
	return types.Upload{}, nil
}

func (m *MockDatabase) CreateUpload(ctx context.Context, upload types.Upload) error {
	args := m.Called(ctx, upload)
	return args.Error(0)
}

func (m *MockDatabase) UpdateUpload(ctx context.Context, upload types.Upload) error {
	args := m.Called(ctx, upload)
	return args.Error(0)
}

func (m *MockDatabase) DeleteUpload(ctx context.Context, uploadID string) error {
	args := m.Called(ctx, uploadID)
	return args.Error(0)
}

func (m *MockDatabase) InsertSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error {
	args := m.Called(ctx, uploadID, points)
	return args.Error(0)
}

func (m *MockDatabase) InsertForecastEvent(ctx context.Context, event types.ForecastEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockDatabase) GetForecastEvent(ctx context.Context, forecastID string) (types.ForecastEvent, error) {
	args := m.Called(ctx, forecastID)
	if len(args) > 0 {
		return args.Get(0).(types.ForecastEvent), args.Error(1)
	}
	return types.ForecastEvent{}, nil
}

func (m *MockDatabase) ListForecastEvents(ctx context.Context, regionCode string, limit int) ([]types.ForecastEvent, error) {
	args := m.Called(ctx, regionCode, limit)
	if len(args) > 0 {
		return args.Get(0).([]types.ForecastEvent), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) InsertForecastError(ctx context.Context, forecastError types.ForecastError) error {
	args := m.Called(ctx, forecastError)
	return args.Error(0)
}

func (m *MockDatabase) ListForecastErrors(ctx context.Context, filter storage.ErrorFilter) ([]types.ForecastError, error) {
	args := m.Called(ctx, filter)
	if len(args) > 0 {
		return args.Get(0).([]types.ForecastError), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	if len(args) > 0 {
		return args.Error(0)
	}
	return nil
}
