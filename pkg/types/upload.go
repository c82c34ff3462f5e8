package types

import "time"

type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)

func (s UploadStatus) Valid() bool {
	switch s {
	case UploadProcessing, UploadCompleted, UploadFailed:
		return true
	}
	return false
}

// Upload records a CSV file submitted by a user.
type Upload struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	PlantID      *string        `json:"plant_id"`
	Filename     string         `json:"filename"`
	FileSize     int64          `json:"file_size"`
	RowsCount    int            `json:"rows_count"`
	Status       UploadStatus   `json:"status"`
	ErrorMessage *string        `json:"error_message"`
	Metadata     map[string]any `json:"metadata"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	ProcessedAt  *time.Time     `json:"processed_at"`
}

// SeriesPoint is one row of an uploaded output time series.
type SeriesPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	OutputMW    float64   `json:"output_mw"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	WindSpeed   *float64  `json:"wind_speed,omitempty"`
	CloudCover  *float64  `json:"cloud_cover,omitempty"`
	Irradiance  *float64  `json:"irradiance,omitempty"`
	RegionCode  string    `json:"region_code"`
	UploadID    string    `json:"upload_id"`
	PlantID     *string   `json:"plant_id,omitempty"`
	// Interpolated is set on rows filled in by the sanitizer.
	Interpolated bool `json:"interpolated,omitempty"`
}
