package upload

import (
	"testing"
	"time"

	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sanitizerStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func seriesAt(minutes ...int) Series {
	s := Series{Columns: []string{"timestamp", "output_mw", "temperature", "humidity", "cloud_cover", "wind_speed", "region_code"}}
	for _, m := range minutes {
		temp := float64(m)
		s.Points = append(s.Points, types.SeriesPoint{
			Timestamp:   sanitizerStart.Add(time.Duration(m) * time.Minute),
			OutputMW:    float64(m) * 10,
			Temperature: &temp,
			RegionCode:  "SWISS_GRID",
		})
	}
	return s
}

func TestSanitizerCheck(t *testing.T) {
	sz := NewSanitizer()

	t.Run("Clean", func(t *testing.T) {
		q := sz.Check(seriesAt(0, 15, 30, 45))
		assert.True(t, q.Valid)
		assert.Equal(t, StatusClean, q.Status)
		assert.Equal(t, 100.0, q.Completeness)
		assert.Empty(t, q.Gaps)
		assert.Empty(t, q.Warnings)
	})

	t.Run("MinorGaps", func(t *testing.T) {
		// 30 minutes missing after 15, unordered input
		q := sz.Check(seriesAt(60, 0, 15, 75))
		assert.True(t, q.Valid)
		assert.Equal(t, StatusMinorGaps, q.Status)
		assert.Equal(t, 2, q.MissingIntervals)
		assert.Equal(t, 45, q.MaxGapMinutes)
		assert.Equal(t, 66.67, q.Completeness)
		require.Len(t, q.Gaps, 1)
		assert.Equal(t, sanitizerStart.Add(15*time.Minute), q.Gaps[0].Start)
		assert.Equal(t, 2, q.Gaps[0].IntervalsMissing)
		assert.Equal(t, "Minor data gaps detected and safely interpolated. 2 intervals filled.", q.Message)
	})

	t.Run("MajorGaps", func(t *testing.T) {
		q := sz.Check(seriesAt(0, 15, 105))
		assert.False(t, q.Valid)
		assert.Equal(t, StatusMajorGaps, q.Status)
		assert.Equal(t, 90, q.MaxGapMinutes)
		assert.Equal(t, 5, q.MissingIntervals)
		assert.Equal(t, "Data gaps exceed safe interpolation limit (60 min). Maximum gap: 90 min.", q.Message)
	})

	t.Run("Duplicates", func(t *testing.T) {
		q := sz.Check(seriesAt(0, 15, 15, 30))
		assert.Equal(t, StatusClean, q.Status)
		assert.Equal(t, 3, q.TotalRecords)
		assert.Equal(t, []string{"Dropped 1 rows with duplicate timestamps"}, q.Warnings)
	})

	t.Run("MissingColumns", func(t *testing.T) {
		s := seriesAt(0, 15)
		s.Columns = []string{"timestamp", "temperature"}
		q := sz.Check(s)
		assert.False(t, q.Valid)
		assert.Equal(t, StatusInvalid, q.Status)
	})

	t.Run("OptionalColumns", func(t *testing.T) {
		s := seriesAt(0, 15)
		s.Columns = []string{"timestamp", "output_mw", "humidity"}
		q := sz.Check(s)
		assert.True(t, q.Valid)
		assert.Len(t, q.Warnings, 4)
		assert.Equal(t, "Optional column 'temperature' not found", q.Warnings[0])
	})
}

func TestSanitizerSanitize(t *testing.T) {
	sz := NewSanitizer()

	t.Run("Interpolates", func(t *testing.T) {
		in := seriesAt(0, 15, 60, 75)
		in.Points[2].Humidity = new(float64)
		out, q := sz.Sanitize(in)
		require.True(t, q.Valid)
		require.Len(t, out.Points, 6)

		filled := out.Points[2]
		assert.Equal(t, sanitizerStart.Add(30*time.Minute), filled.Timestamp)
		assert.True(t, filled.Interpolated)
		assert.InDelta(t, 300, filled.OutputMW, 1e-9)
		require.NotNil(t, filled.Temperature)
		assert.InDelta(t, 30, *filled.Temperature, 1e-9)
		// humidity is only known on one side
		assert.Nil(t, filled.Humidity)
		assert.Equal(t, "SWISS_GRID", filled.RegionCode)

		assert.InDelta(t, 450, out.Points[3].OutputMW, 1e-9)
		assert.False(t, out.Points[4].Interpolated)

		for i := 1; i < len(out.Points); i++ {
			assert.Equal(t, 15*time.Minute, out.Points[i].Timestamp.Sub(out.Points[i-1].Timestamp))
		}
	})

	t.Run("InvalidUnchanged", func(t *testing.T) {
		in := seriesAt(30, 0, 300)
		out, q := sz.Sanitize(in)
		assert.False(t, q.Valid)
		assert.Equal(t, in, out)
	})

	t.Run("CleanSorted", func(t *testing.T) {
		out, q := sz.Sanitize(seriesAt(15, 0))
		assert.Equal(t, StatusClean, q.Status)
		assert.Equal(t, sanitizerStart, out.Points[0].Timestamp)
	})
}
