package upload

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFile(t *testing.T) {
	assert.NoError(t, CheckFile("data.csv", []byte("a,b\n")))
	assert.NoError(t, CheckFile("DATA.CSV", []byte("a,b\n")))
	assert.ErrorIs(t, CheckFile("data.xlsx", []byte("a,b\n")), ErrNotCSV)
	assert.ErrorIs(t, CheckFile("data.csv", []byte{0xff, 0xfe, 0x00}), ErrNotUTF8)
}

func TestSizeLabel(t *testing.T) {
	assert.Equal(t, "0 B", SizeLabel(-1))
	assert.Equal(t, "12 kB", SizeLabel(12000))
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 1, 2, 3, 15, 0, 0, time.UTC)
	for _, s := range []string{
		"2025-01-02T03:15:00Z",
		"2025-01-02T03:15:00+00:00",
		"2025-01-02T04:15:00+01:00",
		"2025-01-02T03:15:00",
		"2025-01-02 03:15:00",
		"2025-01-02T03:15",
	} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}
	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestDetectDataType(t *testing.T) {
	assert.Equal(t, DataForecast, DetectDataType([]string{"timestamp", "output_mw", "temperature"}))
	assert.Equal(t, DataWeather, DetectDataType([]string{"timestamp", "temperature"}))
	assert.Equal(t, DataPlant, DetectDataType([]string{"name", "type", "capacity_mw"}))
	assert.Equal(t, DataUnknown, DetectDataType([]string{"foo"}))
}

func TestValidate(t *testing.T) {
	t.Run("Forecast", func(t *testing.T) {
		res := Validate([]byte(" Timestamp ,OUTPUT_MW,temperature\n2025-01-01T00:00:00Z,100,5\n2025-01-01T00:15:00Z,110,\n"))
		assert.True(t, res.Valid, res.Errors)
		assert.Equal(t, DataForecast, res.DataType)
		assert.Equal(t, []string{"timestamp", "output_mw", "temperature"}, res.Columns)
		assert.Equal(t, 2, res.RowsCount)
		require.Len(t, res.SampleData, 2)
		assert.Equal(t, "110", res.SampleData[1]["output_mw"])
		assert.Equal(t, []string{"Optional columns not found: humidity, wind_speed, cloud_cover, irradiance"}, res.Warnings)
	})

	t.Run("Empty", func(t *testing.T) {
		res := Validate(nil)
		assert.False(t, res.Valid)
		assert.Equal(t, []string{"No columns found in CSV file"}, res.Errors)
	})

	t.Run("NoRows", func(t *testing.T) {
		res := Validate([]byte("timestamp,output_mw\n"))
		assert.False(t, res.Valid)
		assert.Contains(t, res.Errors, "No data rows found in CSV file")
	})

	t.Run("UnknownType", func(t *testing.T) {
		res := Validate([]byte("a,b\n1,2\n"))
		assert.False(t, res.Valid)
		assert.Equal(t, DataUnknown, res.DataType)
		assert.Len(t, res.Errors, 1)
	})

	t.Run("MissingRequired", func(t *testing.T) {
		res := Validate([]byte("name,capacity_mw\nA,5\n"))
		assert.False(t, res.Valid)
		assert.Equal(t, DataPlant, res.DataType)
		assert.Contains(t, res.Errors, "Missing required column: type")
	})

	t.Run("RowErrorsCapped", func(t *testing.T) {
		var b strings.Builder
		b.WriteString("timestamp,output_mw\n")
		for i := range 5 {
			fmt.Fprintf(&b, "bad%d,x\n", i)
		}
		res := Validate([]byte(b.String()))
		assert.False(t, res.Valid)
		assert.Len(t, res.Errors, 3)
		assert.Equal(t, "Row 2: Invalid timestamp format 'bad0'", res.Errors[0])
		assert.Equal(t, "Row 2: Invalid numeric value for output_mw: 'x'", res.Errors[1])
		assert.Contains(t, res.Warnings, "... and 7 more validation errors")
		assert.Len(t, res.SampleData, 5)
	})
}

func TestParseSeries(t *testing.T) {
	s, err := ParseSeries([]byte("timestamp,output_mw,humidity,region_code\n2025-01-01T00:00:00Z,100,50,NORTH\n2025-01-01T00:15:00Z,110,,\n"))
	require.NoError(t, err)
	assert.Equal(t, "NORTH", s.Region)
	require.Len(t, s.Points, 2)
	require.NotNil(t, s.Points[0].Humidity)
	assert.Equal(t, 50.0, *s.Points[0].Humidity)
	assert.Nil(t, s.Points[1].Humidity)
	assert.Nil(t, s.Points[0].Temperature)

	plant := "p1"
	s.Assign("SWISS_GRID", "up1", &plant)
	assert.Equal(t, "NORTH", s.Points[0].RegionCode)
	assert.Equal(t, "SWISS_GRID", s.Points[1].RegionCode)
	assert.Equal(t, "up1", s.Points[1].UploadID)
	assert.Equal(t, &plant, s.Points[1].PlantID)

	_, err = ParseSeries([]byte("timestamp,output_mw\n2025-01-01T00:00:00Z,\n"))
	assert.ErrorContains(t, err, "row 2")
}
