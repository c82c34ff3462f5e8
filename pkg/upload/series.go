package upload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/powercast/powercast/pkg/types"
)

// DefaultRegion is used when neither the file nor the caller names a region.
const DefaultRegion = "SWISS_GRID"

// Series is the parsed content of a forecast-type CSV file.
type Series struct {
	Columns []string
	Points  []types.SeriesPoint
	// Region is taken from the first non-empty region_code cell, if any.
	Region string
}

func optionalFloat(t table, row []string, column string) (*float64, error) {
	v, ok := t.value(row, column)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", column, v)
	}
	return &f, nil
}

// ParseSeries parses a forecast CSV file into series points. Rows are kept
// in file order.
func ParseSeries(content []byte) (Series, error) {
	t, err := readTable(content)
	if err != nil {
		return Series{}, fmt.Errorf("failed to parse CSV: %w", err)
	}
	s := Series{Columns: t.columns, Points: make([]types.SeriesPoint, 0, len(t.rows))}
	for i, row := range t.rows {
		line := i + 2

		raw, _ := t.value(row, "timestamp")
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return Series{}, fmt.Errorf("row %d: %w", line, err)
		}
		output, err := optionalFloat(t, row, "output_mw")
		if err != nil {
			return Series{}, fmt.Errorf("row %d: %w", line, err)
		}
		if output == nil {
			return Series{}, fmt.Errorf("row %d: missing output_mw", line)
		}

		p := types.SeriesPoint{Timestamp: ts, OutputMW: *output}
		for column, dst := range map[string]**float64{
			"temperature": &p.Temperature,
			"humidity":    &p.Humidity,
			"wind_speed":  &p.WindSpeed,
			"cloud_cover": &p.CloudCover,
			"irradiance":  &p.Irradiance,
		} {
			if *dst, err = optionalFloat(t, row, column); err != nil {
				return Series{}, fmt.Errorf("row %d: %w", line, err)
			}
		}
		if region, ok := t.value(row, "region_code"); ok {
			p.RegionCode = strings.TrimSpace(region)
			if s.Region == "" {
				s.Region = p.RegionCode
			}
		}
		s.Points = append(s.Points, p)
	}
	return s, nil
}

// Assign sets region, upload and plant on every point. Points keep a region
// of their own when the file had one.
func (s *Series) Assign(region, uploadID string, plantID *string) {
	for i := range s.Points {
		if s.Points[i].RegionCode == "" {
			s.Points[i].RegionCode = region
		}
		s.Points[i].UploadID = uploadID
		s.Points[i].PlantID = plantID
	}
}
