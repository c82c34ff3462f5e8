package upload

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
)

var (
	ErrNotCSV  = errors.New("Only CSV files are supported")
	ErrNotUTF8 = errors.New("File must be UTF-8 encoded")
)

// DataType is the kind of data a CSV file holds, detected from its columns.
type DataType string

const (
	DataForecast DataType = "forecast"
	DataWeather  DataType = "weather"
	DataPlant    DataType = "plant"
	DataUnknown  DataType = "unknown"
)

var requiredColumns = map[DataType][]string{
	DataForecast: {"timestamp", "output_mw"},
	DataWeather:  {"timestamp", "temperature"},
	DataPlant:    {"name", "type", "capacity_mw"},
}

var optionalColumns = map[DataType][]string{
	DataForecast: {"temperature", "humidity", "wind_speed", "cloud_cover", "irradiance"},
	DataWeather:  {"humidity", "wind_speed", "cloud_cover", "pressure"},
	DataPlant:    {"location", "status", "efficiency_pct"},
}

var numericColumns = []string{"output_mw", "capacity_mw", "temperature"}

const (
	maxListedRowErrors = 3
	sampleRows         = 5
)

// Result is the outcome of validating a CSV file.
type Result struct {
	Valid      bool                `json:"valid"`
	RowsCount  int                 `json:"rows_count"`
	Columns    []string            `json:"columns"`
	DataType   DataType            `json:"data_type"`
	Errors     []string            `json:"errors"`
	Warnings   []string            `json:"warnings"`
	SampleData []map[string]string `json:"sample_data"`
}

// CheckFile rejects anything that is not a UTF-8 .csv file.
func CheckFile(filename string, content []byte) error {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return ErrNotCSV
	}
	if !utf8.Valid(content) {
		return ErrNotUTF8
	}
	return nil
}

// SizeLabel formats a file size for humans, e.g. "12 kB".
func SizeLabel(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.Bytes(uint64(size))
}

// DetectDataType guesses the data type from normalized column names.
func DetectDataType(columns []string) DataType {
	switch {
	case lo.Contains(columns, "output_mw"):
		return DataForecast
	case lo.Contains(columns, "temperature"):
		return DataWeather
	case lo.Contains(columns, "capacity_mw"):
		return DataPlant
	}
	return DataUnknown
}

func normalizeColumn(c string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
}

// ParseTimestamp accepts the ISO 8601 forms produced by common tooling,
// with or without a zone. Timestamps without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %q", s)
}

// table is a parsed CSV file with normalized column names.
type table struct {
	columns []string
	rows    [][]string
}

func (t table) value(row []string, column string) (string, bool) {
	i := lo.IndexOf(t.columns, column)
	if i < 0 || i >= len(row) {
		return "", false
	}
	return row[i], true
}

func (t table) record(row []string) map[string]string {
	out := make(map[string]string, len(t.columns))
	for i, c := range t.columns {
		if i < len(row) {
			out[c] = row[i]
		} else {
			out[c] = ""
		}
	}
	return out
}

func readTable(content []byte) (table, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return table{}, nil
	}
	if err != nil {
		return table{}, err
	}
	t := table{columns: lo.Map(header, func(c string, _ int) string { return normalizeColumn(c) })}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table{}, err
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// Validate checks content column by column and row by row. Only the first
// three row errors are listed.
func Validate(content []byte) Result {
	res := Result{
		Columns:    []string{},
		Errors:     []string{},
		Warnings:   []string{},
		SampleData: []map[string]string{},
	}

	t, err := readTable(content)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("Failed to parse CSV: %v", err))
		return res
	}
	if len(t.columns) == 0 {
		res.DataType = DataUnknown
		res.Errors = append(res.Errors, "No columns found in CSV file")
		return res
	}
	res.Columns = t.columns

	res.DataType = DetectDataType(t.columns)
	if res.DataType == DataUnknown {
		res.Errors = append(res.Errors, "Could not determine data type from columns. Expected: timestamp, output_mw for forecast data")
	}
	for _, col := range requiredColumns[res.DataType] {
		if !lo.Contains(t.columns, col) {
			res.Errors = append(res.Errors, "Missing required column: "+col)
		}
	}

	var rowErrors int
	rowError := func(msg string) {
		rowErrors++
		if rowErrors <= maxListedRowErrors {
			res.Errors = append(res.Errors, msg)
		}
	}
	for i, row := range t.rows {
		if i < sampleRows {
			res.SampleData = append(res.SampleData, t.record(row))
		}
		line := i + 2
		if ts, ok := t.value(row, "timestamp"); ok {
			if _, err := ParseTimestamp(ts); err != nil {
				rowError(fmt.Sprintf("Row %d: Invalid timestamp format '%s'", line, ts))
			}
		}
		for _, field := range numericColumns {
			v, ok := t.value(row, field)
			if !ok || v == "" {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				rowError(fmt.Sprintf("Row %d: Invalid numeric value for %s: '%s'", line, field, v))
			}
		}
	}
	if rowErrors > maxListedRowErrors {
		res.Warnings = append(res.Warnings, fmt.Sprintf("... and %d more validation errors", rowErrors-maxListedRowErrors))
	}

	res.RowsCount = len(t.rows)
	if res.RowsCount == 0 {
		res.Errors = append(res.Errors, "No data rows found in CSV file")
	}

	if missing := lo.Without(optionalColumns[res.DataType], t.columns...); len(missing) > 0 {
		res.Warnings = append(res.Warnings, "Optional columns not found: "+strings.Join(missing, ", "))
	}

	res.Valid = len(res.Errors) == 0
	return res
}
