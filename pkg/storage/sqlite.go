package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/powercast/powercast/pkg/types"
	_ "modernc.org/sqlite"
)

// tsLayout is fixed width so that lexical order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// SQLiteProvider implements Database on a local SQLite file. Every record
// is stored as a JSON blob next to the columns used for filtering.
type SQLiteProvider struct {
	path string
	db   *sql.DB
}

func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "powercast.db", "Path to the SQLite database file")

	s := &SQLiteProvider{}

	lflag.Do(func() {
		s.path = *path
	})

	return s
}

// NewSQLite opens and initializes the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLite(ctx context.Context, path string) (*SQLiteProvider, error) {
	s := &SQLiteProvider{path: path}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteProvider) Validate() error {
	if s.path == "" {
		return errors.New("sqlite-path is required")
	}
	return nil
}

// Init opens the connection and creates the schema.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes
	// writers
	conn.SetMaxOpenConns(1)

	s.db = conn
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteProvider) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS plants (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plants_user ON plants(user_id, created_at);

	CREATE TABLE IF NOT EXISTS plant_forecasts (
		plant_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		json TEXT NOT NULL,
		PRIMARY KEY(plant_id, ts)
	);

	CREATE TABLE IF NOT EXISTS suggestions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_suggestions_user ON suggestions(user_id, created_at);

	CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		plant_id TEXT,
		status TEXT NOT NULL,
		uploaded_at TEXT NOT NULL,
		json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_user ON uploads(user_id, uploaded_at);

	CREATE TABLE IF NOT EXISTS series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		upload_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_series_upload ON series(upload_id, ts);

	CREATE TABLE IF NOT EXISTS forecast_events (
		forecast_id TEXT PRIMARY KEY,
		region_code TEXT NOT NULL,
		created_at TEXT NOT NULL,
		json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_forecast_events_region ON forecast_events(region_code, created_at);

	CREATE TABLE IF NOT EXISTS forecast_errors (
		id TEXT PRIMARY KEY,
		forecast_id TEXT NOT NULL,
		region_code TEXT NOT NULL,
		severity TEXT NOT NULL,
		analysis_triggered INTEGER NOT NULL DEFAULT 0,
		observed_at TEXT NOT NULL,
		json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_forecast_errors_region ON forecast_errors(region_code, observed_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// where accumulates AND-ed conditions.
type where struct {
	clauses []string
	args    []any
}

func (w *where) eq(column string, value string) {
	if value == "" {
		return
	}
	w.clauses = append(w.clauses, column+" = ?")
	w.args = append(w.args, value)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page renders a LIMIT/OFFSET clause. SQLite treats a negative limit as
// unbounded.
func page(limit, offset int) string {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

func queryJSON[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("unmarshaling row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func getJSON[T any](ctx context.Context, db *sql.DB, query string, args ...any) (T, error) {
	var v T
	var raw string
	err := db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("unmarshaling row: %w", err)
	}
	return v, nil
}

func (s *SQLiteProvider) count(ctx context.Context, table string, w *where) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+w.String(), w.args...).Scan(&n)
	return n, err
}

// execOne runs a statement that must touch exactly one row.
func (s *SQLiteProvider) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteProvider) ListPlants(ctx context.Context, userID string, filter PlantFilter) ([]types.Plant, int, error) {
	w := &where{}
	w.eq("user_id", userID)
	w.eq("type", string(filter.Type))
	w.eq("status", string(filter.Status))

	total, err := s.count(ctx, "plants", w)
	if err != nil {
		return nil, 0, fmt.Errorf("counting plants: %w", err)
	}
	plants, err := queryJSON[types.Plant](ctx, s.db,
		"SELECT json FROM plants"+w.String()+" ORDER BY created_at DESC, id"+page(filter.Limit, filter.Offset),
		w.args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing plants: %w", err)
	}
	return plants, total, nil
}

func (s *SQLiteProvider) GetPlant(ctx context.Context, plantID string) (types.Plant, error) {
	p, err := getJSON[types.Plant](ctx, s.db, "SELECT json FROM plants WHERE id = ?", plantID)
	if err != nil {
		return p, fmt.Errorf("getting plant %s: %w", plantID, err)
	}
	return p, nil
}

func (s *SQLiteProvider) CreatePlant(ctx context.Context, plant types.Plant) error {
	b, err := json.Marshal(plant)
	if err != nil {
		return fmt.Errorf("failed to marshal plant: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plants (id, user_id, type, status, created_at, json) VALUES (?, ?, ?, ?, ?, ?)`,
		plant.ID, plant.UserID, plant.Type, plant.Status, formatTS(plant.CreatedAt), string(b),
	)
	if err != nil {
		return fmt.Errorf("inserting plant: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) UpdatePlant(ctx context.Context, plant types.Plant) error {
	b, err := json.Marshal(plant)
	if err != nil {
		return fmt.Errorf("failed to marshal plant: %w", err)
	}
	err = s.execOne(ctx,
		`UPDATE plants SET type = ?, status = ?, json = ? WHERE id = ?`,
		plant.Type, plant.Status, string(b), plant.ID,
	)
	if err != nil {
		return fmt.Errorf("updating plant %s: %w", plant.ID, err)
	}
	return nil
}

func (s *SQLiteProvider) DeletePlant(ctx context.Context, plantID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM plant_forecasts WHERE plant_id = ?`, plantID); err != nil {
			return fmt.Errorf("deleting plant forecast: %w", err)
		}
		return deleteOne(ctx, tx, `DELETE FROM plants WHERE id = ?`, plantID)
	})
}

func (s *SQLiteProvider) ReplacePlantForecast(ctx context.Context, plantID string, points []types.PlantForecastPoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM plant_forecasts WHERE plant_id = ?`, plantID); err != nil {
			return fmt.Errorf("clearing plant forecast: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO plant_forecasts (plant_id, ts, json) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range points {
			p.PlantID = plantID
			b, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal forecast point: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, plantID, formatTS(p.Timestamp), string(b)); err != nil {
				return fmt.Errorf("inserting forecast point: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteProvider) GetPlantForecast(ctx context.Context, plantID string, limit int) ([]types.PlantForecastPoint, error) {
	points, err := queryJSON[types.PlantForecastPoint](ctx, s.db,
		"SELECT json FROM plant_forecasts WHERE plant_id = ? ORDER BY ts"+page(limit, 0),
		plantID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting plant forecast: %w", err)
	}
	return points, nil
}

func (s *SQLiteProvider) ListSuggestions(ctx context.Context, userID string, filter SuggestionFilter) ([]types.Suggestion, int, error) {
	w := &where{}
	w.eq("user_id", userID)
	w.eq("type", string(filter.Type))
	w.eq("priority", string(filter.Priority))
	w.eq("status", string(filter.Status))

	total, err := s.count(ctx, "suggestions", w)
	if err != nil {
		return nil, 0, fmt.Errorf("counting suggestions: %w", err)
	}
	list, err := queryJSON[types.Suggestion](ctx, s.db,
		"SELECT json FROM suggestions"+w.String()+" ORDER BY created_at DESC, id"+page(filter.Limit, filter.Offset),
		w.args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing suggestions: %w", err)
	}
	return list, total, nil
}

func (s *SQLiteProvider) GetSuggestion(ctx context.Context, suggestionID string) (types.Suggestion, error) {
	sg, err := getJSON[types.Suggestion](ctx, s.db, "SELECT json FROM suggestions WHERE id = ?", suggestionID)
	if err != nil {
		return sg, fmt.Errorf("getting suggestion %s: %w", suggestionID, err)
	}
	return sg, nil
}

func (s *SQLiteProvider) InsertSuggestions(ctx context.Context, suggestions []types.Suggestion) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, sg := range suggestions {
			b, err := json.Marshal(sg)
			if err != nil {
				return fmt.Errorf("failed to marshal suggestion: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO suggestions (id, user_id, type, priority, status, created_at, json) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sg.ID, sg.UserID, sg.Type, sg.Priority, sg.Status, formatTS(sg.CreatedAt), string(b),
			)
			if err != nil {
				return fmt.Errorf("inserting suggestion: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteProvider) UpdateSuggestion(ctx context.Context, suggestion types.Suggestion) error {
	b, err := json.Marshal(suggestion)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestion: %w", err)
	}
	err = s.execOne(ctx,
		`UPDATE suggestions SET type = ?, priority = ?, status = ?, json = ? WHERE id = ?`,
		suggestion.Type, suggestion.Priority, suggestion.Status, string(b), suggestion.ID,
	)
	if err != nil {
		return fmt.Errorf("updating suggestion %s: %w", suggestion.ID, err)
	}
	return nil
}

func (s *SQLiteProvider) DeleteSuggestion(ctx context.Context, suggestionID string) error {
	if err := s.execOne(ctx, `DELETE FROM suggestions WHERE id = ?`, suggestionID); err != nil {
		return fmt.Errorf("deleting suggestion %s: %w", suggestionID, err)
	}
	return nil
}

func (s *SQLiteProvider) ListUploads(ctx context.Context, userID string, filter UploadFilter) ([]types.Upload, int, error) {
	w := &where{}
	w.eq("user_id", userID)
	w.eq("status", string(filter.Status))
	w.eq("plant_id", filter.PlantID)

	total, err := s.count(ctx, "uploads", w)
	if err != nil {
		return nil, 0, fmt.Errorf("counting uploads: %w", err)
	}
	list, err := queryJSON[types.Upload](ctx, s.db,
		"SELECT json FROM uploads"+w.String()+" ORDER BY uploaded_at DESC, id"+page(filter.Limit, filter.Offset),
		w.args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing uploads: %w", err)
	}
	return list, total, nil
}

func (s *SQLiteProvider) GetUpload(ctx context.Context, uploadID string) (types.Upload, error) {
	u, err := getJSON[types.Upload](ctx, s.db, "SELECT json FROM uploads WHERE id = ?", uploadID)
	if err != nil {
		return u, fmt.Errorf("getting upload %s: %w", uploadID, err)
	}
	return u, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (s *SQLiteProvider) CreateUpload(ctx context.Context, upload types.Upload) error {
	b, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("failed to marshal upload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, user_id, plant_id, status, uploaded_at, json) VALUES (?, ?, ?, ?, ?, ?)`,
		upload.ID, upload.UserID, nullable(upload.PlantID), upload.Status, formatTS(upload.UploadedAt), string(b),
	)
	if err != nil {
		return fmt.Errorf("inserting upload: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) UpdateUpload(ctx context.Context, upload types.Upload) error {
	b, err := json.Marshal(upload)
	if err != nil {
		return fmt.Errorf("failed to marshal upload: %w", err)
	}
	err = s.execOne(ctx,
		`UPDATE uploads SET plant_id = ?, status = ?, json = ? WHERE id = ?`,
		nullable(upload.PlantID), upload.Status, string(b), upload.ID,
	)
	if err != nil {
		return fmt.Errorf("updating upload %s: %w", upload.ID, err)
	}
	return nil
}

func (s *SQLiteProvider) DeleteUpload(ctx context.Context, uploadID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM series WHERE upload_id = ?`, uploadID); err != nil {
			return fmt.Errorf("deleting series: %w", err)
		}
		return deleteOne(ctx, tx, `DELETE FROM uploads WHERE id = ?`, uploadID)
	})
}

func (s *SQLiteProvider) InsertSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO series (upload_id, ts, json) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range points {
			p.UploadID = uploadID
			b, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("failed to marshal series point: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, uploadID, formatTS(p.Timestamp), string(b)); err != nil {
				return fmt.Errorf("inserting series point: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteProvider) InsertForecastEvent(ctx context.Context, event types.ForecastEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast event: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO forecast_events (forecast_id, region_code, created_at, json) VALUES (?, ?, ?, ?)`,
		event.ForecastID, event.RegionCode, formatTS(event.CreatedAt), string(b),
	)
	if err != nil {
		return fmt.Errorf("inserting forecast event: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) GetForecastEvent(ctx context.Context, forecastID string) (types.ForecastEvent, error) {
	e, err := getJSON[types.ForecastEvent](ctx, s.db, "SELECT json FROM forecast_events WHERE forecast_id = ?", forecastID)
	if err != nil {
		return e, fmt.Errorf("getting forecast event %s: %w", forecastID, err)
	}
	return e, nil
}

func (s *SQLiteProvider) ListForecastEvents(ctx context.Context, regionCode string, limit int) ([]types.ForecastEvent, error) {
	w := &where{}
	w.eq("region_code", regionCode)
	events, err := queryJSON[types.ForecastEvent](ctx, s.db,
		"SELECT json FROM forecast_events"+w.String()+" ORDER BY created_at DESC"+page(limit, 0),
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing forecast events: %w", err)
	}
	return events, nil
}

func (s *SQLiteProvider) InsertForecastError(ctx context.Context, fe types.ForecastError) error {
	b, err := json.Marshal(fe)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast error: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO forecast_errors (id, forecast_id, region_code, severity, analysis_triggered, observed_at, json) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		fe.ID, fe.ForecastID, fe.RegionCode, fe.Severity, fe.AnalysisTriggered, formatTS(fe.ObservedAt), string(b),
	)
	if err != nil {
		return fmt.Errorf("inserting forecast error: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) ListForecastErrors(ctx context.Context, filter ErrorFilter) ([]types.ForecastError, error) {
	w := &where{}
	w.eq("region_code", filter.RegionCode)
	w.eq("severity", string(filter.Severity))
	if filter.PendingOnly {
		w.clauses = append(w.clauses, "analysis_triggered = 1")
	}
	list, err := queryJSON[types.ForecastError](ctx, s.db,
		"SELECT json FROM forecast_errors"+w.String()+" ORDER BY observed_at DESC"+page(filter.Limit, 0),
		w.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing forecast errors: %w", err)
	}
	return list, nil
}

func (s *SQLiteProvider) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func deleteOne(ctx context.Context, tx *sql.Tx, query string, id string) error {
	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("deleting %s: %w", id, ErrNotFound)
	}
	return nil
}

var _ Database = (*SQLiteProvider)(nil)
