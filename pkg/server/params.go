package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

const (
	maxJSONBody   = 1 << 20
	defaultLimit  = 50
	maxLimit      = 100
	notFoundMsg   = "%s not found"
	accessDenied  = "Access denied"
	databaseError = "Database error"
)

// intParam parses the query parameter name, returning def when it is absent
// and an error when it is not an integer within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

// pageParams reads limit (1..100, default 50) and offset (≥ 0).
func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, err = intParam(r, "limit", defaultLimit, 1, maxLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err = intParam(r, "offset", 0, 0, 1<<31-1)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeValidationError writes a 400 for a types.ValidationError and reports
// whether err was one.
func writeValidationError(w http.ResponseWriter, err error) bool {
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		return false
	}
	writeJSONError(w, verr.Error(), http.StatusBadRequest)
	return true
}

// checkOwner writes the error response for a record lookup and reports
// whether the caller may continue: 404 when missing, 403 when the record
// belongs to another user and 500 otherwise.
func checkOwner(w http.ResponseWriter, r *http.Request, kind string, err error, owner, userID string) bool {
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, fmt.Sprintf(notFoundMsg, kind), http.StatusNotFound)
			return false
		}
		ctx := r.Context()
		log.Ctx(ctx).ErrorContext(ctx, "failed to get record", slog.String("kind", kind), slog.Any("error", err))
		writeJSONError(w, databaseError, http.StatusInternalServerError)
		return false
	}
	if owner != userID {
		writeJSONError(w, accessDenied, http.StatusForbidden)
		return false
	}
	return true
}

func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	log.Ctx(ctx).ErrorContext(ctx, msg, slog.Any("error", err))
	writeJSONError(w, "internal server error", http.StatusInternalServerError)
}

// dbError logs a storage failure and writes the generic 500.
func dbError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	log.Ctx(ctx).ErrorContext(ctx, msg, slog.Any("error", err))
	writeJSONError(w, databaseError, http.StatusInternalServerError)
}
