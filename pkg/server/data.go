package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
	"github.com/powercast/powercast/pkg/upload"
)

const maxUploadSize = 10 << 20

type uploadListResponse struct {
	Uploads []types.Upload `json:"uploads"`
	Total   int            `json:"total"`
}

type validateResponse struct {
	Filename   string        `json:"filename"`
	FileSize   int           `json:"file_size"`
	Validation upload.Result `json:"validation"`
}

type qualityDetails struct {
	Message       string       `json:"message"`
	Status        string       `json:"status"`
	Gaps          []upload.Gap `json:"gaps"`
	MaxGapMinutes int          `json:"max_gap_minutes"`
	Error         string       `json:"error"`
}

// readUpload reads the multipart "file" field.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	f, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("file is required: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}
	return header.Filename, content, nil
}

func (s *Server) handleValidateUpload(w http.ResponseWriter, r *http.Request) {
	name, content, err := readUpload(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := upload.CheckFile(name, content); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Filename:   name,
		FileSize:   len(content),
		Validation: upload.Validate(content),
	})
}

func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)
	name, content, err := readUpload(w, r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	f := upload.File{
		Name:    name,
		Content: content,
		Region:  strings.TrimSpace(r.FormValue("region_code")),
	}
	if plantID := strings.TrimSpace(r.FormValue("plant_id")); plantID != "" {
		plant, err := s.storage.GetPlant(ctx, plantID)
		if !checkOwner(w, r, "Plant", err, plant.UserID, userID) {
			return
		}
		f.PlantID = &plantID
	}

	up, err := s.uploads.Process(ctx, userID, f)
	var verr *upload.ValidationError
	var qerr *upload.QualityError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, up)
	case errors.Is(err, upload.ErrNotCSV), errors.Is(err, upload.ErrNotUTF8):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &verr):
		writeJSONErrorDetails(w, verr.Error(), verr.Result, http.StatusBadRequest)
	case errors.As(err, &qerr):
		q := qerr.Quality
		writeJSONErrorDetails(w, "Data rejected due to quality issues", qualityDetails{
			Message:       "Data rejected due to quality issues",
			Status:        string(q.Status),
			Gaps:          q.Gaps,
			MaxGapMinutes: q.MaxGapMinutes,
			Error:         q.Message,
		}, http.StatusUnprocessableEntity)
	default:
		log.Ctx(ctx).ErrorContext(ctx, "failed to process upload", slog.String("filename", name), slog.Any("error", err))
		writeJSONError(w, "Failed to process upload", http.StatusInternalServerError)
	}
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.UploadFilter{
		Status:  types.UploadStatus(q.Get("status")),
		PlantID: q.Get("plant_id"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeJSONError(w, fmt.Sprintf("unknown upload status %q", filter.Status), http.StatusBadRequest)
		return
	}
	var err error
	if filter.Limit, filter.Offset, err = pageParams(r); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	uploads, total, err := s.storage.ListUploads(r.Context(), s.getUserID(r), filter)
	if err != nil {
		dbError(w, r, "failed to list uploads", err)
		return
	}
	if uploads == nil {
		uploads = []types.Upload{}
	}
	writeJSON(w, http.StatusOK, uploadListResponse{Uploads: uploads, Total: total})
}

func (s *Server) ownedUpload(w http.ResponseWriter, r *http.Request) (types.Upload, bool) {
	up, err := s.storage.GetUpload(r.Context(), r.PathValue("id"))
	if !checkOwner(w, r, "Upload", err, up.UserID, s.getUserID(r)) {
		return types.Upload{}, false
	}
	return up, true
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	up, ok := s.ownedUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, up)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	up, ok := s.ownedUpload(w, r)
	if !ok {
		return
	}
	if err := s.storage.DeleteUpload(r.Context(), up.ID); err != nil {
		dbError(w, r, "failed to delete upload", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
