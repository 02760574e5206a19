package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sleevescan/sleevescan/pkg/models"
)

const DefaultGalleryLimit = 20

// maxUploadBytes caps snapshot uploads at 16MB.
const maxUploadBytes = 16 << 20

var validate = validator.New()

// CreateSnapshotRequest is the JSON body for snapshot ingestion. Image is
// either a bare base64 string or a data URL.
type CreateSnapshotRequest struct {
	Image string `json:"image" validate:"required"`
}

// SnapshotDetailResponse is the detail view of one committed snapshot.
// Matches are read back from the committed record, never recomputed.
type SnapshotDetailResponse struct {
	SnapshotID          string             `json:"snapshot_id"`
	CreatedAt           time.Time          `json:"created_at"`
	ImageURL            string             `json:"image_url"`
	OCRLines            []models.OCRLine   `json:"ocr_lines"`
	EmbeddingPresent    bool               `json:"embedding_present"`
	EmbeddingDimensions int                `json:"embedding_dimensions"`
	Matching            models.StageStatus `json:"matching"`
	Matches             []models.Match     `json:"matches"`
}

// GalleryEntry is one row of the gallery listing, newest first.
type GalleryEntry struct {
	SnapshotID string        `json:"snapshot_id"`
	CreatedAt  time.Time     `json:"created_at"`
	ImageURL   string        `json:"image_url"`
	MatchCount int           `json:"match_count"`
	TopMatch   *models.Match `json:"top_match,omitempty"`
}

// CreateSnapshotHandler returns a handler for POST requests to /snapshot.
// It accepts either a multipart upload with an "image" part or a JSON body
// with a base64-encoded image, runs the snapshot pipeline, and responds
// with the full pipeline result.
func CreateSnapshotHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		imageData, err := readSnapshotImage(r)
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		result, err := appState.Pipeline.ProcessImage(r.Context(), imageData, time.Now())
		if result == nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		if saveErr := saveSnapshotImage(
			appState.Config.Server.SnapshotDir,
			result.Snapshot.SnapshotID,
			imageData,
		); saveErr != nil {
			log.Warnf("error retaining snapshot image %s: %v", result.Snapshot.SnapshotID, saveErr)
		}

		if err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusCreated)
		if err := encodeJSON(w, result); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetSnapshotHandler returns a handler for GET requests to
// /snapshot/{snapshotID}.
func GetSnapshotHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshotID := chi.URLParam(r, "snapshotID")

		snapshot, err := appState.ArtifactStore.GetSnapshot(r.Context(), snapshotID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				renderError(w, err, http.StatusNotFound)
				return
			}
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		if err := encodeJSON(w, snapshotDetail(snapshot)); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetGalleryHandler returns a handler for GET requests to /gallery. The
// optional limit query parameter caps the number of entries returned.
func GetGalleryHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := extractQueryStringValueToInt[int](r, "limit")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if limit <= 0 {
			limit = DefaultGalleryLimit
		}

		snapshots, err := appState.ArtifactStore.ListSnapshots(r.Context(), limit)
		if err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		entries := make([]GalleryEntry, len(snapshots))
		for i, snapshot := range snapshots {
			entry := GalleryEntry{
				SnapshotID: snapshot.SnapshotID,
				CreatedAt:  snapshot.CreatedAt,
				ImageURL:   snapshotImageURL(snapshot.SnapshotID),
				MatchCount: len(snapshot.Matches),
			}
			if len(snapshot.Matches) > 0 {
				entry.TopMatch = &snapshot.Matches[0]
			}
			entries[i] = entry
		}

		if err := encodeJSON(w, entries); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

func snapshotDetail(snapshot *models.Snapshot) *SnapshotDetailResponse {
	matching := models.StageOK
	if !snapshot.HasEmbedding() {
		matching = models.StageSkipped
	}
	return &SnapshotDetailResponse{
		SnapshotID:          snapshot.SnapshotID,
		CreatedAt:           snapshot.CreatedAt,
		ImageURL:            snapshotImageURL(snapshot.SnapshotID),
		OCRLines:            snapshot.OCRLines,
		EmbeddingPresent:    snapshot.HasEmbedding(),
		EmbeddingDimensions: len(snapshot.Embedding),
		Matching:            matching,
		Matches:             snapshot.Matches,
	}
}

func snapshotImageURL(snapshotID string) string {
	return "/snapshots/" + snapshotID
}

// readSnapshotImage extracts the raw image bytes from either a multipart
// upload or a JSON body.
func readSnapshotImage(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, fmt.Errorf("error parsing multipart form: %w", err)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("missing image part: %w", err)
		}
		defer file.Close()
		return io.ReadAll(file)
	}

	var request CreateSnapshotRequest
	if err := decodeJSON(r, &request); err != nil {
		return nil, fmt.Errorf("error decoding snapshot request: %w", err)
	}
	if err := validate.Struct(request); err != nil {
		return nil, err
	}
	return decodeImagePayload(request.Image)
}

// decodeImagePayload decodes a base64 image string, accepting both bare
// base64 and data URLs of the form data:image/jpeg;base64,...
func decodeImagePayload(payload string) ([]byte, error) {
	if strings.HasPrefix(payload, "data:") {
		_, encoded, found := strings.Cut(payload, ",")
		if !found {
			return nil, errors.New("malformed data URL")
		}
		payload = encoded
	}
	imageData, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 image: %w", err)
	}
	return imageData, nil
}

func saveSnapshotImage(dir string, snapshotID string, imageData []byte) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, snapshotID), imageData, 0o644)
}
