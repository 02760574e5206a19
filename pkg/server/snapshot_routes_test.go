package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sleevescan/sleevescan/config"
	"github.com/sleevescan/sleevescan/pkg/models"
)

type fakePipeline struct {
	result    *models.SnapshotResult
	err       error
	lastImage []byte
}

func (f *fakePipeline) ProcessImage(
	_ context.Context,
	image []byte,
	_ time.Time,
) (*models.SnapshotResult, error) {
	f.lastImage = image
	return f.result, f.err
}

type fakeArtifactStore struct {
	snapshots map[string]*models.Snapshot
	listed    []*models.Snapshot
	lastLimit int
}

func (f *fakeArtifactStore) CommitSnapshot(context.Context, *models.Snapshot) error {
	return nil
}

func (f *fakeArtifactStore) GetSnapshot(
	_ context.Context,
	snapshotID string,
) (*models.Snapshot, error) {
	snapshot, ok := f.snapshots[snapshotID]
	if !ok {
		return nil, models.NewNotFoundError("snapshot " + snapshotID)
	}
	return snapshot, nil
}

func (f *fakeArtifactStore) ListSnapshots(
	_ context.Context,
	limit int,
) ([]*models.Snapshot, error) {
	f.lastLimit = limit
	if limit > 0 && len(f.listed) > limit {
		return f.listed[:limit], nil
	}
	return f.listed, nil
}

func (f *fakeArtifactStore) SearchReferences(
	context.Context,
	*models.SearchQuery,
) ([]models.Match, error) {
	return nil, nil
}

func (f *fakeArtifactStore) PutReferenceItems(context.Context, []models.ReferenceItem) error {
	return nil
}

func (f *fakeArtifactStore) Close() error { return nil }

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		SnapshotID: "snapshot_20231014_093052.jpg",
		CreatedAt:  time.Date(2023, 10, 14, 9, 30, 52, 0, time.UTC),
		OCRLines:   []models.OCRLine{{Text: "BLUE TRAIN", Confidence: 0.95}},
		Embedding:  []float32{1, 0, 0, 0},
		Matches:    []models.Match{{AlbumID: 1475, Title: "Blue Train", Distance: 0.05}},
	}
}

func testAppState(t *testing.T, artifactStore models.ArtifactStore, p models.SnapshotPipeline) *models.AppState {
	t.Helper()
	return &models.AppState{
		ArtifactStore: artifactStore,
		Pipeline:      p,
		Config: &config.Config{
			Server: config.ServerConfig{
				Port:        8000,
				SnapshotDir: t.TempDir(),
			},
		},
	}
}

func TestCreateSnapshotHandlerJSON(t *testing.T) {
	snapshot := testSnapshot()
	p := &fakePipeline{
		result: &models.SnapshotResult{
			Snapshot:       snapshot,
			TextExtraction: models.StageOutcomeOK(),
			Embedding:      models.StageOutcomeOK(),
			Matching:       models.StageOutcomeOK(),
		},
	}
	appState := testAppState(t, &fakeArtifactStore{}, p)
	router := setupRouter(appState)

	imageBytes := []byte("fake image bytes")
	body, err := json.Marshal(CreateSnapshotRequest{
		Image: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageBytes),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, imageBytes, p.lastImage)

	var result models.SnapshotResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&result))
	assert.Equal(t, snapshot.SnapshotID, result.Snapshot.SnapshotID)
	assert.Equal(t, models.StageOK, result.Matching.Status)
}

func TestCreateSnapshotHandlerMultipart(t *testing.T) {
	p := &fakePipeline{
		result: &models.SnapshotResult{
			Snapshot:       testSnapshot(),
			TextExtraction: models.StageOutcomeOK(),
			Embedding:      models.StageOutcomeOK(),
			Matching:       models.StageOutcomeOK(),
		},
	}
	appState := testAppState(t, &fakeArtifactStore{}, p)
	router := setupRouter(appState)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "capture.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, []byte("fake image bytes"), p.lastImage)
}

func TestCreateSnapshotHandlerBadBase64(t *testing.T) {
	appState := testAppState(t, &fakeArtifactStore{}, &fakePipeline{})
	router := setupRouter(appState)

	body := strings.NewReader(`{"image": "not base64!!!"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot", body)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCreateSnapshotHandlerMissingImage(t *testing.T) {
	appState := testAppState(t, &fakeArtifactStore{}, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/snapshot", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestGetSnapshotHandler(t *testing.T) {
	snapshot := testSnapshot()
	artifactStore := &fakeArtifactStore{
		snapshots: map[string]*models.Snapshot{snapshot.SnapshotID: snapshot},
	}
	appState := testAppState(t, artifactStore, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/"+snapshot.SnapshotID, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var detail SnapshotDetailResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&detail))
	assert.Equal(t, snapshot.SnapshotID, detail.SnapshotID)
	assert.Equal(t, "/snapshots/"+snapshot.SnapshotID, detail.ImageURL)
	assert.True(t, detail.EmbeddingPresent)
	assert.Equal(t, 4, detail.EmbeddingDimensions)
	assert.Equal(t, models.StageOK, detail.Matching)
	require.Len(t, detail.Matches, 1)
	assert.Equal(t, int64(1475), detail.Matches[0].AlbumID)
}

func TestGetSnapshotHandlerSkippedMatching(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Embedding = nil
	snapshot.Matches = []models.Match{}
	artifactStore := &fakeArtifactStore{
		snapshots: map[string]*models.Snapshot{snapshot.SnapshotID: snapshot},
	}
	appState := testAppState(t, artifactStore, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/"+snapshot.SnapshotID, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var detail SnapshotDetailResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&detail))
	assert.False(t, detail.EmbeddingPresent)
	assert.Equal(t, models.StageSkipped, detail.Matching)
}

func TestGetSnapshotHandlerNotFound(t *testing.T) {
	appState := testAppState(t, &fakeArtifactStore{}, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/snapshot_19990101_000000.jpg", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestGetGalleryHandler(t *testing.T) {
	newest := testSnapshot()
	oldest := testSnapshot()
	oldest.SnapshotID = "snapshot_20231013_080000.jpg"
	oldest.Matches = []models.Match{}
	artifactStore := &fakeArtifactStore{listed: []*models.Snapshot{newest, oldest}}
	appState := testAppState(t, artifactStore, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, DefaultGalleryLimit, artifactStore.lastLimit)

	var entries []GalleryEntry
	require.NoError(t, json.NewDecoder(res.Body).Decode(&entries))
	require.Len(t, entries, 2)

	assert.Equal(t, newest.SnapshotID, entries[0].SnapshotID)
	assert.Equal(t, 1, entries[0].MatchCount)
	require.NotNil(t, entries[0].TopMatch)
	assert.Equal(t, int64(1475), entries[0].TopMatch.AlbumID)

	assert.Equal(t, 0, entries[1].MatchCount)
	assert.Nil(t, entries[1].TopMatch)
}

func TestGetGalleryHandlerLimit(t *testing.T) {
	artifactStore := &fakeArtifactStore{listed: []*models.Snapshot{testSnapshot()}}
	appState := testAppState(t, artifactStore, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gallery?limit=5", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 5, artifactStore.lastLimit)
}

func TestHeartbeat(t *testing.T) {
	appState := testAppState(t, &fakeArtifactStore{}, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusOK, res.Code)
}

func TestSendVersionHeader(t *testing.T) {
	appState := testAppState(t, &fakeArtifactStore{}, &fakePipeline{})
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.NotEmpty(t, res.Header().Get(versionHeader))
}

func TestAuthRequired(t *testing.T) {
	appState := testAppState(t, &fakeArtifactStore{}, &fakePipeline{})
	appState.Config.Auth = config.AuthConfig{Secret: "test-secret", Required: true}
	router := setupRouter(appState)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	assert.Equal(t, http.StatusUnauthorized, res.Code)
}
