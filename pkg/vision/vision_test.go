package vision

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viterin/vek/vek32"

	"github.com/sleevescan/sleevescan/config"
	"github.com/sleevescan/sleevescan/pkg/models"
)

// fakeSidecar serves the inference endpoints with canned responses.
func fakeSidecar(t *testing.T, ocrBody any, embeddingBody any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(ocrPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(ocrBody))
	})
	mux.HandleFunc(embeddingsPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(embeddingBody))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testVisionConfig(serverURL string, dimensions int) *config.Config {
	return &config.Config{
		Vision: config.VisionConfig{
			ServerURL:  serverURL,
			Dimensions: dimensions,
		},
	}
}

func startedClient(t *testing.T, serverURL string, dimensions int) (*Client, *config.Config) {
	t.Helper()
	cfg := testVisionConfig(serverURL, dimensions)
	client := NewClient(cfg)
	require.NoError(t, client.Start(context.Background()))
	return client, cfg
}

func TestOCRExtract(t *testing.T) {
	server := fakeSidecar(t,
		ocrResponse{Lines: []models.OCRLine{
			{Text: "MILES DAVIS", Confidence: 0.97},
			{Text: "smudge", Confidence: 0.2},
		}},
		nil,
	)
	client, _ := startedClient(t, server.URL, 4)

	extractor := NewOCRExtractor(client)
	require.True(t, extractor.Available())

	lines, err := extractor.Extract(context.Background(), []byte("image"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "MILES DAVIS", lines[0].Text)
	assert.Equal(t, 0.97, lines[0].Confidence)
}

func TestOCRExtractConfidenceOutOfRange(t *testing.T) {
	server := fakeSidecar(t,
		ocrResponse{Lines: []models.OCRLine{{Text: "bad", Confidence: 1.7}}},
		nil,
	)
	client, _ := startedClient(t, server.URL, 4)

	extractor := NewOCRExtractor(client)
	_, err := extractor.Extract(context.Background(), []byte("image"))
	assert.ErrorIs(t, err, models.ErrInference)
}

func TestOCRExtractUnavailable(t *testing.T) {
	cfg := testVisionConfig("http://localhost:1", 4)
	extractor := NewOCRExtractor(NewClient(cfg))

	require.False(t, extractor.Available())
	_, err := extractor.Extract(context.Background(), []byte("image"))
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestEmbed(t *testing.T) {
	server := fakeSidecar(t, nil,
		embeddingResponse{Embedding: []float32{3, 4, 0, 0}},
	)
	client, cfg := startedClient(t, server.URL, 4)

	embedder := NewEmbedder(client, cfg)
	embedding, err := embedder.Embed(context.Background(), []byte("image"))
	require.NoError(t, err)
	require.Len(t, embedding, 4)

	assert.InDelta(t, 0.6, embedding[0], 1e-5)
	assert.InDelta(t, 0.8, embedding[1], 1e-5)
	assert.InDelta(t, 1.0, vek32.Norm(embedding), 1e-5)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	server := fakeSidecar(t, nil,
		embeddingResponse{Embedding: []float32{1, 0}},
	)
	client, cfg := startedClient(t, server.URL, 4)

	embedder := NewEmbedder(client, cfg)
	_, err := embedder.Embed(context.Background(), []byte("image"))
	assert.ErrorIs(t, err, models.ErrInference)
}

func TestEmbedUnavailable(t *testing.T) {
	cfg := testVisionConfig("http://localhost:1", 4)
	embedder := NewEmbedder(NewClient(cfg), cfg)

	_, err := embedder.Embed(context.Background(), []byte("image"))
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestEmbedInferenceError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(embeddingsPath, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, cfg := startedClient(t, server.URL, 4)
	embedder := NewEmbedder(client, cfg)

	_, err := embedder.Embed(context.Background(), []byte("image"))
	assert.ErrorIs(t, err, models.ErrInference)
}

func TestNormalizeEmbedding(t *testing.T) {
	normalized, err := NormalizeEmbedding([]float32{2, 0, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, normalized[0], 1e-5)
	assert.InDelta(t, 1.0, vek32.Norm(normalized), 1e-5)
}

func TestNormalizeEmbeddingZeroNorm(t *testing.T) {
	_, err := NormalizeEmbedding([]float32{0, 0, 0, 0})
	assert.ErrorIs(t, err, models.ErrInference)
}

func TestNormalizeEmbeddingNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	_, err := NormalizeEmbedding([]float32{nan, 0, 0, 0})
	assert.ErrorIs(t, err, models.ErrInference)
}
