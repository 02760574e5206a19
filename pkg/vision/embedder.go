package vision

import (
	"context"
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"

	"github.com/sleevescan/sleevescan/config"
	"github.com/sleevescan/sleevescan/pkg/models"
)

// Force compiler to validate that Embedder implements the EmbeddingGenerator interface.
var _ models.EmbeddingGenerator = &Embedder{}

// Embedder wraps the sidecar's vision embedding model. The sidecar returns
// the model's class token projection; normalization to unit length happens
// here so every stored embedding satisfies the unit-norm invariant.
type Embedder struct {
	client     *Client
	dimensions int
}

func NewEmbedder(client *Client, cfg *config.Config) *Embedder {
	return &Embedder{
		client:     client,
		dimensions: cfg.Vision.Dimensions,
	}
}

func (e *Embedder) Available() bool {
	return e.client.Available()
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the image's L2-normalized embedding. Dimension mismatches,
// non-finite values and zero-norm outputs are all reported as inference
// failures, never silently converted to a default vector.
func (e *Embedder) Embed(ctx context.Context, image []byte) ([]float32, error) {
	if !e.Available() {
		return nil, fmt.Errorf("embedder: %w", models.ErrModelUnavailable)
	}

	var resp embeddingResponse
	if err := e.client.postImage(ctx, embeddingsPath, image, &resp); err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}

	if len(resp.Embedding) != e.dimensions {
		return nil, fmt.Errorf(
			"embedding width %d, expected %d: %w",
			len(resp.Embedding),
			e.dimensions,
			models.ErrInference,
		)
	}

	return NormalizeEmbedding(resp.Embedding)
}

// NormalizeEmbedding scales a raw embedding to unit L2 norm.
func NormalizeEmbedding(embedding []float32) ([]float32, error) {
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("embedding contains non-finite values: %w", models.ErrInference)
		}
	}

	norm := vek32.Norm(embedding)
	if norm == 0 {
		return nil, fmt.Errorf("embedding has zero norm: %w", models.ErrInference)
	}

	return vek32.DivNumber(embedding, norm), nil
}
