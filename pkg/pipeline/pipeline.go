package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/sleevescan/sleevescan/internal"
	"github.com/sleevescan/sleevescan/pkg/models"
)

var log = internal.GetLogger()

var _ models.SnapshotPipeline = &SnapshotPipeline{}

// SnapshotPipeline runs a captured image through text extraction,
// embedding generation, and reference matching, then commits the
// resulting snapshot record to the artifact store. The commit happens
// regardless of stage failures so that every capture attempt leaves a
// durable trace.
type SnapshotPipeline struct {
	appState *models.AppState
}

func NewSnapshotPipeline(appState *models.AppState) *SnapshotPipeline {
	return &SnapshotPipeline{appState: appState}
}

// ProcessImage processes a single captured image. A non-nil
// SnapshotResult is returned even when stages fail; the error return
// reflects only commit failures and matching failures, in that order
// of precedence.
func (p *SnapshotPipeline) ProcessImage(
	ctx context.Context,
	imageData []byte,
	capturedAt time.Time,
) (*models.SnapshotResult, error) {
	snapshot := &models.Snapshot{
		SnapshotID: models.NewSnapshotID(capturedAt),
		CreatedAt:  capturedAt,
		OCRLines:   []models.OCRLine{},
		Matches:    []models.Match{},
	}
	result := &models.SnapshotResult{Snapshot: snapshot}

	decodeErr := validateImage(imageData)
	if decodeErr != nil {
		log.Warnf("pipeline: snapshot %s: %v", snapshot.SnapshotID, decodeErr)
	}

	result.TextExtraction = p.extractText(ctx, snapshot, imageData, decodeErr)
	result.Embedding = p.generateEmbedding(ctx, snapshot, imageData, decodeErr)

	var matchErr error
	result.Matching, matchErr = p.matchReferences(ctx, snapshot)

	if err := p.appState.ArtifactStore.CommitSnapshot(ctx, snapshot); err != nil {
		return result, fmt.Errorf("pipeline: commit snapshot %s: %w", snapshot.SnapshotID, err)
	}

	if matchErr != nil {
		return result, fmt.Errorf("pipeline: match snapshot %s: %w", snapshot.SnapshotID, matchErr)
	}

	return result, nil
}

// extractText is best-effort: a failure leaves the snapshot with an
// empty line set and is reported through the stage outcome only.
func (p *SnapshotPipeline) extractText(
	ctx context.Context,
	snapshot *models.Snapshot,
	imageData []byte,
	decodeErr error,
) models.StageOutcome {
	if decodeErr != nil {
		return models.StageOutcomeFailed(decodeErr)
	}

	extractor := p.appState.TextExtractor
	if extractor == nil || !extractor.Available() {
		return models.StageOutcomeFailed(models.ErrModelUnavailable)
	}

	lines, err := extractor.Extract(ctx, imageData)
	if err != nil {
		log.Warnf("pipeline: snapshot %s: text extraction failed: %v", snapshot.SnapshotID, err)
		return models.StageOutcomeFailed(err)
	}

	snapshot.OCRLines = models.FilterOCRLines(
		lines,
		p.appState.Config.OCR.ConfidenceThreshold,
	)
	return models.StageOutcomeOK()
}

func (p *SnapshotPipeline) generateEmbedding(
	ctx context.Context,
	snapshot *models.Snapshot,
	imageData []byte,
	decodeErr error,
) models.StageOutcome {
	if decodeErr != nil {
		return models.StageOutcomeFailed(decodeErr)
	}

	generator := p.appState.EmbeddingGenerator
	if generator == nil || !generator.Available() {
		return models.StageOutcomeFailed(models.ErrModelUnavailable)
	}

	embedding, err := generator.Embed(ctx, imageData)
	if err != nil {
		log.Warnf("pipeline: snapshot %s: embedding failed: %v", snapshot.SnapshotID, err)
		return models.StageOutcomeFailed(err)
	}

	snapshot.Embedding = embedding
	return models.StageOutcomeOK()
}

// matchReferences is skipped entirely when the snapshot carries no
// embedding. A search failure is both a stage outcome and a returned
// error so the caller can surface it after the commit has been made.
func (p *SnapshotPipeline) matchReferences(
	ctx context.Context,
	snapshot *models.Snapshot,
) (models.StageOutcome, error) {
	if !snapshot.HasEmbedding() {
		return models.StageOutcomeSkipped("no embedding available"), nil
	}

	cfg := p.appState.Config
	query := &models.SearchQuery{
		Embedding:   snapshot.Embedding,
		TopK:        cfg.Search.TopK,
		MaxDistance: maxDistanceForSimilarity(cfg.Search.MinSimilarity),
	}

	matches, err := p.appState.ArtifactStore.SearchReferences(ctx, query)
	if err != nil {
		return models.StageOutcomeFailed(err), err
	}

	snapshot.Matches = matches
	return models.StageOutcomeOK(), nil
}

// maxDistanceForSimilarity converts a cosine-similarity floor into the
// cosine-distance ceiling the search layer works with. A non-positive
// floor disables the cutoff.
func maxDistanceForSimilarity(minSimilarity float64) float64 {
	if minSimilarity <= 0 {
		return 0
	}
	return 1 - minSimilarity
}

func validateImage(imageData []byte) error {
	if len(imageData) == 0 {
		return fmt.Errorf("empty image payload: %w", models.ErrDecodeFailure)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(imageData)); err != nil {
		return fmt.Errorf("decode image: %v: %w", err, models.ErrDecodeFailure)
	}
	return nil
}
