package models

import "context"

// TextExtractor wraps an OCR model. The wrapped model is process-wide
// singleton state initialized once at startup; Available must be checkable
// before every call so the pipeline can short-circuit cleanly.
type TextExtractor interface {
	Available() bool
	// Extract returns candidate text lines with confidence scores in
	// detection order. Confidence filtering is the caller's job.
	Extract(ctx context.Context, image []byte) ([]OCRLine, error)
}

// EmbeddingGenerator wraps a vision embedding model. Output is a
// fixed-dimension vector L2-normalized to unit length; inference is
// deterministic for bit-identical inputs.
type EmbeddingGenerator interface {
	Available() bool
	// Embed returns the image's embedding or an error. Failure is
	// reported as absence, never as a zero or default vector.
	Embed(ctx context.Context, image []byte) ([]float32, error)
}
