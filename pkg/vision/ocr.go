package vision

import (
	"context"
	"fmt"

	"github.com/sleevescan/sleevescan/pkg/models"
)

// Force compiler to validate that OCRExtractor implements the TextExtractor interface.
var _ models.TextExtractor = &OCRExtractor{}

// OCRExtractor wraps the sidecar's OCR model. Extraction is pure over the
// image; all model state lives in the sidecar.
type OCRExtractor struct {
	client *Client
}

func NewOCRExtractor(client *Client) *OCRExtractor {
	return &OCRExtractor{client: client}
}

func (oe *OCRExtractor) Available() bool {
	return oe.client.Available()
}

type ocrResponse struct {
	Lines []models.OCRLine `json:"lines"`
}

// Extract returns one OCRLine per detected text region in detection order.
// It never returns partial data as success: any transport or model error
// surfaces as a distinguishable failure.
func (oe *OCRExtractor) Extract(ctx context.Context, image []byte) ([]models.OCRLine, error) {
	if !oe.Available() {
		return nil, fmt.Errorf("ocr: %w", models.ErrModelUnavailable)
	}

	var resp ocrResponse
	if err := oe.client.postImage(ctx, ocrPath, image, &resp); err != nil {
		return nil, fmt.Errorf("ocr extract failed: %w", err)
	}

	for _, line := range resp.Lines {
		if line.Confidence < 0 || line.Confidence > 1 {
			return nil, fmt.Errorf(
				"ocr confidence %f out of range: %w",
				line.Confidence,
				models.ErrInference,
			)
		}
	}

	return resp.Lines, nil
}
