package models

import (
	"time"
)

// SnapshotIDTimeFormat gives snapshot identities second resolution. Two
// captures within the same second collide; this is a documented limitation.
const (
	SnapshotIDPrefix     = "snapshot_"
	SnapshotIDTimeFormat = "20060102_150405"
	SnapshotIDExtension  = ".jpg"
)

// NewSnapshotID derives a snapshot identity from its capture time.
func NewSnapshotID(capturedAt time.Time) string {
	return SnapshotIDPrefix + capturedAt.Format(SnapshotIDTimeFormat) + SnapshotIDExtension
}

// OCRLine is one detected text region. Line order is detection order and
// carries no semantic meaning.
type OCRLine struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// FilterOCRLines retains only lines with confidence strictly greater than
// threshold, preserving detection order. Discarded lines are never stored.
func FilterOCRLines(lines []OCRLine, threshold float64) []OCRLine {
	filtered := make([]OCRLine, 0, len(lines))
	for _, line := range lines {
		if line.Confidence > threshold {
			filtered = append(filtered, line)
		}
	}
	return filtered
}

// ReferenceItem is a corpus entry. The corpus is built offline and is
// read-only from the pipeline's perspective.
type ReferenceItem struct {
	AlbumID    int64     `json:"album_id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	CoverURL   string    `json:"cover_url"`
	Year       int       `json:"year"`
	Style      string    `json:"style"`
	DiscogsURL string    `json:"discogs_url"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// Match is the result of comparing a query embedding to one ReferenceItem.
// Distance is cosine distance: 0 identical direction, 1 orthogonal.
type Match struct {
	AlbumID    int64   `json:"album_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	CoverURL   string  `json:"cover_url"`
	Year       int     `json:"year"`
	Style      string  `json:"style"`
	DiscogsURL string  `json:"discogs_url"`
	Distance   float64 `json:"distance"`
}

// NewMatch builds a Match from a corpus item and its query distance.
func NewMatch(item ReferenceItem, distance float64) Match {
	return Match{
		AlbumID:    item.AlbumID,
		Title:      item.Title,
		Artist:     item.Artist,
		CoverURL:   item.CoverURL,
		Year:       item.Year,
		Style:      item.Style,
		DiscogsURL: item.DiscogsURL,
		Distance:   distance,
	}
}

// Snapshot is one captured image and all artifacts derived from processing
// it. A Snapshot is immutable once committed; re-processing an image creates
// a new identity.
type Snapshot struct {
	SnapshotID string    `json:"snapshot_id"`
	CreatedAt  time.Time `json:"created_at"`
	OCRLines   []OCRLine `json:"ocr_lines"`
	// Embedding is nil when generation failed. Absence is representable;
	// a zero vector never is.
	Embedding []float32 `json:"embedding,omitempty"`
	Matches   []Match   `json:"matches"`
}

// HasEmbedding reports whether embedding generation succeeded for this
// snapshot. Detail reads use it to distinguish "matching skipped" from
// "no similar items".
func (s *Snapshot) HasEmbedding() bool {
	return len(s.Embedding) > 0
}
