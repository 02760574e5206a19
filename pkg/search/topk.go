package search

import (
	"fmt"
	"math"
	"sort"

	"github.com/viterin/vek/vek32"

	"github.com/sleevescan/sleevescan/pkg/models"
)

// CosineDistance returns 1 - cosine similarity. Corpus and query embeddings
// are unit-normalized, so the dot product is sufficient.
func CosineDistance(a, b []float32) float64 {
	return 1 - float64(vek32.Dot(a, b))
}

// TopK runs a linear scan of the corpus and returns at most query.Limit()
// matches ordered ascending by cosine distance. Ties are broken by corpus
// insertion order so results are deterministic. Items beyond
// query.MaxDistance (when set) are excluded entirely. Rankings are
// equivalent to the server-side vector search on the same corpus and query.
func TopK(query *models.SearchQuery, corpus []models.ReferenceItem) ([]models.Match, error) {
	if len(query.Embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}

	matches := make([]models.Match, 0, len(corpus))
	seen := make(map[int64]struct{}, len(corpus))
	for _, item := range corpus {
		if len(item.Embedding) != len(query.Embedding) {
			return nil, fmt.Errorf(
				"corpus embedding width %d does not match query width %d for album %d",
				len(item.Embedding), len(query.Embedding), item.AlbumID,
			)
		}
		if _, ok := seen[item.AlbumID]; ok {
			continue
		}
		seen[item.AlbumID] = struct{}{}

		dist := CosineDistance(query.Embedding, item.Embedding)
		if math.IsNaN(dist) || math.IsInf(dist, 0) {
			continue
		}
		if query.MaxDistance > 0 && dist > query.MaxDistance {
			continue
		}
		matches = append(matches, models.NewMatch(item, dist))
	}

	// Stable sort preserves insertion order for equal distances.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if limit := query.Limit(); len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}
