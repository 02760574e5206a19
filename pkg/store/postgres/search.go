package postgres

import (
	"context"
	"fmt"

	"github.com/jinzhu/copier"
	"github.com/pgvector/pgvector-go"

	"github.com/sleevescan/sleevescan/pkg/models"
	"github.com/sleevescan/sleevescan/pkg/store"
)

// referenceSearchResult is the row shape for similarity queries: the corpus
// columns plus the computed cosine distance.
type referenceSearchResult struct {
	AlbumID    int64   `bun:"album_id"`
	Title      string  `bun:"title"`
	Artist     string  `bun:"artist"`
	CoverURL   string  `bun:"cover_url"`
	Year       int     `bun:"year"`
	Style      string  `bun:"style"`
	DiscogsURL string  `bun:"discogs_url"`
	Distance   float64 `bun:"distance"`
}

// SearchReferences delegates the top-k selection to pgvector. `<=>` is
// cosine distance; ordering ascending with the id tie-break keeps rankings
// bit-compatible with the client-side linear scan.
func (pas *PostgresArtifactStore) SearchReferences(
	ctx context.Context,
	query *models.SearchQuery,
) ([]models.Match, error) {
	if len(query.Embedding) == 0 {
		return nil, store.NewStorageError("query embedding is empty", nil)
	}

	v := pgvector.NewVector(query.Embedding)

	var rows []referenceSearchResult
	q := pas.Client.NewSelect().
		TableExpr("reference_item AS ri").
		ColumnExpr("ri.album_id, ri.title, ri.artist, ri.cover_url, ri.year, ri.style, ri.discogs_url").
		ColumnExpr("ri.embedding <=> ? AS distance", v).
		OrderExpr("distance ASC").
		OrderExpr("ri.id ASC").
		Limit(query.Limit())

	if query.MaxDistance > 0 {
		q = q.Where("(ri.embedding <=> ?) <= ?", v, query.MaxDistance)
	}

	err := q.Scan(ctx, &rows)
	if err != nil {
		// an unreachable backend is a reported failure, never an empty
		// result masquerading as "no matches"
		return nil, fmt.Errorf("reference search failed (%v): %w", err, models.ErrIndexUnavailable)
	}

	matches := make([]models.Match, len(rows))
	for i := range rows {
		if err := copier.Copy(&matches[i], &rows[i]); err != nil {
			return nil, store.NewStorageError("failed to map search result", err)
		}
	}

	return matches, nil
}
