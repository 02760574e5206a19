package models

const DefaultSearchLimit = 5

// SearchQuery is a top-k nearest-neighbor query against the reference
// corpus. Both backends must produce equivalent rankings for the same
// corpus and query.
type SearchQuery struct {
	Embedding []float32
	// TopK defaults to DefaultSearchLimit when zero.
	TopK int
	// MaxDistance excludes matches with cosine distance above it.
	// Zero disables the floor.
	MaxDistance float64
}

func (q *SearchQuery) Limit() int {
	if q.TopK <= 0 {
		return DefaultSearchLimit
	}
	return q.TopK
}
