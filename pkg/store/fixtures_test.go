package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viterin/vek/vek32"
)

func TestGenerateReferenceFixtures(t *testing.T) {
	items := GenerateReferenceFixtures(25, 8)
	require.Len(t, items, 25)

	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		assert.NotEmpty(t, item.Title)
		assert.NotEmpty(t, item.Artist)
		require.Len(t, item.Embedding, 8)
		assert.InDelta(t, 1.0, vek32.Norm(item.Embedding), 1e-5)

		_, duplicate := seen[item.AlbumID]
		assert.False(t, duplicate, "duplicate album id %d", item.AlbumID)
		seen[item.AlbumID] = struct{}{}
	}
}

func TestFixtureFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference_corpus.jsonl")
	items := GenerateReferenceFixtures(10, 4)

	require.NoError(t, WriteFixtureFile(items, path))

	got, err := ReadFixtureFile(path)
	require.NoError(t, err)
	require.Len(t, got, len(items))

	// insertion order is preserved; ranking tie-breaks depend on it
	for i := range items {
		assert.Equal(t, items[i].AlbumID, got[i].AlbumID)
		assert.Equal(t, items[i].Title, got[i].Title)
		assert.InDeltaSlice(t, float32Slice(items[i].Embedding), float32Slice(got[i].Embedding), 1e-6)
	}
}

func TestReadFixtureFileMissing(t *testing.T) {
	_, err := ReadFixtureFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func float32Slice(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
