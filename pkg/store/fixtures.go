package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/viterin/vek/vek32"

	"github.com/sleevescan/sleevescan/pkg/models"
)

var fixtureStyles = []string{
	"Psychedelic Rock", "Hard Bop", "Dub", "Krautrock", "Post-Punk",
	"Soul-Jazz", "Ambient", "Disco", "Rocksteady", "Minimal",
}

// GenerateReferenceFixtures produces a synthetic reference corpus with unit
// embeddings. Used by `sleevescan test create-fixtures` and store tests in
// place of the offline corpus-building process.
func GenerateReferenceFixtures(count, dimensions int) []models.ReferenceItem {
	items := make([]models.ReferenceItem, count)
	for i := range items {
		albumID := int64(i + 1)
		items[i] = models.ReferenceItem{
			AlbumID:    albumID,
			Title:      gofakeit.HipsterSentence(3),
			Artist:     gofakeit.Name(),
			CoverURL:   gofakeit.URL(),
			Year:       gofakeit.Number(1950, 2023),
			Style:      fixtureStyles[i%len(fixtureStyles)],
			DiscogsURL: fmt.Sprintf("https://www.discogs.com/release/%d", albumID),
			Embedding:  randomUnitVector(dimensions),
		}
	}
	return items
}

func randomUnitVector(dimensions int) []float32 {
	v := make([]float32, dimensions)
	for i := range v {
		v[i] = gofakeit.Float32Range(-1, 1)
	}
	norm := vek32.Norm(v)
	if norm == 0 {
		// all-zero draws are vanishingly rare; fall back to a basis vector
		v[0] = 1
		return v
	}
	return vek32.DivNumber(v, norm)
}

// WriteFixtureFile writes reference items as JSONL, one item per line.
func WriteFixtureFile(items []models.ReferenceItem, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return NewStorageError("failed to create fixture file", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range items {
		if err := enc.Encode(&items[i]); err != nil {
			return NewStorageError("failed to encode fixture item", err)
		}
	}
	if err := w.Flush(); err != nil {
		return NewStorageError("failed to flush fixture file", err)
	}

	return f.Sync()
}

// ReadFixtureFile reads a JSONL reference corpus in insertion order.
func ReadFixtureFile(path string) ([]models.ReferenceItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewStorageError("failed to open fixture file", err)
	}
	defer f.Close()

	var items []models.ReferenceItem
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var item models.ReferenceItem
		if err := json.Unmarshal(line, &item); err != nil {
			return nil, NewStorageError("failed to decode fixture item", err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, NewStorageError("failed to scan fixture file", err)
	}

	return items, nil
}

// LoadFixtures loads a JSONL reference corpus into the given store.
func LoadFixtures(ctx context.Context, artifactStore models.ArtifactStore, path string) error {
	items, err := ReadFixtureFile(path)
	if err != nil {
		return err
	}
	return artifactStore.PutReferenceItems(ctx, items)
}
