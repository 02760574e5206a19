package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sleevescan/sleevescan/config"
	"github.com/sleevescan/sleevescan/internal"
	"github.com/sleevescan/sleevescan/pkg/models"
	"github.com/sleevescan/sleevescan/pkg/search"
	"github.com/sleevescan/sleevescan/pkg/store"
)

var log = internal.GetLogger()

// The three record logs. Each row is one JSON object keyed by snapshot ID;
// reads are full scans filtered by key, acceptable at snapshot-gallery scale.
const (
	ocrLogFile       = "ocr_lines.jsonl"
	embeddingLogFile = "embeddings.jsonl"
	matchLogFile     = "matches.jsonl"
)

type ocrRecord struct {
	SnapshotID string  `json:"snapshot_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// embeddingRecord doubles as the snapshot presence row: every commit writes
// exactly one, with a null vector when embedding generation failed. This
// keeps a snapshot with empty OCR and no matches retrievable.
type embeddingRecord struct {
	SnapshotID string    `json:"snapshot_id"`
	CreatedAt  time.Time `json:"created_at"`
	Vector     []float32 `json:"vector"`
}

type matchRecord struct {
	SnapshotID string `json:"snapshot_id"`
	models.Match
}

// Force compiler to validate that FileArtifactStore implements the ArtifactStore interface.
var _ models.ArtifactStore = &FileArtifactStore{}

// FileArtifactStore is the flat-file ArtifactStore backend: three
// append-only JSONL logs for snapshot artifacts plus an in-memory reference
// corpus scanned linearly for similarity queries.
type FileArtifactStore struct {
	dir        string
	corpusPath string

	// mu serializes appends so concurrent commits cannot interleave rows.
	mu sync.Mutex

	corpusMu sync.RWMutex
	corpus   []models.ReferenceItem
}

// NewFileArtifactStore returns a new FileArtifactStore. Use this to correctly
// initialize the store.
func NewFileArtifactStore(cfg *config.Config) (*FileArtifactStore, error) {
	dir := cfg.ArtifactStore.File.Path
	if dir == "" {
		return nil, store.NewStorageError("artifact_store.file.path not set", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, store.NewStorageError("failed to create store directory", err)
	}

	fas := &FileArtifactStore{
		dir:        dir,
		corpusPath: cfg.ArtifactStore.File.CorpusPath,
	}

	if fas.corpusPath != "" {
		if _, err := os.Stat(fas.corpusPath); err == nil {
			corpus, err := store.ReadFixtureFile(fas.corpusPath)
			if err != nil {
				return nil, err
			}
			fas.corpus = corpus
			log.Infof("loaded %d reference items from %s", len(corpus), fas.corpusPath)
		}
	}

	return fas, nil
}

func (fas *FileArtifactStore) CommitSnapshot(
	ctx context.Context,
	snapshot *models.Snapshot,
) error {
	if snapshot == nil || snapshot.SnapshotID == "" {
		return store.NewStorageError("snapshot identity is empty", nil)
	}

	ocrRows := make([]any, len(snapshot.OCRLines))
	for i, line := range snapshot.OCRLines {
		ocrRows[i] = ocrRecord{
			SnapshotID: snapshot.SnapshotID,
			Text:       line.Text,
			Confidence: line.Confidence,
		}
	}

	matchRows := make([]any, len(snapshot.Matches))
	for i, match := range snapshot.Matches {
		matchRows[i] = matchRecord{SnapshotID: snapshot.SnapshotID, Match: match}
	}

	fas.mu.Lock()
	defer fas.mu.Unlock()

	if err := fas.appendRows(ctx, ocrLogFile, ocrRows); err != nil {
		return store.NewStorageError("failed to append ocr records", err)
	}
	embeddingRow := embeddingRecord{
		SnapshotID: snapshot.SnapshotID,
		CreatedAt:  snapshot.CreatedAt,
		Vector:     snapshot.Embedding,
	}
	if err := fas.appendRows(ctx, embeddingLogFile, []any{embeddingRow}); err != nil {
		return store.NewStorageError("failed to append embedding record", err)
	}
	if err := fas.appendRows(ctx, matchLogFile, matchRows); err != nil {
		return store.NewStorageError("failed to append match records", err)
	}

	return nil
}

func (fas *FileArtifactStore) GetSnapshot(
	ctx context.Context,
	snapshotID string,
) (*models.Snapshot, error) {
	snapshots, err := fas.readSnapshots(ctx, func(id string) bool { return id == snapshotID })
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, models.NewNotFoundError("snapshot " + snapshotID)
	}
	return snapshots[len(snapshots)-1], nil
}

func (fas *FileArtifactStore) ListSnapshots(
	ctx context.Context,
	limit int,
) ([]*models.Snapshot, error) {
	snapshots, err := fas.readSnapshots(ctx, func(string) bool { return true })
	if err != nil {
		return nil, err
	}

	// log order is commit order; newest first
	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	if limit > 0 && len(snapshots) > limit {
		snapshots = snapshots[:limit]
	}

	return snapshots, nil
}

func (fas *FileArtifactStore) SearchReferences(
	_ context.Context,
	query *models.SearchQuery,
) ([]models.Match, error) {
	fas.corpusMu.RLock()
	defer fas.corpusMu.RUnlock()

	matches, err := search.TopK(query, fas.corpus)
	if err != nil {
		return nil, store.NewEmbeddingMismatchError(err)
	}
	return matches, nil
}

func (fas *FileArtifactStore) PutReferenceItems(
	_ context.Context,
	items []models.ReferenceItem,
) error {
	if len(items) == 0 {
		return nil
	}

	fas.corpusMu.Lock()
	defer fas.corpusMu.Unlock()

	if fas.corpusPath != "" {
		rows := make([]any, len(items))
		for i := range items {
			rows[i] = &items[i]
		}
		if err := appendJSONRows(fas.corpusPath, rows); err != nil {
			return store.NewStorageError("failed to append reference items", err)
		}
	}
	fas.corpus = append(fas.corpus, items...)

	return nil
}

func (fas *FileArtifactStore) Close() error {
	return nil
}

// readSnapshots scans the three logs once and assembles snapshots whose ID
// passes the filter, in commit order.
func (fas *FileArtifactStore) readSnapshots(
	ctx context.Context,
	keep func(snapshotID string) bool,
) ([]*models.Snapshot, error) {
	var order []string
	byID := make(map[string]*models.Snapshot)

	err := fas.scanLog(ctx, embeddingLogFile, func(line []byte) error {
		var rec embeddingRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if !keep(rec.SnapshotID) {
			return nil
		}
		if _, ok := byID[rec.SnapshotID]; !ok {
			order = append(order, rec.SnapshotID)
		}
		byID[rec.SnapshotID] = &models.Snapshot{
			SnapshotID: rec.SnapshotID,
			CreatedAt:  rec.CreatedAt,
			OCRLines:   []models.OCRLine{},
			Embedding:  rec.Vector,
			Matches:    []models.Match{},
		}
		return nil
	})
	if err != nil {
		return nil, store.NewStorageError("failed to scan embedding log", err)
	}

	err = fas.scanLog(ctx, ocrLogFile, func(line []byte) error {
		var rec ocrRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if snapshot, ok := byID[rec.SnapshotID]; ok {
			snapshot.OCRLines = append(snapshot.OCRLines, models.OCRLine{
				Text:       rec.Text,
				Confidence: rec.Confidence,
			})
		}
		return nil
	})
	if err != nil {
		return nil, store.NewStorageError("failed to scan ocr log", err)
	}

	err = fas.scanLog(ctx, matchLogFile, func(line []byte) error {
		var rec matchRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		if snapshot, ok := byID[rec.SnapshotID]; ok {
			snapshot.Matches = append(snapshot.Matches, rec.Match)
		}
		return nil
	})
	if err != nil {
		return nil, store.NewStorageError("failed to scan match log", err)
	}

	snapshots := make([]*models.Snapshot, len(order))
	for i, id := range order {
		snapshots[i] = byID[id]
	}
	return snapshots, nil
}

func (fas *FileArtifactStore) scanLog(
	ctx context.Context,
	name string,
	fn func(line []byte) error,
) error {
	f, err := os.Open(filepath.Join(fas.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (fas *FileArtifactStore) appendRows(ctx context.Context, name string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return appendJSONRows(filepath.Join(fas.dir, name), rows)
}

// appendJSONRows appends each row as one JSON line and syncs before close so
// a committed row is durable when CommitSnapshot returns.
func appendJSONRows(path string, rows []any) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return f.Sync()
}
