package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/sleevescan/sleevescan/pkg/models"
	"github.com/sleevescan/sleevescan/pkg/store"
)

// NewPostgresArtifactStore returns a new PostgresArtifactStore. Use this to
// correctly initialize the store.
func NewPostgresArtifactStore(
	appState *models.AppState,
	client *bun.DB,
) (*PostgresArtifactStore, error) {
	if appState == nil {
		return nil, store.NewStorageError("nil appState received", nil)
	}

	pas := &PostgresArtifactStore{
		BaseArtifactStore: store.BaseArtifactStore[*bun.DB]{Client: client},
		appState:          appState,
	}
	err := pas.OnStart(context.Background(), appState)
	if err != nil {
		return nil, store.NewStorageError("failed to run OnStart", err)
	}
	return pas, nil
}

// Force compiler to validate that PostgresArtifactStore implements the ArtifactStore interface.
var _ models.ArtifactStore = &PostgresArtifactStore{}

// PostgresArtifactStore is the relational ArtifactStore backend. Similarity
// queries are delegated to pgvector; commits rely on the engine's
// transaction isolation.
type PostgresArtifactStore struct {
	store.BaseArtifactStore[*bun.DB]
	appState *models.AppState
}

func (pas *PostgresArtifactStore) OnStart(
	ctx context.Context,
	appState *models.AppState,
) error {
	return CreateSchema(ctx, appState, pas.Client)
}

func (pas *PostgresArtifactStore) CommitSnapshot(
	ctx context.Context,
	snapshot *models.Snapshot,
) error {
	if snapshot == nil || snapshot.SnapshotID == "" {
		return store.NewStorageError("snapshot identity is empty", nil)
	}

	row := snapshotSchemaFromModel(snapshot)

	// a snapshot row owns all its artifacts, written in one transaction
	err := pas.Client.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		return store.NewStorageError("failed to commit snapshot", err)
	}

	return nil
}

func (pas *PostgresArtifactStore) GetSnapshot(
	ctx context.Context,
	snapshotID string,
) (*models.Snapshot, error) {
	row := &SnapshotSchema{}
	err := pas.Client.NewSelect().
		Model(row).
		Where("snapshot_id = ?", snapshotID).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("snapshot " + snapshotID)
		}
		return nil, store.NewStorageError("failed to get snapshot", err)
	}

	return snapshotModelFromSchema(row), nil
}

func (pas *PostgresArtifactStore) ListSnapshots(
	ctx context.Context,
	limit int,
) ([]*models.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []SnapshotSchema
	err := pas.Client.NewSelect().
		Model(&rows).
		Order("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to list snapshots", err)
	}

	snapshots := make([]*models.Snapshot, len(rows))
	for i := range rows {
		snapshots[i] = snapshotModelFromSchema(&rows[i])
	}
	return snapshots, nil
}

func (pas *PostgresArtifactStore) PutReferenceItems(
	ctx context.Context,
	items []models.ReferenceItem,
) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]ReferenceItemSchema, len(items))
	for i, item := range items {
		if len(item.Embedding) != pas.appState.Config.Vision.Dimensions {
			return store.NewEmbeddingMismatchError(nil)
		}
		rows[i] = ReferenceItemSchema{
			AlbumID:    item.AlbumID,
			Title:      item.Title,
			Artist:     item.Artist,
			CoverURL:   item.CoverURL,
			Year:       item.Year,
			Style:      item.Style,
			DiscogsURL: item.DiscogsURL,
			Embedding:  pgvector.NewVector(item.Embedding),
		}
	}

	// the corpus is append-only; re-loads of the same album are ignored
	_, err := pas.Client.NewInsert().
		Model(&rows).
		On("CONFLICT (album_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return store.NewStorageError("failed to put reference items", err)
	}

	return nil
}

func (pas *PostgresArtifactStore) Close() error {
	if pas.Client != nil {
		return pas.Client.Close()
	}
	return nil
}

func snapshotSchemaFromModel(snapshot *models.Snapshot) *SnapshotSchema {
	row := &SnapshotSchema{
		SnapshotID: snapshot.SnapshotID,
		CreatedAt:  snapshot.CreatedAt,
		OCRLines:   snapshot.OCRLines,
		Matches:    snapshot.Matches,
	}
	if snapshot.HasEmbedding() {
		v := pgvector.NewVector(snapshot.Embedding)
		row.Embedding = &v
	}
	return row
}

func snapshotModelFromSchema(row *SnapshotSchema) *models.Snapshot {
	snapshot := &models.Snapshot{
		SnapshotID: row.SnapshotID,
		CreatedAt:  row.CreatedAt,
		OCRLines:   row.OCRLines,
		Matches:    row.Matches,
	}
	if snapshot.OCRLines == nil {
		snapshot.OCRLines = []models.OCRLine{}
	}
	if snapshot.Matches == nil {
		snapshot.Matches = []models.Match{}
	}
	if row.Embedding != nil {
		snapshot.Embedding = row.Embedding.Slice()
	}
	return snapshot
}
