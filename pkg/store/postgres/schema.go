package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/sleevescan/sleevescan/internal"
	"github.com/sleevescan/sleevescan/pkg/models"
)

var log = internal.GetLogger()

// SnapshotSchema holds one logical record per committed snapshot: the OCR
// lines, the embedding vector (null when generation failed) and the derived
// matches, written together in a single transaction.
type SnapshotSchema struct {
	bun.BaseModel `bun:"table:snapshot,alias:s"`

	// ID is used as a cursor for newest-first listing
	ID         int64            `bun:",pk,autoincrement"`
	SnapshotID string           `bun:",unique,notnull"`
	CreatedAt  time.Time        `bun:"type:timestamptz,notnull,default:current_timestamp"`
	OCRLines   []models.OCRLine `bun:"type:jsonb,nullzero"`
	Embedding  *pgvector.Vector `bun:"type:vector(384),nullzero"`
	Matches    []models.Match   `bun:"type:jsonb,nullzero"`
}

// BeforeCreateTable is a marker method to ensure uniform interface across all table models - used in table creation iterator
func (s *SnapshotSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// ReferenceItemSchema is the read-only corpus table. ID is insertion order
// and breaks distance ties in similarity queries.
type ReferenceItemSchema struct {
	bun.BaseModel `bun:"table:reference_item,alias:ri"`

	ID         int64           `bun:",pk,autoincrement"`
	AlbumID    int64           `bun:"album_id,unique,notnull"`
	Title      string          `bun:","`
	Artist     string          `bun:","`
	CoverURL   string          `bun:"cover_url"`
	Year       int             `bun:","`
	Style      string          `bun:","`
	DiscogsURL string          `bun:"discogs_url"`
	Embedding  pgvector.Vector `bun:"type:vector(384),notnull"`
}

func (s *ReferenceItemSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// Create lookup indexes after table creation
var _ bun.AfterCreateTableHook = (*SnapshotSchema)(nil)
var _ bun.AfterCreateTableHook = (*ReferenceItemSchema)(nil)

func (*SnapshotSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*SnapshotSchema)(nil)).
		Index("snapshot_snapshot_id_idx").
		Column("snapshot_id").
		IfNotExists().
		Exec(ctx)
	return err
}

func (*ReferenceItemSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*ReferenceItemSchema)(nil)).
		Index("reference_item_album_id_idx").
		Column("album_id").
		IfNotExists().
		Exec(ctx)
	return err
}

var tableList = []bun.BeforeCreateTableHook{
	&SnapshotSchema{},
	&ReferenceItemSchema{},
}

// enablePgVectorExtension creates the pgvector extension if it does not exist and updates it if it is out of date.
func enablePgVectorExtension(_ context.Context, db *bun.DB) error {
	// Create pgvector extension if it does not exist
	_, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("error creating pgvector extension: %w", err)
	}

	// if this is an upgrade, we may need to update the pgvector extension
	// this is a no-op if the extension is already up to date
	_, err = db.Exec("ALTER EXTENSION vector UPDATE")
	if err != nil {
		return fmt.Errorf("error updating pgvector extension: %w", err)
	}

	return nil
}

// CreateSchema creates the db schema if it does not exist.
func CreateSchema(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
) error {
	for _, schema := range tableList {
		_, err := db.NewCreateTable().
			Model(schema).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			// bun still trying to create indexes despite IfNotExists flag
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("error creating table for schema %T: %w", schema, err)
		}
	}

	// check that the embedding columns match the configured model width
	if err := checkEmbeddingDims(ctx, appState, db, "reference_item"); err != nil {
		return fmt.Errorf("error checking reference embedding dimensions: %w", err)
	}
	if err := checkEmbeddingDims(ctx, appState, db, "snapshot"); err != nil {
		return fmt.Errorf("error checking snapshot embedding dimensions: %w", err)
	}

	// Create HNSW index on the corpus embeddings if available
	if appState.Config.ArtifactStore.Postgres.AvailableIndexes.HSNW {
		if err := createHNSWIndex(ctx, db, "reference_item", "embedding"); err != nil {
			return fmt.Errorf("error creating hnsw index: %w", err)
		}
	}

	return nil
}

// createHNSWIndex creates an HNSW index on the given table and column if it does not exist.
// The index is created with the default M and efConstruction values. Only vector_cosine_ops is supported.
func createHNSWIndex(ctx context.Context, db *bun.DB, table, column string) error {
	const (
		m              = 16
		efConstruction = 64
	)

	idx := table + "_" + column + "_hnsw_idx"

	log.Infof("creating hnsw index on %s.%s if it does not exist", table, column)

	_, err := db.ExecContext(
		ctx,
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS ? ON ? USING hnsw (? vector_cosine_ops) WITH (M = ?, ef_construction = ?);",
		bun.Safe(idx),
		bun.Ident(table),
		bun.Ident(column),
		m,
		efConstruction,
	)
	if err != nil {
		return err
	}

	log.Infof("created hnsw index successfully on %s.%s if it did not exist", table, column)

	return nil
}

// checkEmbeddingDims compares an embedding column's width against the
// configured model width. The corpus is read-only from this process, so a
// mismatch is an error rather than a migration.
func checkEmbeddingDims(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
	tableName string,
) error {
	width, err := getEmbeddingColumnWidth(ctx, tableName, db)
	if err != nil {
		return fmt.Errorf("error getting embedding column width: %w", err)
	}

	if width != appState.Config.Vision.Dimensions {
		return fmt.Errorf(
			"%s embedding dimensions are %d, expected %d",
			tableName,
			width,
			appState.Config.Vision.Dimensions,
		)
	}
	return nil
}

// getEmbeddingColumnWidth returns the width of the embedding column in the provided table.
func getEmbeddingColumnWidth(ctx context.Context, tableName string, db *bun.DB) (int, error) {
	var width int
	err := db.NewSelect().
		Table("pg_attribute").
		ColumnExpr("atttypmod"). // vector width is stored in atttypmod
		Where("attrelid = ?::regclass", tableName).
		Where("attname = 'embedding'").
		Scan(ctx, &width)
	if err != nil {
		return 0, fmt.Errorf("error getting embedding column width: %w", err)
	}
	return width, nil
}

// NewPostgresConn creates a new bun.DB connection to a postgres database using the provided DSN.
// The connection is configured to pool connections based on the number of PROCs available.
func NewPostgresConn(appState *models.AppState) (*bun.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	maxOpenConns := 4 * runtime.GOMAXPROCS(0)

	// WithReadTimeout is 10 minutes to avoid timeouts when creating indexes.
	sqldb := sql.OpenDB(
		pgdriver.NewConnector(
			pgdriver.WithDSN(appState.Config.ArtifactStore.Postgres.DSN),
			pgdriver.WithReadTimeout(10*time.Minute),
		),
	)
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())

	// Enable pgvector extension
	err := enablePgVectorExtension(ctx, db)
	if err != nil {
		log.Print("error enabling pgvector extension: ", err)
		return nil, err
	}

	// IVFFLAT indexes are always available
	appState.Config.ArtifactStore.Postgres.AvailableIndexes.IVFFLAT = true

	// Check if HNSW indexes are available
	isHNSW, err := isHNSWAvailable(ctx, db)
	if err != nil {
		log.Print("error checking if hnsw indexes are available: ", err)
		return nil, err
	}
	if isHNSW {
		appState.Config.ArtifactStore.Postgres.AvailableIndexes.HSNW = true
	}

	return db, nil
}

// isHNSWAvailable checks if the vector extension version is 0.5.0+.
func isHNSWAvailable(ctx context.Context, db *bun.DB) (bool, error) {
	const minVersion = "0.5.0"
	requiredVersion, err := semver.NewVersion(minVersion)
	if err != nil {
		return false, fmt.Errorf("error parsing required vector extension version: %w", err)
	}

	var version string
	err = db.NewSelect().
		Column("extversion").
		TableExpr("pg_extension").
		Where("extname = 'vector'").
		Scan(ctx, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			// The vector extension is not installed
			log.Debug("vector extension not installed")
			return false, nil
		}
		// An error occurred while executing the query
		return false, fmt.Errorf("error checking vector extension version: %w", err)
	}

	thisVersion, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("error parsing vector extension version: %w", err)
	}

	// Compare the version numbers
	if requiredVersion.GreaterThan(thisVersion) {
		// The vector extension version is < 0.5.0
		log.Infof("vector extension version is < %s. hnsw indexing not available", minVersion)
		return false, nil
	}

	// The vector extension version is >= 0.5.0
	log.Infof("vector extension version is >= %s. hnsw indexing available", minVersion)

	return true, nil
}
