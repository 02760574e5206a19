package models

import "context"

// ArtifactStore persists snapshots and answers similarity queries against
// the reference corpus. The flat-file and Postgres backends implement
// identical observable behavior; callers never branch on backend type.
//
// A GetSnapshot immediately following a successful CommitSnapshot for the
// same identity returns data equivalent to what was committed.
type ArtifactStore interface {
	// CommitSnapshot persists a snapshot and all artifacts it owns.
	// Commits are additive and never overwrite.
	CommitSnapshot(ctx context.Context, snapshot *Snapshot) error
	// GetSnapshot retrieves a committed snapshot by identity. Returns an
	// error unwrapping ErrNotFound for unknown identities.
	GetSnapshot(ctx context.Context, snapshotID string) (*Snapshot, error)
	// ListSnapshots returns up to limit committed snapshots, newest first.
	ListSnapshots(ctx context.Context, limit int) ([]*Snapshot, error)
	// SearchReferences returns at most query.Limit() matches ordered
	// ascending by cosine distance, ties broken by corpus insertion order.
	SearchReferences(ctx context.Context, query *SearchQuery) ([]Match, error)
	// PutReferenceItems loads corpus entries. Used by the offline corpus
	// loading path, not the pipeline.
	PutReferenceItems(ctx context.Context, items []ReferenceItem) error
	Close() error
}
