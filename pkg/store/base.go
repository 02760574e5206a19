package store

// BaseArtifactStore is the base implementation of an ArtifactStore. Client is
// the underlying datastore client, such as a database connection.
type BaseArtifactStore[T any] struct {
	Client T
}
