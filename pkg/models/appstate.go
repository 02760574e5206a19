package models

import (
	"github.com/sleevescan/sleevescan/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	TextExtractor      TextExtractor
	EmbeddingGenerator EmbeddingGenerator
	ArtifactStore      ArtifactStore
	Pipeline           SnapshotPipeline
	Config             *config.Config
}
