package config

import "time"

// Config holds the configuration of the application
// Use cmd.NewConfig to create a new instance
type Config struct {
	Vision        VisionConfig        `mapstructure:"vision"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Search        SearchConfig        `mapstructure:"search"`
	ArtifactStore ArtifactStoreConfig `mapstructure:"artifact_store"`
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Auth          AuthConfig          `mapstructure:"auth"`
}

// VisionConfig configures the inference sidecar serving the OCR and image
// embedding models.
type VisionConfig struct {
	ServerURL  string        `mapstructure:"server_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Dimensions int           `mapstructure:"dimensions"`
}

type OCRConfig struct {
	// ConfidenceThreshold is exclusive: only lines with confidence strictly
	// greater than it are retained.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

type SearchConfig struct {
	TopK int `mapstructure:"top_k"`
	// MinSimilarity is the cosine similarity floor applied to matches.
	// Zero disables the floor.
	MinSimilarity float64 `mapstructure:"min_similarity"`
}

type ArtifactStoreConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	File     FileConfig     `mapstructure:"file"`
}

type PostgresConfig struct {
	DSN              string           `mapstructure:"dsn"`
	AvailableIndexes AvailableIndexes `mapstructure:"-"`
}

type AvailableIndexes struct {
	IVFFLAT bool
	HSNW    bool
}

// FileConfig configures the flat-file artifact store backend.
type FileConfig struct {
	// Path is the directory holding the three record logs.
	Path string `mapstructure:"path"`
	// CorpusPath is the JSONL reference corpus file.
	CorpusPath string `mapstructure:"corpus_path"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// SnapshotDir is where raw snapshot images are retained.
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	// Secret is loaded from ENV not config file.
	Secret   string `mapstructure:"secret"`
	Required bool   `mapstructure:"required"`
}
