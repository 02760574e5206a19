package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5557", cfg.Vision.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.Vision.Timeout)
	assert.Equal(t, 384, cfg.Vision.Dimensions)
	assert.Equal(t, 0.5, cfg.OCR.ConfidenceThreshold)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 0.7, cfg.Search.MinSimilarity)
	assert.Equal(t, "file", cfg.ArtifactStore.Type)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SLEEVESCAN_SEARCH_TOP_K", "9")
	t.Setenv("SLEEVESCAN_ARTIFACT_STORE_TYPE", "postgres")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Search.TopK)
	assert.Equal(t, "postgres", cfg.ArtifactStore.Type)
}

func TestLoadConfigAuthSecretFromEnv(t *testing.T) {
	t.Setenv("SLEEVESCAN_AUTH_SECRET", "super-secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "super-secret", cfg.Auth.Secret)
}
