package config

import (
	"strings"
	"time"

	"github.com/sleevescan/sleevescan/internal"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// We're bootstrapping so avoid any imports from other packages
var log = logrus.New()

// defaults are applied before the config file and ENV are read. The OCR
// confidence threshold and similarity floor mirror the matching policy the
// reference corpus was built against.
var defaults = map[string]any{
	"vision.server_url":               "http://localhost:5557",
	"vision.timeout":                  30 * time.Second,
	"vision.dimensions":               384,
	"ocr.confidence_threshold":        0.5,
	"search.top_k":                    5,
	"search.min_similarity":           0.7,
	"artifact_store.type":             "file",
	"artifact_store.file.path":        "./data",
	"artifact_store.file.corpus_path": "./data/reference_corpus.jsonl",
	"server.port":                     8000,
	"server.snapshot_dir":             "./data/snapshots",
	"log.level":                       "info",
}

// LoadConfig loads the config file and ENV variables into a Config struct
func LoadConfig(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetConfigType("yaml")

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.SetEnvPrefix("SLEEVESCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// a missing config file is fine; defaults + ENV carry the day
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Environment variables take precedence over config file
	loadDotEnv()

	err := viper.BindEnv("auth.secret", "SLEEVESCAN_AUTH_SECRET")
	if err != nil {
		log.Fatalf("Error binding environment variable: %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv loads environment variables from .env file
func loadDotEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Warn(".env file not found or unable to load")
	}
}

// SetLogLevel sets the log level based on the config file. Defaults to INFO if not set or invalid
func SetLogLevel(cfg *Config) {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	internal.SetLogLevel(level)
	log.Info("Log level set to: ", level)
}
