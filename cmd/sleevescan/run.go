package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/sleevescan/sleevescan/config"
	"github.com/sleevescan/sleevescan/pkg/auth"
	"github.com/sleevescan/sleevescan/pkg/models"
	"github.com/sleevescan/sleevescan/pkg/pipeline"
	"github.com/sleevescan/sleevescan/pkg/server"
	"github.com/sleevescan/sleevescan/pkg/store/filestore"
	"github.com/sleevescan/sleevescan/pkg/store/postgres"
	"github.com/sleevescan/sleevescan/pkg/vision"
)

const (
	ErrArtifactStoreTypeNotSet = "artifact_store.type must be set"
	ErrPostgresDSNNotSet       = "artifact_store.postgres.dsn must be set"
	ArtifactStoreTypePostgres  = "postgres"
	ArtifactStoreTypeFile      = "file"
)

// run is the entrypoint for the sleevescan server
func run() {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring sleevescan: %s", err)
	}

	handleCLIOptions(cfg)

	log.Infof("Starting sleevescan server version %s", config.VersionString)

	config.SetLogLevel(cfg)
	appState := NewAppState(cfg)

	srv := server.Create(appState)

	log.Infof("Listening on: %s", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil {
		log.Fatal(err)
	}
}

// NewAppState creates an AppState struct from the config file / ENV,
// initializes the artifact store, and connects to the inference sidecar.
func NewAppState(cfg *config.Config) *models.AppState {
	appState := &models.AppState{
		Config: cfg,
	}

	initializeVision(appState)

	artifactStore, err := initializeArtifactStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	appState.ArtifactStore = artifactStore
	log.Info("Using artifact store: ", cfg.ArtifactStore.Type)

	appState.Pipeline = pipeline.NewSnapshotPipeline(appState)

	setupSignalHandler(appState)

	return appState
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if generateKey {
		fmt.Println(auth.GenerateJWT(cfg))
		os.Exit(0)
	}
}

// initializeVision connects to the inference sidecar and wires the OCR and
// embedding wrappers. An unreachable sidecar is not fatal: the server still
// accepts snapshots and records stage failures until the sidecar comes up.
func initializeVision(appState *models.AppState) {
	client := vision.NewClient(appState.Config)
	if err := client.Start(context.Background()); err != nil {
		log.Warnf("inference sidecar unavailable at startup: %v", err)
	}
	appState.TextExtractor = vision.NewOCRExtractor(client)
	appState.EmbeddingGenerator = vision.NewEmbedder(client, appState.Config)
}

// initializeArtifactStore initializes the artifact store based on the
// config file / ENV
func initializeArtifactStore(cfg *config.Config) (models.ArtifactStore, error) {
	switch cfg.ArtifactStore.Type {
	case "":
		return nil, fmt.Errorf(ErrArtifactStoreTypeNotSet)
	case ArtifactStoreTypeFile:
		return filestore.NewFileArtifactStore(cfg)
	case ArtifactStoreTypePostgres:
		if cfg.ArtifactStore.Postgres.DSN == "" {
			return nil, fmt.Errorf(ErrPostgresDSNNotSet)
		}
		appState := &models.AppState{Config: cfg}
		db, err := postgres.NewPostgresConn(appState)
		if err != nil {
			return nil, err
		}
		if cfg.Log.Level == "debug" {
			pgDebugLogging(db)
		}
		return postgres.NewPostgresArtifactStore(appState, db)
	default:
		return nil, fmt.Errorf(
			"artifact_store.type (%s) is not supported",
			cfg.ArtifactStore.Type,
		)
	}
}

func pgDebugLogging(db *bun.DB) {
	db.AddQueryHook(logrusbun.NewQueryHook(logrusbun.QueryHookOptions{
		LogSlow:         time.Second,
		Logger:          log,
		QueryLevel:      logrus.DebugLevel,
		ErrorLevel:      logrus.ErrorLevel,
		SlowLevel:       logrus.WarnLevel,
		MessageTemplate: "{{.Operation}}[{{.Duration}}]: {{.Query}}",
		ErrorTemplate:   "{{.Operation}}[{{.Duration}}]: {{.Query}}: {{.Error}}",
	}))
}

// setupSignalHandler sets up a signal handler to close the ArtifactStore
// connection on termination
func setupSignalHandler(appState *models.AppState) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		if err := appState.ArtifactStore.Close(); err != nil {
			log.Errorf("Error closing ArtifactStore connection: %v", err)
		}
		os.Exit(0)
	}()
}
