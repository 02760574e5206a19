package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sleevescan/sleevescan/config"
	"github.com/sleevescan/sleevescan/internal"
	"github.com/sleevescan/sleevescan/pkg/store"
)

var (
	log *logrus.Logger

	cfgFile     string
	showVersion bool
	generateKey bool
	fixturePath string
)

var cmd = &cobra.Command{
	Use:   "sleevescan",
	Short: "sleevescan captures vinyl sleeve snapshots, extracts text and visual fingerprints, and matches them against a reference record corpus",
	Run:   func(cmd *cobra.Command, args []string) { run() },
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test utilities",
}

var createFixturesCmd = &cobra.Command{
	Use:   "create-fixtures",
	Short: "Generate a reference corpus fixture file",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Error configuring sleevescan: %s", err)
		}
		fixtureCount, _ := cmd.Flags().GetInt("count")
		outputPath, _ := cmd.Flags().GetString("output")
		items := store.GenerateReferenceFixtures(fixtureCount, cfg.Vision.Dimensions)
		if err := store.WriteFixtureFile(items, outputPath); err != nil {
			log.Fatalf("Failed to write fixtures: %v", err)
		}
		fmt.Println("Fixtures created successfully.")
	},
}

var loadFixturesCmd = &cobra.Command{
	Use:   "load-fixtures",
	Short: "Load a reference corpus fixture file into the artifact store",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatalf("Error configuring sleevescan: %s", err)
		}
		artifactStore, err := initializeArtifactStore(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize artifact store: %v", err)
		}
		defer artifactStore.Close()
		if err := store.LoadFixtures(context.Background(), artifactStore, fixturePath); err != nil {
			log.Fatalf("Failed to load fixtures: %v", err)
		}
		fmt.Println("Fixtures loaded successfully.")
	},
}

func init() {
	testCmd.AddCommand(createFixturesCmd)
	testCmd.AddCommand(loadFixturesCmd)
	cmd.AddCommand(testCmd)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default config.yaml)")
	cmd.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "print version number")
	cmd.PersistentFlags().
		BoolVarP(&generateKey, "generate-token", "g", false, "generate a new JWT token")

	createFixturesCmd.Flags().Int("count", 100, "Number of reference items to generate")
	createFixturesCmd.Flags().String("output", "./test_data/reference_corpus.jsonl", "Path to output fixture file")
	loadFixturesCmd.Flags().
		StringVarP(&fixturePath, "fixturePath", "f", "./test_data/reference_corpus.jsonl", "Fixture file to load")
}

// Execute executes the root cobra command.
func Execute() {
	log = internal.GetLogger()
	log.SetLevel(logrus.InfoLevel)

	err := cmd.Execute()

	if err != nil {
		os.Exit(1)
	}
}
