// Package cmd provides the CLI commands for applyrag.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/applyrag/applyrag/internal/config"
	"github.com/applyrag/applyrag/internal/embed"
	"github.com/applyrag/applyrag/internal/index"
	"github.com/applyrag/applyrag/internal/logging"
	"github.com/applyrag/applyrag/internal/search"
	"github.com/applyrag/applyrag/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the applyrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "applyrag",
		Short: "Ranked retrieval over a job application tracker",
		Long: `applyrag indexes a job application tracker and answers queries with
hybrid retrieval (keyword + embedding), re-ranked by learned outcome
priors and application memory.

Start with 'applyrag build --tracker applications.csv', then query with
'applyrag query "senior ml engineer"'.`,
		Version:      version.Version,
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("applyrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.applyrag/logs/")
	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newThumbCmd())
	cmd.AddCommand(newFeedbackBatchCmd())
	cmd.AddCommand(newSyncFeedbackCmd())
	cmd.AddCommand(newRecommendCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = debugMode

	_, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// logging is never worth failing a command over
		return nil
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads configuration from the working directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	return config.Load(cwd)
}

// openService wires the embedder, index, and service for a command.
// The caller must Close the returned index.
func openService(cfg *config.Config) (*search.Service, *index.Index, error) {
	embedder, err := embed.NewCachedEmbedder(
		embed.NewHashingEmbedder(cfg.Embeddings.Dimensions),
		cfg.Embeddings.CacheSize,
	)
	if err != nil {
		return nil, nil, err
	}

	indexDir := filepath.Join(cfg.Paths.DataDir, "index")
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating index dir: %w", err)
	}
	idx, err := index.Open(indexDir, embedder)
	if err != nil {
		return nil, nil, err
	}

	return search.NewService(cfg, idx, cfg.Paths.DataDir), idx, nil
}

// trackerPath resolves the tracker CSV from flag or config.
func trackerPath(cfg *config.Config, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if cfg.Paths.TrackerCSV != "" {
		return cfg.Paths.TrackerCSV, nil
	}
	return "", fmt.Errorf("no tracker file: pass --tracker or set paths.tracker_csv in %s", config.ConfigFileName)
}
