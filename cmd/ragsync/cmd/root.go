// Package cmd provides the CLI commands for ragsync.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ragsync/ragsync/internal/config"
	"github.com/ragsync/ragsync/internal/embed"
	"github.com/ragsync/ragsync/internal/errors"
	"github.com/ragsync/ragsync/internal/logging"
	"github.com/ragsync/ragsync/internal/metrics"
	"github.com/ragsync/ragsync/internal/vectorstore"
	"github.com/ragsync/ragsync/pkg/version"
)

var (
	cfgPath        string
	collectionName string
	modelName      string
	metricsAddr    string
	debugMode      bool

	cfg            *config.Config
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ragsync CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragsync",
		Short: "Incremental document sync into a vector store",
		Long: `ragsync ingests repositories, directories, archives, and object-store
prefixes into a Qdrant collection, embedding only what changed.

Content fingerprints make re-syncs incremental: unchanged files are never
re-embedded, modified files are replaced atomically, and files that
disappear from a scoped source are pruned.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("ragsync version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default ~/.ragsync/config.yaml)")
	cmd.PersistentFlags().StringVar(&collectionName, "collection", "", "Target collection name")
	cmd.PersistentFlags().StringVar(&modelName, "model", "", "Embedding model (a bound collection wins)")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.ragsync/logs/")

	cmd.PersistentPreRunE = setup
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newCollectionsCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newJobsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setup(cmd *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}

	metrics.Serve(cmd.Context(), metricsAddr)
	return nil
}

// Execute runs the root command, rendering coded errors for the terminal.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatForCLI(err))
	}
	return err
}

func newStore() *vectorstore.QdrantStore {
	opts := []vectorstore.QdrantOption{}
	if cfg.Qdrant.APIKey != "" {
		opts = append(opts, vectorstore.WithAPIKey(cfg.Qdrant.APIKey))
	}
	if cfg.Qdrant.Timeout > 0 {
		opts = append(opts, vectorstore.WithTimeout(cfg.Qdrant.Timeout))
	}
	return vectorstore.NewQdrantStore(cfg.Qdrant.URL(), opts...)
}

func newEmbedderPool() *embed.Pool {
	var opts []embed.Option
	if cfg.Embedding.BaseURL != "" {
		opts = append(opts, embed.WithEndpoint(cfg.Embedding.BaseURL))
	}
	return embed.NewPool(opts...)
}

// effectiveModel resolves the model for this invocation: the --model flag,
// falling back to the configured default. A bound collection still wins
// over either.
func effectiveModel() string {
	if modelName != "" {
		return modelName
	}
	return cfg.Embedding.Model
}

func requireCollection() (string, error) {
	if collectionName == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "no collection specified", nil).
			WithSuggestion("pass --collection <name>")
	}
	return collectionName, nil
}

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
