package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ragsync/ragsync/configs"
	"github.com/ragsync/ragsync/internal/config"
	"github.com/ragsync/ragsync/internal/errors"
)

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ragsync configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the example config to the default location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := cfgPath
			if path == "" {
				path = config.DefaultPath()
			}

			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeInvalidInput,
					fmt.Sprintf("config already exists at %s", path), nil).
					WithSuggestion("pass --force to overwrite")
			}

			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(configs.ExampleConfig), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "qdrant:    %s\n", cfg.Qdrant.URL())
			fmt.Fprintf(out, "model:     %s\n", cfg.Embedding.Model)
			fmt.Fprintf(out, "runtime:   %s\n", cfg.Runtime.Kind)
			fmt.Fprintf(out, "work dir:  %s\n", cfg.Runtime.WorkDir)
			fmt.Fprintf(out, "log level: %s\n", cfg.Logging.Level)
			return nil
		},
	}
}
