package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragsync/ragsync/internal/chunk"
	"github.com/ragsync/ragsync/internal/diff"
	"github.com/ragsync/ragsync/internal/source"
	"github.com/ragsync/ragsync/internal/sync"
)

// newUploadCmd creates the upload command group.
func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Sync a source into a collection",
	}
	cmd.AddCommand(newUploadFileCmd())
	cmd.AddCommand(newUploadRepoCmd())
	cmd.AddCommand(newUploadArchiveCmd())
	cmd.AddCommand(newUploadS3Cmd())
	return cmd
}

// syncTrees runs the orchestrator over every tree of an acquisition and
// prints a summary per tree.
func syncTrees(cmd *cobra.Command, acq *source.Acquisition) error {
	defer acq.Cleanup()

	coll, err := requireCollection()
	if err != nil {
		return err
	}

	pool := newEmbedderPool()
	defer pool.Close()

	orch := sync.NewOrchestrator(
		newStore(),
		sync.PoolClients(pool, cfg.Embedding.APIToken),
		chunk.NewTextChunker(chunk.DefaultMaxChunkChars, chunk.DefaultOverlapChars),
		cfg.Sync,
		sync.WithProgress(stdoutIsTTY()),
	)

	ctx := cmd.Context()
	if cfg.Sync.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sync.JobTimeout)
		defer cancel()
	}

	for _, tree := range acq.Trees {
		req := sync.Request{
			Root:       tree.Root,
			Prefix:     tree.Prefix,
			Mode:       diff.PrefixScoped,
			Collection: coll,
			Model:      effectiveModel(),
			Exclude:    tree.Exclude,
		}
		if tree.Flat {
			req.Mode = diff.Flat
			req.Prefix = ""
		}

		stats, err := orch.Sync(ctx, req)
		if err != nil {
			return err
		}
		stats.Summary(cmd.OutOrStdout(), stdoutIsTTY())
	}
	return nil
}

func newUploadFileCmd() *cobra.Command {
	var prefix string
	var flat bool

	cmd := &cobra.Command{
		Use:   "file <dir>",
		Short: "Sync a local directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if flat {
				return syncTrees(cmd, source.FlatDirectory(path))
			}
			if prefix == "" {
				prefix = filepath.Base(path)
			}
			return syncTrees(cmd, source.Directory(path, prefix))
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Logical path prefix (default: directory name)")
	cmd.Flags().BoolVar(&flat, "flat", false, "Sync as loose files (basenames only, never prunes)")
	return cmd
}

func newUploadRepoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repo <url>",
		Short: "Clone and sync a git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acq, err := source.Clone(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return syncTrees(cmd, acq)
		},
	}
}

func newUploadArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <path>",
		Short: "Extract and sync an archive",
		Long: `Extract an archive (.zip, .tar, .tar.gz, .tar.bz2, .tar.xz) and sync its
contents. Directories containing a .git entry sync repo-scoped under their
directory name; remaining loose files sync flat.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acq, err := source.Archive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return syncTrees(cmd, acq)
		},
	}
}

func newUploadS3Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "s3 <s3://bucket/prefix>",
		Short: "Download and sync an object-store prefix",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			if len(args) == 2 {
				url = "s3://" + strings.TrimSuffix(args[0], "/") + "/" + args[1]
			}

			client, err := source.NewS3Client(cmd.Context())
			if err != nil {
				return err
			}
			acq, err := source.DownloadS3(cmd.Context(), client, url)
			if err != nil {
				return err
			}
			return syncTrees(cmd, acq)
		},
	}
}
