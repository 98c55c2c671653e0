package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragsync/ragsync/internal/errors"
	"github.com/ragsync/ragsync/internal/job"
)

// newJobsCmd creates the jobs command group, which runs syncs through the
// configured runtime instead of in-process.
func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run and manage sync jobs on the configured runtime",
	}
	cmd.AddCommand(newJobsRunCmd())
	cmd.AddCommand(newJobsStatusCmd())
	cmd.AddCommand(newJobsLogsCmd())
	cmd.AddCommand(newJobsCancelCmd())
	return cmd
}

func jobRuntime() (job.Runtime, error) {
	return job.NewRuntime(cfg.Runtime)
}

func newJobsRunCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "run <repo|file|archive|s3> <source>",
		Short: "Submit a sync job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := requireCollection()
			if err != nil {
				return err
			}

			var def job.Definition
			switch args[0] {
			case "repo":
				def = job.RepoSync(args[1], coll)
			case "file":
				def = job.FileSync(args[1], coll)
			case "archive":
				def = job.ArchiveSync(args[1], coll)
			case "s3":
				def = job.ObjectStoreSync(args[1], coll)
			default:
				return errors.New(errors.ErrCodeInvalidInput,
					fmt.Sprintf("unknown job operation %q", args[0]), nil).
					WithSuggestion("use repo, file, archive, or s3")
			}

			rt, err := jobRuntime()
			if err != nil {
				return err
			}
			id, err := rt.Submit(cmd.Context(), def)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)

			if !wait {
				return nil
			}
			res, err := rt.Wait(cmd.Context(), id, def.Resources.Timeout)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, res.Status)
			if res.Status != job.StatusSucceeded {
				return errors.New(errors.ErrCodeJobFailed,
					fmt.Sprintf("job %s finished with status %s", id, res.Status), nil)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the job finishes")
	return cmd
}

func newJobsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := jobRuntime()
			if err != nil {
				return err
			}
			status, err := rt.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func newJobsLogsCmd() *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Print a job's output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := jobRuntime()
			if err != nil {
				return err
			}
			logs, err := rt.Logs(cmd.Context(), args[0], tail)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), logs)
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 0, "Show only the last N lines")
	return cmd
}

func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := jobRuntime()
			if err != nil {
				return err
			}
			if err := rt.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
			return nil
		},
	}
}
