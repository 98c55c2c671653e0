package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragsync/ragsync/internal/collection"
	"github.com/ragsync/ragsync/internal/errors"
	"github.com/ragsync/ragsync/internal/vectorstore"
)

// newCollectionsCmd creates the collections command group.
func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage vector-store collections",
	}
	cmd.AddCommand(newCollectionsListCmd())
	cmd.AddCommand(newCollectionsCreateCmd())
	cmd.AddCommand(newCollectionsDeleteCmd())
	cmd.AddCommand(newCollectionsInfoCmd())
	return cmd
}

func newCollectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := collection.NewManager(newStore())
			names, err := mgr.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newCollectionsCreateCmd() *cobra.Command {
	var dim int
	var distance string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection bound to an embedding model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := effectiveModel()
			if model == "" {
				return errors.New(errors.ErrCodeInvalidInput, "no embedding model specified", nil).
					WithSuggestion("pass --model <name> or set embedding.model in the config")
			}
			mgr := collection.NewManager(newStore())
			if err := mgr.Create(cmd.Context(), args[0], model, dim, distance); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created collection %s (model %s)\n", args[0], model)
			return nil
		},
	}

	cmd.Flags().IntVar(&dim, "dim", 0, "Vector dimension (defaults to the model's known dimension)")
	cmd.Flags().StringVar(&distance, "distance", vectorstore.DistanceCosine, "Distance metric (Cosine, Dot, Euclid)")
	return cmd
}

func newCollectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := collection.NewManager(newStore())
			if err := mgr.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", args[0])
			return nil
		},
	}
}

func newCollectionsInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show collection details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := collection.NewManager(newStore())
			info, err := mgr.GetInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name:        %s\n", info.Name)
			fmt.Fprintf(out, "data points: %d\n", info.DataPoints)
			if info.Model != "" {
				fmt.Fprintf(out, "model:       %s\n", info.Model)
				fmt.Fprintf(out, "vector size: %d\n", info.VectorSize)
				fmt.Fprintf(out, "distance:    %s\n", info.Distance)
			} else {
				fmt.Fprintln(out, "model:       (unbound)")
			}
			return nil
		},
	}
}
