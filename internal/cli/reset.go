package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ResetCmd returns the reset command
func ResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the entire corpus",
		Long:  "Clear the vector index, knowledge graph, documents and job queue. All stores are cleared in one transaction, so a failed reset leaves the corpus untouched.",
		RunE:  runReset,
	}

	cmd.Flags().Bool("yes", false, "Skip the confirmation prompt")

	return cmd
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		fmt.Print("This deletes all chunks, entities, relations, documents and jobs. Continue? [y/N] ")
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("aborted")
			return nil
		}
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.ResetCorpus(ctx); err != nil {
		return err
	}
	fmt.Println("corpus reset")
	return nil
}
