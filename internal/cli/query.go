package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// QueryCmd returns the query command
func QueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <question>",
		Short: "Retrieve a context package for a question",
		Long:  "Run the retrieval pipeline for a natural-language question and print the assembled context package as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	pkg, err := a.engine.RetrieveContext(ctx, question)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	printJSON(pkg)
	return nil
}
