package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/halcyon-ai/graphrag/internal/cli"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "graphragd",
		Short: "Hybrid vector and knowledge-graph retrieval engine",
		Long: `graphragd indexes document text into semantic chunks with embeddings and a
deduplicated entity/relationship graph, and answers questions with a
token-bounded context package assembled from both.

Environment variables:
  GRAPHRAG_DATABASE_URL     Postgres DSN with pgvector (required)
  GRAPHRAG_OPENAI_API_KEY   OpenAI API key (required)`,
		Version: version,
	}

	rootCmd.AddCommand(cli.WorkerCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.QueryCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.EntitiesCmd())
	rootCmd.AddCommand(cli.ResetCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "worker")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
