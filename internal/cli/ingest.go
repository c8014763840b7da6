package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/halcyon-ai/graphrag/internal/storage"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Queue documents for ingestion",
		Long: `Queue one or more documents for background ingestion.

Each file becomes one document whose pages are split on form feeds. With
--s3-prefix, page texts are read from the configured S3 bucket instead: one
object per page under the prefix, in key order.`,
		RunE: runIngest,
	}

	cmd.Flags().String("document-id", "", "Document id (defaults to a new UUID per file)")
	cmd.Flags().String("s3-prefix", "", "Read pages from the configured S3 bucket under this prefix")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	documentID, _ := cmd.Flags().GetString("document-id")
	s3Prefix, _ := cmd.Flags().GetString("s3-prefix")

	if s3Prefix != "" {
		return ingestFromS3(ctx, a, documentID, s3Prefix)
	}

	if len(args) == 0 {
		return fmt.Errorf("provide files to ingest or --s3-prefix")
	}
	if documentID != "" && len(args) > 1 {
		return fmt.Errorf("--document-id only applies to a single file")
	}

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		pages := splitPages(string(data))

		handle, err := a.engine.Ingest(ctx, documentID, filepath.Base(path), pages)
		if err != nil {
			return fmt.Errorf("failed to queue %s: %w", path, err)
		}
		printJSON(handle)
	}
	return nil
}

func ingestFromS3(ctx context.Context, a *app, documentID, prefix string) error {
	if !a.cfg.HasS3() {
		return fmt.Errorf("S3 is not configured (S3_ENDPOINT, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY required)")
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        a.cfg.S3Endpoint,
		Region:          a.cfg.S3Region,
		AccessKeyID:     a.cfg.S3AccessKey,
		SecretAccessKey: a.cfg.S3SecretKey,
		Bucket:          a.cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}

	pages, err := s3Client.GetPages(ctx, prefix)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page objects under prefix %s", prefix)
	}

	handle, err := a.engine.Ingest(ctx, documentID, prefix, pages)
	if err != nil {
		return err
	}
	printJSON(handle)
	return nil
}

// splitPages splits a plain-text file on form feeds; a file without form
// feeds is a single page.
func splitPages(text string) []string {
	parts := strings.Split(text, "\f")
	pages := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			pages = append(pages, p)
		}
	}
	return pages
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
