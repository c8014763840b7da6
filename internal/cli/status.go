package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of an ingestion job",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}
}

type jobStatusOutput struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.engine.JobStatus(ctx, args[0])
	if err != nil {
		return err
	}

	out := jobStatusOutput{
		ID:         job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Retries:    job.Retries,
		Error:      job.Error,
		CreatedAt:  job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if job.ProcessedAt != nil {
		out.ProcessedAt = job.ProcessedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	printJSON(out)
	return nil
}
