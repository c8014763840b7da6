package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	// claimBatchSize is the number of pending jobs claimed per poll
	claimBatchSize = 10
)

// IngestionJobRepository defines the interface for ingestion job persistence
type IngestionJobRepository interface {
	// ClaimPending atomically claims pending jobs and marks them processing
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionJob, error)

	// UpdateStatus updates the status of an ingestion job
	UpdateStatus(ctx context.Context, id string, status domain.IngestionJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, id string) error
}

// PageSource loads the persisted page texts for a document
type PageSource interface {
	GetPages(ctx context.Context, documentID string) ([]string, error)
}

// Ingester runs the ingestion pipeline for one document
type Ingester interface {
	Ingest(ctx context.Context, documentID string, pages []string) error
}

// IngestionWorker claims pending ingestion jobs and runs the pipeline for
// each. Failed jobs are retried up to MaxRetries before being marked failed.
type IngestionWorker struct {
	repo     IngestionJobRepository
	pages    PageSource
	pipeline Ingester
}

// NewIngestionWorker creates a new IngestionWorker instance
func NewIngestionWorker(repo IngestionJobRepository, pages PageSource, pipeline Ingester) *IngestionWorker {
	return &IngestionWorker{
		repo:     repo,
		pages:    pages,
		pipeline: pipeline,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	claimed, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(claimed) == 0 {
		return nil
	}

	log.Printf("processing %d pending ingestion jobs", len(claimed))

	for _, job := range claimed {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestionWorker) processJob(ctx context.Context, job *domain.IngestionJob) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionWorker.processJob", telemetry.SpanAttributes{
		DocumentID: job.DocumentID,
		JobID:      job.ID,
		Operation:  "process_job",
	})
	defer span.End()

	log.Printf("processing job %s for document %s", job.ID, job.DocumentID)

	pages, err := w.pages.GetPages(ctx, job.DocumentID)
	if err == nil && len(pages) == 0 {
		err = fmt.Errorf("document %s has no persisted pages", job.DocumentID)
	}
	if err == nil {
		err = w.pipeline.Ingest(ctx, job.DocumentID, pages)
	}

	if err != nil {
		span.SetError(err)
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *IngestionWorker) handleJobFailure(ctx context.Context, job *domain.IngestionJob, jobErr error) error {
	log.Printf("job %s failed: %v", job.ID, jobErr)
	telemetry.CaptureError(ctx, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestionJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
