package service

import (
	"context"
	"time"

	"github.com/halcyon-ai/graphrag/internal/domain"
	"github.com/halcyon-ai/graphrag/internal/telemetry"
)

// DocumentStoreInterface defines the repository interface for document persistence
type DocumentStoreInterface interface {
	Save(ctx context.Context, doc *domain.Document, pages []string) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	GetPages(ctx context.Context, documentID string) ([]string, error)
	Count(ctx context.Context) (int64, error)
	Reset(ctx context.Context) error
}

// IngestionJobStoreInterface defines the repository interface for ingestion job persistence
type IngestionJobStoreInterface interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestionJob, error)
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestionJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// IngestionHandle is what the caller of Ingest holds: ingestion runs in the
// background and the caller polls job status by id.
type IngestionHandle struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
}

// Engine is the outward-facing surface of the retrieval-and-indexing core.
type Engine struct {
	documents DocumentStoreInterface
	jobs      IngestionJobStoreInterface
	retrieval *RetrievalPipeline
	txRunner  TxRunner
	uuidGen   UUIDGenerator
}

// NewEngine creates a new Engine instance
func NewEngine(
	documents DocumentStoreInterface,
	jobs IngestionJobStoreInterface,
	retrieval *RetrievalPipeline,
	txRunner TxRunner,
) *Engine {
	return &Engine{
		documents: documents,
		jobs:      jobs,
		retrieval: retrieval,
		txRunner:  txRunner,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// Ingest persists the document pages and queues an ingestion job. The actual
// pipeline work happens in the background worker; the caller only learns that
// ingestion was queued.
func (e *Engine) Ingest(ctx context.Context, documentID, name string, pages []string) (*IngestionHandle, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Ingest", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ingest",
	})
	defer span.End()

	if documentID == "" {
		documentID = e.uuidGen.NewString()
	}
	if name == "" {
		name = documentID
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        documentID,
		Name:      name,
		PageCount: len(pages),
		CreatedAt: now,
	}
	if err := e.documents.Save(ctx, doc, pages); err != nil {
		span.SetError(err)
		return nil, err
	}

	job := &domain.IngestionJob{
		ID:         e.uuidGen.NewString(),
		DocumentID: documentID,
		Status:     domain.IngestionJobStatusPending,
		CreatedAt:  now,
	}
	if err := e.jobs.Create(ctx, job); err != nil {
		span.SetError(err)
		return nil, err
	}

	return &IngestionHandle{JobID: job.ID, DocumentID: documentID}, nil
}

// JobStatus returns the current state of an ingestion job.
func (e *Engine) JobStatus(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	return e.jobs.GetByID(ctx, jobID)
}

// RetrieveContext runs the synchronous query path.
func (e *Engine) RetrieveContext(ctx context.Context, queryText string) (*domain.ContextPackage, error) {
	return e.retrieval.RetrieveContext(ctx, queryText)
}

// ResetCorpus clears every store in one transaction, so a failed reset leaves
// the previous corpus intact rather than a partially-cleared one.
func (e *Engine) ResetCorpus(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "Engine.ResetCorpus", telemetry.SpanAttributes{
		Operation: "reset_corpus",
	})
	defer span.End()

	err := e.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Jobs().Reset(ctx); err != nil {
			return err
		}
		if err := repos.Graph().Reset(ctx); err != nil {
			return err
		}
		if err := repos.Chunks().Reset(ctx); err != nil {
			return err
		}
		return repos.Documents().Reset(ctx)
	})
	if err != nil {
		span.SetError(err)
		return domain.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}
