package service

import (
	"context"
	"sort"
	"sync"

	"github.com/halcyon-ai/graphrag/internal/domain"
)

// memoryChunkIndex is an in-memory ChunkIndexInterface mirroring the real
// index's cosine query semantics.
type memoryChunkIndex struct {
	mu       sync.Mutex
	chunks   []domain.Chunk
	addErr   error
	queryErr error
}

func (m *memoryChunkIndex) AddBatch(ctx context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *memoryChunkIndex) Query(ctx context.Context, vector []float32, k int, minSimilarity float32) ([]*domain.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var results []*domain.ScoredChunk
	for _, c := range m.chunks {
		sim := float32(cosineSimilarity(c.Embedding, vector))
		if sim >= minSimilarity {
			results = append(results, &domain.ScoredChunk{Chunk: c, Similarity: sim})
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Similarity > results[b].Similarity
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *memoryChunkIndex) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.chunks)), nil
}

func (m *memoryChunkIndex) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	return nil
}

// memoryGraphStore is an in-memory GraphStoreInterface.
type memoryGraphStore struct {
	mu        sync.Mutex
	entities  []*domain.Entity
	relations []*domain.Relation

	insertRelationErr error
	lookupErr         error
}

func (m *memoryGraphStore) InsertEntity(ctx context.Context, e *domain.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.entities = append(m.entities, &clone)
	return nil
}

func (m *memoryGraphStore) findEntity(id string) *domain.Entity {
	for _, e := range m.entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (m *memoryGraphStore) InsertRelation(ctx context.Context, rel *domain.Relation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertRelationErr != nil {
		return m.insertRelationErr
	}
	if m.findEntity(rel.HeadEntityID) == nil || m.findEntity(rel.TailEntityID) == nil {
		return domain.ErrDanglingReference
	}
	clone := *rel
	m.relations = append(m.relations, &clone)
	return nil
}

func (m *memoryGraphStore) RelationsTouching(ctx context.Context, entityID string) ([]*domain.RelationFact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var facts []*domain.RelationFact
	for _, rel := range m.relations {
		if rel.HeadEntityID != entityID && rel.TailEntityID != entityID {
			continue
		}
		head := m.findEntity(rel.HeadEntityID)
		tail := m.findEntity(rel.TailEntityID)
		facts = append(facts, &domain.RelationFact{
			Relation:    *rel,
			HeadSurface: head.SurfaceForm,
			HeadType:    head.Type,
			TailSurface: tail.SurfaceForm,
			TailType:    tail.Type,
		})
	}
	return facts, nil
}

func (m *memoryGraphStore) matches(vector []float32, minSimilarity float32, limit int, entityType string) []*domain.EntityMatch {
	var out []*domain.EntityMatch
	for _, e := range m.entities {
		if entityType != "" && e.Type != entityType {
			continue
		}
		sim := float32(cosineSimilarity(e.Embedding, vector))
		if sim >= minSimilarity {
			out = append(out, &domain.EntityMatch{Entity: *e, Similarity: sim})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Similarity > out[b].Similarity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memoryGraphStore) EntitiesByTypeSimilarity(ctx context.Context, entityType string, vector []float32, minSimilarity float32, limit int) ([]*domain.EntityMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.matches(vector, minSimilarity, limit, entityType), nil
}

func (m *memoryGraphStore) EntitiesBySimilarity(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*domain.EntityMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.matches(vector, minSimilarity, limit, ""), nil
}

func (m *memoryGraphStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations = nil
	m.entities = nil
	return nil
}

func (m *memoryGraphStore) entityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

func (m *memoryGraphStore) relationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.relations)
}

// memoryDocumentStore is an in-memory DocumentStoreInterface.
type memoryDocumentStore struct {
	mu    sync.Mutex
	docs  map[string]*domain.Document
	pages map[string][]string
}

func newMemoryDocumentStore() *memoryDocumentStore {
	return &memoryDocumentStore{
		docs:  make(map[string]*domain.Document),
		pages: make(map[string][]string),
	}
}

func (m *memoryDocumentStore) Save(ctx context.Context, doc *domain.Document, pages []string) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *doc
	m.docs[doc.ID] = &clone
	m.pages[doc.ID] = append([]string(nil), pages...)
	return nil
}

func (m *memoryDocumentStore) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (m *memoryDocumentStore) GetPages(ctx context.Context, documentID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages[documentID], nil
}

func (m *memoryDocumentStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.docs)), nil
}

func (m *memoryDocumentStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[string]*domain.Document)
	m.pages = make(map[string][]string)
	return nil
}

// memoryJobStore is an in-memory IngestionJobStoreInterface.
type memoryJobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.IngestionJob
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{jobs: make(map[string]*domain.IngestionJob)}
}

func (m *memoryJobStore) Create(ctx context.Context, job *domain.IngestionJob) error {
	if err := domain.ValidateIngestionJob(job); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *job
	m.jobs[job.ID] = &clone
	return nil
}

func (m *memoryJobStore) GetByID(ctx context.Context, id string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrIngestionJobNotFound
	}
	return job, nil
}

func (m *memoryJobStore) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claimed []*domain.IngestionJob
	for _, job := range m.jobs {
		if job.Status != domain.IngestionJobStatusPending {
			continue
		}
		job.Status = domain.IngestionJobStatusProcessing
		claimed = append(claimed, job)
		if limit > 0 && len(claimed) >= limit {
			break
		}
	}
	return claimed, nil
}

func (m *memoryJobStore) UpdateStatus(ctx context.Context, id string, status domain.IngestionJobStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrIngestionJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	return nil
}

func (m *memoryJobStore) IncrementRetries(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrIngestionJobNotFound
	}
	job.Retries++
	return nil
}

func (m *memoryJobStore) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = make(map[string]*domain.IngestionJob)
	return nil
}

// fakeTxRunner hands the same in-memory stores back as transaction-bound
// repositories.
type fakeTxRunner struct {
	chunks    ChunkIndexInterface
	graph     GraphStoreInterface
	documents DocumentStoreInterface
	jobs      IngestionJobStoreInterface
	err       error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(f)
}

func (f *fakeTxRunner) Chunks() ChunkIndexInterface       { return f.chunks }
func (f *fakeTxRunner) Graph() GraphStoreInterface        { return f.graph }
func (f *fakeTxRunner) Documents() DocumentStoreInterface { return f.documents }
func (f *fakeTxRunner) Jobs() IngestionJobStoreInterface  { return f.jobs }

// fakeNouns returns a fixed noun list.
type fakeNouns struct {
	nouns []string
	err   error
}

func (f *fakeNouns) Nouns(text string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.nouns, nil
}
