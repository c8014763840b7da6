package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halcyon-ai/graphrag/internal/domain"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// EntityStoreInterface defines the graph store operations entity resolution needs
type EntityStoreInterface interface {
	InsertEntity(ctx context.Context, e *domain.Entity) error
	EntitiesByTypeSimilarity(ctx context.Context, entityType string, vector []float32, minSimilarity float32, limit int) ([]*domain.EntityMatch, error)
}

// EntityResolver decides whether a candidate entity matches an existing graph
// entity or must be inserted. Resolution for a given type bucket is serialized
// via a per-type lock held across the search-decide-insert sequence, so two
// concurrent resolutions of the same new surface form cannot race into two
// rows.
type EntityResolver struct {
	store     EntityStoreInterface
	embedder  EmbeddingClient
	threshold float32
	uuidGen   UUIDGenerator

	mu        sync.Mutex
	typeLocks map[string]*sync.Mutex
}

// NewEntityResolver creates a new EntityResolver instance
func NewEntityResolver(store EntityStoreInterface, embedder EmbeddingClient, dedupSimilarity float32) *EntityResolver {
	return &EntityResolver{
		store:     store,
		embedder:  embedder,
		threshold: dedupSimilarity,
		uuidGen:   &DefaultUUIDGenerator{},
		typeLocks: make(map[string]*sync.Mutex),
	}
}

// NewEntityResolverWithUUIDGen creates an EntityResolver with a custom UUID generator (for testing)
func NewEntityResolverWithUUIDGen(store EntityStoreInterface, embedder EmbeddingClient, dedupSimilarity float32, uuidGen UUIDGenerator) *EntityResolver {
	r := NewEntityResolver(store, embedder, dedupSimilarity)
	r.uuidGen = uuidGen
	return r
}

func (r *EntityResolver) lockFor(entityType string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.typeLocks[entityType]
	if !ok {
		lock = &sync.Mutex{}
		r.typeLocks[entityType] = lock
	}
	return lock
}

// Resolve returns the id of the graph entity matching (surfaceForm, type),
// inserting a new entity when no existing one of the same type clears the
// dedup similarity threshold. The first-seen embedding stays authoritative;
// matches never update the stored row. Ties on equal similarity fall to the
// earliest created entity.
func (r *EntityResolver) Resolve(ctx context.Context, surfaceForm, entityType string, confidence float32) (string, error) {
	surface := strings.Join(strings.Fields(surfaceForm), " ")
	if surface == "" {
		return "", domain.ErrValidation("entity surface form is required")
	}
	if entityType == "" {
		return "", domain.ErrValidation("entity type is required")
	}

	lock := r.lockFor(entityType)
	lock.Lock()
	defer lock.Unlock()

	embeddings, err := r.embedder.EmbedBatch(ctx, []string{surface})
	if err != nil {
		return "", err
	}

	matches, err := r.store.EntitiesByTypeSimilarity(ctx, entityType, embeddings[0], r.threshold, 1)
	if err != nil {
		return "", err
	}
	if len(matches) > 0 {
		return matches[0].Entity.ID, nil
	}

	entity := &domain.Entity{
		ID:          r.uuidGen.NewString(),
		SurfaceForm: surface,
		Type:        entityType,
		Embedding:   embeddings[0],
		Confidence:  confidence,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.InsertEntity(ctx, entity); err != nil {
		return "", err
	}
	return entity.ID, nil
}
