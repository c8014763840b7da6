// Package cli implements the graphragd commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/halcyon-ai/graphrag/internal/config"
	"github.com/halcyon-ai/graphrag/internal/database"
	"github.com/halcyon-ai/graphrag/internal/llm"
	"github.com/halcyon-ai/graphrag/internal/openai"
	"github.com/halcyon-ai/graphrag/internal/repository"
	"github.com/halcyon-ai/graphrag/internal/service"
	"github.com/halcyon-ai/graphrag/internal/tokens"
)

// app wires the engine once per command invocation.
type app struct {
	cfg  *config.Config
	pool *pgxpool.Pool

	documentRepo *repository.DocumentRepository
	jobRepo      *repository.IngestionJobRepository
	chunkRepo    *repository.ChunkRepository
	graphRepo    *repository.GraphRepository

	engine    *service.Engine
	ingestion *service.IngestionPipeline
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func newApp(ctx context.Context, runMigrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if runMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	client, err := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      cfg.EmbeddingModel,
		ChatModel:           cfg.ChatModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}

	guard := llm.NewGuard(llm.GuardConfig{
		MaxInFlight: cfg.ExtractionConcurrency,
		Timeout:     cfg.ExtractionTimeout,
	})
	counter := tokens.NewCounter()

	chunkRepo := repository.NewChunkRepository(pool)
	graphRepo := repository.NewGraphRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	jobRepo := repository.NewIngestionJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	chunker := service.NewSemanticChunker(client, counter, service.ChunkerConfig{
		MinTokens:            cfg.ChunkMinTokens,
		MaxTokens:            cfg.ChunkMaxTokens,
		BreakpointPercentile: cfg.BreakpointPercentile,
	})
	extractor := service.NewRelationExtractor(client, guard, counter, cfg.ExtractionMaxChunkTokens)
	resolver := service.NewEntityResolver(graphRepo, client, cfg.EntityDedupSimilarity)

	ingestion := service.NewIngestionPipeline(
		chunker, client, chunkRepo, extractor, resolver, graphRepo, txRunner,
		service.IngestionConfig{
			ExtractionConcurrency: cfg.ExtractionConcurrency,
			RelationBatchSize:     cfg.RelationBatchSize,
		},
	)

	normalizer := service.NewLanguageNormalizer(client, guard)
	reranker := service.NewReranker(service.NewLLMScorer(client, guard))
	assembler := service.NewContextAssembler(counter)

	retrieval := service.NewRetrievalPipeline(
		normalizer, client, chunkRepo, reranker,
		service.NewProseNounExtractor(), graphRepo, assembler,
		service.RetrievalConfig{
			TopK:                     cfg.TopK,
			TopKRerank:               cfg.TopKRerank,
			ChunkSimilarity:          cfg.ChunkSimilarity,
			GraphExpansionSimilarity: cfg.GraphExpansionSimilarity,
			MaxContextTokens:         cfg.MaxContextTokens(),
		},
	)

	engine := service.NewEngine(documentRepo, jobRepo, retrieval, txRunner)

	return &app{
		cfg:          cfg,
		pool:         pool,
		documentRepo: documentRepo,
		jobRepo:      jobRepo,
		chunkRepo:    chunkRepo,
		graphRepo:    graphRepo,
		engine:       engine,
		ingestion:    ingestion,
	}, nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if upErr == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
