package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration, read once at startup and injected
// explicitly into each component.
type Config struct {
	Debug bool `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`

	// Three distinct cosine thresholds for three distinct decisions. The
	// asymmetry is deliberate: ingestion-time dedup tolerates some merging
	// risk to keep the graph compact, while query-time graph expansion is
	// stricter to avoid injecting unrelated triples into the answer context.
	ChunkSimilarity          float32 `envconfig:"CHUNK_SIMILARITY" default:"0.85"`
	EntityDedupSimilarity    float32 `envconfig:"ENTITY_DEDUP_SIMILARITY" default:"0.90"`
	GraphExpansionSimilarity float32 `envconfig:"GRAPH_EXPANSION_SIMILARITY" default:"0.95"`

	TopK       int `envconfig:"TOP_K" default:"100"`
	TopKRerank int `envconfig:"TOP_K_RERANK" default:"15"`

	// MaxContextFraction is the share of the downstream model's context
	// window the assembled context may occupy.
	MaxContextFraction  float64 `envconfig:"MAX_CONTEXT_FRACTION" default:"0.4"`
	ContextWindowTokens int     `envconfig:"CONTEXT_WINDOW_TOKENS" default:"128000"`

	ChunkMinTokens       int     `envconfig:"CHUNK_MIN_TOKENS" default:"40"`
	ChunkMaxTokens       int     `envconfig:"CHUNK_MAX_TOKENS" default:"120"`
	BreakpointPercentile float64 `envconfig:"CHUNK_BREAKPOINT_PERCENTILE" default:"0.9"`

	ExtractionMaxChunkTokens int           `envconfig:"EXTRACTION_MAX_CHUNK_TOKENS" default:"1000"`
	ExtractionConcurrency    int           `envconfig:"EXTRACTION_CONCURRENCY" default:"4"`
	ExtractionTimeout        time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"30s"`
	RelationBatchSize        int           `envconfig:"RELATION_BATCH_SIZE" default:"100"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"graphrag-pages"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("GRAPHRAG", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// MaxContextTokens derives the hard token budget for assembled contexts.
func (c *Config) MaxContextTokens() int {
	return int(c.MaxContextFraction * float64(c.ContextWindowTokens))
}
