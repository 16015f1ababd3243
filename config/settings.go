package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings holds environment-driven configuration for the ingestion
// pipeline and its embedding provider.
type Settings struct {
	// ChunkSize is the target chunk size in bytes. Required.
	ChunkSize int

	// EmbeddingDim is the vector dimension of the embedding model.
	// Required; a mismatch with the stored index is a fatal error.
	EmbeddingDim int

	// DatabasePath is where the badger database lives on disk.
	DatabasePath string

	// EmbeddingHost is the OpenAI-compatible API base URL.
	EmbeddingHost string

	// EmbeddingModel is the embedding model name.
	EmbeddingModel string

	// EmbeddingToken authenticates against the embedding API. Local
	// providers accept any value.
	EmbeddingToken string

	// RatePerMinute and RatePerDay cap embedding requests per window.
	// Zero disables the corresponding throttle.
	RatePerMinute int
	RatePerDay    int

	// BatchSize bounds how many documents one ingestion run processes
	// at a time. Zero means a single unbatched run.
	BatchSize int

	// MaxAttempts bounds how many times a failed ingestion run is
	// retried before giving up. Re-running is idempotent, so retries
	// only redo the chunks the failed attempt never finished.
	MaxAttempts int

	// DateField is the metadata field carrying document timestamps.
	DateField string
}

// Load reads settings from the environment, after loading a .env file if
// one exists. CHUNK_SIZE and EMBEDDING_DIM are required; everything else
// has a default.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	chunkSize, err := requireInt("CHUNK_SIZE")
	if err != nil {
		return nil, err
	}
	embeddingDim, err := requireInt("EMBEDDING_DIM")
	if err != nil {
		return nil, err
	}

	ratePerMinute, err := optionalInt("RATE_LIMIT_PER_MINUTE", 0)
	if err != nil {
		return nil, err
	}
	ratePerDay, err := optionalInt("RATE_LIMIT_PER_DAY", 0)
	if err != nil {
		return nil, err
	}
	batchSize, err := optionalInt("INGESTION_BATCH_SIZE", 0)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := optionalInt("INGESTION_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Settings{
		ChunkSize:      chunkSize,
		EmbeddingDim:   embeddingDim,
		DatabasePath:   getEnv("HIVEMIND_DB_PATH", "hivemind.db"),
		EmbeddingHost:  getEnv("EMBEDDING_HOST", "http://localhost:11434/v1"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "embeddinggemma"),
		EmbeddingToken: getEnv("EMBEDDING_API_TOKEN", "none"),
		RatePerMinute:  ratePerMinute,
		RatePerDay:     ratePerDay,
		BatchSize:      batchSize,
		MaxAttempts:    maxAttempts,
		DateField:      getEnv("INGESTION_DATE_FIELD", "date"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func requireInt(key string) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: %s", ErrMissingVariable, key)
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidVariable, key, raw)
	}
	return value, nil
}

func optionalInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidVariable, key, raw)
	}
	return value, nil
}
