package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("EMBEDDING_DIM", "1024")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 512, settings.ChunkSize)
	assert.Equal(t, 1024, settings.EmbeddingDim)
	assert.Equal(t, "hivemind.db", settings.DatabasePath)
	assert.Equal(t, "http://localhost:11434/v1", settings.EmbeddingHost)
	assert.Equal(t, "embeddinggemma", settings.EmbeddingModel)
	assert.Equal(t, 0, settings.RatePerMinute)
	assert.Equal(t, 0, settings.RatePerDay)
	assert.Equal(t, 3, settings.MaxAttempts)
	assert.Equal(t, "date", settings.DateField)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HIVEMIND_DB_PATH", "/var/lib/hivemind")
	t.Setenv("EMBEDDING_HOST", "https://api.openai.com/v1")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "100")
	t.Setenv("RATE_LIMIT_PER_DAY", "2000")
	t.Setenv("INGESTION_BATCH_SIZE", "50")
	t.Setenv("INGESTION_MAX_ATTEMPTS", "5")
	t.Setenv("INGESTION_DATE_FIELD", "createdAt")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/hivemind", settings.DatabasePath)
	assert.Equal(t, "https://api.openai.com/v1", settings.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", settings.EmbeddingModel)
	assert.Equal(t, 100, settings.RatePerMinute)
	assert.Equal(t, 2000, settings.RatePerDay)
	assert.Equal(t, 50, settings.BatchSize)
	assert.Equal(t, 5, settings.MaxAttempts)
	assert.Equal(t, "createdAt", settings.DateField)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("EMBEDDING_DIM", "1024")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingVariable)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")
	t.Setenv("EMBEDDING_DIM", "1024")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidVariable)

	setRequired(t)
	t.Setenv("CHUNK_SIZE", "-1")
	_, err = Load()
	assert.ErrorIs(t, err, ErrInvalidVariable)

	setRequired(t)
	t.Setenv("RATE_LIMIT_PER_MINUTE", "ten")
	_, err = Load()
	assert.ErrorIs(t, err, ErrInvalidVariable)
}
