package ingestion

import "errors"

var (
	// ErrVectorStoreRequired is returned when no vector store is provided.
	ErrVectorStoreRequired = errors.New("vector store is required")

	// ErrRegistryRequired is returned when no document registry is provided.
	ErrRegistryRequired = errors.New("document registry is required")

	// ErrWatermarkStoreRequired is returned when no watermark store is provided.
	ErrWatermarkStoreRequired = errors.New("watermark store is required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrInvalidDimension is returned when the embedding dimension is not positive.
	ErrInvalidDimension = errors.New("embedding dimension must be positive")

	// ErrInvalidBatchSize is returned when a batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidMaxAttempts is returned when retry attempts is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrRunInProgress is returned when an ingestion run is already
	// executing for the same collection.
	ErrRunInProgress = errors.New("ingestion run already in progress for collection")
)
