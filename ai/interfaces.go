package ai

import "context"

// Embedder generates vector embeddings from text.
// The embedding function is treated as an opaque external call: given a
// batch of strings it returns a parallel batch of fixed-dimension
// vectors, fallibly. Embedding is a pure function of the text, so
// retrying a failed call with the same input is always safe.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings
	// in a batch. The returned slice contains embeddings in the same
	// order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
