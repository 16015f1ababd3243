package core

import (
	"fmt"
	"strconv"
	"time"
)

// Fingerprint is a deterministic content hash of a chunk.
// It is used as the embedding cache key and as the change-detection
// key during registry reconciliation.
type Fingerprint uint64

// Collection identifies a logical partition of the vector index,
// scoped to one community and one platform (data source).
type Collection struct {
	Community string
	Platform  string
}

// Name returns the collection name in the "{community}_{platform}" form
// used for vector collections and cache namespaces.
func (c Collection) Name() string {
	return c.Community + "_" + c.Platform
}

// CacheNamespace returns the embedding cache namespace for this collection.
func (c Collection) CacheNamespace() string {
	return c.Name() + "_ingestion_cache"
}

// Document is a raw text document handed to the pipeline by an external
// collector. The Key is caller-assigned and stable across re-runs.
// Documents are immutable once handed to the pipeline.
type Document struct {
	Key      string
	Text     string
	Metadata map[string]string
}

// Chunk is a bounded sub-segment of a document's text, the unit of
// embedding. Chunks exist only for the duration of one ingestion run;
// only their embedded form is persisted.
type Chunk struct {
	DocKey   string
	Index    int
	Text     string
	Metadata map[string]string
}

// RecordKey returns the stable identity of this chunk in the vector
// index and document registry.
func (c *Chunk) RecordKey() string {
	return fmt.Sprintf("%s_%d", c.DocKey, c.Index)
}

// EmbeddedChunk is a chunk together with its embedding vector.
// The vector dimension must equal the collection's configured
// embedding dimension.
type EmbeddedChunk struct {
	Chunk
	Vector []float32
}

// Watermark records the latest document timestamp known to be fully
// ingested for a collection. It is advanced only after a batch has
// committed to the vector index.
type Watermark struct {
	Collection string
	Timestamp  time.Time
	UpdatedAt  time.Time
}

// SearchResult is a vector search hit with its relevance score.
type SearchResult struct {
	Chunk *EmbeddedChunk
	Score float32
}

// ParseTimestamp interprets a metadata value as a point in time.
// Float values are treated as unix timestamps with optional fractional
// seconds; anything else must be RFC 3339.
func ParseTimestamp(value string) (time.Time, error) {
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		sec := int64(secs)
		nsec := int64((secs - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, value)
	}
	return ts.UTC(), nil
}
