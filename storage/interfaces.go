package storage

import (
	"context"
	"time"

	"github.com/TogetherCrew/hivemind-backend/core"
)

// RegistryEntry records the last-ingested fingerprint for one chunk
// record key within a registry namespace.
type RegistryEntry struct {
	Key         string
	Fingerprint core.Fingerprint
	UpdatedAt   time.Time
}

// VectorStore writes embedded chunks into per-collection vector indexes.
// Implementations must be safe for concurrent use across distinct
// collections.
type VectorStore interface {
	// Upsert writes embedded chunks into the named collection, keyed by
	// chunk record key. An existing key's vector and payload are fully
	// replaced, not merged. The whole batch commits atomically.
	Upsert(ctx context.Context, collection string, chunks []*core.EmbeddedChunk) error

	// FindLatest returns the most recent timestamp found in the named
	// payload field across the collection. It returns the zero time when
	// the collection is empty or when no value parses as a timestamp;
	// it never fails for "no data".
	FindLatest(ctx context.Context, collection, dateField string) (time.Time, error)

	// FindSimilar returns chunks whose vectors score at least
	// minSimilarity against the query vector, highest first, up to limit.
	FindSimilar(ctx context.Context, collection string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Purge deletes records matching the predicate from the collection
	// and returns the record keys that were removed. Used to drop stale
	// records before a fresh load. Callers must also drop the returned
	// keys from the DocumentRegistry: a registry entry left behind keeps
	// vouching for a vector that no longer exists, and the record would
	// be skipped on every later re-ingest.
	Purge(ctx context.Context, collection string, match func(key string, metadata map[string]string) bool) ([]string, error)
}

// CacheStore is a persistent fingerprint-to-vector cache consulted before
// calling the embedding API. Writes are durable immediately; a lost write
// costs a recomputation, never correctness.
type CacheStore interface {
	// Get returns only the cache hits among the given fingerprints.
	Get(ctx context.Context, namespace string, fingerprints []core.Fingerprint) (map[core.Fingerprint][]float32, error)

	// Put stores one fingerprint-to-vector mapping. Put is idempotent:
	// overwriting an entry with the same model's vector is harmless.
	Put(ctx context.Context, namespace string, fingerprint core.Fingerprint, vector []float32) error

	// GetAll returns every entry in the namespace, for bulk
	// reconciliation.
	GetAll(ctx context.Context, namespace string) (map[core.Fingerprint][]float32, error)
}

// DocumentRegistry tracks which chunk record keys have been ingested and
// with which content fingerprint. It is the dedup boundary that decides
// insert versus update versus skip across repeated runs.
type DocumentRegistry interface {
	// Fingerprints returns the recorded fingerprint for each key that
	// exists in the namespace. Missing keys are simply absent from the
	// result; an empty namespace yields an empty map.
	Fingerprints(ctx context.Context, namespace string, keys []string) (map[string]core.Fingerprint, error)

	// Upsert records entries by key, replacing any previous fingerprint.
	Upsert(ctx context.Context, namespace string, entries []RegistryEntry) error

	// Delete removes the entries for the given keys. Keys without an
	// entry are ignored.
	Delete(ctx context.Context, namespace string, keys []string) error
}

// WatermarkStore persists per-collection ingestion watermarks.
// The ingestion pipeline is the single writer.
type WatermarkStore interface {
	// Load returns the watermark for a collection, or nil if none has
	// been recorded yet.
	Load(ctx context.Context, collection string) (*core.Watermark, error)

	// Advance records ts as the latest fully ingested timestamp for the
	// collection. A timestamp at or before the current watermark is
	// ignored; the watermark never moves backwards.
	Advance(ctx context.Context, collection string, ts time.Time) error
}
