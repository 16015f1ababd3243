package badger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB.
// Points are stored one key per chunk record; similarity search and
// latest-timestamp scans iterate the collection's key range.
type VectorStore struct {
	backend *Backend
	dim     int
	logger  *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a vector store writing dim-dimensional vectors.
func NewVectorStore(backend *Backend, dim int) (storage.VectorStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	return &VectorStore{
		backend: backend,
		dim:     dim,
		logger:  slog.Default().With("store", "vectors"),
	}, nil
}

// Upsert writes embedded chunks into the named collection, fully
// replacing any existing point with the same record key. The whole
// batch commits in one transaction.
func (s *VectorStore) Upsert(ctx context.Context, collection string, chunks []*core.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := core.ValidateVector(chunk.Vector, s.dim); err != nil {
			return fmt.Errorf("record %s: %w", chunk.RecordKey(), err)
		}
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeVectorPointKey(collection, chunk.RecordKey())
			if err := tx.Set(key, storage.MarshalEmbeddedChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	s.logger.Debug("upserted vector points", "collection", collection, "points", len(chunks))
	return nil
}

// FindLatest scans the collection for the most recent value of the named
// payload field. Records whose field is missing or unparseable are
// skipped; an empty result is reported as the zero time, never an error.
func (s *VectorStore) FindLatest(ctx context.Context, collection, dateField string) (time.Time, error) {
	var latest time.Time

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.EmbeddedChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalEmbeddedChunk(val)
				return err
			})
			if err != nil {
				return err
			}

			value, ok := chunk.Metadata[dateField]
			if !ok {
				continue
			}
			ts, err := core.ParseTimestamp(value)
			if err != nil {
				// Skipping unparseable dates keeps parity with the
				// lenient scroll behavior callers depend on.
				s.logger.Debug("skipping unparseable date field",
					"collection", collection, "record", chunk.RecordKey(), "value", value)
				continue
			}
			if ts.After(latest) {
				latest = ts
			}
		}
		return nil
	}, false)
	if err != nil {
		return time.Time{}, err
	}

	if latest.IsZero() {
		s.logger.Info("no dated documents found in collection", "collection", collection)
	}
	return latest, nil
}

// FindSimilar returns the chunks scoring at least minSimilarity against
// the query vector, ordered by score descending, up to limit results.
func (s *VectorStore) FindSimilar(ctx context.Context, collection string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.EmbeddedChunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalEmbeddedChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(chunk.Vector) == 0 {
				continue
			}

			// Dot product equals cosine similarity for normalized vectors.
			score := dotProduct(vector, chunk.Vector)
			if score >= minSimilarity {
				results = append(results, &core.SearchResult{
					Chunk: chunk,
					Score: score,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Purge deletes records matching the predicate and returns their record
// keys, so callers can drop the matching registry entries too.
func (s *VectorStore) Purge(ctx context.Context, collection string, match func(key string, metadata map[string]string) bool) ([]string, error) {
	var toDelete [][]byte
	var recordKeys []string

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var chunk *core.EmbeddedChunk
			err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalEmbeddedChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if match(chunk.RecordKey(), chunk.Metadata) {
				toDelete = append(toDelete, item.KeyCopy(nil))
				recordKeys = append(recordKeys, chunk.RecordKey())
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	if len(toDelete) == 0 {
		return nil, nil
	}

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range toDelete {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info("purged vector points", "collection", collection, "points", len(toDelete))
	return recordKeys, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
