// Copyright 2025 TogetherCrew
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/storage"
)

// CacheStore implements storage.CacheStore for BadgerDB.
// Each Put commits its own transaction, so cached vectors survive a
// crash of the surrounding ingestion run.
type CacheStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.CacheStore = (*CacheStore)(nil)

// NewCacheStore creates a new embedding cache store.
func NewCacheStore(backend *Backend) (storage.CacheStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &CacheStore{
		backend: backend,
		logger:  slog.Default().With("store", "embedding-cache"),
	}, nil
}

// Get returns only the cache hits among the given fingerprints.
func (s *CacheStore) Get(ctx context.Context, namespace string, fingerprints []core.Fingerprint) (map[core.Fingerprint][]float32, error) {
	hits := make(map[core.Fingerprint][]float32, len(fingerprints))

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, fp := range fingerprints {
			item, err := tx.Get(makeCacheKey(namespace, fp))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				vector, err := storage.UnmarshalVector(val)
				if err != nil {
					return err
				}
				hits[fp] = vector
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cache lookup", "namespace", namespace,
		"requested", len(fingerprints), "hits", len(hits))
	return hits, nil
}

// Put stores one fingerprint-to-vector mapping, committing immediately.
func (s *CacheStore) Put(ctx context.Context, namespace string, fingerprint core.Fingerprint, vector []float32) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCacheKey(namespace, fingerprint)
		if err := tx.Set(key, storage.MarshalVector(vector)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetAll returns every entry in the namespace.
func (s *CacheStore) GetAll(ctx context.Context, namespace string) (map[core.Fingerprint][]float32, error) {
	entries := make(map[core.Fingerprint][]float32)
	prefix := makeCachePrefix(namespace)

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			fp, err := cacheFingerprintFromKey(item.Key(), prefix)
			if err != nil {
				return fmt.Errorf("%w: bad cache key %q", storage.ErrSerializationFailed, item.Key())
			}
			err = item.Value(func(val []byte) error {
				vector, err := storage.UnmarshalVector(val)
				if err != nil {
					return err
				}
				entries[fp] = vector
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
