package badger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/storage"
)

// DocumentRegistry implements storage.DocumentRegistry for BadgerDB.
type DocumentRegistry struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.DocumentRegistry = (*DocumentRegistry)(nil)

// NewDocumentRegistry creates a new document registry.
func NewDocumentRegistry(backend *Backend) (storage.DocumentRegistry, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &DocumentRegistry{
		backend: backend,
		logger:  slog.Default().With("store", "document-registry"),
	}, nil
}

// Fingerprints returns the recorded fingerprint for each key present in
// the namespace. Keys never seen before are absent from the result.
func (r *DocumentRegistry) Fingerprints(ctx context.Context, namespace string, keys []string) (map[string]core.Fingerprint, error) {
	known := make(map[string]core.Fingerprint, len(keys))

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			item, err := tx.Get(makeRegistryKey(namespace, key))
			if err != nil {
				if err == badger.ErrKeyNotFound {
					continue
				}
				return err
			}
			err = item.Value(func(val []byte) error {
				entry, err := storage.UnmarshalRegistryEntry(val)
				if err != nil {
					return err
				}
				known[key] = entry.Fingerprint
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
	return known, nil
}

// Upsert records entries by key, replacing any previous fingerprint.
// UpdatedAt is stamped on write.
func (r *DocumentRegistry) Upsert(ctx context.Context, namespace string, entries []storage.RegistryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for i := range entries {
			entries[i].UpdatedAt = now
			key := makeRegistryKey(namespace, entries[i].Key)
			if err := tx.Set(key, storage.MarshalRegistryEntry(&entries[i])); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	r.logger.Debug("registry upsert", "namespace", namespace, "entries", len(entries))
	return nil
}

// Delete removes the entries for the given keys. Keys without an entry
// are ignored.
func (r *DocumentRegistry) Delete(ctx context.Context, namespace string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(makeRegistryKey(namespace, key)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	r.logger.Debug("registry delete", "namespace", namespace, "entries", len(keys))
	return nil
}
