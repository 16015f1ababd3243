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
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/storage"
)

// WatermarkStore implements storage.WatermarkStore for BadgerDB.
type WatermarkStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.WatermarkStore = (*WatermarkStore)(nil)

// NewWatermarkStore creates a new watermark store.
func NewWatermarkStore(backend *Backend) (storage.WatermarkStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend required")
	}
	return &WatermarkStore{
		backend: backend,
		logger:  slog.Default().With("store", "watermarks"),
	}, nil
}

// Load retrieves the watermark for a collection.
// Returns nil, nil if no watermark exists.
func (s *WatermarkStore) Load(ctx context.Context, collection string) (*core.Watermark, error) {
	var wm *core.Watermark
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeWatermarkKey(collection))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			wm, unmarshalErr = storage.UnmarshalWatermark(val)
			return unmarshalErr
		})
	}, false)

	return wm, err
}

// Advance records ts as the latest fully ingested timestamp.
// The watermark never moves backwards: a timestamp at or before the
// current value is ignored.
func (s *WatermarkStore) Advance(ctx context.Context, collection string, ts time.Time) error {
	current, err := s.Load(ctx, collection)
	if err != nil {
		return err
	}
	if current != nil && !ts.After(current.Timestamp) {
		s.logger.Debug("watermark unchanged",
			"collection", collection, "current", current.Timestamp, "candidate", ts)
		return nil
	}

	wm := &core.Watermark{
		Collection: collection,
		Timestamp:  ts.UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeWatermarkKey(collection)
		if err := tx.Set(key, storage.MarshalWatermark(wm)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	s.logger.Info("watermark advanced", "collection", collection, "timestamp", wm.Timestamp)
	return nil
}
