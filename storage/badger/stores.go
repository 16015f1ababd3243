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

import "github.com/TogetherCrew/hivemind-backend/storage"

// Stores bundles the four store implementations sharing one backend.
type Stores struct {
	Vectors    storage.VectorStore
	Cache      storage.CacheStore
	Registry   storage.DocumentRegistry
	Watermarks storage.WatermarkStore
}

// NewStores creates all four stores on an already-open backend.
func NewStores(backend *Backend, dim int) (*Stores, error) {
	vectors, err := NewVectorStore(backend, dim)
	if err != nil {
		return nil, err
	}
	cache, err := NewCacheStore(backend)
	if err != nil {
		return nil, err
	}
	registry, err := NewDocumentRegistry(backend)
	if err != nil {
		return nil, err
	}
	watermarks, err := NewWatermarkStore(backend)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Vectors:    vectors,
		Cache:      cache,
		Registry:   registry,
		Watermarks: watermarks,
	}, nil
}

// NewMemoryStores creates in-memory stores for testing.
// Caller must close the backend when done.
func NewMemoryStores(dim int) (*Stores, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, err
	}
	stores, err := NewStores(backend, dim)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return stores, backend, nil
}
