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


// Package storage provides the storage abstraction layer for the
// ingestion pipeline.
//
// It defines the four store interfaces the pipeline depends on
// (VectorStore, CacheStore, DocumentRegistry, and WatermarkStore) and
// the MUS serialization of their persisted values. Interfaces decouple
// the pipeline from the backing database so that components can be
// exercised against in-memory stores in tests.
//
// Public constructors in implementation packages return these
// interfaces rather than concrete types:
//
//	vectors, err := badger.NewVectorStore(backend, dim)  // storage.VectorStore
//
// The durable state owned by each store:
//
//   - VectorStore: the per-collection vector index (full point payloads)
//   - CacheStore: fingerprint-to-vector embedding cache namespaces
//   - DocumentRegistry: last-ingested fingerprint per chunk record key
//   - WatermarkStore: latest fully ingested timestamp per collection
package storage
