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


// Package hivemind ties the storage backend, embedding provider, and
// pipeline construction together behind one database handle. Library
// consumers open a Database and build per-collection pipelines and
// searchers from it; the CLI under cmd/hivemind wires the same pieces
// from environment settings instead.
package hivemind

import (
	"log/slog"

	"github.com/TogetherCrew/hivemind-backend/ai"
	"github.com/TogetherCrew/hivemind-backend/ai/openai"
	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/ingestion"
	"github.com/TogetherCrew/hivemind-backend/search"
	"github.com/TogetherCrew/hivemind-backend/storage/badger"
)

type Database struct {
	backend  *badger.Backend
	stores   *badger.Stores
	embedder ai.Embedder
	dim      int
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	embedder ai.Embedder
	inMemory bool
}

// WithAIConfig sets the embedding provider configuration.
// Default is ai.DefaultConfig().
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithEmbedder injects an embedder directly, bypassing the OpenAI
// client. Used by tests and by callers with their own provider.
func WithEmbedder(embedder ai.Embedder) DatabaseOption {
	return func(o *databaseOptions) {
		o.embedder = embedder
	}
}

// WithInMemory opens the database in memory instead of on disk.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// NewDatabase opens the backing store at filePath and builds the shared
// stores and embedding client.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	stores, err := badger.NewStores(backend, options.aiConfig.Dimension)
	if err != nil {
		backend.Close()
		return nil, err
	}

	embedder := options.embedder
	if embedder == nil {
		embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:  backend,
		stores:   stores,
		embedder: embedder,
		dim:      options.aiConfig.Dimension,
		logger:   slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Stores exposes the underlying store implementations.
func (db *Database) Stores() *badger.Stores {
	return db.stores
}

// NewIngestionPipeline builds a pipeline ingesting into the given
// collection.
func (db *Database) NewIngestionPipeline(collection core.Collection, opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(collection, ingestion.Stores{
		Vectors:    db.stores.Vectors,
		Cache:      db.stores.Cache,
		Registry:   db.stores.Registry,
		Watermarks: db.stores.Watermarks,
	}, db.embedder, db.dim, opts...)
}

// NewSearcher builds a searcher over the given collection.
func (db *Database) NewSearcher(collection core.Collection, opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(collection, db.stores.Vectors, db.embedder, opts...)
}
