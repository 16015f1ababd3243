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


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/TogetherCrew/hivemind-backend/ai"
	"github.com/TogetherCrew/hivemind-backend/ai/openai"
	"github.com/TogetherCrew/hivemind-backend/config"
	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/ingestion"
	"github.com/TogetherCrew/hivemind-backend/search"
	"github.com/TogetherCrew/hivemind-backend/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "hivemind",
		Usage: "Incremental document ingestion into per-community vector collections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Ingest documents from a JSON file into a collection",
				Action: ingestCommand,
				Flags: append(collectionFlags(),
					&cli.StringFlag{
						Name:     "docs",
						Usage:    "Path to a JSON file with documents to ingest",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (overrides EMBEDDING_HOST)",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name (overrides EMBEDDING_MODEL)",
					},
				),
			},
			{
				Name:   "latest",
				Usage:  "Print the most recent ingested document timestamp for a collection",
				Action: latestCommand,
				Flags:  collectionFlags(),
			},
			{
				Name:      "search",
				Usage:     "Search a collection for chunks similar to a query",
				Action:    searchCommand,
				ArgsUsage: "<query>",
				Flags: append(collectionFlags(),
					&cli.IntFlag{
						Name:  "max-hits",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Similarity floor for vector matches",
						Value: search.DefaultMinSimilarity,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL (overrides EMBEDDING_HOST)",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name (overrides EMBEDDING_MODEL)",
					},
				),
			},
			{
				Name:   "purge",
				Usage:  "Delete records from a collection by metadata match",
				Action: purgeCommand,
				Flags: append(collectionFlags(),
					&cli.StringFlag{
						Name:  "match",
						Usage: "Metadata predicate as key=value; records whose field equals the value are deleted",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Delete every record in the collection",
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func collectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory (overrides HIVEMIND_DB_PATH)",
		},
		&cli.StringFlag{
			Name:     "community",
			Usage:    "Community identifier",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "platform",
			Usage:    "Source platform identifier",
			Required: true,
		},
	}
}

// documentFile is the on-disk shape of an ingest input file.
type documentFile struct {
	Documents []struct {
		Key      string            `json:"key"`
		Text     string            `json:"text"`
		Metadata map[string]string `json:"metadata"`
	} `json:"documents"`
}

func loadDocuments(path string) ([]*core.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading documents file: %w", err)
	}

	var file documentFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing documents file: %w", err)
	}

	docs := make([]*core.Document, len(file.Documents))
	for i, d := range file.Documents {
		docs[i] = &core.Document{Key: d.Key, Text: d.Text, Metadata: d.Metadata}
	}
	return docs, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	settings, err := config.Load()
	if err != nil {
		return err
	}

	collection := core.Collection{
		Community: c.String("community"),
		Platform:  c.String("platform"),
	}

	docs, err := loadDocuments(c.String("docs"))
	if err != nil {
		return err
	}

	backend, err := badger.OpenBackend(flagOr(c.String("db"), settings.DatabasePath), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	stores, err := badger.NewStores(backend, settings.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("failed to create stores: %w", err)
	}

	embedder, err := newEmbedder(c, settings)
	if err != nil {
		return err
	}

	pipeline, err := ingestion.NewPipeline(collection, ingestion.Stores{
		Vectors:    stores.Vectors,
		Cache:      stores.Cache,
		Registry:   stores.Registry,
		Watermarks: stores.Watermarks,
	}, embedder, settings.EmbeddingDim,
		ingestion.WithChunkSize(settings.ChunkSize),
		ingestion.WithRateLimits(settings.RatePerMinute, settings.RatePerDay),
		ingestion.WithDateField(settings.DateField),
		ingestion.WithProgress(os.Stderr, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	// A failed run can be retried wholesale: the registry skips every
	// chunk the previous attempt finished and the cache keeps its
	// vectors, so only the unprocessed remainder is redone.
	var result *ingestion.RunResult
	err = ingestion.RetryWithBackoff(ctx, func() error {
		var runErr error
		if settings.BatchSize > 0 {
			result, runErr = pipeline.RunBatches(ctx, docs, settings.BatchSize)
		} else {
			result, runErr = pipeline.Run(ctx, docs)
		}
		return runErr
	}, settings.MaxAttempts, 2*time.Second)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Documents: %d\n", result.Documents)
	fmt.Fprintf(os.Stderr, "Chunks: %d (inserted %d, updated %d, skipped %d)\n",
		result.Chunks, result.Inserted, result.Updated, result.Skipped)
	fmt.Fprintf(os.Stderr, "Embedded: %d (cache hits %d)\n", result.Embedded, result.CacheHits)
	if !result.Watermark.IsZero() {
		fmt.Fprintf(os.Stderr, "Watermark: %s\n", result.Watermark.Format("2006-01-02T15:04:05Z07:00"))
	}

	return nil
}

func latestCommand(c *cli.Context) error {
	ctx := context.Background()

	settings, err := config.Load()
	if err != nil {
		return err
	}

	collection := core.Collection{
		Community: c.String("community"),
		Platform:  c.String("platform"),
	}
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}

	backend, err := badger.OpenBackend(flagOr(c.String("db"), settings.DatabasePath), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	stores, err := badger.NewStores(backend, settings.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("failed to create stores: %w", err)
	}

	latest, err := stores.Vectors.FindLatest(ctx, collection.Name(), settings.DateField)
	if err != nil {
		return fmt.Errorf("failed to query latest timestamp: %w", err)
	}

	if latest.IsZero() {
		fmt.Println("no ingested documents")
		return nil
	}
	fmt.Println(latest.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a search query is required")
	}

	settings, err := config.Load()
	if err != nil {
		return err
	}

	collection := core.Collection{
		Community: c.String("community"),
		Platform:  c.String("platform"),
	}

	backend, err := badger.OpenBackend(flagOr(c.String("db"), settings.DatabasePath), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	stores, err := badger.NewStores(backend, settings.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("failed to create stores: %w", err)
	}

	embedder, err := newEmbedder(c, settings)
	if err != nil {
		return err
	}

	searcher, err := search.NewSearcher(collection, stores.Vectors, embedder,
		search.WithMinSimilarity(float32(c.Float64("min-similarity"))))
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	results, err := searcher.FindSimilar(ctx, query, c.Int("max-hits"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%2d. [%.3f] %s\n", i+1, result.Score, result.Chunk.RecordKey())
		fmt.Printf("    %s\n", result.Chunk.Text)
	}
	return nil
}

func purgeCommand(c *cli.Context) error {
	ctx := context.Background()

	settings, err := config.Load()
	if err != nil {
		return err
	}

	collection := core.Collection{
		Community: c.String("community"),
		Platform:  c.String("platform"),
	}
	if err := core.ValidateCollection(collection); err != nil {
		return err
	}

	var match func(key string, metadata map[string]string) bool
	switch {
	case c.Bool("all"):
		match = func(string, map[string]string) bool { return true }
	case c.String("match") != "":
		field, want, ok := strings.Cut(c.String("match"), "=")
		if !ok || field == "" {
			return fmt.Errorf("invalid --match %q: expected key=value", c.String("match"))
		}
		match = func(_ string, metadata map[string]string) bool {
			return metadata[field] == want
		}
	default:
		return fmt.Errorf("either --match or --all is required")
	}

	backend, err := badger.OpenBackend(flagOr(c.String("db"), settings.DatabasePath), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	stores, err := badger.NewStores(backend, settings.EmbeddingDim)
	if err != nil {
		return fmt.Errorf("failed to create stores: %w", err)
	}

	purged, err := stores.Vectors.Purge(ctx, collection.Name(), match)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	// Drop the registry entries too, so re-ingesting the same content
	// later is not skipped against vectors that no longer exist.
	if err := stores.Registry.Delete(ctx, collection.CacheNamespace(), purged); err != nil {
		return fmt.Errorf("failed to drop registry entries: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Removed %d records from %s\n", len(purged), collection.Name())
	return nil
}

// newEmbedder builds the OpenAI-compatible embedder from settings, with
// CLI flags taking precedence over the environment.
func newEmbedder(c *cli.Context, settings *config.Settings) (ai.Embedder, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(flagOr(c.String("embedding-host"), settings.EmbeddingHost)),
		ai.WithModel(flagOr(c.String("embedding-model"), settings.EmbeddingModel)),
		ai.WithToken(settings.EmbeddingToken),
		ai.WithDimension(settings.EmbeddingDim),
	)

	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func flagOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
