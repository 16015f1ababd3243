package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/TogetherCrew/hivemind-backend/ai"
	"github.com/TogetherCrew/hivemind-backend/chunker"
	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/storage"
)

// DefaultDateField is the metadata field consulted for document
// timestamps when advancing the collection watermark.
const DefaultDateField = "date"

// Stores bundles the storage backends the pipeline writes to.
// Cache may be nil to run without an embedding cache.
type Stores struct {
	Vectors    storage.VectorStore
	Cache      storage.CacheStore
	Registry   storage.DocumentRegistry
	Watermarks storage.WatermarkStore
}

// Pipeline turns raw documents into embedded chunks in a collection's
// vector index, skipping work for content that has not changed since the
// previous run. Repeated runs over the same documents are idempotent.
type Pipeline struct {
	collection core.Collection
	vectors    storage.VectorStore
	cache      storage.CacheStore
	registry   storage.DocumentRegistry
	watermarks storage.WatermarkStore
	embedder   ai.Embedder
	chunker    *chunker.Chunker
	dimension  int
	perMinute  int
	perDay     int
	dateField  string
	purge      func(key string, metadata map[string]string) bool

	progressWriter io.Writer
	reportInterval int

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker replaces the default document chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.chunker = c
		}
		return nil
	}
}

// WithChunkSize sets the target chunk size in bytes for the default
// chunker.
func WithChunkSize(size int) Option {
	return func(p *Pipeline) error {
		p.chunker = chunker.New(chunker.WithTargetSize(size))
		return nil
	}
}

// WithRateLimits sets the embedding request quotas. A zero quota means
// unlimited for that window.
func WithRateLimits(perMinute, perDay int) Option {
	return func(p *Pipeline) error {
		if perMinute < 0 {
			perMinute = 0
		}
		if perDay < 0 {
			perDay = 0
		}
		p.perMinute = perMinute
		p.perDay = perDay
		return nil
	}
}

// WithDateField sets the metadata field used for watermark timestamps.
// Default is DefaultDateField.
func WithDateField(field string) Option {
	return func(p *Pipeline) error {
		if field != "" {
			p.dateField = field
		}
		return nil
	}
}

// WithoutCache disables the embedding cache. Every chunk that needs a
// vector hits the embedding API.
func WithoutCache() Option {
	return func(p *Pipeline) error {
		p.cache = nil
		return nil
	}
}

// WithProgress writes embedding progress to w every reportInterval
// chunks. Intended for interactive runs; the default is no progress
// output beyond logging.
func WithProgress(w io.Writer, reportInterval int) Option {
	return func(p *Pipeline) error {
		p.progressWriter = w
		p.reportInterval = reportInterval
		return nil
	}
}

// WithPurge installs a predicate run against the collection before every
// ingestion run. Matching records are deleted first, so stale data from
// a previous load never lingers next to the fresh load.
func WithPurge(match func(key string, metadata map[string]string) bool) Option {
	return func(p *Pipeline) error {
		p.purge = match
		return nil
	}
}

// NewPipeline creates an ingestion pipeline for one collection.
func NewPipeline(
	collection core.Collection,
	stores Stores,
	embedder ai.Embedder,
	dimension int,
	opts ...Option,
) (*Pipeline, error) {
	if err := core.ValidateCollection(collection); err != nil {
		return nil, err
	}
	if stores.Vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if stores.Registry == nil {
		return nil, ErrRegistryRequired
	}
	if stores.Watermarks == nil {
		return nil, ErrWatermarkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	p := &Pipeline{
		collection: collection,
		vectors:    stores.Vectors,
		cache:      stores.Cache,
		registry:   stores.Registry,
		watermarks: stores.Watermarks,
		embedder:   embedder,
		chunker:    chunker.New(),
		dimension:  dimension,
		dateField:  DefaultDateField,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.logger = p.logger.With("collection", collection.Name())

	return p, nil
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Documents int
	Chunks    int
	Inserted  int
	Updated   int
	Skipped   int
	Embedded  int
	CacheHits int
	Watermark time.Time
}

// Run ingests the given documents into the collection's vector index.
//
// Every document is chunked and every chunk fingerprinted. Chunks whose
// record key already carries the same fingerprint in the document
// registry are skipped entirely. The remainder get vectors from the
// embedding cache when possible and from the embedding API otherwise,
// then are upserted along with their registry entries. Finally the
// collection watermark advances to the latest document timestamp seen
// among the upserted chunks.
//
// A cache outage degrades to recomputation; a registry or vector store
// failure aborts the run. An aborted run leaves the watermark untouched.
//
// At most one run executes per collection at a time; a second concurrent
// run returns ErrRunInProgress. Concurrent runs could race on watermark
// advancement and registry writes, so they are refused rather than
// serialized.
func (p *Pipeline) Run(ctx context.Context, docs []*core.Document) (*RunResult, error) {
	lease := leaseFor(p.collection.Name())
	if !lease.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, p.collection.Name())
	}
	defer lease.Unlock()

	return p.run(ctx, docs)
}

func (p *Pipeline) run(ctx context.Context, docs []*core.Document) (*RunResult, error) {
	for _, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return nil, fmt.Errorf("document %q: %w", doc.Key, err)
		}
	}

	if p.purge != nil {
		purged, err := p.vectors.Purge(ctx, p.collection.Name(), p.purge)
		if err != nil {
			return nil, fmt.Errorf("purging stale records: %w", err)
		}
		if len(purged) > 0 {
			// The registry must stop vouching for the deleted vectors,
			// or re-ingesting identical content would be skipped against
			// an index that no longer holds it.
			if err := p.registry.Delete(ctx, p.collection.CacheNamespace(), purged); err != nil {
				return nil, fmt.Errorf("dropping registry entries for purged records: %w", err)
			}
			p.logger.Info("purged stale records before load", "removed", len(purged))
		}
	}

	records, err := p.fingerprintAll(docs)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Documents: len(docs), Chunks: len(records)}
	if len(records) == 0 {
		p.logger.Info("no chunks produced, nothing to ingest", "documents", len(docs))
		return result, nil
	}

	namespace := p.collection.CacheNamespace()

	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Chunk.RecordKey()
	}
	known, err := p.registry.Fingerprints(ctx, namespace, keys)
	if err != nil {
		return nil, fmt.Errorf("loading registry fingerprints: %w", err)
	}

	plan := Reconcile(known, records)
	result.Inserted = len(plan.Insert)
	result.Updated = len(plan.Update)
	result.Skipped = len(plan.Skip)

	p.logger.Info("reconciled chunks against registry",
		"chunks", len(records),
		"insert", len(plan.Insert),
		"update", len(plan.Update),
		"skip", len(plan.Skip))

	changed := plan.Changed()
	if len(changed) == 0 {
		p.logger.Info("all chunks unchanged, nothing to write")
		return result, nil
	}

	vectors, err := p.resolveVectors(ctx, namespace, changed, result)
	if err != nil {
		return nil, err
	}

	embedded := make([]*core.EmbeddedChunk, len(changed))
	for i, rec := range changed {
		embedded[i] = &core.EmbeddedChunk{
			Chunk:  *rec.Chunk,
			Vector: vectors[i],
		}
	}

	if err := p.vectors.Upsert(ctx, p.collection.Name(), embedded); err != nil {
		return nil, fmt.Errorf("upserting vectors: %w", err)
	}

	entries := make([]storage.RegistryEntry, len(changed))
	for i, rec := range changed {
		entries[i] = storage.RegistryEntry{
			Key:         rec.Chunk.RecordKey(),
			Fingerprint: rec.Fingerprint,
		}
	}
	if err := p.registry.Upsert(ctx, namespace, entries); err != nil {
		return nil, fmt.Errorf("recording registry entries: %w", err)
	}

	if latest := p.latestTimestamp(changed); !latest.IsZero() {
		if err := p.watermarks.Advance(ctx, p.collection.Name(), latest); err != nil {
			return nil, fmt.Errorf("advancing watermark: %w", err)
		}
		result.Watermark = latest
	}

	p.logger.Info("ingestion run complete",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"embedded", result.Embedded,
		"cache_hits", result.CacheHits)

	return result, nil
}

// RunBatches splits docs into fixed-size batches and runs each in turn.
// Per-batch results accumulate into one combined RunResult. A failing
// batch aborts the remainder; completed batches stay committed.
func (p *Pipeline) RunBatches(ctx context.Context, docs []*core.Document, batchSize int) (*RunResult, error) {
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}

	lease := leaseFor(p.collection.Name())
	if !lease.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, p.collection.Name())
	}
	defer lease.Unlock()

	total := (len(docs) + batchSize - 1) / batchSize
	combined := &RunResult{}

	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))
		batch := i/batchSize + 1
		p.logger.Info("ingesting batch", "batch", batch, "batches", total, "documents", end-i)

		res, err := p.run(ctx, docs[i:end])
		if err != nil {
			return combined, fmt.Errorf("batch %d/%d: %w", batch, total, err)
		}

		combined.Documents += res.Documents
		combined.Chunks += res.Chunks
		combined.Inserted += res.Inserted
		combined.Updated += res.Updated
		combined.Skipped += res.Skipped
		combined.Embedded += res.Embedded
		combined.CacheHits += res.CacheHits
		if res.Watermark.After(combined.Watermark) {
			combined.Watermark = res.Watermark
		}
	}

	return combined, nil
}

// LatestIngested returns the most recent document timestamp already in
// the collection's vector index, or nil when the collection is empty or
// carries no parseable timestamps. Callers use it to fetch only newer
// documents from the source platform.
func (p *Pipeline) LatestIngested(ctx context.Context) (*time.Time, error) {
	latest, err := p.vectors.FindLatest(ctx, p.collection.Name(), p.dateField)
	if err != nil {
		return nil, err
	}
	if latest.IsZero() {
		return nil, nil
	}
	return &latest, nil
}

// fingerprintAll chunks every document and fingerprints every chunk.
func (p *Pipeline) fingerprintAll(docs []*core.Document) ([]Record, error) {
	var records []Record
	for _, doc := range docs {
		for _, chunk := range p.chunker.Split(doc) {
			chunk := chunk
			fp, err := core.FingerprintChunk(&chunk)
			if err != nil {
				return nil, fmt.Errorf("fingerprinting chunk %q: %w", chunk.RecordKey(), err)
			}
			records = append(records, Record{Chunk: &chunk, Fingerprint: fp})
		}
	}
	return records, nil
}

// resolveVectors produces one vector per changed record, consulting the
// cache first and embedding only the misses. Freshly computed vectors go
// into the cache as they arrive, so an aborted run keeps its finished
// work.
func (p *Pipeline) resolveVectors(ctx context.Context, namespace string, changed []Record, result *RunResult) ([][]float32, error) {
	vectors := make([][]float32, len(changed))

	cached := p.lookupCache(ctx, namespace, changed)
	var missTexts []string
	var missIndexes []int
	for i, rec := range changed {
		if vec, ok := cached[rec.Fingerprint]; ok {
			if err := core.ValidateVector(vec, p.dimension); err != nil {
				return nil, fmt.Errorf("cached vector for %q: %w", rec.Chunk.RecordKey(), err)
			}
			vectors[i] = vec
			result.CacheHits++
			continue
		}
		missTexts = append(missTexts, rec.Chunk.Text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	p.logger.Info("embedding chunks missing from cache",
		"misses", len(missTexts), "cache_hits", result.CacheHits)

	var tracker *ProgressTracker
	if p.progressWriter != nil {
		tracker = NewProgressTracker(p.progressWriter, len(missTexts), p.reportInterval)
		tracker.Start()
		defer tracker.Finish()
	}

	throttled := newThrottledEmbedder(p.embedder, p.perMinute, p.perDay, p.logger)
	err := throttled.embedAll(ctx, missTexts, func(i int, vector []float32) error {
		idx := missIndexes[i]
		rec := changed[idx]
		if err := core.ValidateVector(vector, p.dimension); err != nil {
			return fmt.Errorf("embedding for %q: %w", rec.Chunk.RecordKey(), err)
		}
		vectors[idx] = vector
		result.Embedded++
		if tracker != nil {
			tracker.Increment(1)
		}
		if p.cache != nil {
			if err := p.cache.Put(ctx, namespace, rec.Fingerprint, vector); err != nil {
				p.logger.Warn("failed to cache embedding, continuing",
					"key", rec.Chunk.RecordKey(), "err", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return vectors, nil
}

// lookupCache returns whatever subset of the changed records' vectors the
// cache holds. A cache failure degrades to an empty result.
func (p *Pipeline) lookupCache(ctx context.Context, namespace string, changed []Record) map[core.Fingerprint][]float32 {
	if p.cache == nil {
		return nil
	}

	fps := make([]core.Fingerprint, len(changed))
	for i, rec := range changed {
		fps[i] = rec.Fingerprint
	}

	cached, err := p.cache.Get(ctx, namespace, fps)
	if err != nil {
		p.logger.Warn("embedding cache unavailable, recomputing all vectors", "err", err)
		return nil
	}
	return cached
}

// latestTimestamp returns the newest parseable date-field value among the
// records, or the zero time when none parses. Records without a usable
// timestamp never block ingestion.
func (p *Pipeline) latestTimestamp(records []Record) time.Time {
	var latest time.Time
	for _, rec := range records {
		raw, ok := rec.Chunk.Metadata[p.dateField]
		if !ok {
			continue
		}
		ts, err := core.ParseTimestamp(raw)
		if err != nil {
			p.logger.Debug("skipping unparseable timestamp",
				"key", rec.Chunk.RecordKey(), "value", raw)
			continue
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest
}
