package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TogetherCrew/hivemind-backend/ai/mock"
	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/storage"
	"github.com/TogetherCrew/hivemind-backend/storage/badger"
)

const testDim = 8

var testCollection = core.Collection{Community: "aragorn", Platform: "discord"}

func setupPipeline(t *testing.T, opts ...Option) (*Pipeline, *badger.Stores, *mock.MockEmbedder) {
	t.Helper()

	stores, backend, err := badger.NewMemoryStores(testDim)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder(testDim)

	pipeline, err := NewPipeline(testCollection, Stores{
		Vectors:    stores.Vectors,
		Cache:      stores.Cache,
		Registry:   stores.Registry,
		Watermarks: stores.Watermarks,
	}, embedder, testDim, opts...)
	require.NoError(t, err)

	return pipeline, stores, embedder
}

func testDocs() []*core.Document {
	return []*core.Document{
		{
			Key:      "msg-001",
			Text:     "A banana is an elongated, edible fruit.",
			Metadata: map[string]string{"date": "2024-03-01T10:00:00Z", "author": "frodo"},
		},
		{
			Key:      "msg-002",
			Text:     "Musa species are native to the Indomalayan realm.",
			Metadata: map[string]string{"date": "2024-03-02T11:30:00Z", "author": "sam"},
		},
	}
}

func TestNewPipeline_Validation(t *testing.T) {
	stores, backend, err := badger.NewMemoryStores(testDim)
	require.NoError(t, err)
	defer backend.Close()

	embedder := mock.NewMockEmbedder(testDim)
	full := Stores{
		Vectors:    stores.Vectors,
		Cache:      stores.Cache,
		Registry:   stores.Registry,
		Watermarks: stores.Watermarks,
	}

	_, err = NewPipeline(core.Collection{}, full, embedder, testDim)
	assert.ErrorIs(t, err, core.ErrInvalidCollection)

	_, err = NewPipeline(testCollection, Stores{}, embedder, testDim)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewPipeline(testCollection, full, nil, testDim)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(testCollection, full, embedder, 0)
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestRun_FreshIngest(t *testing.T) {
	pipeline, stores, embedder := setupPipeline(t)
	ctx := context.Background()

	result, err := pipeline.Run(ctx, testDocs())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, 0, result.CacheHits)

	// Both chunks landed in the vector index with the source metadata.
	latest, err := stores.Vectors.FindLatest(ctx, testCollection.Name(), "date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), latest)

	// Both vectors landed in the cache.
	all, err := stores.Cache.GetAll(ctx, testCollection.CacheNamespace())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.Equal(t, 2, embedder.CallCount())
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	pipeline, _, embedder := setupPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Run(ctx, testDocs())
	require.NoError(t, err)
	embedder.Reset()

	result, err := pipeline.Run(ctx, testDocs())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Embedded)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestRun_ChangedDocumentReembedded(t *testing.T) {
	pipeline, _, embedder := setupPipeline(t)
	ctx := context.Background()

	docs := testDocs()
	_, err := pipeline.Run(ctx, docs)
	require.NoError(t, err)
	embedder.Reset()

	docs[0].Text = "A banana is a berry, botanically speaking."
	result, err := pipeline.Run(ctx, docs)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestRun_CacheHitSkipsEmbedding(t *testing.T) {
	pipeline, stores, embedder := setupPipeline(t)
	ctx := context.Background()
	docs := testDocs()

	// Pre-seed the cache with the first document's chunk vector.
	chunk := core.Chunk{
		DocKey:   docs[0].Key,
		Index:    0,
		Text:     docs[0].Text,
		Metadata: docs[0].Metadata,
	}
	fp, err := core.FingerprintChunk(&chunk)
	require.NoError(t, err)
	seeded := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, stores.Cache.Put(ctx, testCollection.CacheNamespace(), fp, seeded))

	result, err := pipeline.Run(ctx, docs)
	require.NoError(t, err)

	assert.Equal(t, 1, result.CacheHits)
	assert.Equal(t, 1, result.Embedded)
	assert.Equal(t, 1, embedder.CallCount())
	assert.Equal(t, []string{docs[1].Text}, embedder.TextsSeen())
}

func TestRun_WatermarkAdvances(t *testing.T) {
	pipeline, stores, _ := setupPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Run(ctx, testDocs())
	require.NoError(t, err)

	wm, err := stores.Watermarks.Load(ctx, testCollection.Name())
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), wm.Timestamp)

	// Re-ingesting older documents must not move the watermark back.
	older := []*core.Document{{
		Key:      "msg-000",
		Text:     "An older message.",
		Metadata: map[string]string{"date": "2024-02-01T00:00:00Z"},
	}}
	_, err = pipeline.Run(ctx, older)
	require.NoError(t, err)

	wm, err = stores.Watermarks.Load(ctx, testCollection.Name())
	require.NoError(t, err)
	require.NotNil(t, wm)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), wm.Timestamp)
}

func TestRun_FailedRunLeavesWatermarkUntouched(t *testing.T) {
	pipeline, stores, embedder := setupPipeline(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("provider down")
	}

	_, err := pipeline.Run(ctx, testDocs())
	require.Error(t, err)

	wm, err := stores.Watermarks.Load(ctx, testCollection.Name())
	require.NoError(t, err)
	assert.Nil(t, wm)
}

func TestRun_DimensionMismatchFatal(t *testing.T) {
	pipeline, _, embedder := setupPipeline(t)
	ctx := context.Background()

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	}

	_, err := pipeline.Run(ctx, testDocs())
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestRun_CacheOutageDegrades(t *testing.T) {
	stores, backend, err := badger.NewMemoryStores(testDim)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder(testDim)
	failing := &failingCache{}

	pipeline, err := NewPipeline(testCollection, Stores{
		Vectors:    stores.Vectors,
		Cache:      failing,
		Registry:   stores.Registry,
		Watermarks: stores.Watermarks,
	}, embedder, testDim)
	require.NoError(t, err)

	result, err := pipeline.Run(context.Background(), testDocs())
	require.NoError(t, err)

	assert.Equal(t, 0, result.CacheHits)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestRun_WithoutCache(t *testing.T) {
	pipeline, stores, embedder := setupPipeline(t, WithoutCache())
	ctx := context.Background()

	result, err := pipeline.Run(ctx, testDocs())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Embedded)
	assert.Equal(t, 2, embedder.CallCount())

	all, err := stores.Cache.GetAll(ctx, testCollection.CacheNamespace())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRun_WithPurgeReloadsMatchingRecords(t *testing.T) {
	stores, backend, err := badger.NewMemoryStores(testDim)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	bundle := Stores{
		Vectors:    stores.Vectors,
		Cache:      stores.Cache,
		Registry:   stores.Registry,
		Watermarks: stores.Watermarks,
	}
	embedder := mock.NewMockEmbedder(testDim)
	ctx := context.Background()

	plain, err := NewPipeline(testCollection, bundle, embedder, testDim)
	require.NoError(t, err)
	_, err = plain.Run(ctx, testDocs())
	require.NoError(t, err)

	// Reload everything frodo authored: purge first, then re-ingest the
	// identical document. Without the purge it would be skipped.
	purging, err := NewPipeline(testCollection, bundle, embedder, testDim,
		WithPurge(func(key string, metadata map[string]string) bool {
			return metadata["author"] == "frodo"
		}))
	require.NoError(t, err)

	result, err := purging.Run(ctx, testDocs())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 1, result.Skipped)

	// The purged chunk's vector was still in the embedding cache.
	assert.Equal(t, 1, result.CacheHits)
	assert.Equal(t, 0, result.Embedded)

	latest, err := stores.Vectors.FindLatest(ctx, testCollection.Name(), "date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), latest)
}

func TestRun_PurgeThenLaterReingestRestoresVectors(t *testing.T) {
	stores, backend, err := badger.NewMemoryStores(testDim)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	bundle := Stores{
		Vectors:    stores.Vectors,
		Cache:      stores.Cache,
		Registry:   stores.Registry,
		Watermarks: stores.Watermarks,
	}
	embedder := mock.NewMockEmbedder(testDim)
	ctx := context.Background()

	plain, err := NewPipeline(testCollection, bundle, embedder, testDim)
	require.NoError(t, err)
	_, err = plain.Run(ctx, testDocs())
	require.NoError(t, err)

	// A maintenance run purges the whole collection without ingesting
	// anything new.
	purging, err := NewPipeline(testCollection, bundle, embedder, testDim,
		WithPurge(func(string, map[string]string) bool { return true }))
	require.NoError(t, err)
	_, err = purging.Run(ctx, nil)
	require.NoError(t, err)

	latest, err := stores.Vectors.FindLatest(ctx, testCollection.Name(), "date")
	require.NoError(t, err)
	require.True(t, latest.IsZero())

	// Re-ingesting the identical documents in a later run must restore
	// the vectors, not skip them against an index that no longer holds
	// them.
	result, err := plain.Run(ctx, testDocs())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 2, result.CacheHits)
	assert.Equal(t, 0, result.Embedded)

	latest, err = stores.Vectors.FindLatest(ctx, testCollection.Name(), "date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), latest)
}

func TestRun_InvalidDocumentRejected(t *testing.T) {
	pipeline, _, _ := setupPipeline(t)

	_, err := pipeline.Run(context.Background(), []*core.Document{{Key: "", Text: "orphan"}})
	assert.ErrorIs(t, err, core.ErrEmptyKey)
}

func TestRun_NoDateMetadataLeavesWatermarkUnset(t *testing.T) {
	pipeline, stores, _ := setupPipeline(t)
	ctx := context.Background()

	docs := []*core.Document{
		{Key: "msg-001", Text: "A banana is an elongated, edible fruit."},
		{Key: "msg-002", Text: "Musa species are native to the Indomalayan realm."},
	}
	result, err := pipeline.Run(ctx, docs)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.True(t, result.Watermark.IsZero())

	wm, err := stores.Watermarks.Load(ctx, testCollection.Name())
	require.NoError(t, err)
	assert.Nil(t, wm)
}

func TestRun_RefusesConcurrentRunOnSameCollection(t *testing.T) {
	pipeline, _, embedder := setupPipeline(t)
	ctx := context.Background()

	var nested error
	embedder.EmbedTextFunc = func(embedCtx context.Context, text string) ([]float32, error) {
		if nested == nil {
			_, nested = pipeline.Run(embedCtx, testDocs())
		}
		return make([]float32, testDim), nil
	}

	_, err := pipeline.Run(ctx, testDocs())
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrRunInProgress)
}

func TestRun_EmptyInput(t *testing.T) {
	pipeline, _, embedder := setupPipeline(t)

	result, err := pipeline.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Chunks)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestRunBatches(t *testing.T) {
	pipeline, _, embedder := setupPipeline(t)
	ctx := context.Background()

	docs := testDocs()
	docs = append(docs, &core.Document{
		Key:      "msg-003",
		Text:     "Plantains are cooking bananas.",
		Metadata: map[string]string{"date": "2024-03-03T09:00:00Z"},
	})

	result, err := pipeline.RunBatches(ctx, docs, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Documents)
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 3, result.Embedded)
	assert.Equal(t, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), result.Watermark)
	assert.Equal(t, 3, embedder.CallCount())

	_, err = pipeline.RunBatches(ctx, docs, 0)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestLatestIngested(t *testing.T) {
	pipeline, _, _ := setupPipeline(t)
	ctx := context.Background()

	latest, err := pipeline.LatestIngested(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = pipeline.Run(ctx, testDocs())
	require.NoError(t, err)

	latest, err = pipeline.LatestIngested(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC), *latest)
}

// failingCache implements storage.CacheStore and fails every operation.
type failingCache struct{}

func (f *failingCache) Get(ctx context.Context, namespace string, fps []core.Fingerprint) (map[core.Fingerprint][]float32, error) {
	return nil, errors.New("cache unavailable")
}

func (f *failingCache) Put(ctx context.Context, namespace string, fp core.Fingerprint, vector []float32) error {
	return errors.New("cache unavailable")
}

func (f *failingCache) GetAll(ctx context.Context, namespace string) (map[core.Fingerprint][]float32, error) {
	return nil, errors.New("cache unavailable")
}

var _ storage.CacheStore = (*failingCache)(nil)
