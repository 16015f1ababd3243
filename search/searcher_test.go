package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TogetherCrew/hivemind-backend/ai/mock"
	"github.com/TogetherCrew/hivemind-backend/core"
	"github.com/TogetherCrew/hivemind-backend/storage/badger"
)

const testDim = 4

var testCollection = core.Collection{Community: "aragorn", Platform: "discord"}

func seedChunks(t *testing.T, dim int, chunks []*core.EmbeddedChunk) *badger.Stores {
	t.Helper()
	stores, backend, err := badger.NewMemoryStores(dim)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	require.NoError(t, stores.Vectors.Upsert(context.Background(), testCollection.Name(), chunks))
	return stores
}

func TestNewSearcher_Validation(t *testing.T) {
	stores, backend, err := badger.NewMemoryStores(testDim)
	require.NoError(t, err)
	defer backend.Close()

	embedder := mock.NewMockEmbedder(testDim)

	_, err = NewSearcher(core.Collection{}, stores.Vectors, embedder)
	assert.ErrorIs(t, err, core.ErrInvalidCollection)

	_, err = NewSearcher(testCollection, nil, embedder)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewSearcher(testCollection, stores.Vectors, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestFindSimilar_RanksByScore(t *testing.T) {
	stores := seedChunks(t, testDim, []*core.EmbeddedChunk{
		{Chunk: core.Chunk{DocKey: "doc-a", Index: 0, Text: "bananas are yellow"}, Vector: []float32{1, 0, 0, 0}},
		{Chunk: core.Chunk{DocKey: "doc-b", Index: 0, Text: "apples are red"}, Vector: []float32{0.9, 0.1, 0, 0}},
		{Chunk: core.Chunk{DocKey: "doc-c", Index: 0, Text: "unrelated topic"}, Vector: []float32{0, 0, 0, 1}},
	})

	embedder := mock.NewMockEmbedder(testDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	searcher, err := NewSearcher(testCollection, stores.Vectors, embedder)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "tell me about fruit", 10)
	require.NoError(t, err)

	// doc-c scores 0 against the query vector, below the 0.60 floor.
	require.Len(t, results, 2)
	assert.Equal(t, "doc-a_0", results[0].Chunk.RecordKey())
	assert.Equal(t, "doc-b_0", results[1].Chunk.RecordKey())
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_VerbatimBoost(t *testing.T) {
	stores := seedChunks(t, testDim, []*core.EmbeddedChunk{
		{Chunk: core.Chunk{DocKey: "doc-a", Index: 0, Text: "bananas grow in warm climates"}, Vector: []float32{0.8, 0.6, 0, 0}},
		{Chunk: core.Chunk{DocKey: "doc-b", Index: 0, Text: "some other tropical plant"}, Vector: []float32{1, 0, 0, 0}},
	})

	embedder := mock.NewMockEmbedder(testDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	searcher, err := NewSearcher(testCollection, stores.Vectors, embedder)
	require.NoError(t, err)

	// doc-b is the closer vector, but doc-a contains both query words
	// verbatim and takes the boost.
	results, err := searcher.FindSimilar(context.Background(), "bananas climates", 10)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "doc-a_0", results[0].Chunk.RecordKey())
}

func TestFindSimilar_RespectsMaxHits(t *testing.T) {
	chunks := []*core.EmbeddedChunk{
		{Chunk: core.Chunk{DocKey: "doc-a", Index: 0, Text: "one"}, Vector: []float32{1, 0, 0, 0}},
		{Chunk: core.Chunk{DocKey: "doc-a", Index: 1, Text: "two"}, Vector: []float32{0.95, 0.05, 0, 0}},
		{Chunk: core.Chunk{DocKey: "doc-a", Index: 2, Text: "three"}, Vector: []float32{0.9, 0.1, 0, 0}},
	}
	stores := seedChunks(t, testDim, chunks)

	embedder := mock.NewMockEmbedder(testDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	searcher, err := NewSearcher(testCollection, stores.Vectors, embedder)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFindSimilar_EmbedderError(t *testing.T) {
	stores := seedChunks(t, testDim, nil)

	embedder := mock.NewMockEmbedder(testDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("provider down")
	}

	searcher, err := NewSearcher(testCollection, stores.Vectors, embedder)
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "query", 5)
	assert.Error(t, err)
}

// recordingMonitor captures the stages of one search.
type recordingMonitor struct {
	query        string
	dimension    int
	matchKeys    []string
	verbatimKeys []string
	finished     bool
}

func (m *recordingMonitor) Start(query string)          { m.query = query }
func (m *recordingMonitor) AfterQueryEmbedding(dim int) { m.dimension = dim }
func (m *recordingMonitor) AfterSimilaritySearch(keys []string) {
	m.matchKeys = keys
}
func (m *recordingMonitor) VerbatimHit(chunk *core.EmbeddedChunk) {
	m.verbatimKeys = append(m.verbatimKeys, chunk.RecordKey())
}
func (m *recordingMonitor) Finish(_ []*core.SearchResult) { m.finished = true }

func TestFindSimilarWithMonitor(t *testing.T) {
	stores := seedChunks(t, testDim, []*core.EmbeddedChunk{
		{Chunk: core.Chunk{DocKey: "doc-a", Index: 0, Text: "bananas everywhere"}, Vector: []float32{1, 0, 0, 0}},
	})

	embedder := mock.NewMockEmbedder(testDim)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0, 0}, nil
	}

	searcher, err := NewSearcher(testCollection, stores.Vectors, embedder)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := searcher.FindSimilarWithMonitor(context.Background(), "bananas", 5, monitor)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "bananas", monitor.query)
	assert.Equal(t, testDim, monitor.dimension)
	assert.Equal(t, []string{"doc-a_0"}, monitor.matchKeys)
	assert.Equal(t, []string{"doc-a_0"}, monitor.verbatimKeys)
	assert.True(t, monitor.finished)
}

func TestContainsAllQueryWords(t *testing.T) {
	assert.True(t, containsAllQueryWords("Bananas grow in warm climates.", "bananas climates"))
	assert.False(t, containsAllQueryWords("Bananas grow here.", "bananas climates"))
	// A query of pure stop words never counts as a verbatim match.
	assert.False(t, containsAllQueryWords("the and of", "the and"))
}
