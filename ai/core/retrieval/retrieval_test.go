package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/alsassist/internal/errclass"
	"github.com/hrygo/alsassist/store"
)

type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) SearchResources(ctx context.Context, opts *store.ResourceSearchOptions) ([]*store.ResourceWithDistance, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.ResourceWithDistance), args.Error(1)
}

func (m *MockVectorStore) UpsertResource(ctx context.Context, resource *store.Resource) (*store.Resource, error) {
	args := m.Called(ctx, resource)
	return resource, args.Error(0)
}

// fakeEmbedder returns a fixed vector per text and counts calls.
type fakeEmbedder struct {
	err     error
	batches [][]string
	embeds  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.embeds++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }
func (f *fakeEmbedder) Model() string   { return "test-model" }

func TestSearch(t *testing.T) {
	ctx := context.Background()
	st := &MockVectorStore{}
	st.On("SearchResources", ctx, mock.MatchedBy(func(o *store.ResourceSearchOptions) bool {
		return o.Model == "test-model" && o.Limit == 3 && o.Filters["lang"] == "en"
	})).Return([]*store.ResourceWithDistance{
		{Resource: &store.Resource{ID: "a", Content: "wheelchair guide", Metadata: map[string]string{"title": "Wheelchairs"}}, Distance: 0},
		{Resource: &store.Resource{ID: "b", Content: "speech aids"}, Distance: 1},
		nil,
	}, nil)

	s := NewSearcher(st, &fakeEmbedder{})
	hits, err := s.Search(ctx, "mobility support", 3, map[string]string{"lang": "en"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.5, hits[1].Score, 1e-9)
	assert.Equal(t, "Wheelchairs", hits[0].Title("Related resource"))
	assert.Equal(t, "Related resource", hits[1].Title("Related resource"))
	st.AssertExpectations(t)
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty query", func(t *testing.T) {
		_, err := NewSearcher(&MockVectorStore{}, &fakeEmbedder{}).Search(ctx, "  ", 3, nil)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("embedding failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewSearcher(&MockVectorStore{}, &fakeEmbedder{err: boom}).Search(ctx, "q", 3, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("query too long", func(t *testing.T) {
		emb := &fakeEmbedder{}
		_, err := NewSearcher(&MockVectorStore{}, emb).Search(ctx, strings.Repeat("é", MaxQueryLength+1), 3, nil)
		assert.True(t, errclass.IsValidation(err))
		assert.Zero(t, emb.embeds)
	})

	t.Run("store failure", func(t *testing.T) {
		st := &MockVectorStore{}
		st.On("SearchResources", ctx, mock.Anything).Return(nil, errors.New("db down"))
		_, err := NewSearcher(st, &fakeEmbedder{}).Search(ctx, "q", 0, nil)
		assert.ErrorContains(t, err, "db down")
	})
}

func TestSearch_QueryCache(t *testing.T) {
	ctx := context.Background()
	st := &MockVectorStore{}
	st.On("SearchResources", ctx, mock.Anything).Return([]*store.ResourceWithDistance{}, nil)

	emb := &fakeEmbedder{}
	s := NewSearcher(st, emb, WithQueryCache(8, time.Minute))
	for range 3 {
		_, err := s.Search(ctx, "physical middle support", 3, nil)
		require.NoError(t, err)
	}
	_, err := s.Search(ctx, "social middle support", 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, emb.embeds)
	st.AssertNumberOfCalls(t, "SearchResources", 4)
}

func TestSearch_FailedEmbeddingIsNotCached(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("quota")}
	s := NewSearcher(&MockVectorStore{}, emb, WithQueryCache(8, time.Minute))
	for range 2 {
		_, err := s.Search(context.Background(), "q", 3, nil)
		require.Error(t, err)
	}
	assert.Equal(t, 2, emb.embeds)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity(0), 1e-9)
	assert.InDelta(t, 1.0, Similarity(-0.1), 1e-9)
	assert.InDelta(t, 1.0/3.0, Similarity(2), 1e-9)
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		size     int
		overlap  int
		expected []string
	}{
		{"empty", "   ", 10, 0, nil},
		{"single chunk", "Rest often. Drink water.", 100, 10, []string{"Rest often. Drink water."}},
		{"split on sentences", "aaaa. bbbb. cccc.", 12, 0, []string{"aaaa. bbbb.", "cccc."}},
		{"overlap", "aaaa. bbbb. cccc.", 12, 3, []string{"aaaa. bbbb.", "bb. cccc."}},
		{"chinese", "多休息。多喝水。", 4, 0, []string{"多休息。", "多喝水。"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitText(tt.text, tt.size, tt.overlap))
		})
	}
}

func TestLoadDocumentsAndIndex(t *testing.T) {
	fsys := fstest.MapFS{
		"breathing.md": {Data: []byte("# Breathing support\n\nNon-invasive ventilation helps at night.")},
		"notes.txt":    {Data: []byte("Plain notes.")},
		"image.png":    {Data: []byte{0x89}},
	}
	docs, err := LoadDocuments(fsys)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "breathing.md", docs[0].Source)
	assert.Equal(t, "Breathing support", docs[0].Metadata["title"])
	assert.Empty(t, docs[1].Metadata["title"])

	ctx := context.Background()
	st := &MockVectorStore{}
	st.On("UpsertResource", ctx, mock.MatchedBy(func(r *store.Resource) bool {
		return r.Model == "test-model" && r.Metadata["chunk_index"] == "0" && len(r.Embedding) == 2
	})).Return(nil).Twice()

	emb := &fakeEmbedder{}
	n, err := NewIndexer(st, emb).Index(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, emb.batches, 1)
	st.AssertExpectations(t)

	upserted := st.Calls[0].Arguments.Get(1).(*store.Resource)
	assert.Equal(t, "breathing.md#0", upserted.ID)
	assert.Equal(t, "breathing.md", upserted.Metadata["source"])
}

func TestIndex_EmbedFailure(t *testing.T) {
	n, err := NewIndexer(&MockVectorStore{}, &fakeEmbedder{err: errors.New("quota")}).
		Index(context.Background(), []Document{{Source: "a.md", Content: "text."}})
	assert.Error(t, err)
	assert.Zero(t, n)
}
