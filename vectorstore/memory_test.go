package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/docmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.EnsureClass(ctx, DefaultClass))

	id, err := s.Create(ctx, DefaultClass, core.Record{Properties: map[string]any{"name": "a.md", "content": "Hello Weaviate"}})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.Create(ctx, DefaultClass, core.Record{ID: id})
	assert.Error(t, err)

	require.NoError(t, s.Update(ctx, DefaultClass, id, map[string]any{"summary": "greeting"}))

	recs, err := s.Get(ctx, DefaultClass, core.Query{Where: map[string]any{"name": "a.md"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "greeting", recs[0].Properties["summary"])
	assert.Equal(t, "Hello Weaviate", recs[0].Properties["content"])

	require.NoError(t, s.Delete(ctx, DefaultClass, id))
	assert.ErrorIs(t, s.Delete(ctx, DefaultClass, id), core.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, DefaultClass, id, nil), core.ErrNotFound)
}

func TestMemory_QueryNearTextProjectionLimit(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	for _, c := range []string{"alpha report", "beta notes", "Alpha summary"} {
		_, err := s.Create(ctx, "Doc", core.Record{Properties: map[string]any{"content": c, "kind": "md"}})
		require.NoError(t, err)
	}

	recs, err := s.Get(ctx, "Doc", core.Query{NearText: "alpha", Properties: []string{"content"}})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "alpha report", recs[0].Properties["content"])
	assert.NotContains(t, recs[0].Properties, "kind")

	recs, err = s.Get(ctx, "Doc", core.Query{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = s.Get(ctx, "Missing", core.Query{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDocument_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := Document{
		ID:        "id-1",
		Name:      "guide.md",
		Source:    "langchain-bucket/guide.md",
		Content:   "# Guide",
		Timestamp: ts,
		Tags:      []string{"md"},
		Metadata:  `{"size":7}`,
	}

	rec := doc.Record(DefaultClass)
	assert.Equal(t, DefaultClass, rec.Class)

	back := DocumentFromRecord(rec)
	assert.Equal(t, doc, back)
}

func TestEncodeMetadata(t *testing.T) {
	s, err := EncodeMetadata(nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	s, err = EncodeMetadata(map[string]any{"etag": "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"etag":"abc"}`, s)
}

func TestPropertyNames(t *testing.T) {
	assert.Contains(t, PropertyNames(), "content")
	assert.Contains(t, PropertyNames(), "metadata")
}
