package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtechhub/kerkoapp/internal/composer"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "sub", "cache.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func testLibrary() Library {
	return Library{
		Items: []map[string]any{
			{"key": "PARENT1", "data": map[string]any{"itemType": "report", "title": "First"}},
			{"key": "CHILD1", "data": map[string]any{"itemType": "attachment", "parentItem": "PARENT1"}},
			{"key": "PARENT2", "data": map[string]any{"itemType": "book", "title": "Second"}},
			{"key": "ORPHAN", "data": map[string]any{"itemType": "note", "parentItem": "GONE"}},
		},
		Collections: []composer.Collection{
			{Key: "ROOT", Name: "Themes"},
			{Key: "T1", Name: "Teachers", ParentKey: "ROOT"},
		},
		ItemTypes: map[string]string{"book": "Book", "report": "Report"},
		Version:   77,
	}
}

func TestEmptyCache(t *testing.T) {
	s := openTestStore(t)

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReplaceAndLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Replace(ctx, testLibrary()))

	snap, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 77, snap.Version)
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "PARENT1", snap.Items[0].Key)
	assert.Equal(t, "PARENT2", snap.Items[1].Key)

	require.Len(t, snap.Items[0].Children, 1)
	assert.Equal(t, "CHILD1", snap.Items[0].Children[0].Key)
	assert.Empty(t, snap.Items[1].Children)

	assert.Equal(t, "Teachers", snap.Library.CollectionName("T1"))
	assert.Equal(t, []string{"T1", "ROOT"}, snap.Library.Ancestors("T1"))
	assert.Equal(t, "Book", snap.Library.ItemTypes["book"])
}

func TestReplaceSwapsEverything(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Replace(ctx, testLibrary()))
	first, err := s.Version(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Replace(ctx, Library{
		Items:   []map[string]any{{"key": "ONLY", "data": map[string]any{"itemType": "book"}}},
		Version: 78,
	}))

	second, err := s.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "ONLY", snap.Items[0].Key)
	assert.Empty(t, snap.Library.Collections)
}
