package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "b", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Put(ctx, "b", "k", []byte(`{"a":1}`)))
	got, err := m.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))

	// overwrite
	require.NoError(t, m.Put(ctx, "b", "k", []byte(`{"a":2}`)))
	got, err = m.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got))

	require.NoError(t, m.Delete(ctx, "b", "k"))
	_, err = m.Get(ctx, "b", "k")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting a missing key is not an error
	assert.NoError(t, m.Delete(ctx, "b", "k"))
}

func TestMemory_ListIsolatesBuckets(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "a", "k1", []byte(`1`)))
	require.NoError(t, m.Put(ctx, "a", "k2", []byte(`2`)))
	require.NoError(t, m.Put(ctx, "b", "k1", []byte(`3`)))

	got, err := m.List(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = m.List(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollections_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewCollections(NewMemory())

	col, err := repo.Create(ctx, "smoke tests", []SavedRequest{
		{Name: "list products", FullPath: "products/products:list", Kind: "query"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, col.ID)

	got, err := repo.Get(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, "smoke tests", got.Name)
	require.Len(t, got.Requests, 1)

	updated, err := repo.Update(ctx, col.ID, "renamed", nil)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Empty(t, updated.Requests)
	assert.NotNil(t, updated.Requests)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, col.ID))
	_, err = repo.Get(ctx, col.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_AppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewHistory(NewMemory())

	for i := 0; i < 3; i++ {
		_, err := repo.Append(ctx, HistoryEntry{
			FullPath:  fmt.Sprintf("mod:fn%d", i),
			Kind:      "query",
			Status:    "success",
			Result:    json.RawMessage(`[]`),
			InvokedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// newest first
	assert.Equal(t, "mod:fn2", entries[0].FullPath)
	assert.Equal(t, "mod:fn0", entries[2].FullPath)
}

func TestHistory_PruneBeyondCap(t *testing.T) {
	ctx := context.Background()
	repo := NewHistory(NewMemory())

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < maxHistoryEntries+10; i++ {
		_, err := repo.Append(ctx, HistoryEntry{
			FullPath:  fmt.Sprintf("mod:fn%d", i),
			Status:    "success",
			InvokedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, maxHistoryEntries)
	// the oldest entries were pruned, the newest kept
	assert.Equal(t, fmt.Sprintf("mod:fn%d", maxHistoryEntries+9), entries[0].FullPath)
}

func TestHistory_Clear(t *testing.T) {
	ctx := context.Background()
	repo := NewHistory(NewMemory())

	_, err := repo.Append(ctx, HistoryEntry{FullPath: "mod:fn", Status: "error"})
	require.NoError(t, err)

	require.NoError(t, repo.Clear(ctx))
	entries, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
