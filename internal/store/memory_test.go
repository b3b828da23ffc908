package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestMemory_CRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Add(ctx, "projects", map[string]any{"name": "Garden", "createdAt": ServerTimestamp})
	require.NoError(t, err)
	assert.Len(t, id, 20)

	doc, err := m.Get(ctx, "projects", id)
	require.NoError(t, err)
	assert.Equal(t, "Garden", doc.Data["name"])
	assert.IsType(t, time.Time{}, doc.Data["createdAt"])

	require.NoError(t, m.Update(ctx, "projects", id, map[string]any{"name": "Patio"}))
	doc, err = m.Get(ctx, "projects", id)
	require.NoError(t, err)
	assert.Equal(t, "Patio", doc.Data["name"])

	require.NoError(t, m.Delete(ctx, "projects", id))
	_, err = m.Get(ctx, "projects", id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, m.Update(ctx, "projects", id, map[string]any{"name": "x"}), ErrNotFound)
	assert.Equal(t, 3, m.Writes())
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.Add(ctx, "users", map[string]any{"settings": map[string]any{"theme": "dark"}})
	require.NoError(t, err)

	doc, err := m.Get(ctx, "users", id)
	require.NoError(t, err)
	doc.Data["settings"].(map[string]any)["theme"] = "light"

	doc, err = m.Get(ctx, "users", id)
	require.NoError(t, err)
	assert.Equal(t, "dark", doc.Data["settings"].(map[string]any)["theme"])
}

func TestMemory_SetMerge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "users", "u1", map[string]any{
		"email":    "a@example.com",
		"settings": map[string]any{"notifications": map[string]any{"email": true}},
	}, false))
	require.NoError(t, m.Set(ctx, "users", "u1", map[string]any{
		"settings": map[string]any{"appearance": map[string]any{"theme": "dark"}},
	}, true))

	doc, err := m.Get(ctx, "users", "u1")
	require.NoError(t, err)
	settings := doc.Data["settings"].(map[string]any)
	assert.Equal(t, "a@example.com", doc.Data["email"])
	assert.Contains(t, settings, "notifications")
	assert.Contains(t, settings, "appearance")
}

func TestMemory_Find(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetClock(fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	for _, name := range []string{"a", "b", "c"} {
		_, err := m.Add(ctx, "projects", map[string]any{"userId": "u1", "name": name, "updatedAt": ServerTimestamp})
		require.NoError(t, err)
	}
	_, err := m.Add(ctx, "projects", map[string]any{"userId": "u2", "name": "other", "updatedAt": ServerTimestamp})
	require.NoError(t, err)

	t.Run("ordered desc with filter", func(t *testing.T) {
		docs, err := m.Find(ctx, Query{
			Collection: "projects",
			Filters:    []Filter{{Field: "userId", Value: "u1"}},
			OrderBy:    "updatedAt",
			Direction:  Desc,
		})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, "c", docs[0].Data["name"])
		assert.Equal(t, "a", docs[2].Data["name"])
	})

	t.Run("limit", func(t *testing.T) {
		docs, err := m.Find(ctx, Query{Collection: "projects", OrderBy: "updatedAt", Direction: Asc, Limit: 2})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0].Data["name"])
	})

	t.Run("indexes disabled", func(t *testing.T) {
		m.DisableIndexes(true)
		defer m.DisableIndexes(false)

		_, err := m.Find(ctx, Query{Collection: "projects", OrderBy: "updatedAt"})
		assert.ErrorIs(t, err, ErrIndexUnavailable)

		docs, err := m.Find(ctx, Query{Collection: "projects", Filters: []Filter{{Field: "userId", Value: "u1"}}})
		require.NoError(t, err)
		assert.Len(t, docs, 3)
	})

	t.Run("unknown collection", func(t *testing.T) {
		docs, err := m.Find(ctx, Query{Collection: "nothing"})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMemory_FailOn(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("unavailable")

	m.FailOn("add", "activity", boom)
	_, err := m.Add(ctx, "activity", map[string]any{})
	assert.ErrorIs(t, err, boom)

	_, err = m.Add(ctx, "projects", map[string]any{})
	assert.NoError(t, err)

	m.FailOn("add", "activity", nil)
	_, err = m.Add(ctx, "activity", map[string]any{})
	assert.NoError(t, err)
}

func TestSortDocuments_TieBreaksByID(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{ID: "a", Data: map[string]any{"t": ts}},
		{ID: "c", Data: map[string]any{"t": ts}},
		{ID: "b", Data: map[string]any{"t": ts.Add(-time.Hour)}},
	}
	SortDocuments(docs, "t", Desc)
	assert.Equal(t, []string{"c", "a", "b"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}
