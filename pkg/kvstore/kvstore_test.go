package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "teachers", []byte(`[]`)))
	value, ok, err := store.Get(ctx, "teachers")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(value))

	require.NoError(t, store.SetMany(ctx, map[string][]byte{
		"reports": []byte(`[{"id":"r1"}]`),
		"tasks":   []byte(`[]`),
	}))
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"reports", "tasks", "teachers"}, keys)

	require.NoError(t, store.Remove(ctx, "tasks"))
	_, ok, err = store.Get(ctx, "tasks")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	exerciseStore(t, store)
}

func TestLoadJSONKeepsDefaultWhenMissing(t *testing.T) {
	store := NewMemory()
	dest := []sample{{Name: "default"}}

	found, err := LoadJSON(context.Background(), store, "samples", &dest)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "default", dest[0].Name)
}

func TestSaveAndLoadJSON(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, SaveJSON(ctx, store, "samples", []sample{{Name: "a", Count: 2}}))

	var dest []sample
	found, err := LoadJSON(ctx, store, "samples", &dest)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []sample{{Name: "a", Count: 2}}, dest)
}

func TestLoadJSONCorruptValue(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "samples", []byte("{not json")))

	var dest []sample
	found, err := LoadJSON(ctx, store, "samples", &dest)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUndecodable))
	assert.False(t, found)
}
