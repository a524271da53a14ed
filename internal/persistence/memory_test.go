package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleDoc struct {
	ID    string         `json:"id"`
	Items []sampleItem   `json:"items"`
	Meta  map[string]any `json:"meta,omitempty"`
}

type sampleItem struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

func seed(t *testing.T) *MemoryDocuments {
	t.Helper()
	store := NewMemoryDocuments()
	doc := sampleDoc{ID: "g1", Items: []sampleItem{{Name: "a"}, {Name: "b", Roles: []string{"r1"}}}}
	require.NoError(t, store.Insert(context.Background(), "things", "g1", doc))
	return store
}

func TestMemoryDocuments_InsertRejectsDuplicateKey(t *testing.T) {
	store := seed(t)
	err := store.Insert(context.Background(), "things", "g1", sampleDoc{ID: "g1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, []string{"g1"}, store.Keys("things"))
}

func TestMemoryDocuments_PathOperations(t *testing.T) {
	ctx := context.Background()
	store := seed(t)

	require.NoError(t, store.Set(ctx, "things", "g1", "items.0.name", "renamed"))
	require.NoError(t, store.Push(ctx, "things", "g1", "items.0.roles", "r9"))
	require.NoError(t, store.Push(ctx, "things", "g1", "items.1.roles", "r2"))
	require.NoError(t, store.Pull(ctx, "things", "g1", "items.1.roles", "r1"))
	require.NoError(t, store.Set(ctx, "things", "g1", "meta.owner", "u1"))

	var got sampleDoc
	require.NoError(t, store.Get(ctx, "things", "g1", &got))
	assert.Equal(t, "renamed", got.Items[0].Name)
	assert.Equal(t, []string{"r9"}, got.Items[0].Roles)
	assert.Equal(t, []string{"r2"}, got.Items[1].Roles)
	assert.Equal(t, "u1", got.Meta["owner"])

	require.NoError(t, store.Unset(ctx, "things", "g1", "items.0.roles"))
	require.NoError(t, store.Get(ctx, "things", "g1", &got))
	assert.Empty(t, got.Items[0].Roles)
}

func TestMemoryDocuments_SetOutOfRangeFails(t *testing.T) {
	store := seed(t)
	err := store.Set(context.Background(), "things", "g1", "items.5.name", "x")
	assert.Error(t, err)
}

func TestMemoryDocuments_MissingDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocuments()

	var got sampleDoc
	assert.ErrorIs(t, store.Get(ctx, "things", "nope", &got), ErrNoDocument)
	assert.ErrorIs(t, store.Set(ctx, "things", "nope", "id", "x"), ErrNoDocument)
	assert.ErrorIs(t, store.Delete(ctx, "things", "nope"), ErrNoDocument)
}

func TestMemoryDocuments_FindOneReturnsFirstInserted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDocuments()
	require.NoError(t, store.Insert(ctx, "things", "k1", map[string]string{"channelId": "c1", "owner": "a"}))
	require.NoError(t, store.Insert(ctx, "things", "k2", map[string]string{"channelId": "c1", "owner": "b"}))

	var got map[string]string
	require.NoError(t, store.FindOne(ctx, "things", "channelId", "c1", &got))
	assert.Equal(t, "a", got["owner"])

	require.NoError(t, store.Delete(ctx, "things", "k1"))
	require.NoError(t, store.FindOne(ctx, "things", "channelId", "c1", &got))
	assert.Equal(t, "b", got["owner"])

	assert.ErrorIs(t, store.FindOne(ctx, "things", "channelId", "c2", &got), ErrNoDocument)
}
