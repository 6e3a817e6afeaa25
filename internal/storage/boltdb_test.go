package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	store, err := NewBoltStore(StoreConfig{
		DBPath: filepath.Join(t.TempDir(), "test_startpage.db"),
		Logger: logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument() *types.Document {
	return &types.Document{
		SchemaVersion: types.SchemaVersion,
		Pages: []types.Page{
			{ID: "p1", Title: "Home", Bookmarks: []types.Bookmark{
				{ID: "b1", URL: "https://example.com", Label: "Example"},
			}},
		},
		Theme:       types.Theme{Color: "ocean", Pattern: "dots"},
		Preferences: map[string]string{"locale": "en"},
		Anchor: &types.SyncAnchor{
			LastModifiedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Origin:         types.OriginLocal,
		},
	}
}

func TestBoltStore(t *testing.T) {
	store := newTestStore(t)

	t.Run("LoadEmpty", func(t *testing.T) {
		doc, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		want := testDocument()
		require.NoError(t, store.Save(want))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		first := testDocument()
		require.NoError(t, store.Save(first))

		second := testDocument()
		second.Theme.Color = "crimson"
		second.Anchor.Origin = types.OriginRemote
		require.NoError(t, store.Save(second))

		got, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "crimson", got.Theme.Color)
		assert.Equal(t, types.OriginRemote, got.Anchor.Origin)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, store.Save(testDocument()))
		require.NoError(t, store.Clear())

		doc, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, doc)
	})
}

func TestBoltStoreReopen(t *testing.T) {
	logger := zap.NewNop()
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := NewBoltStore(StoreConfig{DBPath: path, Logger: logger})
	require.NoError(t, err)
	want := testDocument()
	require.NoError(t, store.Save(want))
	require.NoError(t, store.Close())

	reopened, err := NewBoltStore(StoreConfig{DBPath: path, Logger: logger})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
