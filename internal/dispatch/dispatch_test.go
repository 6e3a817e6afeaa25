package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/serialize"
	"github.com/jemch/startpage/internal/state"
	"github.com/jemch/startpage/internal/syncengine"
	"github.com/jemch/startpage/internal/types"
)

type nopLocal struct{}

func (nopLocal) Load() (*types.Document, error) { return nil, nil }
func (nopLocal) Save(doc *types.Document) error { return nil }

type nopRemote struct{}

func (nopRemote) Fetch(ctx context.Context, userID string) (*types.Document, error) {
	return nil, nil
}
func (nopRemote) Push(ctx context.Context, userID string, doc *types.Document) error {
	return nil
}

func newTestTable(t *testing.T) (*Table, *state.Store, *syncengine.Engine) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	store := state.New(logger)
	engine := syncengine.New(syncengine.Options{
		Store:          store,
		Local:          nopLocal{},
		Remote:         nopRemote{},
		Logger:         logger,
		DebounceWindow: time.Hour, // keep the timer out of the test's way
	})
	require.NoError(t, engine.Start())
	return New(engine, store, logger), store, engine
}

func dispatch(t *testing.T, table *Table, event string, args map[string]string) {
	t.Helper()
	require.NoError(t, table.Dispatch(context.Background(), event, args))
}

func TestUnknownEvent(t *testing.T) {
	table, _, _ := newTestTable(t)
	err := table.Dispatch(context.Background(), "noSuchEvent", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "noSuchEvent")
}

func TestPageEvents(t *testing.T) {
	table, store, _ := newTestTable(t)

	dispatch(t, table, "addPage", map[string]string{"title": "Work"})
	snap := store.Snapshot()
	require.Len(t, snap.Pages, 2)
	assert.Equal(t, "Work", snap.Pages[1].Title)

	dispatch(t, table, "renamePage", map[string]string{
		"pageId": snap.Pages[1].ID, "title": "Office",
	})
	assert.Equal(t, "Office", store.Snapshot().Pages[1].Title)

	dispatch(t, table, "reorderPage", map[string]string{
		"pageId": snap.Pages[1].ID, "index": "0",
	})
	assert.Equal(t, "Office", store.Snapshot().Pages[0].Title)

	dispatch(t, table, "deletePage", map[string]string{"pageId": snap.Pages[1].ID})
	assert.Len(t, store.Snapshot().Pages, 1)
}

func TestReorderPageRejectsBadIndex(t *testing.T) {
	table, store, _ := newTestTable(t)
	pageID := store.Snapshot().Pages[0].ID

	err := table.Dispatch(context.Background(), "reorderPage", map[string]string{
		"pageId": pageID, "index": "not-a-number",
	})
	assert.Error(t, err)
}

func TestSaveBookmarkAddsWhenIDAbsent(t *testing.T) {
	table, store, _ := newTestTable(t)
	pageID := store.Snapshot().Pages[0].ID

	dispatch(t, table, "saveBookmark", map[string]string{
		"pageId": pageID, "url": "https://example.com", "label": "Example",
	})

	bookmarks := store.Snapshot().Pages[0].Bookmarks
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "Example", bookmarks[0].Label)
	assert.NotEmpty(t, bookmarks[0].ID)
}

func TestSaveBookmarkUpdatesWhenIDPresent(t *testing.T) {
	table, store, _ := newTestTable(t)
	pageID := store.Snapshot().Pages[0].ID

	dispatch(t, table, "saveBookmark", map[string]string{
		"pageId": pageID, "url": "https://example.com", "label": "Example",
	})
	bookmarkID := store.Snapshot().Pages[0].Bookmarks[0].ID

	dispatch(t, table, "saveBookmark", map[string]string{
		"pageId": pageID, "bookmarkId": bookmarkID,
		"url": "https://example.org", "label": "Updated",
	})

	bookmarks := store.Snapshot().Pages[0].Bookmarks
	require.Len(t, bookmarks, 1)
	assert.Equal(t, bookmarkID, bookmarks[0].ID)
	assert.Equal(t, "Updated", bookmarks[0].Label)
	assert.Equal(t, "https://example.org", bookmarks[0].URL)
}

func TestDeleteAndReorderBookmark(t *testing.T) {
	table, store, _ := newTestTable(t)
	pageID := store.Snapshot().Pages[0].ID

	dispatch(t, table, "saveBookmark", map[string]string{
		"pageId": pageID, "url": "https://first.example.com", "label": "First",
	})
	dispatch(t, table, "saveBookmark", map[string]string{
		"pageId": pageID, "url": "https://second.example.com", "label": "Second",
	})
	firstID := store.Snapshot().Pages[0].Bookmarks[0].ID

	dispatch(t, table, "reorderBookmark", map[string]string{
		"pageId": pageID, "bookmarkId": firstID, "index": "1",
	})
	assert.Equal(t, "Second", store.Snapshot().Pages[0].Bookmarks[0].Label)

	dispatch(t, table, "deleteBookmark", map[string]string{
		"pageId": pageID, "bookmarkId": firstID,
	})
	bookmarks := store.Snapshot().Pages[0].Bookmarks
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "Second", bookmarks[0].Label)
}

func TestThemeAndPreferenceEvents(t *testing.T) {
	table, store, _ := newTestTable(t)

	dispatch(t, table, "changeTheme", map[string]string{"color": "crimson", "pattern": "waves"})
	assert.Equal(t, types.Theme{Color: "crimson", Pattern: "waves"}, store.Snapshot().Theme)

	dispatch(t, table, "selectAvatar", map[string]string{"url": "https://example.com/a.png"})
	dispatch(t, table, "changeLanguage", map[string]string{"lang": "fr"})
	dispatch(t, table, "savePreferences", map[string]string{"showClock": "true"})

	prefs := store.Snapshot().Preferences
	assert.Equal(t, "https://example.com/a.png", prefs[types.PrefAvatar])
	assert.Equal(t, "fr", prefs[types.PrefLocale])
	assert.Equal(t, "true", prefs["showClock"])
}

func TestLoginLogoutEvents(t *testing.T) {
	table, _, _ := newTestTable(t)

	dispatch(t, table, "handleLogin", map[string]string{"userId": "user-1"})
	dispatch(t, table, "handleLogout", nil)

	// An empty user id is a failed authentication, not a crash
	err := table.Dispatch(context.Background(), "handleLogin", map[string]string{})
	assert.Error(t, err)
}

func TestAuthEvents(t *testing.T) {
	table, _, engine := newTestTable(t)

	dispatch(t, table, "beginAuth", nil)
	assert.Equal(t, syncengine.StateAuthenticating, engine.State())

	dispatch(t, table, "authFailed", nil)
	assert.Equal(t, syncengine.StateAnonymous, engine.State())

	// A successful exchange hands the identity to handleLogin
	dispatch(t, table, "beginAuth", nil)
	dispatch(t, table, "handleLogin", map[string]string{"userId": "user-1"})
	assert.Equal(t, syncengine.StateSynced, engine.State())
}

func TestImportAndExportRoundTrip(t *testing.T) {
	table, store, _ := newTestTable(t)
	pageID := store.Snapshot().Pages[0].ID

	dispatch(t, table, "saveBookmark", map[string]string{
		"pageId": pageID, "url": "https://example.com", "label": "Example",
	})

	data, err := table.Export()
	require.NoError(t, err)

	doc, err := serialize.Decode(data)
	require.NoError(t, err)
	assert.Nil(t, doc.Anchor)

	other, otherStore, _ := newTestTable(t)
	dispatch(t, other, "importConfig", map[string]string{"document": string(data)})
	assert.Equal(t, store.Snapshot(), otherStore.Snapshot())
}

func TestExportConfigEventWritesFile(t *testing.T) {
	table, store, _ := newTestTable(t)
	path := filepath.Join(t.TempDir(), "export.json")

	dispatch(t, table, "exportConfig", map[string]string{"path": path})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc, err := serialize.Decode(data)
	require.NoError(t, err)
	got, err := serialize.Deserialize(doc)
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), got)

	// A missing path is rejected, nothing is written
	err = table.Dispatch(context.Background(), "exportConfig", nil)
	assert.Error(t, err)
}

func TestEventsListsRegisteredNames(t *testing.T) {
	table, _, _ := newTestTable(t)
	events := table.Events()
	assert.Contains(t, events, "addPage")
	assert.Contains(t, events, "saveBookmark")
	assert.Contains(t, events, "handleLogin")
	assert.Contains(t, events, "beginAuth")
	assert.Contains(t, events, "importConfig")
	assert.Contains(t, events, "exportConfig")
}
