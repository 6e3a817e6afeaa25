// Package dispatch maps UI event names to handler functions. The table is
// constructed once at startup and handed to the UI layer, replacing ad hoc
// registration of callbacks in a shared namespace.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/state"
	"github.com/jemch/startpage/internal/syncengine"
	"github.com/jemch/startpage/internal/types"
)

// Handler processes one UI event. Arguments arrive as a flat string map,
// mirroring the form fields the UI collects.
type Handler func(ctx context.Context, args map[string]string) error

// Table is the command/dispatch table for UI events
type Table struct {
	handlers map[string]Handler
	engine   *syncengine.Engine
	store    *state.Store
	logger   *zap.Logger
}

// New builds the dispatch table over the engine and the configuration
// state. It is the only write surface the UI layer receives.
func New(engine *syncengine.Engine, store *state.Store, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Table{
		handlers: make(map[string]Handler),
		engine:   engine,
		store:    store,
		logger:   logger.With(zap.String("component", "dispatch")),
	}
	t.register()
	return t
}

// Dispatch routes an event to its handler
func (t *Table) Dispatch(ctx context.Context, event string, args map[string]string) error {
	handler, ok := t.handlers[event]
	if !ok {
		return fmt.Errorf("dispatch: unknown event %q", event)
	}

	t.logger.Debug("Dispatching event", zap.String("event", event))
	if err := handler(ctx, args); err != nil {
		t.logger.Warn("Event handler failed",
			zap.String("event", event),
			zap.Error(err))
		return err
	}
	return nil
}

// Export serializes the current configuration for callers that want the
// document bytes directly. The exportConfig event writes them to a file
// instead.
func (t *Table) Export() ([]byte, error) {
	return t.engine.Export()
}

// Snapshot returns the immutable view the UI renders from
func (t *Table) Snapshot() *types.Configuration {
	return t.store.Snapshot()
}

// Events lists the registered event names
func (t *Table) Events() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	return names
}

func (t *Table) register() {
	t.handlers["addPage"] = func(ctx context.Context, args map[string]string) error {
		_, err := t.store.AddPage(args["title"])
		return err
	}
	t.handlers["deletePage"] = func(ctx context.Context, args map[string]string) error {
		return t.store.RemovePage(args["pageId"])
	}
	t.handlers["renamePage"] = func(ctx context.Context, args map[string]string) error {
		return t.store.RenamePage(args["pageId"], args["title"])
	}
	t.handlers["reorderPage"] = func(ctx context.Context, args map[string]string) error {
		idx, err := strconv.Atoi(args["index"])
		if err != nil {
			return fmt.Errorf("dispatch: invalid index %q", args["index"])
		}
		return t.store.ReorderPage(args["pageId"], idx)
	}
	t.handlers["saveBookmark"] = func(ctx context.Context, args map[string]string) error {
		if id := args["bookmarkId"]; id != "" {
			return t.store.UpdateBookmark(args["pageId"], id, args["url"], args["label"], args["iconRef"])
		}
		_, err := t.store.AddBookmark(args["pageId"], args["url"], args["label"], args["iconRef"])
		return err
	}
	t.handlers["deleteBookmark"] = func(ctx context.Context, args map[string]string) error {
		return t.store.RemoveBookmark(args["pageId"], args["bookmarkId"])
	}
	t.handlers["reorderBookmark"] = func(ctx context.Context, args map[string]string) error {
		idx, err := strconv.Atoi(args["index"])
		if err != nil {
			return fmt.Errorf("dispatch: invalid index %q", args["index"])
		}
		return t.store.ReorderBookmark(args["pageId"], args["bookmarkId"], idx)
	}
	t.handlers["changeTheme"] = func(ctx context.Context, args map[string]string) error {
		return t.store.SetTheme(args["color"], args["pattern"])
	}
	t.handlers["savePreferences"] = func(ctx context.Context, args map[string]string) error {
		for key, value := range args {
			if err := t.store.SetPreference(key, value); err != nil {
				return err
			}
		}
		return nil
	}
	t.handlers["selectAvatar"] = func(ctx context.Context, args map[string]string) error {
		return t.store.SetPreference(types.PrefAvatar, args["url"])
	}
	t.handlers["changeLanguage"] = func(ctx context.Context, args map[string]string) error {
		return t.store.SetPreference(types.PrefLocale, args["lang"])
	}
	t.handlers["beginAuth"] = func(ctx context.Context, args map[string]string) error {
		t.engine.BeginAuthentication()
		return nil
	}
	t.handlers["authFailed"] = func(ctx context.Context, args map[string]string) error {
		t.engine.AuthenticationFailed()
		return nil
	}
	t.handlers["handleLogin"] = func(ctx context.Context, args map[string]string) error {
		return t.engine.Login(ctx, types.Identity{
			UserID:        args["userId"],
			Authenticated: args["userId"] != "",
		})
	}
	t.handlers["handleLogout"] = func(ctx context.Context, args map[string]string) error {
		t.engine.Logout()
		return nil
	}
	t.handlers["retrySync"] = func(ctx context.Context, args map[string]string) error {
		return t.engine.Retry(ctx)
	}
	t.handlers["importConfig"] = func(ctx context.Context, args map[string]string) error {
		return t.engine.Import(ctx, []byte(args["document"]))
	}
	t.handlers["exportConfig"] = func(ctx context.Context, args map[string]string) error {
		path := args["path"]
		if path == "" {
			return fmt.Errorf("dispatch: exportConfig requires a path")
		}
		data, err := t.engine.Export()
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	}
}
