package cli

import (
	"context"

	"github.com/jemch/startpage/internal/dispatch"
	"github.com/jemch/startpage/internal/remote"
	"github.com/jemch/startpage/internal/state"
	"github.com/jemch/startpage/internal/storage"
	"github.com/jemch/startpage/internal/syncengine"
)

// app bundles the assembled core components for a command invocation
type app struct {
	store    *state.Store
	local    *storage.BoltStore
	engine   *syncengine.Engine
	dispatch *dispatch.Table
}

// buildApp wires the configuration state, stores and sync engine together
// and hydrates from the local database
func buildApp() (*app, error) {
	store := state.New(logger)

	local, err := storage.NewBoltStore(storage.StoreConfig{
		DBPath: cfg.Storage.DBPath,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	remoteClient := remote.NewClient(remote.Options{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
		Logger:  logger,
	})

	engine := syncengine.New(syncengine.Options{
		Store:          store,
		Local:          local,
		Remote:         remoteClient,
		Logger:         logger,
		DebounceWindow: cfg.DebounceWindow(),
	})

	if err := engine.Start(); err != nil {
		local.Close()
		return nil, err
	}

	return &app{
		store:    store,
		local:    local,
		engine:   engine,
		dispatch: dispatch.New(engine, store, logger),
	}, nil
}

// close flushes pending writes and releases the local database
func (a *app) close() {
	a.engine.Close(context.Background())
	a.local.Close()
}
