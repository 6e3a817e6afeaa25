// Package syncengine orchestrates which source of truth wins at each
// lifecycle transition (startup, login, logout, import, export) and keeps
// the local and remote stores consistent with the in-memory configuration.
package syncengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/remote"
	"github.com/jemch/startpage/internal/serialize"
	"github.com/jemch/startpage/internal/state"
	"github.com/jemch/startpage/internal/types"
)

// State is the engine's position in the sync lifecycle
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateReconciling    State = "reconciling"
	StateSynced         State = "synced"
	StateDetached       State = "detached"
)

// LocalStore is the device-persistence surface the engine writes through
type LocalStore interface {
	Load() (*types.Document, error)
	Save(doc *types.Document) error
}

// RemoteStore is the backend surface, keyed by user identity. It is only
// called at defined transition points, never on a timer.
type RemoteStore interface {
	Fetch(ctx context.Context, userID string) (*types.Document, error)
	Push(ctx context.Context, userID string, doc *types.Document) error
}

// StateHandler is notified on every engine state change
type StateHandler func(old, new State)

const defaultDebounceWindow = 500 * time.Millisecond

// Options holds configuration for Engine initialization
type Options struct {
	Store          *state.Store
	Local          LocalStore
	Remote         RemoteStore
	Logger         *zap.Logger
	DebounceWindow time.Duration
}

// Engine drives the reconciliation state machine. Mutations reach it
// through the state store's change callback; identity events arrive from
// the authentication collaborator.
type Engine struct {
	store  *state.Store
	local  LocalStore
	remote RemoteStore
	logger *zap.Logger
	window time.Duration

	mu         sync.Mutex
	st         State
	identity   types.Identity
	generation uint64
	timer      *time.Timer
	dirty      bool
	handlers   []StateHandler

	// Serializes reconciliation passes: a login or import arriving while
	// one is in flight waits its turn instead of racing a second wholesale
	// replacement.
	reconcileMu sync.Mutex
}

// New creates the engine and wires it to the state store's change
// notifications
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := opts.DebounceWindow
	if window <= 0 {
		window = defaultDebounceWindow
	}

	e := &Engine{
		store:  opts.Store,
		local:  opts.Local,
		remote: opts.Remote,
		logger: logger.With(zap.String("component", "sync_engine")),
		window: window,
		st:     StateAnonymous,
	}
	e.store.SetOnChange(e.scheduleFlush)
	return e
}

// Start hydrates the configuration from the local store. A missing or
// unreadable local document degrades to the default configuration; startup
// never fails on bad data.
func (e *Engine) Start() error {
	doc, err := e.local.Load()
	if err != nil {
		e.logger.Warn("Failed to load local document, starting from defaults", zap.Error(err))
		return nil
	}
	if doc == nil {
		e.logger.Info("No local document, starting from defaults")
		return nil
	}

	cfg, err := serialize.Deserialize(doc)
	if err != nil {
		e.logger.Warn("Local document is invalid, starting from defaults", zap.Error(err))
		return nil
	}

	anchor := types.SyncAnchor{Origin: types.OriginLocal}
	if doc.Anchor != nil {
		anchor = *doc.Anchor
	}
	e.store.Replace(cfg, anchor)

	e.logger.Info("Hydrated configuration from local store",
		zap.Int("pages", len(cfg.Pages)),
		zap.Time("last_modified", anchor.LastModifiedAt))
	return nil
}

// State returns the engine's current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

// Identity returns the current user identity, if any
func (e *Engine) Identity() types.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// AddStateHandler registers a handler for state transitions
func (e *Engine) AddStateHandler(handler StateHandler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	e.mu.Unlock()
}

// setState transitions the engine and notifies handlers. Callers must not
// hold e.mu.
func (e *Engine) setState(st State) {
	e.mu.Lock()
	old := e.st
	if old == st {
		e.mu.Unlock()
		return
	}
	e.st = st
	handlers := make([]StateHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	e.logger.Info("Sync state changed",
		zap.String("from", string(old)),
		zap.String("to", string(st)))
	for _, h := range handlers {
		h(old, st)
	}
}

// BeginAuthentication marks the start of a credential exchange. The
// exchange itself belongs to the authentication collaborator; the engine
// only sees its outcome.
func (e *Engine) BeginAuthentication() {
	e.setState(StateAuthenticating)
}

// AuthenticationFailed returns the engine to anonymous operation
func (e *Engine) AuthenticationFailed() {
	e.setState(StateAnonymous)
}

// Login is called when the collaborator has acquired a user identity. It
// runs a reconciliation pass against the remote store. Fetch failures are
// not returned: the engine detaches and keeps operating on local data.
func (e *Engine) Login(ctx context.Context, id types.Identity) error {
	if !id.Authenticated || id.UserID == "" {
		e.setState(StateAnonymous)
		return &remote.Error{Kind: remote.Unauthorized, Err: errors.New("identity is not authenticated")}
	}

	e.mu.Lock()
	e.identity = id
	gen := e.generation
	e.mu.Unlock()

	e.logger.Info("Identity acquired", zap.String("user_id", id.UserID))
	return e.reconcile(ctx, id, gen)
}

// Logout drops the identity and remote persistence. The configuration is
// retained locally untouched; no data is deleted.
func (e *Engine) Logout() {
	e.mu.Lock()
	e.identity = types.Identity{}
	// Results of any in-flight remote call are discarded, not cancelled.
	e.generation++
	e.mu.Unlock()

	e.setState(StateAnonymous)
	e.logger.Info("Logged out, remote sync detached")
}

// Retry re-runs reconciliation from the detached state
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	id := e.identity
	gen := e.generation
	st := e.st
	e.mu.Unlock()

	if st != StateDetached || !id.Authenticated {
		return nil
	}
	return e.reconcile(ctx, id, gen)
}

// reconcile performs one pass of the merge/overwrite decision. Only one
// pass runs at a time; callers arriving mid-pass queue on reconcileMu.
func (e *Engine) reconcile(ctx context.Context, id types.Identity, gen uint64) error {
	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	if e.stale(gen) {
		e.logger.Debug("Reconciliation discarded, identity changed")
		return nil
	}
	e.setState(StateReconciling)

	remoteDoc, err := e.remote.Fetch(ctx, id.UserID)
	if e.stale(gen) {
		e.logger.Debug("Discarding reconciliation result, identity changed")
		return nil
	}
	if err != nil {
		if remote.Kind(err) == remote.Unauthorized {
			e.logger.Warn("Remote rejected identity, forcing logout", zap.Error(err))
			e.Logout()
			return nil
		}
		e.logger.Warn("Remote fetch failed, continuing on local data", zap.Error(err))
		e.setState(StateDetached)
		return nil
	}

	switch {
	case remoteDoc == nil:
		// New account: local configuration is authoritative.
		e.logger.Info("No remote document, pushing local configuration")
		e.pushAndSettle(ctx, id, gen)

	case !e.store.Touched():
		// Nothing was edited this session: the remote copy wins wholesale.
		e.logger.Info("Local configuration untouched, adopting remote")
		e.adoptRemote(ctx, remoteDoc, gen)

	default:
		// Both sides have content: most recently modified wins wholesale.
		// Field-by-field merging is rejected on purpose; partial merges of
		// ordered pages produce ambiguous ordering and ghost entries.
		localAt := e.store.Anchor().LastModifiedAt
		remoteAt := time.Time{}
		if remoteDoc.Anchor != nil {
			remoteAt = remoteDoc.Anchor.LastModifiedAt
		}
		if remoteAt.After(localAt) {
			e.logger.Info("Remote configuration is newer, adopting remote",
				zap.Time("local", localAt), zap.Time("remote", remoteAt))
			e.adoptRemote(ctx, remoteDoc, gen)
		} else {
			e.logger.Info("Local configuration is newer, overwriting remote",
				zap.Time("local", localAt), zap.Time("remote", remoteAt))
			e.pushAndSettle(ctx, id, gen)
		}
	}
	return nil
}

// adoptRemote replaces the configuration with the remote document and
// persists it locally
func (e *Engine) adoptRemote(ctx context.Context, doc *types.Document, gen uint64) {
	cfg, err := serialize.Deserialize(doc)
	if err != nil {
		e.logger.Warn("Remote document is invalid, keeping local configuration", zap.Error(err))
		e.setState(StateDetached)
		return
	}
	if e.stale(gen) {
		return
	}

	anchor := types.SyncAnchor{Origin: types.OriginRemote}
	if doc.Anchor != nil {
		anchor.LastModifiedAt = doc.Anchor.LastModifiedAt
	}
	e.store.Replace(cfg, anchor)
	e.persistLocal()
	e.setState(StateSynced)
}

// pushAndSettle uploads the current configuration and transitions to
// synced, or detaches on failure without reverting local data
func (e *Engine) pushAndSettle(ctx context.Context, id types.Identity, gen uint64) {
	doc := e.snapshotDocument()
	err := e.remote.Push(ctx, id.UserID, doc)
	if e.stale(gen) {
		return
	}
	if err != nil {
		if remote.Kind(err) == remote.Unauthorized {
			e.logger.Warn("Remote rejected identity during push, forcing logout", zap.Error(err))
			e.Logout()
			return
		}
		e.logger.Warn("Remote push failed, detaching", zap.Error(err))
		e.setState(StateDetached)
		return
	}
	e.persistLocal()
	e.setState(StateSynced)
}

// Import validates a supplied document and wholesale-replaces the
// configuration, persisting to whichever stores are currently active. On
// validation failure the current configuration is untouched.
func (e *Engine) Import(ctx context.Context, data []byte) error {
	doc, err := serialize.Decode(data)
	if err != nil {
		return err
	}
	cfg, err := serialize.Deserialize(doc)
	if err != nil {
		return err
	}

	e.reconcileMu.Lock()
	defer e.reconcileMu.Unlock()

	anchor := types.SyncAnchor{LastModifiedAt: time.Now(), Origin: types.OriginLocal}
	e.store.Replace(cfg, anchor)
	e.store.MarkTouched()
	e.logger.Info("Configuration imported",
		zap.Int("pages", len(cfg.Pages)),
		zap.Int("schema_version", cfg.SchemaVersion))

	e.persistLocal()

	e.mu.Lock()
	id := e.identity
	gen := e.generation
	st := e.st
	e.mu.Unlock()

	if id.Authenticated && (st == StateSynced || st == StateDetached) {
		e.pushAndSettle(ctx, id, gen)
	}
	return nil
}

// Export serializes the current configuration without touching any store
func (e *Engine) Export() ([]byte, error) {
	return serialize.Encode(serialize.Serialize(e.store.Snapshot()))
}

// scheduleFlush coalesces bursts of mutations into a single write: each
// call resets the timer, which fires once the configuration has been
// quiescent for the debounce window.
func (e *Engine) scheduleFlush() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.dirty = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.window, func() {
		if err := e.Flush(context.Background()); err != nil {
			e.logger.Warn("Debounced flush failed", zap.Error(err))
		}
	})
}

// Flush persists the current configuration immediately: to the local store
// always, and to the remote store when synced. Remote failure demotes to
// detached without reverting local data.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	e.dirty = false
	id := e.identity
	gen := e.generation
	st := e.st
	e.mu.Unlock()

	err := e.persistLocal()

	if st == StateSynced && id.Authenticated {
		doc := e.snapshotDocument()
		if perr := e.remote.Push(ctx, id.UserID, doc); perr != nil {
			if e.stale(gen) {
				return err
			}
			if remote.Kind(perr) == remote.Unauthorized {
				e.logger.Warn("Remote rejected identity during flush, forcing logout", zap.Error(perr))
				e.Logout()
			} else {
				e.logger.Warn("Remote flush failed, detaching", zap.Error(perr))
				e.setState(StateDetached)
			}
		}
	}
	return err
}

// Close stops the debounce timer and performs the final scoped flush so
// pending writes complete before teardown
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	dirty := e.dirty
	e.mu.Unlock()

	if dirty {
		return e.Flush(ctx)
	}
	return nil
}

// persistLocal writes the current snapshot to the local store. Failure is
// non-fatal: the session degrades to in-memory persistence.
func (e *Engine) persistLocal() error {
	if err := e.local.Save(e.snapshotDocument()); err != nil {
		e.logger.Warn("Local persistence failed, configuration remains in memory", zap.Error(err))
		return err
	}
	return nil
}

// snapshotDocument serializes the current configuration with its anchor
func (e *Engine) snapshotDocument() *types.Document {
	doc := serialize.Serialize(e.store.Snapshot())
	anchor := e.store.Anchor()
	doc.Anchor = &anchor
	return doc
}

// stale reports whether the identity changed since gen was captured; the
// result of an in-flight remote call from a previous identity is discarded
func (e *Engine) stale(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation != gen
}
