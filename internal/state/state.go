// Package state owns the canonical in-memory configuration. All writes go
// through the mutation API so every mutation point uniformly bumps the
// modification timestamp and triggers the sync engine's debounce; everything
// else reads deep-copied snapshots.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jemch/startpage/internal/serialize"
	"github.com/jemch/startpage/internal/types"
)

// ConfigErrorKind classifies rejected mutations
type ConfigErrorKind string

const (
	InvariantViolation ConfigErrorKind = "invariant_violation"
)

// ConfigError is returned when a mutation would break a structural
// invariant. The configuration is left unchanged.
type ConfigError struct {
	Kind   ConfigErrorKind
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Kind, e.Reason)
}

const (
	defaultPageTitle = "Home"
	defaultColor     = "slate"
	defaultPattern   = "none"
)

// Store is the single process-wide configuration instance. It is created
// explicitly at startup and passed by handle; there are no ambient globals.
type Store struct {
	mu           sync.Mutex
	cfg          *types.Configuration
	lastModified time.Time
	origin       types.Origin
	touched      bool
	onChange     func()
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a store holding the empty-default configuration: one default
// page and the default theme.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cfg:    DefaultConfiguration(),
		origin: types.OriginLocal,
		logger: logger.With(zap.String("component", "state")),
		now:    time.Now,
	}
}

// DefaultConfiguration returns the first-run configuration
func DefaultConfiguration() *types.Configuration {
	return &types.Configuration{
		Pages: []types.Page{
			{
				ID:        uuid.New().String(),
				Title:     defaultPageTitle,
				Bookmarks: []types.Bookmark{},
			},
		},
		Theme:         types.Theme{Color: defaultColor, Pattern: defaultPattern},
		Preferences:   make(map[string]string),
		SchemaVersion: types.SchemaVersion,
	}
}

// SetOnChange registers the callback invoked after every successful
// mutation. The sync engine uses it to schedule its debounced persistence.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetClock overrides the time source; used by tests
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Snapshot returns an immutable deep copy of the current configuration
func (s *Store) Snapshot() *types.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Anchor returns the sync anchor describing the current content
func (s *Store) Anchor() types.SyncAnchor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SyncAnchor{LastModifiedAt: s.lastModified, Origin: s.origin}
}

// Touched reports whether any user mutation occurred this session. The sync
// engine uses it to decide whether the local configuration is still the
// untouched default during reconciliation.
func (s *Store) Touched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Replace swaps in a new configuration wholesale. Used by the sync engine
// for reconciliation and import; it does not count as a user mutation and
// does not fire the change callback (the engine persists explicitly).
func (s *Store) Replace(cfg *types.Configuration, anchor types.SyncAnchor) {
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.lastModified = anchor.LastModifiedAt
	s.origin = anchor.Origin
	s.mu.Unlock()

	s.logger.Debug("Configuration replaced",
		zap.String("origin", string(anchor.Origin)),
		zap.Time("last_modified", anchor.LastModifiedAt))
}

// MarkTouched records that the session has user-driven content. Import uses
// it so an imported configuration competes as a local edit at the next
// reconciliation.
func (s *Store) MarkTouched() {
	s.mu.Lock()
	s.touched = true
	s.mu.Unlock()
}

// mutate runs fn under the lock and, on success, bumps the modification
// timestamp, marks the session touched and fires the change callback.
func (s *Store) mutate(fn func(cfg *types.Configuration) error) error {
	s.mu.Lock()
	if err := fn(s.cfg); err != nil {
		s.mu.Unlock()
		return err
	}
	s.lastModified = s.now()
	s.origin = types.OriginLocal
	s.touched = true
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return nil
}

// AddPage appends a new page and returns it
func (s *Store) AddPage(title string) (types.Page, error) {
	page := types.Page{
		ID:        uuid.New().String(),
		Title:     title,
		Bookmarks: []types.Bookmark{},
	}
	err := s.mutate(func(cfg *types.Configuration) error {
		cfg.Pages = append(cfg.Pages, page)
		return nil
	})
	if err != nil {
		return types.Page{}, err
	}
	s.logger.Debug("Page added", zap.String("page_id", page.ID), zap.String("title", title))
	return page, nil
}

// RemovePage deletes a page. Removing the last page is rejected: at least
// one page always exists.
func (s *Store) RemovePage(pageID string) error {
	return s.mutate(func(cfg *types.Configuration) error {
		if len(cfg.Pages) <= 1 {
			return &ConfigError{Kind: InvariantViolation, Reason: "cannot remove the last page"}
		}
		idx := pageIndex(cfg, pageID)
		if idx < 0 {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("page %s not found", pageID)}
		}
		cfg.Pages = append(cfg.Pages[:idx], cfg.Pages[idx+1:]...)
		return nil
	})
}

// RenamePage changes a page's display title
func (s *Store) RenamePage(pageID, title string) error {
	return s.mutate(func(cfg *types.Configuration) error {
		idx := pageIndex(cfg, pageID)
		if idx < 0 {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("page %s not found", pageID)}
		}
		cfg.Pages[idx].Title = title
		return nil
	})
}

// ReorderPage moves a page to the given display position
func (s *Store) ReorderPage(pageID string, toIndex int) error {
	return s.mutate(func(cfg *types.Configuration) error {
		idx := pageIndex(cfg, pageID)
		if idx < 0 {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("page %s not found", pageID)}
		}
		if toIndex < 0 || toIndex >= len(cfg.Pages) {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("page position %d out of range", toIndex)}
		}
		page := cfg.Pages[idx]
		cfg.Pages = append(cfg.Pages[:idx], cfg.Pages[idx+1:]...)
		rest := append([]types.Page{}, cfg.Pages[toIndex:]...)
		cfg.Pages = append(cfg.Pages[:toIndex], page)
		cfg.Pages = append(cfg.Pages, rest...)
		return nil
	})
}

// AddBookmark appends a bookmark to a page and returns it. The URL must be
// non-empty and syntactically valid; duplicates within a page are allowed.
func (s *Store) AddBookmark(pageID, rawURL, label, iconRef string) (types.Bookmark, error) {
	bm := types.Bookmark{
		ID:      uuid.New().String(),
		URL:     rawURL,
		Label:   label,
		IconRef: iconRef,
	}
	err := s.mutate(func(cfg *types.Configuration) error {
		if !serialize.ValidURL(rawURL) {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("invalid bookmark url %q", rawURL)}
		}
		idx := pageIndex(cfg, pageID)
		if idx < 0 {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("page %s not found", pageID)}
		}
		cfg.Pages[idx].Bookmarks = append(cfg.Pages[idx].Bookmarks, bm)
		return nil
	})
	if err != nil {
		return types.Bookmark{}, err
	}
	s.logger.Debug("Bookmark added",
		zap.String("page_id", pageID),
		zap.String("bookmark_id", bm.ID),
		zap.String("url", rawURL))
	return bm, nil
}

// UpdateBookmark replaces the display data of an existing bookmark
func (s *Store) UpdateBookmark(pageID, bookmarkID, rawURL, label, iconRef string) error {
	return s.mutate(func(cfg *types.Configuration) error {
		if !serialize.ValidURL(rawURL) {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("invalid bookmark url %q", rawURL)}
		}
		pi, bi := bookmarkIndex(cfg, pageID, bookmarkID)
		if bi < 0 {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("bookmark %s not found", bookmarkID)}
		}
		bm := &cfg.Pages[pi].Bookmarks[bi]
		bm.URL = rawURL
		bm.Label = label
		bm.IconRef = iconRef
		return nil
	})
}

// RemoveBookmark deletes a bookmark from a page
func (s *Store) RemoveBookmark(pageID, bookmarkID string) error {
	return s.mutate(func(cfg *types.Configuration) error {
		pi, bi := bookmarkIndex(cfg, pageID, bookmarkID)
		if bi < 0 {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("bookmark %s not found", bookmarkID)}
		}
		bms := cfg.Pages[pi].Bookmarks
		cfg.Pages[pi].Bookmarks = append(bms[:bi], bms[bi+1:]...)
		return nil
	})
}

// ReorderBookmark moves a bookmark to the given position within its page
func (s *Store) ReorderBookmark(pageID, bookmarkID string, toIndex int) error {
	return s.mutate(func(cfg *types.Configuration) error {
		pi, bi := bookmarkIndex(cfg, pageID, bookmarkID)
		if bi < 0 {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("bookmark %s not found", bookmarkID)}
		}
		bms := cfg.Pages[pi].Bookmarks
		if toIndex < 0 || toIndex >= len(bms) {
			return &ConfigError{Kind: InvariantViolation, Reason: fmt.Sprintf("bookmark position %d out of range", toIndex)}
		}
		bm := bms[bi]
		bms = append(bms[:bi], bms[bi+1:]...)
		rest := append([]types.Bookmark{}, bms[toIndex:]...)
		bms = append(bms[:toIndex], bm)
		cfg.Pages[pi].Bookmarks = append(bms, rest...)
		return nil
	})
}

// SetTheme changes the theme descriptor
func (s *Store) SetTheme(color, pattern string) error {
	return s.mutate(func(cfg *types.Configuration) error {
		cfg.Theme = types.Theme{Color: color, Pattern: pattern}
		return nil
	})
}

// SetPreference sets a preference value. An empty value deletes the key.
func (s *Store) SetPreference(key, value string) error {
	return s.mutate(func(cfg *types.Configuration) error {
		if key == "" {
			return &ConfigError{Kind: InvariantViolation, Reason: "preference key cannot be empty"}
		}
		if value == "" {
			delete(cfg.Preferences, key)
			return nil
		}
		cfg.Preferences[key] = value
		return nil
	})
}

func pageIndex(cfg *types.Configuration, pageID string) int {
	for i, p := range cfg.Pages {
		if p.ID == pageID {
			return i
		}
	}
	return -1
}

func bookmarkIndex(cfg *types.Configuration, pageID, bookmarkID string) (int, int) {
	pi := pageIndex(cfg, pageID)
	if pi < 0 {
		return -1, -1
	}
	for i, b := range cfg.Pages[pi].Bookmarks {
		if b.ID == bookmarkID {
			return pi, i
		}
	}
	return pi, -1
}
