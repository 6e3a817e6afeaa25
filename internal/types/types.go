// Package types defines the shared data model used throughout the application
package types

import (
	"time"
)

// SchemaVersion is the current version of the persisted document format.
// Every persisted document carries the version it was written with; older
// documents are upgraded on import, newer ones are rejected.
const SchemaVersion = 2

// Origin identifies which store last confirmed a document's content
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Well-known preference keys
const (
	PrefAvatar = "avatar"
	PrefLocale = "locale"
)

// Bookmark is a single link entry within a page
type Bookmark struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Label   string `json:"label"`
	IconRef string `json:"iconRef,omitempty"`
}

// Page is a named collection of bookmarks shown as one tab.
// Bookmark order is display order.
type Page struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Bookmarks []Bookmark `json:"bookmarks"`
}

// Theme describes the visual appearance of the start page
type Theme struct {
	Color   string `json:"color"`
	Pattern string `json:"pattern"`
}

// Configuration is the root aggregate of a user's pages, theme and
// preferences. It is owned by the state package; everything else gets
// read-only snapshots.
type Configuration struct {
	Pages         []Page            `json:"pages"`
	Theme         Theme             `json:"theme"`
	Preferences   map[string]string `json:"preferences"`
	SchemaVersion int               `json:"schemaVersion"`
}

// SyncAnchor is metadata attached to a persisted document, used to
// arbitrate conflicts between local and remote copies. Not user-visible.
type SyncAnchor struct {
	LastModifiedAt time.Time `json:"lastModifiedAt"`
	Origin         Origin    `json:"origin"`
}

// Document is the versioned serialized form of a Configuration used for
// storage, export and remote transfer. The anchor is present on persisted
// documents and absent on export files.
type Document struct {
	SchemaVersion int               `json:"schemaVersion"`
	Pages         []Page            `json:"pages"`
	Theme         Theme             `json:"theme"`
	Preferences   map[string]string `json:"preferences"`
	Anchor        *SyncAnchor       `json:"anchor,omitempty"`
}

// Identity is what the authentication collaborator hands the core after a
// credential exchange. The core never inspects credentials.
type Identity struct {
	UserID        string
	Authenticated bool
}

// Clone returns a deep copy of the configuration
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := &Configuration{
		Theme:         c.Theme,
		SchemaVersion: c.SchemaVersion,
	}
	out.Pages = make([]Page, len(c.Pages))
	for i, p := range c.Pages {
		cp := p
		cp.Bookmarks = make([]Bookmark, len(p.Bookmarks))
		copy(cp.Bookmarks, p.Bookmarks)
		out.Pages[i] = cp
	}
	out.Preferences = make(map[string]string, len(c.Preferences))
	for k, v := range c.Preferences {
		out.Preferences[k] = v
	}
	return out
}
