// Package serialize converts the in-memory configuration to and from its
// portable document form, used for export files, local persistence and the
// remote payload.
package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/jemch/startpage/internal/types"
)

// ErrorKind classifies serialization failures
type ErrorKind string

const (
	MalformedDocument  ErrorKind = "malformed_document"
	UnsupportedVersion ErrorKind = "unsupported_version"
	InvalidField       ErrorKind = "invalid_field"
)

// Error is returned when a document cannot be decoded, migrated or
// validated. Deserialization never partially applies a broken document.
type Error struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("serialize: %s (%s)", e.Kind, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("serialize: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("serialize: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Serialize produces a versioned document from a configuration. The anchor
// is left unset; callers attach one when persisting.
func Serialize(cfg *types.Configuration) *types.Document {
	clone := cfg.Clone()
	return &types.Document{
		SchemaVersion: types.SchemaVersion,
		Pages:         clone.Pages,
		Theme:         clone.Theme,
		Preferences:   clone.Preferences,
	}
}

// Deserialize validates a document, migrates it to the current schema
// version and returns the resulting configuration. It is pure: on any
// failure the returned configuration is nil and no state is touched.
func Deserialize(doc *types.Document) (*types.Configuration, error) {
	if doc == nil {
		return nil, &Error{Kind: MalformedDocument, Err: fmt.Errorf("nil document")}
	}

	migrated, err := migrate(doc)
	if err != nil {
		return nil, err
	}

	if err := validate(migrated); err != nil {
		return nil, err
	}

	cfg := &types.Configuration{
		Pages:         migrated.Pages,
		Theme:         migrated.Theme,
		Preferences:   migrated.Preferences,
		SchemaVersion: migrated.SchemaVersion,
	}
	if cfg.Preferences == nil {
		cfg.Preferences = make(map[string]string)
	}
	return cfg.Clone(), nil
}

// Encode marshals a document for an export file or wire transfer
func Encode(doc *types.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, &Error{Kind: MalformedDocument, Err: err}
	}
	return data, nil
}

// Decode parses raw document bytes. Unknown fields are rejected so that a
// truncated or foreign file fails loudly instead of importing half a
// configuration. A document from a newer schema version reports
// UnsupportedVersion rather than a field error.
func Decode(data []byte) (*types.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc types.Document
	if err := dec.Decode(&doc); err != nil {
		// Distinguish a newer document (whose fields we don't know yet)
		// from a genuinely malformed one.
		var probe struct {
			SchemaVersion int `json:"schemaVersion"`
		}
		if json.Unmarshal(data, &probe) == nil && probe.SchemaVersion > types.SchemaVersion {
			return nil, &Error{Kind: UnsupportedVersion, Err: fmt.Errorf("schema version %d is newer than %d", probe.SchemaVersion, types.SchemaVersion)}
		}
		return nil, &Error{Kind: MalformedDocument, Err: err}
	}
	return &doc, nil
}

func validate(doc *types.Document) error {
	if len(doc.Pages) == 0 {
		return &Error{Kind: MalformedDocument, Err: fmt.Errorf("document has no pages")}
	}
	for i, page := range doc.Pages {
		if page.ID == "" {
			return &Error{Kind: InvalidField, Field: fmt.Sprintf("pages[%d].id", i)}
		}
		for j, bm := range page.Bookmarks {
			if bm.ID == "" {
				return &Error{Kind: InvalidField, Field: fmt.Sprintf("pages[%d].bookmarks[%d].id", i, j)}
			}
			if !ValidURL(bm.URL) {
				return &Error{Kind: InvalidField, Field: fmt.Sprintf("pages[%d].bookmarks[%d].url", i, j)}
			}
		}
	}
	return nil
}

// ValidURL reports whether s is a non-empty, syntactically valid URL with a
// scheme and host. Shared with the mutation API so imported and user-entered
// bookmarks are held to the same rule.
func ValidURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
