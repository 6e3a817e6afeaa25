package serialize

import (
	"fmt"

	"github.com/jemch/startpage/internal/types"
)

// migration upgrades a document by exactly one schema version
type migration func(*types.Document)

// migrations[v] upgrades a version-v document to version v+1. Steps are
// applied in order until the document reaches the current version.
var migrations = map[int]migration{
	1: migrateV1,
}

func migrate(doc *types.Document) (*types.Document, error) {
	if doc.SchemaVersion <= 0 {
		return nil, &Error{Kind: MalformedDocument, Err: fmt.Errorf("missing schema version")}
	}
	if doc.SchemaVersion > types.SchemaVersion {
		return nil, &Error{Kind: UnsupportedVersion, Err: fmt.Errorf("schema version %d is newer than %d", doc.SchemaVersion, types.SchemaVersion)}
	}

	// Work on a copy so the caller's document is never mutated
	out := *doc
	if doc.Preferences != nil {
		out.Preferences = make(map[string]string, len(doc.Preferences))
		for k, v := range doc.Preferences {
			out.Preferences[k] = v
		}
	}
	for out.SchemaVersion < types.SchemaVersion {
		step, ok := migrations[out.SchemaVersion]
		if !ok {
			return nil, &Error{Kind: UnsupportedVersion, Err: fmt.Errorf("no migration from schema version %d", out.SchemaVersion)}
		}
		step(&out)
		out.SchemaVersion++
	}
	return &out, nil
}

// migrateV1 renames the avatar preference key. Version 1 stored the avatar
// under "avatarUrl"; version 2 uses "avatar" and adds the optional iconRef
// bookmark field, which needs no data changes.
func migrateV1(doc *types.Document) {
	if doc.Preferences == nil {
		return
	}
	if v, ok := doc.Preferences["avatarUrl"]; ok {
		doc.Preferences[types.PrefAvatar] = v
		delete(doc.Preferences, "avatarUrl")
	}
}
