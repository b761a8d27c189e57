// Package legacy reads the flat key/value storage used by earlier versions
// of the reader, before books moved into the collection store.
package legacy

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_source.go -package=mocks github.com/speedreader/speedreader-core/internal/legacy Source

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Source.Get for a missing key.
var ErrNotFound = errors.New("legacy key not found")

// Source is a flat string key/value store.
type Source interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Keys lists the keys starting with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Manifest enumerates the keys the old storage scheme wrote.
type Manifest struct {
	LibraryKey     string
	SettingsKey    string
	ContentPrefix  string
	ProgressPrefix string
	// MigratedKey was the old scheme's own "already migrated" marker.
	MigratedKey string
}

// DefaultManifest is the key layout written by the browser-storage versions.
var DefaultManifest = Manifest{
	LibraryKey:     "speedReader:libraryBooks",
	SettingsKey:    "speedReader:settings",
	ContentPrefix:  "speedReader:bookContent:",
	ProgressPrefix: "speedReader:progress:",
	MigratedKey:    "speedReader:migratedToIndexedDb",
}

// ContentBookID returns the book id encoded in a content key.
func (m Manifest) ContentBookID(key string) (string, bool) {
	return cutPrefix(key, m.ContentPrefix)
}

// ProgressBookID returns the book id encoded in a progress key.
func (m Manifest) ProgressBookID(key string) (string, bool) {
	return cutPrefix(key, m.ProgressPrefix)
}

func cutPrefix(key, prefix string) (string, bool) {
	id, ok := strings.CutPrefix(key, prefix)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}
