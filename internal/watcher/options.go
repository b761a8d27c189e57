package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const defaultSettleDelay = 100 * time.Millisecond

// defaultSkip lists editor and download leftovers that never settle into a
// usable file.
var defaultSkip = []string{"*.tmp", "*.part", "*.crdownload", "*.swp", "~*", ".DS_Store", "Thumbs.db"}

// Options configures a Watcher.
type Options struct {
	// SettleDelay is how long a file's size and mtime must stay unchanged
	// before it is reported.
	SettleDelay time.Duration

	// Extensions keeps only files with these extensions, compared
	// case-insensitively with the leading dot. Empty keeps every file.
	Extensions []string

	// Skip holds filepath.Match patterns tested against the base name.
	// Nil means defaultSkip; an empty slice skips nothing.
	Skip []string

	// IncludeHidden reports dot-files too.
	IncludeHidden bool
}

func (o Options) withDefaults() Options {
	if o.SettleDelay <= 0 {
		o.SettleDelay = defaultSettleDelay
	}
	if o.Skip == nil {
		o.Skip = defaultSkip
	}
	return o
}

// accepts reports whether events for path should be emitted.
func (o Options) accepts(path string) bool {
	name := filepath.Base(path)
	if !o.IncludeHidden && strings.HasPrefix(name, ".") {
		return false
	}
	if slices.ContainsFunc(o.Skip, func(p string) bool {
		ok, err := filepath.Match(p, name)
		return err == nil && ok
	}) {
		return false
	}
	if len(o.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(name)
	return slices.ContainsFunc(o.Extensions, func(e string) bool { return strings.EqualFold(e, ext) })
}
