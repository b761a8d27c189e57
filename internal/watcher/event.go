package watcher

import (
	"path/filepath"
	"time"
)

// Op is what happened to a watched file.
type Op string

const (
	// OpArrived means a file appeared and its size stopped changing.
	OpArrived Op = "arrived"
	// OpGone means a file was deleted or moved out of the directory.
	OpGone Op = "gone"
)

// Event reports one settled change in a watched directory. Size and ModTime
// are zero for OpGone.
type Event struct {
	Op      Op
	Path    string
	Size    int64
	ModTime time.Time
}

// Name returns the file name without its directory.
func (e Event) Name() string {
	return filepath.Base(e.Path)
}
