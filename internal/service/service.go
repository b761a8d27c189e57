// Package service implements the storage core's components on top of the
// persistent store: the content cache, the eviction planner, the library
// catalog, the progress tracker and the settings store.
//
// Every write that touches more than one collection runs as a single
// store.Update group, so the library entry always agrees with the content
// and progress records it mirrors.
package service

import (
	"fmt"
	"time"

	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/id"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func checkBookID(bookID string) error {
	if !id.ValidBookID(bookID) {
		return domainerrors.InvalidID(fmt.Sprintf("invalid book id %q", bookID))
	}
	return nil
}
