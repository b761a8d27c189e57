// Package id generates identifiers for locally created records.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for locally synthesized book ids. Curated books keep the id
// handed to us by the catalog.
const (
	ClipboardPrefix = "clipboard"
	UploadPrefix    = "upload"
)

// maxBookIDLen bounds ids accepted at the store boundary.
const maxBookIDLen = 256

// NewBookID creates a UUID-derived book id, e.g. "clipboard-1b4e28ba-2fa1-11d2-883f-0016d3cca427".
func NewBookID(prefix string) (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return prefix + "-" + u.String(), nil
}

// Generate creates a prefixed NanoID, used for records that are not books
// (uploads, ingestion jobs). Format: prefix-nanoid.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// ValidBookID reports whether id can be used as a store key.
// Ids must be non-blank, bounded, and free of control characters.
func ValidBookID(id string) bool {
	if strings.TrimSpace(id) == "" || len(id) > maxBookIDLen {
		return false
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// IsLocal reports whether id was synthesized on this device.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, ClipboardPrefix+"-") || strings.HasPrefix(id, UploadPrefix+"-")
}
