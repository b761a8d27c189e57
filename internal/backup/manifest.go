package backup

import (
	"errors"
	"time"
)

// FormatVersion is the backup format version. Increment on breaking changes.
const FormatVersion = "1.0"

const manifestPath = "manifest.json"

var (
	// ErrInvalidManifest indicates the manifest is missing or malformed.
	ErrInvalidManifest = errors.New("invalid or missing manifest")

	// ErrVersionMismatch indicates the backup format is not supported.
	ErrVersionMismatch = errors.New("backup version not supported")
)

// Manifest describes the contents of a backup archive.
type Manifest struct {
	Version       string         `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	SchemaVersion int            `json:"schema_version"`
	Counts        map[string]int `json:"counts"`
}

func collectionPath(name string) string {
	return "collections/" + name + ".jsonl"
}
