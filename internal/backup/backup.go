// Package backup writes the whole store to a zip archive of JSONL streams,
// one per collection, and restores such archives.
package backup

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/speedreader/speedreader-core/internal/backup/stream"
	"github.com/speedreader/speedreader-core/internal/store"
	"github.com/speedreader/speedreader-core/internal/validation"
)

// Result describes a written backup.
type Result struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Checksum string        `json:"checksum"`
	Manifest *Manifest     `json:"manifest"`
	Duration time.Duration `json:"duration"`
}

// Service creates and restores backups.
type Service struct {
	store     *store.Store
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a backup service. Restored settings are checked with v.
func New(s *store.Store, v *validation.Validator, logger *slog.Logger) *Service {
	return &Service{store: s, validator: v, logger: logger, now: time.Now}
}

// Export writes every collection to path. All collections are read in one
// view transaction, so the archive is a consistent snapshot.
func (b *Service) Export(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmpPath) //nolint:errcheck // Gone after a successful rename
	defer f.Close()          //nolint:errcheck // Closed explicitly on success

	hash := sha256.New()
	zw := zip.NewWriter(io.MultiWriter(f, hash))

	manifest := &Manifest{
		Version:       FormatVersion,
		CreatedAt:     b.now().UTC(),
		SchemaVersion: b.store.Version(),
		Counts:        make(map[string]int),
	}

	err = b.store.View(ctx, func(tx *store.Tx) error {
		for _, export := range []tableExporter{
			exportTable(b.store.Books),
			exportTable(b.store.Contents),
			exportTable(b.store.Library),
			exportTable(b.store.Progress),
			exportTable(b.store.Settings),
			exportTable(b.store.Uploads),
			exportTable(b.store.Jobs),
		} {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := export(tx, zw, manifest.Counts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The manifest goes last so it carries the final counts.
	w, err := zw.Create(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := json.NewEncoder(w).Encode(manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("rename backup: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Path:     path,
		Size:     info.Size(),
		Checksum: hex.EncodeToString(hash.Sum(nil)),
		Manifest: manifest,
		Duration: time.Since(start),
	}
	b.logger.Info("backup written", "path", path, "size", result.Size, "checksum", result.Checksum)
	return result, nil
}

type tableExporter func(tx *store.Tx, zw *zip.Writer, counts map[string]int) error

// exportTable streams every record of t and records the count.
func exportTable[T any](t *store.Table[T]) tableExporter {
	return func(tx *store.Tx, zw *zip.Writer, counts map[string]int) error {
		name := string(t.Collection())
		w, err := stream.NewWriter(zw, collectionPath(name))
		if err != nil {
			return err
		}
		for rec, err := range t.List(tx) {
			if err != nil {
				return fmt.Errorf("export %s: %w", name, err)
			}
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("export %s: %w", name, err)
			}
		}
		counts[name] = w.Count()
		return nil
	}
}

// Validate checks that path is a readable backup of a supported version.
func (b *Service) Validate(path string) (*Manifest, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close()
	return readManifest(&zr.Reader)
}

func readManifest(zr *zip.Reader) (*Manifest, error) {
	rc, err := stream.OpenFile(zr, manifestPath)
	if err != nil {
		return nil, ErrInvalidManifest
	}
	defer rc.Close()

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s (want %s)", ErrVersionMismatch, m.Version, FormatVersion)
	}
	return &m, nil
}
