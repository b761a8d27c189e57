// Package ingest imports plain-text files dropped into an inbox directory
// as upload books. Files are queued as ingestion jobs so imports survive
// restarts and failed files are retried a bounded number of times.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/speedreader/speedreader-core/internal/domain"
	domainerrors "github.com/speedreader/speedreader-core/internal/errors"
	"github.com/speedreader/speedreader-core/internal/id"
	"github.com/speedreader/speedreader-core/internal/service"
	"github.com/speedreader/speedreader-core/internal/store"
	"github.com/speedreader/speedreader-core/internal/watcher"
)

// DefaultMaxFileBytes caps the size of an importable file.
const DefaultMaxFileBytes int64 = 50 * 1024 * 1024

// Extensions are the file types the inbox accepts.
var Extensions = []string{".txt", ".md"}

// Result summarizes one ProcessPending pass.
type Result struct {
	Imported int
	Retrying int
	Failed   int
}

// Worker turns queued files into library books.
type Worker struct {
	store        *store.Store
	catalog      *service.LibraryCatalog
	logger       *slog.Logger
	maxFileBytes int64
	limiter      *rate.Limiter
	now          func() time.Time
}

// NewWorker creates a worker importing through catalog.
func NewWorker(s *store.Store, catalog *service.LibraryCatalog, logger *slog.Logger) *Worker {
	return &Worker{
		store:        s,
		catalog:      catalog,
		logger:       logger,
		maxFileBytes: DefaultMaxFileBytes,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		now:          time.Now,
	}
}

// Throttle limits imports to perSecond files, allowing bursts of burst.
// A non-positive perSecond removes the limit.
func (w *Worker) Throttle(perSecond float64, burst int) *Worker {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	w.limiter = rate.NewLimiter(limit, max(burst, 1))
	return w
}

// Accepts reports whether path has an importable extension.
func Accepts(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// Enqueue queues path unless a pending job already exists for it or this
// version of the file was already handled. It reports whether a new job
// was created.
func (w *Worker) Enqueue(ctx context.Context, path string, size int64, modTime time.Time) (*domain.IngestionJob, bool, error) {
	jobID, err := id.Generate("job")
	if err != nil {
		return nil, false, err
	}

	var job *domain.IngestionJob
	var created bool
	err = w.store.Update(ctx, func(tx *store.Tx) error {
		created = false
		for existing, err := range w.store.Jobs.List(tx) {
			if err != nil {
				return err
			}
			if existing.Path != path {
				continue
			}
			if existing.Status == domain.JobPending || existing.SameFile(path, size, modTime) {
				job = existing
				return nil
			}
		}

		now := w.now()
		job = &domain.IngestionJob{
			JobID:     jobID,
			Path:      path,
			Size:      size,
			ModTime:   modTime,
			Status:    domain.JobPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
		return w.store.Jobs.Put(tx, job)
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		w.logger.Info("file queued for import", "path", path, "job_id", job.JobID)
	}
	return job, created, nil
}

// Scan queues every importable file already present in dir.
func (w *Worker) Scan(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read inbox: %w", err)
	}

	queued := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !Accepts(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		_, created, err := w.Enqueue(ctx, filepath.Join(dir, e.Name()), info.Size(), info.ModTime())
		if err != nil {
			return queued, err
		}
		if created {
			queued++
		}
	}
	return queued, nil
}

// ProcessPending imports every pending job, oldest first.
func (w *Worker) ProcessPending(ctx context.Context) (*Result, error) {
	jobs, err := w.store.Jobs.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	jobs = slices.DeleteFunc(jobs, func(j *domain.IngestionJob) bool { return j.Status != domain.JobPending })
	slices.SortFunc(jobs, func(a, b *domain.IngestionJob) int { return a.CreatedAt.Compare(b.CreatedAt) })

	res := &Result{}
	for _, job := range jobs {
		if err := w.limiter.Wait(ctx); err != nil {
			return res, err
		}

		book, err := w.importFile(ctx, job.Path)
		if err != nil {
			if errors.Is(err, domainerrors.ErrStorageUnavailable) {
				return res, err
			}
			job.Fail(err, w.now())
			if job.Status == domain.JobFailed {
				res.Failed++
				w.logger.Error("import failed", "path", job.Path, "attempts", job.Attempts, "error", err)
			} else {
				res.Retrying++
				w.logger.Warn("import attempt failed", "path", job.Path, "attempts", job.Attempts, "error", err)
			}
		} else {
			job.Complete(book.ID, w.now())
			res.Imported++
		}

		if err := w.store.Jobs.Save(ctx, job); err != nil {
			return res, fmt.Errorf("save job %s: %w", job.JobID, err)
		}
	}
	return res, nil
}

func (w *Worker) importFile(ctx context.Context, path string) (*domain.LibraryBook, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > w.maxFileBytes {
		return nil, domainerrors.Validationf("%s is larger than %d bytes", filepath.Base(path), w.maxFileBytes)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := DecodeText(raw)
	if err != nil {
		return nil, err
	}

	sourceType := domain.PlainTextSourceType
	if strings.EqualFold(filepath.Ext(path), ".md") {
		sourceType = domain.MarkdownSourceType
	}
	return w.catalog.CreateFromUpload(ctx, service.UploadInput{
		FileName:   filepath.Base(path),
		Content:    text,
		SourceType: sourceType,
	})
}

// Run scans dir, then queues and imports files as the watcher reports them,
// until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, dir string, fw *watcher.Watcher) error {
	if err := fw.Watch(dir); err != nil {
		return err
	}
	go fw.Start(ctx) //nolint:errcheck // Start only returns nil
	defer fw.Stop()  //nolint:errcheck // Best-effort shutdown

	if _, err := w.Scan(ctx, dir); err != nil {
		return err
	}
	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fw.Errors():
			w.logger.Warn("inbox watcher error", "error", err)
		case ev := <-fw.Events():
			if ev.Op != watcher.OpArrived {
				continue
			}
			if _, _, err := w.Enqueue(ctx, ev.Path, ev.Size, ev.ModTime); err != nil {
				w.logger.Error("failed to queue file", "path", ev.Path, "error", err)
				continue
			}
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	res, err := w.ProcessPending(ctx)
	if err != nil {
		w.logger.Error("processing inbox failed", "error", err)
		return
	}
	if res.Imported+res.Failed+res.Retrying > 0 {
		w.logger.Info("inbox processed", "imported", res.Imported, "retrying", res.Retrying, "failed", res.Failed)
	}
}

// NewInboxWatcher creates a watcher configured for the inbox file types.
func NewInboxWatcher(logger *slog.Logger) (*watcher.Watcher, error) {
	return watcher.New(logger, watcher.Options{
		SettleDelay: 500 * time.Millisecond,
		Extensions:  Extensions,
	})
}
