package providers

import (
	"context"
	"errors"
	"time"

	"github.com/samber/do/v2"

	"github.com/speedreader/speedreader-core/internal/config"
	"github.com/speedreader/speedreader-core/internal/ingest"
	"github.com/speedreader/speedreader-core/internal/logger"
	"github.com/speedreader/speedreader-core/internal/service"
)

// ErrNoInbox is returned when the inbox worker is requested without INBOX_PATH.
var ErrNoInbox = errors.New("no inbox directory configured")

// ProvideIngestWorker provides the inbox import worker.
func ProvideIngestWorker(i do.Injector) (*ingest.Worker, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*service.LibraryCatalog](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	w := ingest.NewWorker(storeHandle.Store, catalog, log.Component("ingest"))
	return w.Throttle(cfg.Inbox.ImportsPerSecond, inboxBurst), nil
}

// InboxHandle runs the ingest worker against the configured inbox until shutdown.
type InboxHandle struct {
	cancel context.CancelFunc
	done   chan error
}

// Shutdown implements do.Shutdownable.
func (h *InboxHandle) Shutdown() error {
	h.cancel()
	select {
	case err := <-h.done:
		return err
	case <-time.After(shutdownTimeout):
		return errors.New("inbox worker did not stop in time")
	}
}

// Done is closed with the worker's result once it stops.
func (h *InboxHandle) Done() <-chan error {
	return h.done
}

// ProvideInbox starts watching the inbox directory.
func ProvideInbox(i do.Injector) (*InboxHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	if cfg.Inbox.Path == "" {
		return nil, ErrNoInbox
	}
	worker := do.MustInvoke[*ingest.Worker](i)
	log := do.MustInvoke[*logger.Logger](i)

	fw, err := ingest.NewInboxWatcher(log.Component("watcher"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx, cfg.Inbox.Path, fw)
		close(done)
	}()

	log.Info("watching inbox", "path", cfg.Inbox.Path)
	return &InboxHandle{cancel: cancel, done: done}, nil
}
