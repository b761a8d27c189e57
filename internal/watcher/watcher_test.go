package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, opts Options) (*Watcher, string) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := New(logger, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	dir := t.TempDir()
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx) //nolint:errcheck // Test goroutine

	return w, dir
}

func TestWatcher_WatchRejectsFiles(t *testing.T) {
	w, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	file := filepath.Join(t.TempDir(), "book.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.Error(t, w.Watch(file))
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))
}

func TestWatcher_FileCreation(t *testing.T) {
	w, dir := newTestWatcher(t, Options{SettleDelay: 50 * time.Millisecond, Extensions: []string{".txt"}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("jpg"), 0o644))
	testFile := filepath.Join(dir, "poem.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("tyger tyger burning bright"), 0o644))

	select {
	case event := <-w.Events():
		assert.Equal(t, OpArrived, event.Op)
		assert.Equal(t, "poem.txt", event.Name())
		assert.Equal(t, testFile, event.Path)
		assert.Equal(t, int64(26), event.Size)
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
