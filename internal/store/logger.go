package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger forwards badger's warnings and errors to slog. Badger's info
// and debug chatter is dropped.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	if logger == nil {
		return nil
	}
	return &badgerLogger{logger: logger.With("component", "badger")}
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(string, ...any) {}

func (l *badgerLogger) Debugf(string, ...any) {}
