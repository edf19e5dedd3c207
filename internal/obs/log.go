package obs

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu sync.Mutex
	logger   *zap.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	}
	return logger
}

// SetLogger replaces the shared logger. Intended for main and tests.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	loggerMu.Lock()
	l := logger
	loggerMu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}
