package member

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// warnLimiter rate-limits warning logs per failure kind to at most one
// every 60s, per spec.md §4.2's failure-semantics paragraph ("logged
// at warning level with rate-limiting, at most 1 log per 60s per
// failure kind").
type warnLimiter struct {
	logger *zap.Logger
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func newWarnLimiter(logger *zap.Logger) *warnLimiter {
	return &warnLimiter{
		logger: logger,
		window: 60 * time.Second,
		last:   make(map[string]time.Time),
	}
}

// Warn logs msg at warning level for kind, suppressing repeats within
// the rate-limit window.
func (w *warnLimiter) Warn(kind, msg string, fields ...zap.Field) {
	w.mu.Lock()
	last, seen := w.last[kind]
	now := time.Now()
	if seen && now.Sub(last) < w.window {
		w.mu.Unlock()
		return
	}
	w.last[kind] = now
	w.mu.Unlock()

	w.logger.Warn(msg, append(fields, zap.String("failure_kind", kind))...)
}
