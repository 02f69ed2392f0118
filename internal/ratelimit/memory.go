package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a fixed window counter held in process memory.
// Counters are per instance and reset on restart, good enough for a single
// node deployment. Use the Redis limiter when running more than one instance.
type MemoryLimiter struct {
	cfg Config

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

func NewMemory(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.sweep(now)
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.cfg.MaxAttempts {
		return ErrRateLimited
	}

	return nil
}

// sweep drops stale windows so the map does not grow with one entry per
// client forever. Called with the mutex held.
func (l *MemoryLimiter) sweep(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.cfg.Window {
			delete(l.windows, key)
		}
	}
}
