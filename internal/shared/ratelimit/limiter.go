// Package ratelimit implements the per-source sliding-window quota of the
// intake pipeline.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const window = time.Minute

// Limiter enforces a sliding one-minute quota per source key. A rejected
// call is not recorded, so rejected traffic is free to retry as soon as the
// window slides. The key map is guarded by a read-write mutex that only
// hands out per-key windows; each accept/reject decision runs under that
// key's own lock, so sources never contend with each other.
type Limiter struct {
	limit   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	sources map[string]*sourceWindow

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type sourceWindow struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// New creates a limiter allowing limitPerMinute accepted calls per source.
// Windows idle beyond idleTTL are evicted by the janitor started with Start.
func New(limitPerMinute int, idleTTL time.Duration) *Limiter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		limit:   limitPerMinute,
		idleTTL: idleTTL,
		now:     time.Now,
		sources: make(map[string]*sourceWindow),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Limited reports whether sourceKey is over quota right now. Accepted calls
// record the current timestamp; rejected calls record nothing.
func (l *Limiter) Limited(sourceKey string) bool {
	w := l.windowFor(sourceKey)
	now := l.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-window)
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept
	w.lastSeen = now

	if len(w.stamps) >= l.limit {
		return true
	}
	w.stamps = append(w.stamps, now)
	return false
}

// Tracked returns the number of source windows currently held.
func (l *Limiter) Tracked() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sources)
}

// Start launches the janitor goroutine that evicts idle windows.
func (l *Limiter) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.idleTTL)
		defer ticker.Stop()

		for {
			select {
			case <-l.ctx.Done():
				return
			case <-ticker.C:
				l.evictIdle()
			}
		}
	}()
}

// Stop terminates the janitor and waits for it to exit.
func (l *Limiter) Stop() {
	l.cancel()
	l.wg.Wait()
}

func (l *Limiter) windowFor(key string) *sourceWindow {
	l.mu.RLock()
	w, ok := l.sources[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.sources[key]; ok {
		return w
	}
	w = &sourceWindow{lastSeen: l.now()}
	l.sources[key] = w
	return w
}

func (l *Limiter) evictIdle() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for key, w := range l.sources {
		w.mu.Lock()
		idle := now.Sub(w.lastSeen) > l.idleTTL
		w.mu.Unlock()
		if idle {
			delete(l.sources, key)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug("evicted idle rate-limit windows", "count", evicted, "remaining", len(l.sources))
	}
}
