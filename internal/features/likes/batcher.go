// Package likes batches plugin like toggles. Rapid clicking produces one
// pending entry per plugin and user where only the last toggle counts; the
// batch is flushed to the backend after a quiet period instead of on every
// click, so the gallery stays responsive and the backend sees one write
// per plugin rather than one per click.
package likes

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LikeBackend is the slice of the upstream client this package consumes.
type LikeBackend interface {
	LikePlugin(ctx context.Context, pluginID, userID string, liked bool) error
}

// pendingLike is one buffered toggle. Only the latest desired state per
// plugin and user is kept.
type pendingLike struct {
	PluginID string    `json:"pluginId"`
	UserID   string    `json:"userId"`
	Liked    bool      `json:"liked"`
	QueuedAt time.Time `json:"queuedAt"`
}

// Batcher coalesces like toggles and flushes them after a debounce
// window. All methods are safe for concurrent use.
type Batcher struct {
	backend LikeBackend
	delay   time.Duration
	now     func() time.Time

	mu         sync.Mutex
	pending    map[string]pendingLike // pluginID|userID -> latest toggle
	timer      *time.Timer
	deadline   time.Time
	processing bool
}

// NewBatcher creates a batcher that flushes after delay of inactivity.
func NewBatcher(backend LikeBackend, delay time.Duration) *Batcher {
	return &Batcher{
		backend: backend,
		delay:   delay,
		now:     time.Now,
		pending: make(map[string]pendingLike),
	}
}

// Toggle buffers a like toggle and returns the new desired state right
// away, so the UI can render optimistically. Every toggle restarts the
// shared debounce window.
func (b *Batcher) Toggle(pluginID, userID string, current bool) bool {
	desired := !current

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[likeKey(pluginID, userID)] = pendingLike{
		PluginID: pluginID,
		UserID:   userID,
		Liked:    desired,
		QueuedAt: b.now(),
	}
	b.restartTimerLocked()

	return desired
}

// PendingState reports the buffered desired state for a plugin and user,
// if one exists.
func (b *Batcher) PendingState(pluginID, userID string) (liked, pending bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.pending[likeKey(pluginID, userID)]
	return entry.Liked, ok
}

// PendingCount returns the number of buffered toggles.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// RemainingTime returns how long until the next automatic flush, zero
// when nothing is buffered.
func (b *Batcher) RemainingTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 || b.deadline.IsZero() {
		return 0
	}
	remaining := b.deadline.Sub(b.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Flush sends the buffered batch now. Only one flush runs at a time;
// toggles arriving during a flush buffer for the next one. A failed batch
// is restored whole so no toggle is lost, with newer toggles for the same
// plugin and user taking precedence over the restored ones.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	if b.processing || len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	b.processing = true
	batch := b.pending
	b.pending = make(map[string]pendingLike)
	b.stopTimerLocked()
	b.mu.Unlock()

	failed := b.send(ctx, batch)

	b.mu.Lock()
	b.processing = false
	if failed {
		// All or nothing: everything goes back, but a toggle made while
		// the flush ran is newer and wins over its restored entry.
		for key, entry := range batch {
			if _, exists := b.pending[key]; !exists {
				b.pending[key] = entry
			}
		}
	}
	if len(b.pending) > 0 {
		b.restartTimerLocked()
	}
	b.mu.Unlock()
}

// Shutdown performs a final synchronous flush so buffered toggles survive
// a restart.
func (b *Batcher) Shutdown(ctx context.Context) {
	b.mu.Lock()
	b.stopTimerLocked()
	b.mu.Unlock()

	b.Flush(ctx)
}

// send posts every entry of the batch concurrently and reports whether
// any of them failed.
func (b *Batcher) send(ctx context.Context, batch map[string]pendingLike) bool {
	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0

	for _, entry := range batch {
		wg.Add(1)
		go func(entry pendingLike) {
			defer wg.Done()
			if err := b.backend.LikePlugin(ctx, entry.PluginID, entry.UserID, entry.Liked); err != nil {
				slog.Warn("like flush failed",
					slog.String("plugin_id", entry.PluginID),
					slog.Any("error", err),
				)
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}(entry)
	}
	wg.Wait()

	if failures > 0 {
		slog.Warn("like batch restored for retry",
			slog.Int("failed", failures),
			slog.Int("batch_size", len(batch)),
		)
		return true
	}

	slog.Debug("like batch flushed", slog.Int("batch_size", len(batch)))
	return false
}

// restartTimerLocked arms the shared debounce timer. Callers hold b.mu.
func (b *Batcher) restartTimerLocked() {
	b.stopTimerLocked()
	b.deadline = b.now().Add(b.delay)
	b.timer = time.AfterFunc(b.delay, func() {
		b.Flush(context.Background())
	})
}

// stopTimerLocked disarms the timer. Callers hold b.mu.
func (b *Batcher) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.deadline = time.Time{}
}

func likeKey(pluginID, userID string) string {
	return pluginID + "|" + userID
}
