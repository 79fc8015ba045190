package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// TTL is how long a cached snapshot stays fresh. Mirrors the frontend's
// 30-minute window so both sides agree on what "recent enough" means.
const TTL = 30 * time.Minute

// Well-known snapshot keys. The key set is fixed and small; the cache has
// no capacity bound because it never holds anything else.
const (
	KeyPublicData = "public_data"
	KeyAdminData  = "admin_data"
)

// entry is the stored envelope around a snapshot. Expires is always
// Timestamp + TTL.
type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Expires   int64           `json:"expires"`
}

// Snapshots is the TTL layer over a Store. Every storage error fails open:
// reads become misses and writes become no-ops, logged but never returned,
// so a broken cache degrades to live fetches instead of taking the console
// down.
type Snapshots struct {
	store Store
	now   Clock
}

// NewSnapshots creates a snapshot cache over the given store.
func NewSnapshots(store Store) *Snapshots {
	return &Snapshots{store: store, now: time.Now}
}

// NewSnapshotsWithClock creates a snapshot cache with an injected clock.
// Used by tests to step time across the expiry boundary.
func NewSnapshotsWithClock(store Store, now Clock) *Snapshots {
	return &Snapshots{store: store, now: now}
}

// Set stores value under key with a fresh TTL window. The previous entry,
// fresh or stale, is overwritten wholesale.
func (s *Snapshots) Set(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("cache: marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}

	now := s.now().UnixMilli()
	env, err := json.Marshal(entry{
		Data:      data,
		Timestamp: now,
		Expires:   now + TTL.Milliseconds(),
	})
	if err != nil {
		slog.Error("cache: marshal envelope failed", slog.String("key", key), slog.Any("error", err))
		return
	}

	if err := s.store.Set(ctx, key, env); err != nil {
		slog.Warn("cache: write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Get unmarshals the entry for key into dest if it exists and has not
// expired. An expired entry is deleted and reported as a miss.
func (s *Snapshots) Get(ctx context.Context, key string, dest any) bool {
	env, ok := s.read(ctx, key)
	if !ok {
		return false
	}

	if s.now().UnixMilli() > env.Expires {
		if err := s.store.Delete(ctx, key); err != nil {
			slog.Warn("cache: delete of expired entry failed", slog.String("key", key), slog.Any("error", err))
		}
		return false
	}

	return s.decode(key, env, dest)
}

// GetStale unmarshals the entry for key into dest regardless of expiry.
// Used as a fallback when a live fetch fails: stale data beats no data.
func (s *Snapshots) GetStale(ctx context.Context, key string, dest any) bool {
	env, ok := s.read(ctx, key)
	if !ok {
		return false
	}
	return s.decode(key, env, dest)
}

// Clear removes the entry for key unconditionally.
func (s *Snapshots) Clear(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("cache: clear failed", slog.String("key", key), slog.Any("error", err))
	}
}

// ClearAll removes every console cache entry. Called on logout.
func (s *Snapshots) ClearAll(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		slog.Warn("cache: clear all failed", slog.Any("error", err))
	}
}

// read loads and decodes the envelope for key, failing open on any error.
func (s *Snapshots) read(ctx context.Context, key string) (entry, bool) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		slog.Warn("cache: read failed", slog.String("key", key), slog.Any("error", err))
		return entry{}, false
	}
	if !ok {
		return entry{}, false
	}

	var env entry
	if err := json.Unmarshal(raw, &env); err != nil {
		// Corrupted entry: drop it and miss, same as the frontend did.
		slog.Warn("cache: corrupt entry dropped", slog.String("key", key), slog.Any("error", err))
		if err := s.store.Delete(ctx, key); err != nil {
			slog.Warn("cache: delete of corrupt entry failed", slog.String("key", key), slog.Any("error", err))
		}
		return entry{}, false
	}
	return env, true
}

// decode unmarshals the entry payload into dest, failing open on error.
func (s *Snapshots) decode(key string, env entry, dest any) bool {
	if err := json.Unmarshal(env.Data, dest); err != nil {
		slog.Warn("cache: decode failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}
