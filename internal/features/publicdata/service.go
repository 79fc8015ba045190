// Package publicdata serves the aggregate payload behind the public pages:
// FAQs, the plugin gallery, and its category list. Reads go through the
// snapshot cache with a 30 minute TTL; when the backend is unreachable the
// last cached snapshot is served even past its expiry rather than failing
// the page.
package publicdata

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/cache"
	"github.com/vinsmoke-bot/console/internal/sanitize"
	"github.com/vinsmoke-bot/console/internal/upstream"
)

// Backend is the slice of the upstream client this package consumes.
type Backend interface {
	PublicData(ctx context.Context) (*upstream.PublicData, error)
	SubmitPlugin(ctx context.Context, p *upstream.Plugin) error
}

// PublicDataService handles business logic for the public data feed.
type PublicDataService interface {
	// Get returns the public data snapshot, from cache when fresh. An
	// expired entry triggers one backend refresh; concurrent callers
	// share that refresh instead of each hitting the backend.
	Get(ctx context.Context) (*upstream.PublicData, error)

	// Refresh bypasses the cache and fetches from the backend now.
	Refresh(ctx context.Context) (*upstream.PublicData, error)

	// Submit validates and sanitizes a community plugin submission and
	// forwards it to the backend for review.
	Submit(ctx context.Context, p *upstream.Plugin) error

	// FAQs returns the FAQ list view, never nil.
	FAQs(ctx context.Context) ([]upstream.FAQ, error)

	// Plugins returns the plugin gallery view, never nil.
	Plugins(ctx context.Context) ([]upstream.Plugin, error)

	// Categories returns the gallery filter list, always starting with "All".
	Categories(ctx context.Context) ([]string, error)

	// Invalidate drops the cached snapshot so the next Get refetches.
	Invalidate(ctx context.Context)
}

// publicDataService implements PublicDataService.
type publicDataService struct {
	backend   Backend
	snapshots *cache.Snapshots

	// mu serializes refreshes so that a burst of cache misses produces
	// one backend call. inflight carries the result to the waiters.
	mu       sync.Mutex
	inflight *refreshResult
}

type refreshResult struct {
	done chan struct{}
	data *upstream.PublicData
	err  error
}

// NewPublicDataService creates a new public data service.
func NewPublicDataService(backend Backend, snapshots *cache.Snapshots) PublicDataService {
	return &publicDataService{backend: backend, snapshots: snapshots}
}

// Get serves from cache when a fresh snapshot exists, otherwise refreshes.
// A refresh failure falls back to the stale snapshot when one survives.
func (s *publicDataService) Get(ctx context.Context) (*upstream.PublicData, error) {
	var data upstream.PublicData
	if s.snapshots.Get(ctx, cache.KeyPublicData, &data) {
		return &data, nil
	}

	fresh, err := s.refresh(ctx)
	if err == nil {
		return fresh, nil
	}

	// Maintenance and outages degrade to the last known snapshot.
	var stale upstream.PublicData
	if s.snapshots.GetStale(ctx, cache.KeyPublicData, &stale) {
		slog.Warn("serving stale public data snapshot", slog.Any("error", err))
		return &stale, nil
	}

	return nil, err
}

// Refresh fetches from the backend unconditionally and recaches the result.
func (s *publicDataService) Refresh(ctx context.Context) (*upstream.PublicData, error) {
	return s.refresh(ctx)
}

// refresh performs the shared single-flight fetch. The first caller does
// the network round trip; callers arriving while it runs wait on the same
// result.
func (s *publicDataService) refresh(ctx context.Context) (*upstream.PublicData, error) {
	s.mu.Lock()
	if r := s.inflight; r != nil {
		s.mu.Unlock()
		select {
		case <-r.done:
			return r.data, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r := &refreshResult{done: make(chan struct{})}
	s.inflight = r
	s.mu.Unlock()

	r.data, r.err = s.fetchAndCache(ctx)
	close(r.done)

	s.mu.Lock()
	s.inflight = nil
	s.mu.Unlock()

	return r.data, r.err
}

func (s *publicDataService) fetchAndCache(ctx context.Context) (*upstream.PublicData, error) {
	data, err := s.backend.PublicData(ctx)
	if err != nil {
		return nil, err
	}

	s.snapshots.Set(ctx, cache.KeyPublicData, data)
	return data, nil
}

// FAQs returns the FAQ slice of the snapshot, empty rather than nil so the
// client always gets an array.
func (s *publicDataService) FAQs(ctx context.Context) ([]upstream.FAQ, error) {
	data, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if data.FAQs == nil {
		return []upstream.FAQ{}, nil
	}
	return data.FAQs, nil
}

// Plugins returns the plugin gallery slice of the snapshot, empty rather
// than nil.
func (s *publicDataService) Plugins(ctx context.Context) ([]upstream.Plugin, error) {
	data, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if data.Plugins == nil {
		return []upstream.Plugin{}, nil
	}
	return data.Plugins, nil
}

// Categories returns the gallery filter list. "All" always comes first;
// when the backend sends no category list it is derived from the plugin
// types present.
func (s *publicDataService) Categories(ctx context.Context) ([]string, error) {
	data, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	cats := []string{"All"}
	if len(data.Categories) > 0 {
		for _, c := range data.Categories {
			if c != "All" {
				cats = append(cats, c)
			}
		}
		return cats, nil
	}

	seen := map[string]bool{}
	for _, p := range data.Plugins {
		if p.Type != "" && !seen[p.Type] {
			seen[p.Type] = true
			cats = append(cats, p.Type)
		}
	}
	return cats, nil
}

// Submit validates a plugin submission, strips markup from its free-text
// fields, and forwards it. The snapshot is invalidated so the gallery shows
// the pending entry on the next load.
func (s *publicDataService) Submit(ctx context.Context, p *upstream.Plugin) error {
	if p.Name == "" {
		return apperror.NewValidation("plugin name is required")
	}
	if p.GistLink == "" {
		return apperror.NewValidation("gist link is required")
	}
	switch p.Type {
	case upstream.PluginTypeSticker, upstream.PluginTypeMedia, upstream.PluginTypeFun:
	default:
		return apperror.NewValidation("plugin type must be sticker, media, or fun")
	}

	p.Name = sanitize.Text(p.Name)
	p.Description = sanitize.Text(p.Description)
	p.Author = sanitize.Text(p.Author)

	if err := s.backend.SubmitPlugin(ctx, p); err != nil {
		return err
	}

	s.Invalidate(ctx)
	return nil
}

// Invalidate drops the cached snapshot.
func (s *publicDataService) Invalidate(ctx context.Context) {
	s.snapshots.Clear(ctx, cache.KeyPublicData)
}
