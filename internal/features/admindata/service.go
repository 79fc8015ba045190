package admindata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/cache"
	"github.com/vinsmoke-bot/console/internal/sanitize"
	"github.com/vinsmoke-bot/console/internal/upstream"
)

// Backend is the slice of the upstream client this package consumes.
type Backend interface {
	AdminData(ctx context.Context, token string) (*upstream.AdminData, error)
	AdminStats(ctx context.Context, token string) (*upstream.Stats, error)
	BulkSave(ctx context.Context, token string, ops []upstream.Operation) error
	CreateFAQ(ctx context.Context, token string, f *upstream.FAQ) (*upstream.FAQ, error)
	UpdateFAQ(ctx context.Context, token string, f *upstream.FAQ) error
	DeleteFAQ(ctx context.Context, token, id string) error
	SetPluginStatus(ctx context.Context, token, id, status string) error
	DeletePlugin(ctx context.Context, token, id string) error
	DeleteSession(ctx context.Context, token, id string) error
	SessionFiles(ctx context.Context, token, id string) ([]upstream.SessionFile, error)
	SessionFile(ctx context.Context, token, id, name string) ([]byte, string, error)
	DownloadSessions(ctx context.Context, token string) ([]byte, string, error)
	DownloadPlugins(ctx context.Context, token string) ([]byte, string, error)
}

// Recorder receives audit events for admin actions. Implementations must
// tolerate being called fire-and-forget; failures never block the action.
type Recorder interface {
	Record(ctx context.Context, login, action, kind, id, detail string)
}

// AdminDataService handles business logic for the admin data overlay.
type AdminDataService interface {
	// Effective returns the admin snapshot with login's overlay applied.
	Effective(ctx context.Context, token, login string) (*EffectiveData, error)

	// Stats passes the dashboard counters through uncached.
	Stats(ctx context.Context, token string) (*upstream.Stats, error)

	// Refresh refetches the snapshot and clears login's pending edits.
	Refresh(ctx context.Context, token, login string) error

	// Update buffers a field patch in login's workspace.
	Update(login, kind, id string, fields map[string]any) error

	// Delete tombstones an entity in login's workspace.
	Delete(login, kind, id string) error

	// Create adds a new entity to login's workspace, returning its
	// temporary id.
	Create(login, kind string, fields map[string]any) (string, error)

	// SaveAll flushes login's workspace as one atomic bulk-save. On
	// success the pending edits are cleared and the snapshot refreshed;
	// on failure the edits are kept so nothing is lost.
	SaveAll(ctx context.Context, token, login string) error

	// Discard drops login's pending edits. Idempotent.
	Discard(ctx context.Context, login string)

	// DropWorkspace removes login's workspace entirely, for logout.
	DropWorkspace(login string)

	// Immediate operations bypass the overlay and hit the backend now.
	// Each one invalidates the shared snapshot on success.

	CreateFAQNow(ctx context.Context, token, login string, f *upstream.FAQ) (*upstream.FAQ, error)
	UpdateFAQNow(ctx context.Context, token, login string, f *upstream.FAQ) error
	DeleteFAQNow(ctx context.Context, token, login, id string) error
	SetPluginStatus(ctx context.Context, token, login, id, status string) error
	DeletePluginNow(ctx context.Context, token, login, id string) error
	DeleteSessionNow(ctx context.Context, token, login, id string) error

	// Export blobs are passed through verbatim with their content type.
	DownloadSessions(ctx context.Context, token string) ([]byte, string, error)
	DownloadPlugins(ctx context.Context, token string) ([]byte, string, error)
}

// adminDataService implements AdminDataService.
type adminDataService struct {
	backend   Backend
	snapshots *cache.Snapshots
	recorder  Recorder

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewAdminDataService creates a new admin data service.
func NewAdminDataService(backend Backend, snapshots *cache.Snapshots, recorder Recorder) AdminDataService {
	return &adminDataService{
		backend:    backend,
		snapshots:  snapshots,
		recorder:   recorder,
		workspaces: make(map[string]*Workspace),
	}
}

// workspace returns login's workspace, creating it on first use.
func (s *adminDataService) workspace(login string) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.workspaces[login]
	if !ok {
		ws = NewWorkspace()
		s.workspaces[login] = ws
	}
	return ws
}

// Effective merges the cached snapshot with login's overlay. The overlay
// is reapplied on every call so a concurrent snapshot refresh is picked up
// immediately.
func (s *adminDataService) Effective(ctx context.Context, token, login string) (*EffectiveData, error) {
	snap, err := s.getSnapshot(ctx, token)
	if err != nil {
		return nil, err
	}

	ws := s.workspace(login)
	out := &EffectiveData{
		Stats:        snap.Stats,
		Plugins:      ws.Apply(KindPlugin, toEntities(snap.Plugins)),
		FAQs:         ws.Apply(KindFAQ, toEntities(snap.FAQs)),
		Sessions:     ws.Apply(KindSession, toEntities(snap.Sessions)),
		Dirty:        ws.Dirty(),
		PendingCount: ws.PendingCount(),
	}
	return out, nil
}

// Stats passes the dashboard counters through.
func (s *adminDataService) Stats(ctx context.Context, token string) (*upstream.Stats, error) {
	return s.backend.AdminStats(ctx, token)
}

// Refresh replaces the snapshot wholesale and clears login's overlay.
func (s *adminDataService) Refresh(ctx context.Context, token, login string) error {
	data, err := s.backend.AdminData(ctx, token)
	if err != nil {
		return err
	}
	s.snapshots.Set(ctx, cache.KeyAdminData, data)
	s.workspace(login).Clear()
	return nil
}

// Update validates the patch and buffers it.
func (s *adminDataService) Update(login, kind, id string, fields map[string]any) error {
	if err := validateKind(kind); err != nil {
		return err
	}
	if kind == KindSession {
		return apperror.NewBadRequest("sessions cannot be edited, only removed")
	}
	if id == "" {
		return apperror.NewBadRequest("entity id is required")
	}
	if len(fields) == 0 {
		return apperror.NewValidation("patch must contain at least one field")
	}

	s.workspace(login).Update(kind, id, sanitize.Fields(fields))
	return nil
}

// Delete tombstones an entity in the overlay.
func (s *adminDataService) Delete(login, kind, id string) error {
	if err := validateKind(kind); err != nil {
		return err
	}
	if id == "" {
		return apperror.NewBadRequest("entity id is required")
	}

	s.workspace(login).Delete(kind, id)
	return nil
}

// Create adds a new entity under a temporary id.
func (s *adminDataService) Create(login, kind string, fields map[string]any) (string, error) {
	if err := validateKind(kind); err != nil {
		return "", err
	}
	if kind == KindSession {
		return "", apperror.NewBadRequest("sessions are created by linking a device")
	}
	if len(fields) == 0 {
		return "", apperror.NewValidation("new entity must contain at least one field")
	}

	return s.workspace(login).Create(kind, sanitize.Fields(fields)), nil
}

// SaveAll flushes the overlay in one bulk-save. The backend applies the
// operations atomically, so a failure leaves both sides unchanged: the
// backend untouched and the pending edits still buffered.
func (s *adminDataService) SaveAll(ctx context.Context, token, login string) error {
	ws := s.workspace(login)
	ops := ws.Operations()
	if len(ops) == 0 {
		return nil
	}

	if err := s.backend.BulkSave(ctx, token, ops); err != nil {
		slog.Warn("bulk save failed, pending edits kept",
			slog.String("admin", login),
			slog.Int("operations", len(ops)),
			slog.Any("error", err),
		)
		return err
	}

	s.record(ctx, login, "save", "", "", fmt.Sprintf("%d operations", len(ops)))

	// The backend is the source of truth now; refetch rather than trying
	// to patch the local snapshot. A refresh failure only means a stale
	// cache, so it is logged and swallowed.
	if err := s.Refresh(ctx, token, login); err != nil {
		slog.Warn("snapshot refresh after save failed", slog.Any("error", err))
		ws.Clear()
	}
	return nil
}

// Discard drops the overlay. Discarding a clean workspace is a no-op.
func (s *adminDataService) Discard(ctx context.Context, login string) {
	ws := s.workspace(login)
	if ws.Dirty() {
		s.record(ctx, login, "discard", "", "", "")
	}
	ws.Clear()
}

// DropWorkspace forgets login's workspace entirely.
func (s *adminDataService) DropWorkspace(login string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workspaces, login)
}

// getSnapshot serves the shared admin snapshot cache-first, falling back
// to a stale copy when the backend is down.
func (s *adminDataService) getSnapshot(ctx context.Context, token string) (*upstream.AdminData, error) {
	var snap upstream.AdminData
	if s.snapshots.Get(ctx, cache.KeyAdminData, &snap) {
		return &snap, nil
	}

	data, err := s.backend.AdminData(ctx, token)
	if err == nil {
		s.snapshots.Set(ctx, cache.KeyAdminData, data)
		return data, nil
	}

	var stale upstream.AdminData
	if s.snapshots.GetStale(ctx, cache.KeyAdminData, &stale) {
		slog.Warn("serving stale admin snapshot", slog.Any("error", err))
		return &stale, nil
	}
	return nil, err
}

// --- Immediate operations ---

// CreateFAQNow adds a FAQ outside the overlay, for the quick-add flow.
func (s *adminDataService) CreateFAQNow(ctx context.Context, token, login string, f *upstream.FAQ) (*upstream.FAQ, error) {
	if f.Question == "" || f.Answer == "" {
		return nil, apperror.NewValidation("question and answer are required")
	}
	s.sanitizeFAQ(f)

	created, err := s.backend.CreateFAQ(ctx, token, f)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.record(ctx, login, "save", KindFAQ, created.ID, "faq created")
	return created, nil
}

// UpdateFAQNow replaces a FAQ by id.
func (s *adminDataService) UpdateFAQNow(ctx context.Context, token, login string, f *upstream.FAQ) error {
	if f.ID == "" {
		return apperror.NewBadRequest("faq id is required")
	}
	s.sanitizeFAQ(f)

	if err := s.backend.UpdateFAQ(ctx, token, f); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, login, "save", KindFAQ, f.ID, "faq updated")
	return nil
}

// DeleteFAQNow removes a FAQ by id.
func (s *adminDataService) DeleteFAQNow(ctx context.Context, token, login, id string) error {
	if id == "" {
		return apperror.NewBadRequest("faq id is required")
	}
	if err := s.backend.DeleteFAQ(ctx, token, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, login, "delete", KindFAQ, id, "")
	return nil
}

// SetPluginStatus approves or rejects a submitted plugin.
func (s *adminDataService) SetPluginStatus(ctx context.Context, token, login, id, status string) error {
	switch status {
	case upstream.PluginStatusApproved, upstream.PluginStatusRejected:
	default:
		return apperror.NewValidation("status must be approved or rejected")
	}

	if err := s.backend.SetPluginStatus(ctx, token, id, status); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, login, "status_change", KindPlugin, id, status)
	return nil
}

// DeletePluginNow removes a plugin from the gallery.
func (s *adminDataService) DeletePluginNow(ctx context.Context, token, login, id string) error {
	if id == "" {
		return apperror.NewBadRequest("plugin id is required")
	}
	if err := s.backend.DeletePlugin(ctx, token, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, login, "delete", KindPlugin, id, "")
	return nil
}

// DeleteSessionNow unlinks a bot session and removes its credentials.
func (s *adminDataService) DeleteSessionNow(ctx context.Context, token, login, id string) error {
	if id == "" {
		return apperror.NewBadRequest("session id is required")
	}
	if err := s.backend.DeleteSession(ctx, token, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, login, "delete", KindSession, id, "")
	return nil
}

// DownloadSessions passes the sessions export archive through.
func (s *adminDataService) DownloadSessions(ctx context.Context, token string) ([]byte, string, error) {
	return s.backend.DownloadSessions(ctx, token)
}

// DownloadPlugins passes the plugins export archive through.
func (s *adminDataService) DownloadPlugins(ctx context.Context, token string) ([]byte, string, error) {
	return s.backend.DownloadPlugins(ctx, token)
}

// invalidate drops the shared snapshot so the next read refetches.
func (s *adminDataService) invalidate(ctx context.Context) {
	s.snapshots.Clear(ctx, cache.KeyAdminData)
}

func (s *adminDataService) sanitizeFAQ(f *upstream.FAQ) {
	f.Question = sanitize.Text(f.Question)
	f.Answer = sanitize.Text(f.Answer)
	f.Category = sanitize.Text(f.Category)
	f.Tags = sanitize.Slice(f.Tags)
}

func (s *adminDataService) record(ctx context.Context, login, action, kind, id, detail string) {
	if s.recorder != nil {
		s.recorder.Record(ctx, login, action, kind, id, detail)
	}
}

func validateKind(kind string) error {
	switch kind {
	case KindPlugin, KindFAQ, KindSession:
		return nil
	default:
		return apperror.NewBadRequest("unknown entity kind: " + kind)
	}
}

// toEntities converts a typed slice to the generic row shape the overlay
// merges into. A marshal round trip keeps the JSON field names.
func toEntities[T any](rows []T) []Entity {
	raw, err := json.Marshal(rows)
	if err != nil {
		return nil
	}
	var out []Entity
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
