// Package support manages the admin-editable support page content. The
// console treats the payload as opaque JSON except for stripping markup
// from its string fields on the way in.
package support

import (
	"context"

	"github.com/vinsmoke-bot/console/internal/apperror"
	"github.com/vinsmoke-bot/console/internal/sanitize"
	"github.com/vinsmoke-bot/console/internal/upstream"
)

// Backend is the slice of the upstream client this package consumes.
type Backend interface {
	Support(ctx context.Context) (upstream.SupportData, error)
	UpdateSupport(ctx context.Context, token string, data upstream.SupportData) error
	DownloadSupport(ctx context.Context, token string) ([]byte, string, error)
}

// Recorder receives audit events for support edits.
type Recorder interface {
	Record(ctx context.Context, login, action, kind, id, detail string)
}

// SupportService handles business logic for the support page.
type SupportService interface {
	// Get returns the current support content.
	Get(ctx context.Context) (upstream.SupportData, error)

	// Update sanitizes and replaces the support content.
	Update(ctx context.Context, token, login string, data upstream.SupportData) error

	// Download fetches the support document export untouched.
	Download(ctx context.Context, token string) ([]byte, string, error)
}

// supportService implements SupportService.
type supportService struct {
	backend  Backend
	recorder Recorder
}

// NewSupportService creates a new support service.
func NewSupportService(backend Backend, recorder Recorder) SupportService {
	return &supportService{backend: backend, recorder: recorder}
}

// Get passes the support content through.
func (s *supportService) Get(ctx context.Context) (upstream.SupportData, error) {
	return s.backend.Support(ctx)
}

// Update strips markup from every string field, including nested ones,
// and forwards the result.
func (s *supportService) Update(ctx context.Context, token, login string, data upstream.SupportData) error {
	if len(data) == 0 {
		return apperror.NewValidation("support content cannot be empty")
	}

	cleaned := sanitizeDeep(data)
	if err := s.backend.UpdateSupport(ctx, token, cleaned); err != nil {
		return err
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, login, "support_update", "", "", "")
	}
	return nil
}

// Download passes the export blob through.
func (s *supportService) Download(ctx context.Context, token string) ([]byte, string, error) {
	return s.backend.DownloadSupport(ctx, token)
}

// sanitizeDeep walks the payload and cleans every string it finds.
func sanitizeDeep(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitize.Text(val)
	case map[string]any:
		return sanitizeDeep(val)
	case []any:
		cleaned := make([]any, len(val))
		for i, item := range val {
			cleaned[i] = sanitizeValue(item)
		}
		return cleaned
	default:
		return v
	}
}
