package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vinsmoke-bot/console/internal/apperror"
)

// perPage is the number of entries shown per page in the audit feed.
const perPage = 50

// AuditService handles business logic for the audit log.
type AuditService interface {
	// Record logs one admin action. Fire-and-forget: failures are
	// logged, never returned, so auditing cannot block the action.
	Record(ctx context.Context, login, action, kind, id, detail string)

	// Feed returns a paginated activity feed, optionally filtered by
	// admin login. Pages are 1-indexed.
	Feed(ctx context.Context, adminLogin string, page int) ([]Entry, int, error)
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Record persists one entry under a fresh ULID. ULIDs sort by creation
// time, which keeps the feed's index happy.
func (s *auditService) Record(ctx context.Context, login, action, kind, id, detail string) {
	if login == "" || action == "" {
		slog.Warn("dropping audit entry without login or action",
			slog.String("login", login),
			slog.String("action", action),
		)
		return
	}

	entry := &Entry{
		ID:         ulid.Make().String(),
		AdminLogin: login,
		Action:     action,
		EntityKind: kind,
		EntityID:   id,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		slog.Error("failed to write audit entry",
			slog.String("login", login),
			slog.String("action", action),
			slog.Any("error", err),
		)
	}
}

// Feed returns the paginated audit feed. Invalid page numbers are
// clamped to 1.
func (s *auditService) Feed(ctx context.Context, adminLogin string, page int) ([]Entry, int, error) {
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * perPage
	entries, total, err := s.repo.List(ctx, adminLogin, perPage, offset)
	if err != nil {
		return nil, 0, apperror.NewInternal(fmt.Errorf("listing audit feed: %w", err))
	}
	return entries, total, nil
}
