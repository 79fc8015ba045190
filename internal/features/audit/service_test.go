package audit

import (
	"context"
	"errors"
	"testing"
)

// mockRepo implements AuditRepository with overridable function fields.
type mockRepo struct {
	insertFn func(ctx context.Context, entry *Entry) error
	listFn   func(ctx context.Context, adminLogin string, limit, offset int) ([]Entry, int, error)
}

func (m *mockRepo) Insert(ctx context.Context, entry *Entry) error {
	return m.insertFn(ctx, entry)
}

func (m *mockRepo) List(ctx context.Context, adminLogin string, limit, offset int) ([]Entry, int, error) {
	return m.listFn(ctx, adminLogin, limit, offset)
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	var inserted *Entry
	svc := NewAuditService(&mockRepo{
		insertFn: func(ctx context.Context, entry *Entry) error {
			inserted = entry
			return nil
		},
	})

	svc.Record(context.Background(), "sanji", ActionSave, "faq", "f1", "3 operations")

	if inserted == nil {
		t.Fatal("entry never reached the repository")
	}
	if inserted.ID == "" {
		t.Error("entry has no id")
	}
	if inserted.CreatedAt.IsZero() {
		t.Error("entry has no timestamp")
	}
	if inserted.AdminLogin != "sanji" || inserted.Action != ActionSave {
		t.Errorf("entry = %+v", inserted)
	}
}

func TestRecordDropsEntriesWithoutLogin(t *testing.T) {
	svc := NewAuditService(&mockRepo{
		insertFn: func(ctx context.Context, entry *Entry) error {
			t.Fatal("entry without login must not be inserted")
			return nil
		},
	})

	svc.Record(context.Background(), "", ActionSave, "", "", "")
}

func TestRecordSwallowsRepositoryErrors(t *testing.T) {
	svc := NewAuditService(&mockRepo{
		insertFn: func(ctx context.Context, entry *Entry) error {
			return errors.New("table gone")
		},
	})

	// Must not panic and has nothing to return: auditing is best effort.
	svc.Record(context.Background(), "sanji", ActionDelete, "plugin", "p1", "")
}

func TestFeedClampsPage(t *testing.T) {
	var gotOffset int
	svc := NewAuditService(&mockRepo{
		listFn: func(ctx context.Context, adminLogin string, limit, offset int) ([]Entry, int, error) {
			gotOffset = offset
			return nil, 0, nil
		},
	})

	if _, _, err := svc.Feed(context.Background(), "", -3); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if gotOffset != 0 {
		t.Errorf("offset = %d, want 0 for clamped page", gotOffset)
	}
}
