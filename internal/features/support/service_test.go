package support

import (
	"context"
	"strings"
	"testing"

	"github.com/vinsmoke-bot/console/internal/upstream"
)

type mockBackend struct {
	supportFn         func(ctx context.Context) (upstream.SupportData, error)
	updateSupportFn   func(ctx context.Context, token string, data upstream.SupportData) error
	downloadSupportFn func(ctx context.Context, token string) ([]byte, string, error)
}

func (m *mockBackend) Support(ctx context.Context) (upstream.SupportData, error) {
	return m.supportFn(ctx)
}

func (m *mockBackend) UpdateSupport(ctx context.Context, token string, data upstream.SupportData) error {
	return m.updateSupportFn(ctx, token, data)
}

func (m *mockBackend) DownloadSupport(ctx context.Context, token string) ([]byte, string, error) {
	return m.downloadSupportFn(ctx, token)
}

func TestUpdateSanitizesNestedStrings(t *testing.T) {
	var saved upstream.SupportData
	backend := &mockBackend{
		updateSupportFn: func(ctx context.Context, token string, data upstream.SupportData) error {
			saved = data
			return nil
		},
	}
	svc := NewSupportService(backend, nil)

	err := svc.Update(context.Background(), "tok", "sanji", upstream.SupportData{
		"title": "Need help? <script>steal()</script>",
		"channels": []any{
			map[string]any{"name": "email<img src=x>", "value": "help@vinsmoke.bot"},
		},
		"order": 3,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if strings.Contains(saved["title"].(string), "<script>") {
		t.Errorf("markup survived in title: %q", saved["title"])
	}
	channel := saved["channels"].([]any)[0].(map[string]any)
	if strings.Contains(channel["name"].(string), "<img") {
		t.Errorf("markup survived in nested field: %q", channel["name"])
	}
	if channel["value"] != "help@vinsmoke.bot" {
		t.Errorf("clean value altered: %q", channel["value"])
	}
	if saved["order"] != 3 {
		t.Errorf("non-string value altered: %v", saved["order"])
	}
}

func TestUpdateRejectsEmptyContent(t *testing.T) {
	backend := &mockBackend{
		updateSupportFn: func(ctx context.Context, token string, data upstream.SupportData) error {
			t.Fatal("empty content must not reach the backend")
			return nil
		},
	}
	svc := NewSupportService(backend, nil)

	if err := svc.Update(context.Background(), "tok", "sanji", nil); err == nil {
		t.Fatal("want validation error")
	}
}
