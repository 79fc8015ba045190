package admindata

import (
	"strings"
	"testing"
	"time"

	"github.com/vinsmoke-bot/console/internal/upstream"
)

func basePlugins() []Entity {
	return []Entity{
		{"id": "p1", "name": "stickerizer", "likes": 3},
		{"id": "p2", "name": "gifmaker", "likes": 7},
	}
}

func TestUpdateMergesIntoRow(t *testing.T) {
	ws := NewWorkspace()
	ws.Update(KindPlugin, "p1", map[string]any{"name": "stickerizer 2"})

	out := ws.Apply(KindPlugin, basePlugins())
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[0]["name"] != "stickerizer 2" {
		t.Errorf("patched name = %v", out[0]["name"])
	}
	if out[0]["likes"] != 3 {
		t.Errorf("untouched field lost: %v", out[0]["likes"])
	}
	// The base row itself must stay unmodified.
	if basePlugins()[0]["name"] != "stickerizer" {
		t.Error("base row mutated")
	}
}

func TestSequentialUpdatesShallowMerge(t *testing.T) {
	ws := NewWorkspace()
	ws.Update(KindPlugin, "p1", map[string]any{"name": "a"})
	ws.Update(KindPlugin, "p1", map[string]any{"description": "b"})
	ws.Update(KindPlugin, "p1", map[string]any{"name": "c"})

	out := ws.Apply(KindPlugin, basePlugins())
	if out[0]["name"] != "c" || out[0]["description"] != "b" {
		t.Errorf("merged row = %+v", out[0])
	}
	if ws.PendingCount() != 1 {
		t.Errorf("three patches on one entity should count once, got %d", ws.PendingCount())
	}
}

func TestDeleteWinsOverBufferedUpdates(t *testing.T) {
	ws := NewWorkspace()
	ws.Update(KindPlugin, "p1", map[string]any{"name": "renamed"})
	ws.Delete(KindPlugin, "p1")

	out := ws.Apply(KindPlugin, basePlugins())
	if len(out) != 1 || out[0]["id"] != "p2" {
		t.Fatalf("tombstoned row survived: %+v", out)
	}
}

func TestUpdateOnTombstoneDoesNotUndelete(t *testing.T) {
	ws := NewWorkspace()
	ws.Delete(KindPlugin, "p1")
	ws.Update(KindPlugin, "p1", map[string]any{"name": "back from the dead"})

	out := ws.Apply(KindPlugin, basePlugins())
	for _, row := range out {
		if row["id"] == "p1" {
			t.Fatal("update resurrected a deleted entity")
		}
	}

	// The buffered fields are kept on the tombstone, they just have no
	// effect while it stands.
	ch, ok := ws.Change(KindPlugin, "p1")
	if !ok || ch.Op != ChangeDelete {
		t.Fatalf("change = %+v, ok = %v", ch, ok)
	}
	if ch.Fields["name"] != "back from the dead" {
		t.Errorf("buffered fields lost: %+v", ch.Fields)
	}
}

func TestCreateAppendsWithTempID(t *testing.T) {
	ws := NewWorkspace()
	id := ws.Create(KindFAQ, map[string]any{"question": "Q1"})

	if !IsTempID(id) {
		t.Fatalf("id %q is not a temp id", id)
	}

	out := ws.Apply(KindFAQ, []Entity{{"id": "f1", "question": "old"}})
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[1]["id"] != id || out[1]["question"] != "Q1" {
		t.Errorf("created row = %+v", out[1])
	}
}

func TestCreatesInSameMillisecondGetDistinctIDs(t *testing.T) {
	frozen := time.UnixMilli(1700000000000)
	ws := newWorkspace(func() time.Time { return frozen })

	a := ws.Create(KindFAQ, map[string]any{"question": "A"})
	b := ws.Create(KindFAQ, map[string]any{"question": "B"})
	if a == b {
		t.Fatalf("colliding temp ids: %q", a)
	}
	if !strings.HasPrefix(b, tempIDPrefix) {
		t.Errorf("fallback id %q lost its prefix", b)
	}
}

func TestDeleteOfCreatedEntityDropsIt(t *testing.T) {
	ws := NewWorkspace()
	id := ws.Create(KindFAQ, map[string]any{"question": "ephemeral"})
	ws.Delete(KindFAQ, id)

	if ws.Dirty() {
		t.Error("create+delete should leave a clean workspace")
	}
	out := ws.Apply(KindFAQ, nil)
	if len(out) != 0 {
		t.Errorf("dropped creation still applied: %+v", out)
	}
	if len(ws.Operations()) != 0 {
		t.Errorf("dropped creation still produces operations")
	}
}

func TestOperationsOrdering(t *testing.T) {
	ws := NewWorkspace()
	ws.Create(KindFAQ, map[string]any{"question": "new"})
	ws.Update(KindFAQ, "f1", map[string]any{"answer": "edited"})
	ws.Delete(KindFAQ, "f2")
	ws.Update(KindPlugin, "p1", map[string]any{"name": "renamed"})
	ws.Delete(KindPlugin, "p2")
	ws.Delete(KindSession, "VINSMOKEm@s1")

	ops := ws.Operations()
	want := []struct {
		action, kind string
	}{
		{upstream.OpDelete, KindFAQ},
		{upstream.OpUpdate, KindFAQ},
		{upstream.OpCreate, KindFAQ},
		{upstream.OpUpdate, KindPlugin},
		{upstream.OpDelete, KindPlugin},
		{upstream.OpDelete, KindSession},
	}
	if len(ops) != len(want) {
		t.Fatalf("got %d operations, want %d: %+v", len(ops), len(want), ops)
	}
	for i, w := range want {
		if ops[i].Action != w.action || ops[i].Kind != w.kind {
			t.Errorf("ops[%d] = %s %s, want %s %s", i, ops[i].Action, ops[i].Kind, w.action, w.kind)
		}
	}

	// Creations must not carry the temporary id to the backend.
	if id, present := ops[2].Fields["id"]; present {
		t.Errorf("create operation leaked temp id %v", id)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	ws := NewWorkspace()
	ws.Update(KindFAQ, "f1", map[string]any{"answer": "x"})

	ws.Clear()
	if ws.Dirty() {
		t.Error("workspace dirty after Clear")
	}
	ws.Clear()
	if ws.Dirty() || ws.PendingCount() != 0 {
		t.Error("double Clear changed state")
	}
}

func TestApplyMatchesSessionsBySessionID(t *testing.T) {
	ws := NewWorkspace()
	ws.Delete(KindSession, "VINSMOKEm@s1")

	base := []Entity{
		{"sessionId": "VINSMOKEm@s1"},
		{"sessionId": "VINSMOKEm@s2"},
	}
	out := ws.Apply(KindSession, base)
	if len(out) != 1 || out[0]["sessionId"] != "VINSMOKEm@s2" {
		t.Fatalf("session tombstone not applied: %+v", out)
	}
}
