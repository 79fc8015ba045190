package admindata

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vinsmoke-bot/console/internal/upstream"
)

// tempIDPrefix marks entities created in the overlay that do not exist on
// the backend yet. The backend assigns the real id during bulk-save.
const tempIDPrefix = "temp_"

// IsTempID reports whether id belongs to an unsaved overlay creation.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// Workspace holds one admin's pending changes across all entity kinds.
// All methods are safe for concurrent use.
type Workspace struct {
	mu      sync.Mutex
	changes map[string]map[string]*Change // kind -> id -> change
	order   map[string][]string           // kind -> creation order of temp ids
	now     func() time.Time
	seq     int
}

// NewWorkspace creates an empty workspace.
func NewWorkspace() *Workspace {
	return newWorkspace(time.Now)
}

func newWorkspace(now func() time.Time) *Workspace {
	return &Workspace{
		changes: make(map[string]map[string]*Change),
		order:   make(map[string][]string),
		now:     now,
	}
}

// Update buffers a shallow field patch for the entity. Patching a created
// entity merges into its creation fields. Patching a tombstoned entity
// keeps the fields but the entity stays deleted.
func (w *Workspace) Update(kind, id string, fields map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch, ok := w.kindChanges(kind)[id]
	if !ok {
		w.kindChanges(kind)[id] = &Change{Op: ChangeUpdate, Fields: copyFields(fields)}
		return
	}

	// Delete stays delete, create stays create: only the fields merge.
	if ch.Fields == nil {
		ch.Fields = make(map[string]any)
	}
	for k, v := range fields {
		ch.Fields[k] = v
	}
}

// Delete tombstones the entity. Deleting an overlay creation simply drops
// it; deleting over buffered updates wins over them.
func (w *Workspace) Delete(kind, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch, ok := w.kindChanges(kind)[id]
	if ok && ch.Op == ChangeCreate {
		delete(w.kindChanges(kind), id)
		w.order[kind] = removeString(w.order[kind], id)
		return
	}

	w.kindChanges(kind)[id] = &Change{Op: ChangeDelete}
}

// Create adds a new entity under a temporary id and returns that id.
func (w *Workspace) Create(kind string, fields map[string]any) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := fmt.Sprintf("%s%d", tempIDPrefix, w.now().UnixMilli())
	// Two creates in the same millisecond need distinct ids.
	if _, taken := w.kindChanges(kind)[id]; taken {
		w.seq++
		id = fmt.Sprintf("%s_%d", id, w.seq)
	}

	f := copyFields(fields)
	f["id"] = id
	w.kindChanges(kind)[id] = &Change{Op: ChangeCreate, Fields: f}
	w.order[kind] = append(w.order[kind], id)
	return id
}

// Apply merges the pending overlay into base: patches are applied on top
// of matching rows, tombstoned rows are dropped, and creations are
// appended in the order they were made.
func (w *Workspace) Apply(kind string, base []Entity) []Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := w.changes[kind]
	if len(pending) == 0 {
		return base
	}

	out := make([]Entity, 0, len(base)+len(w.order[kind]))
	for _, row := range base {
		ch, ok := pending[entityID(row)]
		if !ok {
			out = append(out, row)
			continue
		}
		switch ch.Op {
		case ChangeDelete:
			// Dropped, even when updates were buffered on it.
		case ChangeUpdate:
			merged := make(Entity, len(row)+len(ch.Fields))
			for k, v := range row {
				merged[k] = v
			}
			for k, v := range ch.Fields {
				merged[k] = v
			}
			out = append(out, merged)
		default:
			out = append(out, row)
		}
	}

	for _, id := range w.order[kind] {
		if ch, ok := pending[id]; ok && ch.Op == ChangeCreate {
			out = append(out, copyFields(ch.Fields))
		}
	}

	return out
}

// Dirty reports whether any pending change exists.
func (w *Workspace) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, byID := range w.changes {
		if len(byID) > 0 {
			return true
		}
	}
	return false
}

// PendingCount returns the number of entities with a pending change.
func (w *Workspace) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, byID := range w.changes {
		n += len(byID)
	}
	return n
}

// Operations flattens the overlay into the ordered list the backend's
// bulk-save expects: FAQ deletes, updates, creates; plugin updates, then
// deletes; session deletes last. Within a group, ids are sorted so the
// output is deterministic.
func (w *Workspace) Operations() []upstream.Operation {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ops []upstream.Operation
	ops = append(ops, w.opsFor(KindFAQ, ChangeDelete)...)
	ops = append(ops, w.opsFor(KindFAQ, ChangeUpdate)...)
	ops = append(ops, w.createOps(KindFAQ)...)
	ops = append(ops, w.opsFor(KindPlugin, ChangeUpdate)...)
	ops = append(ops, w.opsFor(KindPlugin, ChangeDelete)...)
	ops = append(ops, w.opsFor(KindSession, ChangeDelete)...)
	return ops
}

// Clear discards every pending change. Safe to call on an already clean
// workspace.
func (w *Workspace) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changes = make(map[string]map[string]*Change)
	w.order = make(map[string][]string)
}

// Change returns the pending change for an entity, if any. The returned
// copy is safe to inspect without holding the workspace lock.
func (w *Workspace) Change(kind, id string) (Change, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.changes[kind][id]
	if !ok {
		return Change{}, false
	}
	return Change{Op: ch.Op, Fields: copyFields(ch.Fields)}, true
}

func (w *Workspace) kindChanges(kind string) map[string]*Change {
	byID, ok := w.changes[kind]
	if !ok {
		byID = make(map[string]*Change)
		w.changes[kind] = byID
	}
	return byID
}

// opsFor collects non-create operations of one kind and op, sorted by id.
func (w *Workspace) opsFor(kind string, op ChangeOp) []upstream.Operation {
	var ids []string
	for id, ch := range w.changes[kind] {
		if ch.Op == op {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	ops := make([]upstream.Operation, 0, len(ids))
	for _, id := range ids {
		o := upstream.Operation{Kind: kind, ID: id}
		switch op {
		case ChangeDelete:
			o.Action = upstream.OpDelete
		case ChangeUpdate:
			o.Action = upstream.OpUpdate
			o.Fields = copyFields(w.changes[kind][id].Fields)
		}
		ops = append(ops, o)
	}
	return ops
}

// createOps emits create operations in the order the entities were made.
// The temporary id is stripped; the backend assigns the real one.
func (w *Workspace) createOps(kind string) []upstream.Operation {
	var ops []upstream.Operation
	for _, id := range w.order[kind] {
		ch, ok := w.changes[kind][id]
		if !ok || ch.Op != ChangeCreate {
			continue
		}
		fields := copyFields(ch.Fields)
		delete(fields, "id")
		ops = append(ops, upstream.Operation{
			Action: upstream.OpCreate,
			Kind:   kind,
			Fields: fields,
		})
	}
	return ops
}

// entityID extracts a row's identifier. Sessions carry theirs under
// "sessionId"; everything else uses "id".
func entityID(row Entity) string {
	if id, ok := row["id"].(string); ok && id != "" {
		return id
	}
	id, _ := row["sessionId"].(string)
	return id
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func removeString(s []string, v string) []string {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
