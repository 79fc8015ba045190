// Package admindata provides the admin panel's data layer: the bulk
// snapshot fetched from the backend, and a per-admin overlay of pending
// edits that is merged into every read until the admin saves or discards.
// Saving turns the overlay into one ordered bulk-save call so the backend
// applies everything atomically.
package admindata

import "github.com/vinsmoke-bot/console/internal/upstream"

// Entity kinds the overlay can address. Sessions support deletion only;
// they are created through the linking flow, never by hand.
const (
	KindPlugin  = upstream.KindPlugin
	KindFAQ     = upstream.KindFAQ
	KindSession = upstream.KindSession
)

// ChangeOp discriminates the pending change variants.
type ChangeOp string

const (
	// ChangeUpdate holds a shallow field patch for an existing entity.
	ChangeUpdate ChangeOp = "update"

	// ChangeDelete tombstones an entity. Field patches buffered on a
	// tombstone are kept but never resurrect the entity.
	ChangeDelete ChangeOp = "delete"

	// ChangeCreate holds a brand new entity under a temporary id.
	ChangeCreate ChangeOp = "create"
)

// Change is one pending edit. Exactly one variant applies per entity id;
// combining operations collapses into a single variant (see Workspace).
type Change struct {
	Op     ChangeOp       `json:"op"`
	Fields map[string]any `json:"fields,omitempty"`
}

// Entity is the generic row shape the overlay operates on. Every entity
// carries an "id" key.
type Entity = map[string]any

// EffectiveData is the admin snapshot with the caller's pending overlay
// applied, as returned by GET /api/admin-data.
type EffectiveData struct {
	Stats    upstream.Stats `json:"stats"`
	Plugins  []Entity       `json:"plugins"`
	FAQs     []Entity       `json:"faqs"`
	Sessions []Entity       `json:"sessions"`

	// Dirty reports whether any pending change exists for the caller.
	Dirty bool `json:"dirty"`

	// PendingCount is the number of entities with pending changes.
	PendingCount int `json:"pendingCount"`
}
