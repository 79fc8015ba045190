// Package upstream is the typed client for the remote Vinsmoke bot backend.
// It owns the wire types shared across the console: every feature package
// speaks in these structs rather than raw JSON.
package upstream

// ConnectedPrefix marks a fully connected WhatsApp session id, as opposed
// to the temporary ids issued while a linking flow is still in progress.
const ConnectedPrefix = "VINSMOKEm@"

// IsConnectedSessionID reports whether id denotes a fully linked session.
func IsConnectedSessionID(id string) bool {
	return len(id) >= len(ConnectedPrefix) && id[:len(ConnectedPrefix)] == ConnectedPrefix
}

// Plugin statuses. A submission stays pending until an admin approves or
// rejects it.
const (
	PluginStatusPending  = "pending"
	PluginStatusApproved = "approved"
	PluginStatusRejected = "rejected"
)

// Plugin types accepted by the gallery.
const (
	PluginTypeSticker = "sticker"
	PluginTypeMedia   = "media"
	PluginTypeFun     = "fun"
)

// Plugin is a community bot plugin listed in the gallery.
type Plugin struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Author      string   `json:"author"`
	GistLink    string   `json:"gistLink"`
	Status      string   `json:"status"`
	Likes       int      `json:"likes"`
	LikedBy     []string `json:"likedBy"`
	CreatedAt   string   `json:"createdAt"`
}

// FAQ is a frequently asked question. Answers may embed the frontend's
// color`text` highlight markup, which is plain text as far as the console
// is concerned.
type FAQ struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags"`
}

// Session is a linked WhatsApp bot session as listed in the admin panel.
type Session struct {
	SessionID string `json:"sessionId"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

// Stats is the admin dashboard counter block.
type Stats struct {
	TotalSessions  int `json:"totalSessions"`
	TotalPlugins   int `json:"totalPlugins"`
	PendingPlugins int `json:"pendingPlugins"`
	TotalFAQs      int `json:"totalFAQs"`
}

// PublicData is the aggregate payload behind GET /api/public-data.
type PublicData struct {
	FAQs       []FAQ    `json:"faqs"`
	Plugins    []Plugin `json:"plugins"`
	Categories []string `json:"categories"`
}

// AdminData is the bulk admin snapshot behind GET /api/admin-data. It is
// replaced wholesale on every fetch and never mutated in place.
type AdminData struct {
	Stats    Stats     `json:"stats"`
	Sessions []Session `json:"sessions"`
	Plugins  []Plugin  `json:"plugins"`
	FAQs     []FAQ     `json:"faqs"`
}

// Bulk-save operation actions.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Entity kinds addressed by bulk-save operations.
const (
	KindPlugin  = "plugin"
	KindFAQ     = "faq"
	KindSession = "session"
)

// Operation is one entry of a bulk-save change set.
type Operation struct {
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// LinkSession is the response to a QR or pairing session creation call.
// Exactly one of QRCode/PairingCode may be set when the backend answers
// immediately; otherwise the value arrives later over the push channel.
type LinkSession struct {
	SessionID   string `json:"sessionId"`
	QRCode      string `json:"qrCode,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
}

// SessionFile describes one file stored for a session.
type SessionFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// SupportData is the admin-editable support page content. The console
// treats it as opaque except for sanitizing string fields.
type SupportData map[string]any

// envelope is the common response wrapper used by every backend endpoint:
// {success: bool, error?: string, ...payload}.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
