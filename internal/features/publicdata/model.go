package publicdata

import "github.com/vinsmoke-bot/console/internal/upstream"

// upstreamPluginRequest is the submission body accepted from the browser.
// Only the fields a submitter may set are bound; status, likes, and ids are
// assigned by the backend.
type upstreamPluginRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Author      string `json:"author"`
	GistLink    string `json:"gistLink"`
}

func (r *upstreamPluginRequest) toPlugin() *upstream.Plugin {
	return &upstream.Plugin{
		Name:        r.Name,
		Description: r.Description,
		Type:        r.Type,
		Author:      r.Author,
		GistLink:    r.GistLink,
		Status:      upstream.PluginStatusPending,
	}
}
