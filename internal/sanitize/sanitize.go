// Package sanitize cleans user-supplied text before it is stored upstream
// or echoed back to the browser. FAQ answers, plugin submissions, and
// support content are plain text, never HTML: the only markup the frontend
// understands is the color`text` highlight syntax, which survives
// sanitization because it contains no angle brackets.
//
// Uses bluemonday's strict policy to strip every HTML element and
// attribute (script tags, event handlers, javascript: URLs included).
package sanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// policy is the singleton bluemonday policy for stripping HTML.
// Initialized once via sync.Once for thread-safe lazy initialization.
var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips all HTML from user-supplied text and trims surrounding
// whitespace. This MUST be called on every free-text field before it is
// forwarded upstream (FAQ question/answer, plugin name/description,
// support messages).
func Text(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(getPolicy().Sanitize(input))
}

// Fields sanitizes every string value of a JSON-decoded object in place
// and returns it. Non-string values (numbers, bools, nested objects) are
// left untouched -- only free text can carry markup.
func Fields(fields map[string]any) map[string]any {
	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = Text(s)
		}
	}
	return fields
}

// Slice sanitizes every element of a string slice (e.g., FAQ tags).
func Slice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := Text(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
