package api

import "strings"

// DefaultMode is used when a request names no mode.
const DefaultMode = "general"

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	Prompt string `json:"prompt"`

	// the conversation mode, e.g. general, creative, technical, deepseek
	Mode string `json:"mode,omitempty"`

	// Model is the field name the bundled frontend sends. Mode wins when both are set.
	Model string `json:"model,omitempty"`
}

// ResolvedMode returns the requested mode, falling back to DefaultMode.
func (r *ChatRequest) ResolvedMode() string {
	if m := strings.TrimSpace(r.Mode); m != "" {
		return m
	}
	if m := strings.TrimSpace(r.Model); m != "" {
		return m
	}
	return DefaultMode
}
