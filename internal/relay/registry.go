package relay

import (
	"sort"
	"strings"

	"github.com/nulzo/chat-relay/internal/config"
)

// placeholderPrefix marks keys copied verbatim from an example .env file
// (your_deepseek_api_key_here and friends).
const placeholderPrefix = "your_"

// Route is what a mode resolves to: the provider that serves it and the
// system prompt placed in front of the user's prompt.
type Route struct {
	Mode         string
	Provider     config.ProviderConfig
	SystemPrompt string
}

// Registry is the read-only mode table built once from configuration.
type Registry struct {
	routes       map[string]Route
	prompts      map[string]string
	placeholders map[string]struct{}
}

func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		routes:       make(map[string]Route, len(cfg.Relay.Modes)),
		prompts:      make(map[string]string, len(cfg.Prompts)),
		placeholders: make(map[string]struct{}, len(cfg.Relay.PlaceholderKeys)),
	}

	for mode, prompt := range cfg.Prompts {
		r.prompts[mode] = prompt
	}
	for _, key := range cfg.Relay.PlaceholderKeys {
		r.placeholders[strings.TrimSpace(key)] = struct{}{}
	}

	for mode, providerName := range cfg.Relay.Modes {
		provider, ok := cfg.Providers[providerName]
		if !ok {
			continue
		}
		r.routes[mode] = Route{
			Mode:         mode,
			Provider:     provider,
			SystemPrompt: r.systemPrompt(mode),
		}
	}

	return r
}

// systemPrompt falls back to the general prompt for modes without their own.
func (r *Registry) systemPrompt(mode string) string {
	if p, ok := r.prompts[mode]; ok && p != "" {
		return p
	}
	return r.prompts["general"]
}

func (r *Registry) Resolve(mode string) (Route, bool) {
	route, ok := r.routes[mode]
	return route, ok
}

// Modes lists every mode in sorted order.
func (r *Registry) Modes() []string {
	modes := make([]string, 0, len(r.routes))
	for mode := range r.routes {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	return modes
}

// ConfiguredModes lists the modes whose provider has a usable API key.
func (r *Registry) ConfiguredModes() []string {
	modes := make([]string, 0, len(r.routes))
	for _, mode := range r.Modes() {
		if r.HasCredential(r.routes[mode]) {
			modes = append(modes, mode)
		}
	}
	return modes
}

// Prompts returns a copy of the mode -> system prompt table.
func (r *Registry) Prompts() map[string]string {
	out := make(map[string]string, len(r.prompts))
	for k, v := range r.prompts {
		out[k] = v
	}
	return out
}

func (r *Registry) HasCredential(route Route) bool {
	return !r.IsPlaceholder(route.Provider.APIKey)
}

// IsPlaceholder reports whether key is absent or one of the example values.
// Only a leading "your_" counts, so real keys that merely contain the
// substring are accepted.
func (r *Registry) IsPlaceholder(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}
	if _, ok := r.placeholders[key]; ok {
		return true
	}
	return strings.HasPrefix(strings.ToLower(key), placeholderPrefix)
}

// FullPrompt renders the single-turn transcript sent upstream.
func FullPrompt(systemPrompt, prompt string) string {
	return systemPrompt + "\n\nUser: " + prompt + "\n\nAssistant:"
}
