package main

import (
	"testing"

	"github.com/nulzo/chat-relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogStartup_PlaceholderKeysAreNotCredentials(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := &config.Config{
		Relay: config.RelayConfig{PlaceholderKeys: []string{"changeme"}},
		Providers: map[string]config.ProviderConfig{
			"anthropic": {Name: "anthropic", Family: "anthropic", APIKey: "changeme"},
			"deepseek":  {Name: "deepseek", Family: "openai", APIKey: "your_deepseek_api_key_here"},
			"openai":    {Name: "openai", Family: "openai", APIKey: "sk-live"},
		},
	}

	logStartup(cfg, zap.New(core))

	entries := logs.FilterMessage("Provider configured").All()
	require.Len(t, entries, 3)

	hasKey := make(map[string]bool)
	for _, e := range entries {
		fields := e.ContextMap()
		hasKey[fields["provider"].(string)] = fields["has_key"].(bool)
	}
	assert.Equal(t, map[string]bool{"anthropic": false, "deepseek": false, "openai": true}, hasKey)
}

func TestLogStartup_MockMode(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	cfg := &config.Config{Relay: config.RelayConfig{MockMode: true}}

	logStartup(cfg, zap.New(core))

	assert.Equal(t, 0, logs.FilterMessage("Provider configured").Len())
	assert.Equal(t, 1, logs.Len())
}
