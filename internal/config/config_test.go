package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, 30*time.Millisecond, cfg.Relay.MockCharDelay)
	assert.Equal(t, time.Second, cfg.Relay.MockChatDelay)
	assert.Equal(t, []string{"anthropic", "deepseek", "openai"}, cfg.ProviderNames())
	assert.Equal(t, "deepseek", cfg.Relay.Modes["general"])
	assert.Equal(t, "anthropic", cfg.Providers["anthropic"].Family)
	assert.Equal(t, "anthropic", cfg.Providers["anthropic"].Name)
	assert.Contains(t, cfg.Prompts["technical"], "technical expert")
}

func TestLoadConfig_LegacyEnvNames(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("MOCK_MODE", "true")
	t.Setenv("DEEPSEEK_API_KEY", " sk-test-12345 ")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("CREATIVE_PROMPT", "Write like a poet.")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Relay.MockMode)
	assert.Equal(t, "sk-test-12345", cfg.Providers["deepseek"].APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Providers["openai"].Model)
	assert.Equal(t, "Write like a poet.", cfg.Prompts["creative"])
}

func TestLoadConfig_SectionEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadConfig_File(t *testing.T) {
	content := `
relay:
  modes:
    general: local
providers:
  local:
    family: openai
    url: http://localhost:11434/v1/chat/completions
    model: llama3
    api_key: sk-local
`
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Relay.Modes["general"])
	assert.Equal(t, "deepseek", cfg.Relay.Modes["creative"])
	assert.Equal(t, "local", cfg.Providers["local"].Name)
	assert.Equal(t, "sk-local", cfg.Providers["local"].APIKey)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("PORT", "eighty")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_UnknownModeProvider(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Port: "8000", Env: "test"},
		Relay:  RelayConfig{Modes: map[string]string{"general": "missing"}},
		Providers: map[string]ProviderConfig{
			"deepseek": {Family: "openai", URL: "https://api.deepseek.com/chat/completions", Model: "deepseek-chat"},
		},
		Prompts: map[string]string{"general": "hi"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `relay.modes.general: unknown provider "missing"`)
}
