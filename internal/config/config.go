package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Relay     RelayConfig               `mapstructure:"relay"`
	Providers map[string]ProviderConfig `mapstructure:"providers" validate:"required,min=1,dive"`
	Prompts   map[string]string         `mapstructure:"prompts" validate:"required,min=1"`
	Log       LogConfig                 `mapstructure:"log"`
	Telemetry TelemetryConfig           `mapstructure:"telemetry"`
	Update    UpdateConfig              `mapstructure:"update"`
}

type ServerConfig struct {
	Port        string `mapstructure:"port" validate:"required,numeric"`
	Env         string `mapstructure:"env" validate:"required"`
	FrontendURL string `mapstructure:"frontend_url"`
	StaticDir   string `mapstructure:"static_dir"`
	// DebugAddr serves expvar when set, e.g. 127.0.0.1:6060.
	DebugAddr string `mapstructure:"debug_addr" validate:"omitempty,hostname_port"`
}

type RelayConfig struct {
	// MockMode swaps every upstream call for canned output.
	MockMode        bool              `mapstructure:"mock_mode"`
	MockCharDelay   time.Duration     `mapstructure:"mock_char_delay" validate:"gte=0"`
	MockChatDelay   time.Duration     `mapstructure:"mock_chat_delay" validate:"gte=0"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout" validate:"gte=0"`
	PlaceholderKeys []string          `mapstructure:"placeholder_keys"`
	Modes           map[string]string `mapstructure:"modes" validate:"required,min=1"`
}

// ProviderConfig describes one upstream LLM endpoint. URL is the full
// request endpoint, not a base URL.
type ProviderConfig struct {
	Name   string `mapstructure:"name"`
	Family string `mapstructure:"family" validate:"required,oneof=openai anthropic"`
	URL    string `mapstructure:"url" validate:"required,url"`
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error fatal"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type UpdateConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Repository string `mapstructure:"repository"`
	// CurrentVersion overrides the version stamped into the binary.
	CurrentVersion string `mapstructure:"current_version"`
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// ProviderNames returns the configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultPrompts = map[string]string{
	"deepseek":  "You are a helpful AI assistant specializing in deep reasoning and analytical thinking.",
	"creative":  "You are a creative writing assistant. Be imaginative, expressive, and engaging.",
	"technical": "You are a technical expert. Provide clear, practical solutions with code examples.",
	"general":   "You are a helpful, friendly AI assistant. Provide balanced, informative responses.",
}

var defaultProviders = map[string]ProviderConfig{
	"deepseek": {
		Family: "openai",
		URL:    "https://api.deepseek.com/chat/completions",
		Model:  "deepseek-chat",
	},
	"openai": {
		Family: "openai",
		URL:    "https://api.openai.com/v1/chat/completions",
		Model:  "gpt-3.5-turbo",
	},
	"anthropic": {
		Family: "anthropic",
		URL:    "https://api.anthropic.com/v1/messages",
		Model:  "claude-3-sonnet-20240229",
	},
}

// general, creative and technical share the deepseek endpoint
var defaultModes = map[string]string{
	"general":   "deepseek",
	"creative":  "deepseek",
	"technical": "deepseek",
	"deepseek":  "deepseek",
	"openai":    "openai",
	"anthropic": "anthropic",
}

// legacy environment names, checked after the SECTION_KEY form
var envAliases = map[string][]string{
	"server.port":         {"PORT"},
	"server.env":          {"NODE_ENV", "APP_ENV"},
	"server.frontend_url": {"FRONTEND_URL"},
	"server.static_dir":   {"STATIC_DIR"},
	"relay.mock_mode":     {"MOCK_MODE"},
	"telemetry.enabled":   {"TELEMETRY_ENABLED"},
	"update.enabled":      {"UPDATE_CHECK"},
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	for name, p := range cfg.Providers {
		p.Name = name
		p.APIKey = strings.TrimSpace(p.APIKey)
		cfg.Providers[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.static_dir", "frontend/dist")
	v.SetDefault("server.debug_addr", "")

	v.SetDefault("relay.mock_mode", false)
	v.SetDefault("relay.mock_char_delay", 30*time.Millisecond)
	v.SetDefault("relay.mock_chat_delay", time.Second)
	v.SetDefault("relay.request_timeout", 2*time.Minute)
	v.SetDefault("relay.placeholder_keys", []string{
		"your_deepseek_api_key_here",
		"your_openai_api_key_here",
		"your_anthropic_api_key_here",
	})
	v.SetDefault("relay.modes", defaultModes)

	for name, p := range defaultProviders {
		v.SetDefault("providers."+name+".family", p.Family)
		v.SetDefault("providers."+name+".url", p.URL)
		v.SetDefault("providers."+name+".model", p.Model)
		v.SetDefault("providers."+name+".api_key", "")
	}

	for mode, prompt := range defaultPrompts {
		v.SetDefault("prompts."+mode, prompt)
	}

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "chat-relay")
	v.SetDefault("update.enabled", false)
	v.SetDefault("update.repository", "nulzo/chat-relay")
	v.SetDefault("update.current_version", "")
}

// bindEnv wires the flat variable names the service has always used
// (DEEPSEEK_API_KEY, GENERAL_PROMPT, PORT, ...) next to the SECTION_KEY form.
func bindEnv(v *viper.Viper) error {
	keys := make(map[string][]string, len(envAliases))
	for key, names := range envAliases {
		keys[key] = names
	}
	for name := range defaultProviders {
		prefix := strings.ToUpper(name)
		keys["providers."+name+".url"] = []string{prefix + "_API_URL"}
		keys["providers."+name+".api_key"] = []string{prefix + "_API_KEY"}
		keys["providers."+name+".model"] = []string{prefix + "_MODEL"}
	}
	for mode := range defaultPrompts {
		keys["prompts."+mode] = []string{strings.ToUpper(mode) + "_PROMPT"}
	}

	for key, names := range keys {
		canonical := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, canonical}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	return nil
}
