package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/nulzo/chat-relay/internal/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config defines the configuration for the logger.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, console
	EnableColor bool   // true to enable colors (only in console mode)
}

var (
	globalLogger *zap.Logger
	mu           sync.Mutex
)

// DefaultConfig reads LOG_LEVEL and LOG_FORMAT. Colors follow the same
// NO_COLOR/LOG_COLOR switches as the rest of the terminal output.
func DefaultConfig() Config {
	cfg := Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "console"),
	}
	cfg.EnableColor = cfg.Format == "console" && cli.Enabled()
	return cfg
}

// New builds a logger from cfg without touching the global one.
func New(cfg Config) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()

	// Standardize Time Format
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Format == "console" && cfg.EnableColor {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		if cfg.EnableColor {
			encoder = NewColoredConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)

	opts := []zap.Option{
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	}
	if cfg.Level == "debug" {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, opts...)
}

// Initialize sets up the global logger using the provided configuration.
func Initialize(cfg Config) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	globalLogger = New(cfg)
	return globalLogger
}

// Get returns the global logger. Initializes with defaults if not already set.
func Get() *zap.Logger {
	mu.Lock()
	l := globalLogger
	mu.Unlock()

	if l == nil {
		return Initialize(DefaultConfig())
	}
	return l
}

func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// --- Helpers ---

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.ToLower(value)
	}
	return fallback
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
