package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nulzo/chat-relay/internal/cli"
	"github.com/nulzo/chat-relay/internal/config"
	"github.com/nulzo/chat-relay/internal/httpclient"
	"github.com/nulzo/chat-relay/internal/platform/logger"
	"github.com/nulzo/chat-relay/internal/platform/otel"
	"github.com/nulzo/chat-relay/internal/relay"
	"github.com/nulzo/chat-relay/internal/server"
	"github.com/nulzo/chat-relay/internal/version"
	"go.uber.org/zap"

	// Import providers to trigger init() registration
	_ "github.com/nulzo/chat-relay/internal/llm/anthropic"
	_ "github.com/nulzo/chat-relay/internal/llm/openai"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cli.CrossMark(), err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.Initialize(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console" && cli.Enabled(),
	})
	defer logger.Sync()

	appVersion := version.Version
	if cfg.Update.CurrentVersion != "" {
		appVersion = cfg.Update.CurrentVersion
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.InitTracer(cfg.Telemetry.ServiceName, appVersion, log, os.Stdout)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.Warn("Tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	if cfg.Update.Enabled {
		go version.NewChecker(appVersion, log).Check(ctx, cfg.Update.Repository)
	}

	if cfg.Server.DebugAddr != "" {
		go serveDebug(cfg.Server.DebugAddr, log)
	}

	// RequestTimeout caps the wait for upstream headers here and whole
	// non-streaming exchanges inside the service.
	client := httpclient.New(cfg.Relay.RequestTimeout)

	service, err := relay.NewService(cfg, client, log, relay.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}

	log.Info("Starting chat relay", zap.String("version", appVersion))
	logStartup(cfg, log)

	return server.New(cfg, log, service).Run(ctx)
}

func logStartup(cfg *config.Config, log *zap.Logger) {
	if cfg.Relay.MockMode {
		log.Info("Mock mode enabled, upstream providers will not be called")
		return
	}

	registry := relay.NewRegistry(cfg)
	for _, name := range cfg.ProviderNames() {
		p := cfg.Providers[name]
		log.Info("Provider configured",
			zap.String("provider", name),
			zap.String("family", p.Family),
			zap.String("model", p.Model),
			zap.Bool("has_key", registry.HasCredential(relay.Route{Provider: p})))
	}
}

// serveDebug exposes expvar (memstats, cmdline) on a separate listener.
func serveDebug(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("Debug listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("Debug listener stopped", zap.Error(err))
	}
}
