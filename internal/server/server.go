package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/chat-relay/internal/config"
	"github.com/nulzo/chat-relay/internal/relay"
	"github.com/nulzo/chat-relay/internal/server/middleware"
	"github.com/nulzo/chat-relay/internal/server/validator"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *zap.Logger
	service relay.Service
}

func New(cfg *config.Config, logger *zap.Logger, service relay.Service) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.InitValidator()

	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Logger(logger))
	engine.Use(middleware.CORS(corsOrigin(cfg)))
	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	engine.Use(middleware.ErrorHandler(logger))

	s := &Server{
		router:  engine,
		service: service,
		logger:  logger,
		config:  cfg,
	}

	s.SetupRoutes()
	return s
}

// corsOrigin pins the frontend origin in production and allows any origin
// elsewhere.
func corsOrigin(cfg *config.Config) string {
	if cfg.IsProduction() && cfg.Server.FrontendURL != "" {
		return cfg.Server.FrontendURL
	}
	return "*"
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx ends, then waits up to shutdownTimeout for in-flight
// requests before closing the remaining connections.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", s.config.Server.Env),
			zap.Bool("mock_mode", s.config.Relay.MockMode))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}
