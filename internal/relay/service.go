package relay

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nulzo/chat-relay/internal/config"
	"github.com/nulzo/chat-relay/internal/httpclient"
	"github.com/nulzo/chat-relay/internal/llm"
	"github.com/nulzo/chat-relay/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	openAIStreamMaxTokens    = 2000
	anthropicStreamMaxTokens = 4000
	openAIStreamTemperature  = 0.7
	promptLogLimit           = 100
)

// Service relays chat prompts to the configured providers.
type Service interface {
	// Stream returns the events of one relayed answer: zero or more Content
	// events followed by exactly one Done or Error. The channel is closed
	// after the terminal event, or early when ctx ends.
	Stream(ctx context.Context, req *api.ChatRequest) <-chan Event
	// Chat returns the whole answer at once. Failures are *Error values.
	Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error)
	Models(ctx context.Context) *api.ModelsResponse
}

type Options struct {
	MockMode      bool
	MockCharDelay time.Duration
	MockChatDelay time.Duration
	// ChatTimeout bounds one non-streaming exchange. Streams are only bounded
	// by the transport's response header timeout.
	ChatTimeout time.Duration
	Now         func() time.Time
}

// OptionsFromConfig copies the relay section of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MockMode:      cfg.Relay.MockMode,
		MockCharDelay: cfg.Relay.MockCharDelay,
		MockChatDelay: cfg.Relay.MockChatDelay,
		ChatTimeout:   cfg.Relay.RequestTimeout,
	}
}

type service struct {
	logger    *zap.Logger
	registry  *Registry
	providers map[string]llm.Provider
	opts      Options
	tracer    trace.Tracer
}

// NewService builds one provider per configured endpoint, all sharing client.
func NewService(cfg *config.Config, client httpclient.HTTPClient, logger *zap.Logger, opts Options) (Service, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	providers := make(map[string]llm.Provider, len(cfg.Providers))
	for _, name := range cfg.ProviderNames() {
		p, err := llm.New(cfg.Providers[name], client)
		if err != nil {
			return nil, fmt.Errorf("initializing provider %s: %w", name, err)
		}
		providers[name] = p
	}

	return &service{
		logger:    logger,
		registry:  NewRegistry(cfg),
		providers: providers,
		opts:      opts,
		tracer:    otel.Tracer("github.com/nulzo/chat-relay/internal/relay"),
	}, nil
}

// resolve applies the checks shared by both entry points, in order:
// prompt, mode, and (outside mock mode) credentials.
func (s *service) resolve(req *api.ChatRequest) (Route, *Error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Route{}, promptRequired()
	}

	mode := req.ResolvedMode()
	route, ok := s.registry.Resolve(mode)
	if !ok {
		return Route{}, unsupportedMode(mode)
	}

	if !s.opts.MockMode && !s.registry.HasCredential(route) {
		return Route{}, missingCredential(mode)
	}

	return route, nil
}

func (s *service) Stream(ctx context.Context, req *api.ChatRequest) <-chan Event {
	out := make(chan Event)

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)

		route, relayErr := s.resolve(req)
		if relayErr != nil {
			s.logger.Warn("Rejected stream request",
				zap.String("mode", req.ResolvedMode()),
				zap.String("kind", relayErr.Kind.String()),
				zap.String("error", relayErr.Message))
			send(ErrorEvent(relayErr))
			return
		}

		if s.opts.MockMode {
			s.logger.Info("Mock stream", zap.String("mode", route.Mode))
			s.simulate(ctx, route.Mode, req.Prompt, send)
			return
		}

		s.relay(ctx, route, req.Prompt, send)
	}()

	return out
}

func (s *service) relay(ctx context.Context, route Route, prompt string, send func(Event) bool) {
	provider := s.providers[route.Provider.Name]

	ctx, span := s.tracer.Start(ctx, "relay.stream", trace.WithAttributes(
		attribute.String("relay.mode", route.Mode),
		attribute.String("relay.provider", route.Provider.Name),
		attribute.String("relay.family", route.Provider.Family),
	))
	defer span.End()

	s.logger.Info("Relaying stream",
		zap.String("mode", route.Mode),
		zap.String("provider", route.Provider.Name),
		zap.String("system_prompt", truncate(route.SystemPrompt, promptLogLimit)))

	results, err := provider.Stream(ctx, streamRequest(route, prompt))
	if err != nil {
		s.fail(span, route, classify(err, "Stream connection failed"), send)
		return
	}

	start := time.Now()
	chunks := 0
	for res := range results {
		if res.Err != nil {
			s.fail(span, route, classify(res.Err, "Stream connection failed"), send)
			return
		}
		chunks++
		if !send(contentEvent(res.Delta)) {
			break
		}
	}

	span.SetAttributes(attribute.Int("relay.chunks", chunks))

	if ctx.Err() != nil {
		s.logger.Info("Client went away mid-stream",
			zap.String("mode", route.Mode),
			zap.Int("chunks", chunks))
		span.SetStatus(codes.Error, "client disconnected")
		return
	}

	s.logger.Info("Stream finished",
		zap.String("mode", route.Mode),
		zap.Int("chunks", chunks),
		zap.Duration("latency", time.Since(start)))
	send(doneEvent(route.Mode, s.opts.Now()))
}

// streamRequest applies the generation settings each family streams with:
// openai-compatible endpoints get temperature 0.7 and 2000 tokens, anthropic
// 4000 tokens at its default temperature.
func streamRequest(route Route, prompt string) *llm.Request {
	req := &llm.Request{
		Model:  route.Provider.Model,
		Prompt: FullPrompt(route.SystemPrompt, prompt),
	}

	switch llm.Family(route.Provider.Family) {
	case llm.Anthropic:
		req.MaxTokens = anthropicStreamMaxTokens
	default:
		temperature := openAIStreamTemperature
		req.MaxTokens = openAIStreamMaxTokens
		req.Temperature = &temperature
	}
	return req
}

func (s *service) fail(span trace.Span, route Route, relayErr *Error, send func(Event) bool) {
	span.RecordError(relayErr)
	span.SetStatus(codes.Error, relayErr.Message)
	s.logger.Error("Stream failed",
		zap.String("mode", route.Mode),
		zap.String("provider", route.Provider.Name),
		zap.String("kind", relayErr.Kind.String()),
		zap.Error(relayErr))
	send(ErrorEvent(relayErr))
}

func (s *service) Chat(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	route, relayErr := s.resolve(req)
	if relayErr != nil {
		return nil, relayErr
	}

	if s.opts.MockMode {
		s.logger.Info("Mock chat", zap.String("mode", route.Mode))
		if err := sleep(ctx, s.opts.MockChatDelay); err != nil {
			return nil, classify(err, "Request cancelled")
		}
		return &api.ChatResponse{
			Response:  MockResponse(route.Mode, req.Prompt),
			Model:     route.Mode,
			Timestamp: api.FormatTimestamp(s.opts.Now()),
			Mock:      true,
		}, nil
	}

	if s.opts.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ChatTimeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "relay.chat", trace.WithAttributes(
		attribute.String("relay.mode", route.Mode),
		attribute.String("relay.provider", route.Provider.Name),
	))
	defer span.End()

	provider := s.providers[route.Provider.Name]
	text, err := provider.Chat(ctx, &llm.Request{
		Model:  route.Provider.Model,
		Prompt: FullPrompt(route.SystemPrompt, req.Prompt),
	})
	if err != nil {
		relayErr := classify(err, "Failed to get response from AI service")
		span.RecordError(relayErr)
		span.SetStatus(codes.Error, relayErr.Message)
		s.logger.Error("Chat failed",
			zap.String("mode", route.Mode),
			zap.String("provider", route.Provider.Name),
			zap.String("kind", relayErr.Kind.String()),
			zap.Error(relayErr))
		return nil, relayErr
	}

	return &api.ChatResponse{
		Response:  text,
		Model:     route.Mode,
		Timestamp: api.FormatTimestamp(s.opts.Now()),
	}, nil
}

func (s *service) Models(ctx context.Context) *api.ModelsResponse {
	models := s.registry.ConfiguredModes()
	if s.opts.MockMode {
		models = s.registry.Modes()
	}

	return &api.ModelsResponse{
		Models:   models,
		Prompts:  s.registry.Prompts(),
		MockMode: s.opts.MockMode,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
