package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nulzo/chat-relay/internal/config"
	"github.com/nulzo/chat-relay/internal/httpclient"
	"github.com/nulzo/chat-relay/internal/llm"
)

const (
	APIVersion       = "2023-06-01"
	defaultMaxTokens = 4000
)

func init() {
	llm.Register(llm.Anthropic, NewAdapter)
}

type Adapter struct {
	config config.ProviderConfig
	client httpclient.HTTPClient
}

func NewAdapter(cfg config.ProviderConfig, client httpclient.HTTPClient) (llm.Provider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("anthropic provider %s: missing url", cfg.Name)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Adapter{config: cfg, client: client}, nil
}

func (a *Adapter) Name() string {
	return a.config.Name
}

func (a *Adapter) Family() llm.Family {
	return llm.Anthropic
}

// Anthropic specific structures
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// streamEvent covers the data payloads of the messages stream; only
// content_block_delta and error carry anything the relay forwards.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.config.APIKey,
		"anthropic-version": APIVersion,
	}
}

func (a *Adapter) payload(req *llm.Request, stream bool) anthropicRequest {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return anthropicRequest{
		Model:       model,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

func (a *Adapter) Chat(ctx context.Context, req *llm.Request) (string, error) {
	var resp anthropicResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.config.URL, a.headers(), a.payload(req, false), &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	found := false
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("%s: no text content in response: %w", a.config.Name, llm.ErrMalformedResponse)
	}
	return sb.String(), nil
}

func (a *Adapter) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	body := a.payload(req, true)

	return llm.Pump(ctx, func(emit llm.Emit) error {
		return httpclient.StreamRequest(ctx, a.client, http.MethodPost, a.config.URL, a.headers(), body, func(line string) error {
			// "event:" lines repeat the type that is also inside the data payload
			data, ok := llm.DataPayload(line)
			if !ok {
				return nil
			}

			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return nil
			}

			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Text == "" {
					return nil
				}
				if !emit(ev.Delta.Text) {
					return ctx.Err()
				}
			case "error":
				if ev.Error != nil {
					return fmt.Errorf("%w: %s: %s", llm.ErrProviderError, ev.Error.Type, ev.Error.Message)
				}
				return fmt.Errorf("%w: %s", llm.ErrProviderError, data)
			}
			return nil
		})
	}), nil
}
