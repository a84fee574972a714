package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nulzo/chat-relay/internal/config"
	"github.com/nulzo/chat-relay/internal/httpclient"
	"github.com/nulzo/chat-relay/internal/llm"
)

func init() {
	llm.Register(llm.OpenAI, NewAdapter)
}

// Adapter speaks the OpenAI chat completions protocol. DeepSeek and any
// other compatible endpoint use it too.
type Adapter struct {
	config config.ProviderConfig
	client httpclient.HTTPClient
}

func NewAdapter(cfg config.ProviderConfig, client httpclient.HTTPClient) (llm.Provider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("openai provider %s: missing url", cfg.Name)
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
	return llm.OpenAI
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.config.APIKey,
	}
}

func (a *Adapter) payload(req *llm.Request, stream bool) chatRequest {
	model := req.Model
	if model == "" {
		model = a.config.Model
	}
	return chatRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
		Stream:      stream,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (a *Adapter) Chat(ctx context.Context, req *llm.Request) (string, error) {
	var resp chatResponse
	if err := httpclient.SendRequest(ctx, a.client, http.MethodPost, a.config.URL, a.headers(), a.payload(req, false), &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response: %w", a.config.Name, llm.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *Adapter) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	body := a.payload(req, true)

	return llm.Pump(ctx, func(emit llm.Emit) error {
		return httpclient.StreamRequest(ctx, a.client, http.MethodPost, a.config.URL, a.headers(), body, func(line string) error {
			data, ok := llm.DataPayload(line)
			if !ok {
				return nil
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// a broken chunk is skipped, the stream goes on
				return nil
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				return nil
			}

			if !emit(chunk.Choices[0].Delta.Content) {
				return ctx.Err()
			}
			return nil
		})
	}), nil
}
