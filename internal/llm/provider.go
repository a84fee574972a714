package llm

import (
	"context"
	"errors"
)

// Family identifies the wire protocol of an upstream provider.
type Family string

const (
	// OpenAI covers every OpenAI-compatible chat completions API (OpenAI, DeepSeek).
	OpenAI    Family = "openai"
	Anthropic Family = "anthropic"
)

// ErrMalformedResponse is returned when an upstream answer lacks the
// expected envelope.
var ErrMalformedResponse = errors.New("malformed provider response")

// ErrProviderError is returned when the provider reports a failure inside an
// otherwise successful response, such as an error event mid-stream.
var ErrProviderError = errors.New("provider reported an error")

// Request is the provider-neutral shape of a single-turn completion.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature *float64
}

// StreamResult carries one text delta, or a terminal error.
type StreamResult struct {
	Delta string
	Err   error
}

type Provider interface {
	Name() string
	Family() Family
	// Chat performs a single request-response call and returns the answer text.
	Chat(ctx context.Context, req *Request) (string, error)
	// Stream returns a channel of deltas. The channel is closed when the
	// upstream body is exhausted, after a terminal error, or when ctx ends.
	Stream(ctx context.Context, req *Request) (<-chan StreamResult, error)
}
