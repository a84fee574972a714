package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/chat-relay/internal/config"
	"github.com/nulzo/chat-relay/internal/llm"
	"github.com/nulzo/chat-relay/internal/llm/anthropic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdapter(t *testing.T, url string) llm.Provider {
	t.Helper()
	adapter, err := anthropic.NewAdapter(config.ProviderConfig{
		Name:   "anthropic",
		Family: "anthropic",
		URL:    url,
		APIKey: "test-key",
		Model:  "claude-3",
	}, nil)
	require.NoError(t, err)
	return adapter
}

func TestChat_RealCallStructure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropic.APIVersion, r.Header.Get("anthropic-version"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3", body["model"])
		assert.Equal(t, float64(4000), body["max_tokens"])
		assert.Nil(t, body["stream"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":   "msg_123",
			"type": "message",
			"content": []map[string]interface{}{
				{"type": "text", "text": "Hello"},
				{"type": "tool_use", "id": "t1"},
				{"type": "text", "text": " there"},
			},
			"stop_reason": "end_turn",
		})
	}))
	defer ts.Close()

	text, err := newAdapter(t, ts.URL+"/v1/messages").Chat(context.Background(), &llm.Request{Prompt: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
}

func TestChat_NoTextContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"content": []}`)
	}))
	defer ts.Close()

	_, err := newAdapter(t, ts.URL).Chat(context.Background(), &llm.Request{Prompt: "Hi"})
	assert.ErrorIs(t, err, llm.ErrMalformedResponse)
}

func TestStream_ContentBlockDeltas(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])
		assert.Equal(t, float64(2000), body["max_tokens"])

		flusher := w.(http.Flusher)
		for _, part := range []string{
			"event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_1\"}}\n\n",
			"event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0}\n\n",
			"event: ping\ndata: {\"type\": \"ping\"}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Bon\"}}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_del",
			"ta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"jour\"}}\n\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		} {
			_, _ = io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	defer ts.Close()

	ch, err := newAdapter(t, ts.URL).Stream(context.Background(), &llm.Request{Prompt: "Hi", MaxTokens: 2000})
	require.NoError(t, err)

	var text string
	for res := range ch {
		require.NoError(t, res.Err)
		text += res.Delta
	}
	assert.Equal(t, "Bonjour", text)
}

func TestStream_ErrorEvent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi\"}}\n\n")
		_, _ = io.WriteString(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
		_, _ = io.WriteString(w, "data: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"never\"}}\n\n")
	}))
	defer ts.Close()

	ch, err := newAdapter(t, ts.URL).Stream(context.Background(), &llm.Request{Prompt: "Hi"})
	require.NoError(t, err)

	var results []llm.StreamResult
	for res := range ch {
		results = append(results, res)
	}
	require.Len(t, results, 2)
	assert.Equal(t, "Hi", results[0].Delta)
	require.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, llm.ErrProviderError)
	assert.Contains(t, results[1].Err.Error(), "overloaded_error: Overloaded")
}
