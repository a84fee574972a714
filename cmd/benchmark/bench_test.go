package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			_, _ = io.WriteString(w, "data: "+f+"\n\n")
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestChaosRequest_Tallies(t *testing.T) {
	content := `{"content":"x","done":false}`
	done := `{"done":true,"model":"general"}`

	tests := []struct {
		name   string
		frames []string
		keep   int
		want   [3]int64
	}{
		{"cut after first frame", []string{content, content, content, done}, 0, [3]int64{1, 0, 0}},
		{"reads to the end", []string{content, done}, 3, [3]int64{0, 1, 0}},
		{"error frame", []string{`{"error":"AI API request failed"}`}, 3, [3]int64{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := sseServer(t, tt.frames...)
			stats := &chaosStats{}

			chaosRequest(context.Background(), ts.Client(), ts.URL, []byte(`{"prompt":"x"}`), tt.keep, stats)

			assert.Equal(t, tt.want, [3]int64{stats.cut.Load(), stats.finished.Load(), stats.errored.Load()})
		})
	}
}

func TestWaitForRelay(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"OK"}`)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	require.NoError(t, waitForRelay(context.Background(), healthy.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	assert.Error(t, waitForRelay(ctx, unhealthy.URL))
}
