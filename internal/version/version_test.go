package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestIsOutdated(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
	}{
		{"v1.0.0", "v1.0.1", true},
		{"1.2.0", "v1.10.0", true},
		{"v1.10.0", "v1.9.9", false},
		{"v2.0.0", "v2.0.0", false},
		{"v1.0.0-beta", "v1.0.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.current+"->"+tt.latest, func(t *testing.T) {
			got, err := IsOutdated(tt.current, tt.latest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := IsOutdated("latest", "v1.0.0")
	assert.Error(t, err)
}

func newTestChecker(t *testing.T, current string, handler http.HandlerFunc) (*Checker, *observer.ObservedLogs) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	core, logs := observer.New(zap.DebugLevel)
	c := NewChecker(current, zap.New(core))
	c.apiURL = srv.URL
	return c, logs
}

func TestChecker_WarnsWhenOutdated(t *testing.T) {
	c, logs := newTestChecker(t, "v0.1.0", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/nulzo/chat-relay/releases/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"tag_name":"v0.2.0"}`))
	})

	c.Check(context.Background(), "nulzo/chat-relay")

	warnings := logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "v0.2.0", warnings[0].ContextMap()["latest"])
}

func TestChecker_QuietWhenCurrentOrUnreachable(t *testing.T) {
	c, logs := newTestChecker(t, "v0.2.0", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v0.2.0"}`))
	})
	c.Check(context.Background(), "nulzo/chat-relay")
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())

	c, logs = newTestChecker(t, "v0.1.0", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c.Check(context.Background(), "nulzo/chat-relay")
	assert.Zero(t, logs.FilterLevelExact(zap.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.DebugLevel).Len())
}
