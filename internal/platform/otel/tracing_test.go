package otel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestInitTracer_ExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer

	shutdown, err := InitTracer("chat-relay-test", "v1.2.3", zap.NewNop(), &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "relay.stream")
	span.End()

	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"Name": "relay.stream"`)
	assert.Contains(t, out, "chat-relay-test")
	assert.Contains(t, out, "v1.2.3")
}
