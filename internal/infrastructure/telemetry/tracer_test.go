package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())

	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.False(t, tp.IsEnabled())

	// A disabled provider still hands out usable tracers
	tracer := tp.Tracer("test")
	assert.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "noop")
	span.End()

	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProvider_ShutdownWithoutProvider(t *testing.T) {
	tp := &TracerProvider{logger: zap.NewNop()}
	assert.NoError(t, tp.Shutdown(context.Background()))
}
