package tracing

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	tr := New(config.TracingConfig{Enabled: false, SampleRate: 1})
	assert.Nil(t, tr)

	ctx, span := tr.Start(context.Background(), "search", "req-1")
	assert.Nil(t, span)
	_, child := StartChild(ctx, "rank")
	assert.Nil(t, child)

	assert.NotPanics(t, func() {
		span.SetAttr("k", 1)
		child.End()
		span.End()
	})
}

func TestSpanTree(t *testing.T) {
	tr := New(config.TracingConfig{Enabled: true, SampleRate: 1})
	require.NotNil(t, tr)

	ctx, root := tr.Start(context.Background(), "search", "req-1")
	require.NotNil(t, root)
	_, child := StartChild(ctx, "rank")
	require.NotNil(t, child)
	child.SetAttr("candidates", 3)
	child.End()
	root.End()

	assert.Equal(t, "req-1", child.TraceID)
	require.Len(t, root.Children, 1)
	assert.Equal(t, 3, root.Children[0].Attrs["candidates"])
	assert.GreaterOrEqual(t, root.Duration, child.Duration)
}
