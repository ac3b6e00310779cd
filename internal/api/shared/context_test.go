package shared_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetflow/meetflow-api/internal/api/shared"
)

func TestSetTraceID(t *testing.T) {
	t.Parallel()

	ctx := shared.SetTraceID(context.Background())
	traceID := shared.GetTraceID(ctx)

	require.NotEmpty(t, traceID)
	assert.Len(t, traceID, shared.TraceIDLength*2) // hex encoded

	// Each call produces a distinct ID.
	other := shared.GetTraceID(shared.SetTraceID(context.Background()))
	assert.NotEqual(t, traceID, other)
}

func TestGetTraceID_Missing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", shared.GetTraceID(context.Background()))
}
