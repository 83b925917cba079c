package wait

import (
	"context"
	"testing"
	"time"

	"github.com/loomery/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitNode_ShortWaitCompletesInline(t *testing.T) {
	node, err := NewWaitNode("pause", map[string]any{"seconds": 0.01})
	require.NoError(t, err)

	outputs, err := node.Execute(context.Background(), models.ExecutionContext{}, map[string]models.NodeResult{
		"main": {Data: map[string]any{"order": "123"}},
	})
	require.NoError(t, err)

	result, ok := outputs[OutputPortMain]
	require.True(t, ok)
	assert.Equal(t, string(models.NodeStatusSuccess), result.Status)
	assert.Equal(t, "123", result.Data["order"], "payload is forwarded unchanged")
	assert.NotContains(t, result.Metadata, MetadataSuspendUntil)
}

func TestWaitNode_LongWaitSuspends(t *testing.T) {
	node, err := NewWaitNode("pause", map[string]any{"seconds": float64(3600)})
	require.NoError(t, err)

	ectx := models.ExecutionContext{Mode: models.ExecutionModeWebhook}

	start := time.Now()
	outputs, err := node.Execute(context.Background(), ectx, nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "long waits must not block")

	result := outputs[OutputPortMain]
	assert.Equal(t, string(models.NodeStatusPending), result.Status)

	suspendUntil, ok := result.Metadata[MetadataSuspendUntil].(string)
	require.True(t, ok)

	resumeAt, err := time.Parse(time.RFC3339, suspendUntil)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resumeAt, time.Minute)
}

func TestWaitNode_ResumedContextPassesThrough(t *testing.T) {
	node, err := NewWaitNode("pause", map[string]any{"seconds": float64(3600)})
	require.NoError(t, err)

	ectx := models.ExecutionContext{
		Mode:     models.ExecutionModeWebhook,
		Metadata: map[string]any{MetadataResumed: true},
	}

	outputs, err := node.Execute(context.Background(), ectx, map[string]models.NodeResult{
		"main": {Data: map[string]any{"order": "123"}},
	})
	require.NoError(t, err)

	result := outputs[OutputPortMain]
	assert.Equal(t, string(models.NodeStatusSuccess), result.Status)
	assert.Equal(t, "123", result.Data["order"])
}

func TestWaitNode_InlineWaitHonorsCancellation(t *testing.T) {
	node, err := NewWaitNode("pause", map[string]any{"seconds": float64(2)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = node.Execute(ctx, models.ExecutionContext{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitNode_ConfigValidation(t *testing.T) {
	_, err := NewWaitNode("pause", map[string]any{})
	assert.Error(t, err, "seconds is required")

	_, err = NewWaitNode("pause", map[string]any{"seconds": float64(-1)})
	assert.Error(t, err)
}
