package trigger

import (
	"context"
	"testing"

	"github.com/loomery/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookTriggerNode_PassesPayloadThrough(t *testing.T) {
	node, err := NewWebhookTriggerNode("hook", map[string]any{
		"path":          "/orders",
		"response_code": float64(202),
		"response_body": `{"accepted": true}`,
	})
	require.NoError(t, err)

	assert.Equal(t, 202, node.ResponseCode())
	assert.Equal(t, `{"accepted": true}`, node.ResponseBody())

	ectx := models.ExecutionContext{
		TriggerData: map[string]any{"body": map[string]any{"order_id": "o-1"}},
	}

	outputs, err := node.Execute(context.Background(), ectx, nil)
	require.NoError(t, err)

	result, ok := outputs[OutputPortMain]
	require.True(t, ok)
	assert.Equal(t, ectx.TriggerData, result.Data)
	assert.Empty(t, node.InputPorts(), "triggers have no inputs")
}

func TestWebhookTriggerNode_Defaults(t *testing.T) {
	node, err := NewWebhookTriggerNode("hook", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, 200, node.ResponseCode())
	assert.Empty(t, node.ResponseBody())
}

func TestSchedulerTriggerNode_ValidatesCronExpression(t *testing.T) {
	_, err := NewSchedulerTriggerNode("tick", map[string]any{"cron": "*/5 * * * *"})
	assert.NoError(t, err)

	_, err = NewSchedulerTriggerNode("tick", map[string]any{"cron": "not a schedule"})
	assert.Error(t, err)

	_, err = NewSchedulerTriggerNode("tick", map[string]any{})
	assert.Error(t, err)
}

func TestSchedulerTriggerNode_EmitsTickPayload(t *testing.T) {
	node, err := NewSchedulerTriggerNode("tick", map[string]any{"cron": "0 9 * * 1"})
	require.NoError(t, err)

	ectx := models.ExecutionContext{
		TriggerData: map[string]any{"run": "weekly"},
	}

	outputs, err := node.Execute(context.Background(), ectx, nil)
	require.NoError(t, err)

	result := outputs[OutputPortMain]
	assert.Equal(t, "0 9 * * 1", result.Data["cron"])
	assert.Equal(t, "weekly", result.Data["run"])
	assert.NotEmpty(t, result.Data["fired_at"])
}

func TestManualTriggerNode_PassesPayloadThrough(t *testing.T) {
	node, err := NewManualTriggerNode("start", nil)
	require.NoError(t, err)

	ectx := models.ExecutionContext{
		TriggerData: map[string]any{"requested_by": "ops"},
	}

	outputs, err := node.Execute(context.Background(), ectx, nil)
	require.NoError(t, err)
	assert.Equal(t, ectx.TriggerData, outputs[OutputPortMain].Data)
}

func TestTriggerDescriptorsCarryModeTags(t *testing.T) {
	cases := []struct {
		factoryID  string
		descriptor models.NodeDescriptor
		mode       models.ExecutionMode
	}{
		{"webhook", NewWebhookTriggerNodeFactory().Descriptor(), models.ExecutionModeWebhook},
		{"scheduler", NewSchedulerTriggerNodeFactory().Descriptor(), models.ExecutionModeSchedule},
		{"manual", NewManualTriggerNodeFactory().Descriptor(), models.ExecutionModeManual},
	}

	for _, tc := range cases {
		assert.True(t, tc.descriptor.HasTag(string(tc.mode)),
			"%s trigger must match mode %s", tc.factoryID, tc.mode)
		assert.Equal(t, models.CategoryTypeTrigger, tc.descriptor.Category)
	}

	manual := NewManualTriggerNodeFactory().Descriptor()
	assert.True(t, manual.HasTag(string(models.ExecutionModeAPI)), "manual triggers also serve API runs")
}
