package conditional

import (
	"context"
	"testing"

	"github.com/loomery/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionalNode_TruePort(t *testing.T) {
	node, err := NewConditionalNode("check", map[string]any{
		"field":    "status",
		"operator": "eq",
		"value":    "active",
	})
	require.NoError(t, err)

	outputs, err := node.Execute(context.Background(), models.ExecutionContext{}, map[string]models.NodeResult{
		"main": {Data: map[string]any{"status": "active"}},
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	result, ok := outputs[OutputPortTrue]
	require.True(t, ok)
	assert.Equal(t, true, result.Data["matched"])
}

func TestConditionalNode_FalsePort(t *testing.T) {
	node, err := NewConditionalNode("check", map[string]any{
		"field":    "count",
		"operator": "gte",
		"value":    float64(10),
	})
	require.NoError(t, err)

	outputs, err := node.Execute(context.Background(), models.ExecutionContext{}, map[string]models.NodeResult{
		"main": {Data: map[string]any{"count": float64(3)}},
	})
	require.NoError(t, err)

	_, ok := outputs[OutputPortFalse]
	assert.True(t, ok)
	assert.NotContains(t, outputs, OutputPortTrue)
}

func TestConditionalNode_NestedFieldFromTriggerData(t *testing.T) {
	node, err := NewConditionalNode("check", map[string]any{
		"field": "user.role",
		"value": "admin",
	})
	require.NoError(t, err)

	ectx := models.ExecutionContext{
		TriggerData: map[string]any{
			"user": map[string]any{"role": "admin"},
		},
	}

	outputs, err := node.Execute(context.Background(), ectx, nil)
	require.NoError(t, err)
	assert.Contains(t, outputs, OutputPortTrue)
}

func TestConditionalNode_MissingFieldConfig(t *testing.T) {
	_, err := NewConditionalNode("check", map[string]any{"operator": "eq"})
	assert.ErrorIs(t, err, models.ErrMissingField)
}

func TestConditionalNode_Ports(t *testing.T) {
	node, err := NewConditionalNode("check", map[string]any{"field": "x", "value": 1})
	require.NoError(t, err)

	inputs := node.InputPorts()
	require.Len(t, inputs, 1)
	assert.True(t, inputs[0].Required)

	outputs := node.OutputPorts()
	require.Len(t, outputs, 2)
	assert.Equal(t, OutputPortTrue, outputs[0].Name)
	assert.Equal(t, OutputPortFalse, outputs[1].Name)
}
