package switchnode

import (
	"context"
	"testing"
	"time"

	"github.com/loomery/loom/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTieredSwitch(t *testing.T) *SwitchNode {
	t.Helper()

	node, err := NewSwitchNode("route", map[string]any{
		"cases": []any{
			map[string]any{"field": "tier", "operator": "eq", "value": "gold", "output_port": "vip"},
			map[string]any{"field": "amount", "operator": "gt", "value": float64(100), "output_port": "large"},
		},
	})
	require.NoError(t, err)

	return node
}

func TestSwitchNode_FirstMatchWins(t *testing.T) {
	node := newTieredSwitch(t)

	// Both cases would match; only the first declared one fires.
	outputs, err := node.Execute(context.Background(), models.ExecutionContext{}, map[string]models.NodeResult{
		"main": {Data: map[string]any{"tier": "gold", "amount": float64(500)}},
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	result, ok := outputs["vip"]
	require.True(t, ok)
	assert.Equal(t, "route", result.NodeID)
	assert.Equal(t, "tier", result.Data["matched_field"])
}

func TestSwitchNode_SecondCase(t *testing.T) {
	node := newTieredSwitch(t)

	outputs, err := node.Execute(context.Background(), models.ExecutionContext{}, map[string]models.NodeResult{
		"main": {Data: map[string]any{"tier": "silver", "amount": float64(150)}},
	})
	require.NoError(t, err)

	_, ok := outputs["large"]
	assert.True(t, ok)
	assert.NotContains(t, outputs, "vip")
}

func TestSwitchNode_DefaultWhenNoMatch(t *testing.T) {
	node := newTieredSwitch(t)

	outputs, err := node.Execute(context.Background(), models.ExecutionContext{}, map[string]models.NodeResult{
		"main": {Data: map[string]any{"tier": "bronze", "amount": float64(5)}},
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	result, ok := outputs[OutputPortDefault]
	require.True(t, ok)
	assert.Equal(t, true, result.Data["no_match"])
}

func TestSwitchNode_FallsBackToTriggerData(t *testing.T) {
	node := newTieredSwitch(t)

	ectx := models.ExecutionContext{
		TriggerData: map[string]any{"tier": "gold"},
	}

	outputs, err := node.Execute(context.Background(), ectx, nil)
	require.NoError(t, err)
	assert.Contains(t, outputs, "vip")
}

func TestSwitchNode_ConfigValidation(t *testing.T) {
	_, err := NewSwitchNode("route", map[string]any{})
	assert.Error(t, err, "cases are required")

	_, err = NewSwitchNode("route", map[string]any{
		"cases": []any{
			map[string]any{"field": "tier", "operator": "eq", "value": "gold"},
		},
	})
	assert.Error(t, err, "each case needs an output_port")

	_, err = NewSwitchNode("route", map[string]any{
		"cases": []any{
			map[string]any{"field": "tier", "operator": "resembles", "value": "gold", "output_port": "x"},
		},
	})
	assert.ErrorIs(t, err, models.ErrUnknownOperator)
}

func TestSwitchNode_OutputPortsIncludeDefault(t *testing.T) {
	node := newTieredSwitch(t)

	ports := node.OutputPorts()
	require.Len(t, ports, 3)
	assert.Equal(t, OutputPortDefault, ports[len(ports)-1].Name)

	for _, port := range ports {
		assert.Equal(t, models.MakePortID("route", port.Name), port.ID)
	}
}

func TestSwitchNode_ResultTimestampSet(t *testing.T) {
	node := newTieredSwitch(t)

	outputs, err := node.Execute(context.Background(), models.ExecutionContext{}, map[string]models.NodeResult{
		"main": {Data: map[string]any{"tier": "gold"}},
	})
	require.NoError(t, err)

	for _, result := range outputs {
		assert.WithinDuration(t, time.Now().UTC(), result.Timestamp, time.Minute)
	}
}
