// Package conditional provides the two-way conditional branching node.
package conditional

import (
	"context"
	"fmt"
	"time"

	"github.com/loomery/loom/pkg/models"
)

const (
	OutputPortTrue  = "true"
	OutputPortFalse = "false"
	InputPortMain   = "main"
)

// ConditionalNode evaluates a single compiled condition and emits exactly
// one of its true/false output ports.
type ConditionalNode struct {
	id        string
	condition *models.Condition
}

// NewConditionalNode creates a new conditional node, compiling the condition once.
func NewConditionalNode(id string, config map[string]any) (*ConditionalNode, error) {
	condition, err := models.CompileCondition(config)
	if err != nil {
		return nil, fmt.Errorf("conditional node: %w", err)
	}

	return &ConditionalNode{id: id, condition: condition}, nil
}

func (n *ConditionalNode) ID() string {
	return n.id
}

func (n *ConditionalNode) Type() string {
	return "conditional"
}

func (n *ConditionalNode) Execute(_ context.Context, ectx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	data := ectx.TriggerData

	if input, ok := inputs[InputPortMain]; ok && input.Data != nil {
		data = input.Data
	}

	matched, err := n.condition.Evaluate(data)
	if err != nil {
		return nil, fmt.Errorf("condition on field %q: %w", n.condition.Field, err)
	}

	port := OutputPortFalse
	if matched {
		port = OutputPortTrue
	}

	return map[string]models.NodeResult{
		port: {
			NodeID: n.id,
			Data: map[string]any{
				"matched": matched,
				"field":   n.condition.Field,
				"input":   data,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func (n *ConditionalNode) InputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, InputPortMain),
				NodeID:      n.id,
				Name:        InputPortMain,
				Description: "Data the condition is evaluated against",
			},
			Required: true,
		},
	}
}

func (n *ConditionalNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortTrue),
				NodeID:      n.id,
				Name:        OutputPortTrue,
				Description: "Taken when the condition holds",
			},
		},
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortFalse),
				NodeID:      n.id,
				Name:        OutputPortFalse,
				Description: "Taken when the condition does not hold",
			},
		},
	}
}
