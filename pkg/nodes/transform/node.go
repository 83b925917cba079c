// Package transform provides data transformation node implementation for workflow graph execution.
package transform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/template"
)

const (
	OutputPortSuccess = "success"
	OutputPortError   = "error"
	InputPortMain     = "main"
)

// TransformNode reshapes upstream data through a template expression.
type TransformNode struct {
	id         string
	expression string
}

// NewTransformNode creates a new data transformation node.
func NewTransformNode(id string, config map[string]any) (*TransformNode, error) {
	expression, ok := config["expression"].(string)
	if !ok {
		return nil, errors.New("missing required field 'expression'")
	}

	return &TransformNode{
		id:         id,
		expression: expression,
	}, nil
}

func (n *TransformNode) ID() string {
	return n.id
}

func (n *TransformNode) Type() string {
	return "transform"
}

// Execute renders the expression against the execution context and emits the
// result on the success port.
func (n *TransformNode) Execute(_ context.Context, ectx models.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	result, err := template.RenderWithContext(n.expression, &ectx)
	if err != nil {
		return n.createErrorResult(fmt.Sprintf("transformation failed: %v", err)), nil
	}

	return map[string]models.NodeResult{
		OutputPortSuccess: {
			NodeID: n.id,
			Data: map[string]any{
				"result": result,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

// createErrorResult creates a NodeResult for the error output port.
func (n *TransformNode) createErrorResult(errorMessage string) map[string]models.NodeResult {
	return map[string]models.NodeResult{
		OutputPortError: {
			NodeID: n.id,
			Data: map[string]any{
				"error": errorMessage,
			},
			Status:    string(models.NodeStatusError),
			Timestamp: time.Now().UTC(),
			Error: &models.ErrorInfo{
				Message:  errorMessage,
				Code:     "transform_failed",
				Category: models.ErrorCategoryFatal,
			},
		},
	}
}

// InputPorts returns the input ports for the node.
func (n *TransformNode) InputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, InputPortMain),
				NodeID:      n.id,
				Name:        InputPortMain,
				Description: "Main input for triggering the transformation",
			},
			Required: true,
		},
	}
}

// OutputPorts returns the output ports for the node.
func (n *TransformNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortSuccess),
				NodeID:      n.id,
				Name:        OutputPortSuccess,
				Description: "Transformed data result",
			},
		},
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortError),
				NodeID:      n.id,
				Name:        OutputPortError,
				Description: "Error information when transformation fails",
			},
		},
	}
}
