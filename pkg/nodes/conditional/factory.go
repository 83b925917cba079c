package conditional

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// ConditionalNodeFactory creates ConditionalNode instances.
type ConditionalNodeFactory struct{}

func NewConditionalNodeFactory() protocol.NodeFactory {
	return &ConditionalNodeFactory{}
}

func (f *ConditionalNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionalNode(id, config)
}

func (f *ConditionalNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          "conditional",
		Name:        "Conditional",
		Version:     "1.0.0",
		Category:    models.CategoryTypeLogic,
		Description: "Evaluates a single condition and routes to the true or false output port",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"field": map[string]any{
					"type":        "string",
					"description": "Dotted field path into the input data",
				},
				"operator": map[string]any{
					"type":    "string",
					"enum":    []string{"eq", "ne", "gt", "gte", "lt", "lte", "in", "contains", "exists"},
					"default": "eq",
				},
				"value": map[string]any{
					"description": "Literal the field is compared against",
				},
			},
			"required": []string{"field"},
		},
		Inputs: []models.InputPort{
			{Port: models.Port{Name: InputPortMain}, Required: true},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortTrue}},
			{Port: models.Port{Name: OutputPortFalse}},
		},
		Tags:          []string{"branching", "logic"},
		SupportsAsync: true,
	}
}
