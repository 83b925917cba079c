// Package switchnode provides switch node factory for registry integration.
package switchnode

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// SwitchNodeFactory creates SwitchNode instances.
type SwitchNodeFactory struct{}

func NewSwitchNodeFactory() protocol.NodeFactory {
	return &SwitchNodeFactory{}
}

func (f *SwitchNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewSwitchNode(id, config)
}

func (f *SwitchNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          "switch",
		Name:        "Switch",
		Version:     "1.0.0",
		Category:    models.CategoryTypeLogic,
		Description: "Multi-way branching node routing to the output port of the first matching case condition",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"cases": map[string]any{
					"type":        "array",
					"description": "Case conditions evaluated in order; the first match wins",
					"items": map[string]any{
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
							"output_port": map[string]any{
								"type":        "string",
								"description": "Output port emitted when this case matches",
							},
						},
						"required": []string{"field", "output_port"},
					},
					"examples": [][]map[string]any{
						{
							{"field": "status", "operator": "eq", "value": "open", "output_port": "true"},
							{"field": "status", "operator": "eq", "value": "closed", "output_port": "false"},
						},
					},
				},
			},
			"required": []string{"cases"},
		},
		Inputs: []models.InputPort{
			{Port: models.Port{Name: InputPortMain}, Required: true},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortDefault}},
		},
		Tags:          []string{"branching", "logic"},
		SupportsAsync: true,
	}
}
