package transform

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// TransformNodeFactory creates TransformNode instances.
type TransformNodeFactory struct{}

func NewTransformNodeFactory() protocol.NodeFactory {
	return &TransformNodeFactory{}
}

func (f *TransformNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewTransformNode(id, config)
}

func (f *TransformNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          "transform",
		Name:        "Transform",
		Version:     "1.0.0",
		Category:    models.CategoryTypeTransformer,
		Description: "Reshapes data using a template expression evaluated against the execution context",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Template expression producing the transformed value",
					"examples": []string{
						`{"id": "{{.trigger_data.body.id}}", "status": "processed"}`,
						`{{.node_results.api_call.json.items}}`,
					},
				},
			},
			"required": []string{"expression"},
		},
		Inputs: []models.InputPort{
			{Port: models.Port{Name: InputPortMain}, Required: true},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortSuccess}},
			{Port: models.Port{Name: OutputPortError}},
		},
		Tags:          []string{"data"},
		SupportsAsync: true,
	}
}
