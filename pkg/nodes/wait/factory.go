package wait

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// WaitNodeFactory creates WaitNode instances.
type WaitNodeFactory struct{}

func NewWaitNodeFactory() protocol.NodeFactory {
	return &WaitNodeFactory{}
}

func (f *WaitNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewWaitNode(id, config)
}

func (f *WaitNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          "wait",
		Name:        "Wait",
		Version:     "1.0.0",
		Category:    models.CategoryTypeLogic,
		Description: "Delays the branch for a fixed number of seconds, suspending long waits instead of blocking a worker",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"seconds": map[string]any{
					"type":        "number",
					"minimum":     0,
					"description": "How long to wait before forwarding the payload",
				},
			},
			"required": []string{"seconds"},
		},
		Inputs: []models.InputPort{
			{Port: models.Port{Name: InputPortMain}, Required: true},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortMain}},
		},
		Tags:          []string{"timing"},
		SupportsAsync: true,
	}
}
