package log

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// LogNodeFactory creates LogNode instances.
type LogNodeFactory struct{}

func NewLogNodeFactory() protocol.NodeFactory {
	return &LogNodeFactory{}
}

func (f *LogNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLogNode(id, config)
}

func (f *LogNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          "log",
		Name:        "Log",
		Version:     "1.0.0",
		Category:    models.CategoryTypeAction,
		Description: "Emits a templated message into the run's structured log",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "Message template",
					"examples":    []string{"Processing order {{.trigger_data.body.order_id}}"},
				},
				"level": map[string]any{
					"type":    "string",
					"enum":    []string{"debug", "info", "warn", "error"},
					"default": "info",
				},
			},
			"required": []string{"message"},
		},
		Inputs: []models.InputPort{
			{Port: models.Port{Name: InputPortMain}, Required: true},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortSuccess}},
		},
		Tags:          []string{"debug", "observability"},
		SupportsAsync: true,
	}
}
