package trigger

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// ManualTriggerNodeFactory creates ManualTriggerNode instances.
type ManualTriggerNodeFactory struct{}

func NewManualTriggerNodeFactory() protocol.NodeFactory {
	return &ManualTriggerNodeFactory{}
}

func (f *ManualTriggerNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewManualTriggerNode(id, config)
}

func (f *ManualTriggerNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          models.NodeTypeTriggerManual,
		Name:        "Manual Trigger",
		Version:     "1.0.0",
		Category:    models.CategoryTypeTrigger,
		Description: "Starts the workflow from a manual test run or an API call",
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortMain, Description: "Caller-supplied payload"}},
		},
		Tags:          []string{"manual", "api"},
		SupportsAsync: true,
	}
}
