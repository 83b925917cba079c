package trigger

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// SchedulerTriggerNodeFactory creates SchedulerTriggerNode instances.
type SchedulerTriggerNodeFactory struct{}

func NewSchedulerTriggerNodeFactory() protocol.NodeFactory {
	return &SchedulerTriggerNodeFactory{}
}

func (f *SchedulerTriggerNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewSchedulerTriggerNode(id, config)
}

func (f *SchedulerTriggerNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          models.NodeTypeTriggerScheduler,
		Name:        "Schedule Trigger",
		Version:     "1.0.0",
		Category:    models.CategoryTypeTrigger,
		Description: "Starts the workflow on a cron schedule",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"cron": map[string]any{
					"type":        "string",
					"description": "Standard five-field cron expression",
					"examples":    []string{"*/5 * * * *", "0 9 * * 1-5"},
				},
			},
			"required": []string{"cron"},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortMain, Description: "Schedule tick payload"}},
		},
		Tags:          []string{"schedule"},
		SupportsAsync: true,
	}
}
