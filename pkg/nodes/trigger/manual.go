package trigger

import (
	"context"
	"time"

	"github.com/loomery/loom/pkg/models"
)

// ManualTriggerNode seeds manual and API-started runs with the caller's payload.
type ManualTriggerNode struct {
	id string
}

func NewManualTriggerNode(id string, _ map[string]any) (*ManualTriggerNode, error) {
	return &ManualTriggerNode{id: id}, nil
}

func (n *ManualTriggerNode) ID() string {
	return n.id
}

func (n *ManualTriggerNode) Type() string {
	return models.NodeTypeTriggerManual
}

func (n *ManualTriggerNode) Execute(_ context.Context, ectx models.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	return map[string]models.NodeResult{
		OutputPortMain: {
			NodeID:    n.id,
			Data:      ectx.TriggerData,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func (n *ManualTriggerNode) InputPorts() []models.InputPort {
	return nil
}

func (n *ManualTriggerNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortMain),
				NodeID:      n.id,
				Name:        OutputPortMain,
				Description: "Caller-supplied payload",
			},
		},
	}
}
