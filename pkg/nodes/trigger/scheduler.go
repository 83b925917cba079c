package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomery/loom/pkg/models"
	"github.com/robfig/cron/v3"
)

// SchedulerTriggerNode seeds scheduled runs. The cron expression is
// validated at construction; firing the schedule is the scheduler daemon's
// job, the node only forwards the tick payload.
type SchedulerTriggerNode struct {
	id       string
	cronExpr string
}

func NewSchedulerTriggerNode(id string, config map[string]any) (*SchedulerTriggerNode, error) {
	cronExpr, ok := config["cron"].(string)
	if !ok || cronExpr == "" {
		return nil, errors.New("missing required field 'cron'")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	_, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression '%s': %w", cronExpr, err)
	}

	return &SchedulerTriggerNode{id: id, cronExpr: cronExpr}, nil
}

func (n *SchedulerTriggerNode) ID() string {
	return n.id
}

func (n *SchedulerTriggerNode) Type() string {
	return models.NodeTypeTriggerScheduler
}

func (n *SchedulerTriggerNode) Execute(_ context.Context, ectx models.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	data := map[string]any{
		"cron":     n.cronExpr,
		"fired_at": time.Now().UTC().Format(time.RFC3339),
	}

	for key, value := range ectx.TriggerData {
		data[key] = value
	}

	return map[string]models.NodeResult{
		OutputPortMain: {
			NodeID:    n.id,
			Data:      data,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func (n *SchedulerTriggerNode) InputPorts() []models.InputPort {
	return nil
}

func (n *SchedulerTriggerNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortMain),
				NodeID:      n.id,
				Name:        OutputPortMain,
				Description: "Schedule tick payload",
			},
		},
	}
}
