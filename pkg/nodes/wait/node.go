// Package wait provides the explicit-delay node with suspend/resume semantics.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomery/loom/pkg/models"
)

const (
	OutputPortMain = "main"
	InputPortMain  = "main"

	// MetadataSuspendUntil is the well-known result metadata key the engine
	// inspects to park a run instead of blocking a worker on a long delay.
	MetadataSuspendUntil = "suspend_until"

	// MetadataResumed marks a context replayed after a suspension; the wait
	// node passes straight through when it is set.
	MetadataResumed = "resumed"

	// InlineWaitThreshold is the longest delay served by sleeping inline.
	// Anything longer asks the dispatcher to re-enqueue the job.
	InlineWaitThreshold = 5 * time.Second
)

// WaitNode delays the branch for a configured duration. Short waits sleep
// inline; long waits in asynchronous runs suspend the job and resume via
// re-enqueueing, so no worker sits idle.
type WaitNode struct {
	id       string
	duration time.Duration
}

// NewWaitNode creates a new wait node.
func NewWaitNode(id string, config map[string]any) (*WaitNode, error) {
	seconds, ok := config["seconds"].(float64)
	if !ok {
		return nil, errors.New("missing required field 'seconds'")
	}

	if seconds < 0 {
		return nil, fmt.Errorf("'seconds' must be non-negative, got %v", seconds)
	}

	return &WaitNode{
		id:       id,
		duration: time.Duration(seconds * float64(time.Second)),
	}, nil
}

func (n *WaitNode) ID() string {
	return n.id
}

func (n *WaitNode) Type() string {
	return "wait"
}

func (n *WaitNode) Execute(ctx context.Context, ectx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	if resumed, ok := ectx.Metadata[MetadataResumed].(bool); ok && resumed {
		return n.passThrough(inputs), nil
	}

	inline := n.duration <= InlineWaitThreshold ||
		ectx.Mode == models.ExecutionModeManual

	if inline {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.duration):
		}

		return n.passThrough(inputs), nil
	}

	resumeAt := time.Now().UTC().Add(n.duration)

	return map[string]models.NodeResult{
		OutputPortMain: {
			NodeID: n.id,
			Data: map[string]any{
				"waiting":   true,
				"resume_at": resumeAt.Format(time.RFC3339),
			},
			Status:    string(models.NodeStatusPending),
			Timestamp: time.Now().UTC(),
			Metadata: map[string]any{
				MetadataSuspendUntil: resumeAt.Format(time.RFC3339),
			},
		},
	}, nil
}

// passThrough forwards the main input payload unchanged.
func (n *WaitNode) passThrough(inputs map[string]models.NodeResult) map[string]models.NodeResult {
	data := map[string]any{"waited": n.duration.Seconds()}

	if input, ok := inputs[InputPortMain]; ok && input.Data != nil {
		data = input.Data
	}

	return map[string]models.NodeResult{
		OutputPortMain: {
			NodeID:    n.id,
			Data:      data,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}
}

func (n *WaitNode) InputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, InputPortMain),
				NodeID:      n.id,
				Name:        InputPortMain,
				Description: "Payload forwarded once the delay elapses",
			},
			Required: true,
		},
	}
}

func (n *WaitNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortMain),
				NodeID:      n.id,
				Name:        OutputPortMain,
				Description: "The forwarded payload",
			},
		},
	}
}
