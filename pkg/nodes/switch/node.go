// Package switchnode provides multi-way branching for workflow graph execution.
package switchnode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomery/loom/pkg/models"
)

const (
	OutputPortDefault = "default"
	InputPortMain     = "main"
)

// SwitchNode routes execution to the output port of the first matching case.
// Cases are compiled conditions, not a scripting language: each case names a
// field path, an operator and a literal. Only the matched port is emitted, so
// downstream nodes wired to other ports are simply not invoked in that run.
type SwitchNode struct {
	id    string
	cases []switchCase
}

type switchCase struct {
	condition  *models.Condition
	outputPort string
}

// NewSwitchNode creates a new switch node, compiling every case condition once.
func NewSwitchNode(id string, config map[string]any) (*SwitchNode, error) {
	casesConfig, ok := config["cases"].([]any)
	if !ok || len(casesConfig) == 0 {
		return nil, errors.New("missing required field 'cases'")
	}

	cases := make([]switchCase, 0, len(casesConfig))

	for i, caseAny := range casesConfig {
		caseMap, ok := caseAny.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("case %d must be an object", i)
		}

		outputPort, ok := caseMap["output_port"].(string)
		if !ok || outputPort == "" {
			return nil, fmt.Errorf("case %d missing 'output_port'", i)
		}

		condition, err := models.CompileCondition(caseMap)
		if err != nil {
			return nil, fmt.Errorf("case %d: %w", i, err)
		}

		cases = append(cases, switchCase{condition: condition, outputPort: outputPort})
	}

	return &SwitchNode{id: id, cases: cases}, nil
}

func (n *SwitchNode) ID() string {
	return n.id
}

func (n *SwitchNode) Type() string {
	return "switch"
}

// Execute evaluates cases in declaration order against the main input data
// and emits only the first matching output port.
func (n *SwitchNode) Execute(_ context.Context, ectx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	data := n.evaluationData(ectx, inputs)

	for _, c := range n.cases {
		matched, err := c.condition.Evaluate(data)
		if err != nil {
			return nil, fmt.Errorf("switch case on field %q: %w", c.condition.Field, err)
		}

		if matched {
			return map[string]models.NodeResult{
				c.outputPort: {
					NodeID: n.id,
					Data: map[string]any{
						"matched_field": c.condition.Field,
						"output_port":   c.outputPort,
						"input":         data,
					},
					Status:    string(models.NodeStatusSuccess),
					Timestamp: time.Now().UTC(),
				},
			}, nil
		}
	}

	return map[string]models.NodeResult{
		OutputPortDefault: {
			NodeID: n.id,
			Data: map[string]any{
				"output_port": OutputPortDefault,
				"no_match":    true,
				"input":       data,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

// evaluationData prefers the main input payload, falling back to trigger
// data so a switch wired directly after a trigger sees the trigger payload.
func (n *SwitchNode) evaluationData(ectx models.ExecutionContext, inputs map[string]models.NodeResult) map[string]any {
	if input, ok := inputs[InputPortMain]; ok && input.Data != nil {
		return input.Data
	}

	for _, input := range inputs {
		if input.Data != nil {
			return input.Data
		}
	}

	return ectx.TriggerData
}

func (n *SwitchNode) InputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, InputPortMain),
				NodeID:      n.id,
				Name:        InputPortMain,
				Description: "Data the case conditions are evaluated against",
			},
			Required: true,
		},
	}
}

// OutputPorts lists the configured case ports plus the default fallback.
func (n *SwitchNode) OutputPorts() []models.OutputPort {
	seen := map[string]bool{}
	ports := make([]models.OutputPort, 0, len(n.cases)+1)

	for _, c := range n.cases {
		if seen[c.outputPort] {
			continue
		}

		seen[c.outputPort] = true

		ports = append(ports, models.OutputPort{
			Port: models.Port{
				ID:     models.MakePortID(n.id, c.outputPort),
				NodeID: n.id,
				Name:   c.outputPort,
			},
		})
	}

	ports = append(ports, models.OutputPort{
		Port: models.Port{
			ID:          models.MakePortID(n.id, OutputPortDefault),
			NodeID:      n.id,
			Name:        OutputPortDefault,
			Description: "Taken when no case matches",
		},
	})

	return ports
}
