// Package merge provides merge node implementation for joining multiple execution paths.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"dario.cat/mergo"
	"github.com/loomery/loom/pkg/models"
)

const (
	OutputPortMerged = "merged"

	MergeModeAll   = "all"
	MergeModeAny   = "any"
	MergeModeFirst = "first"

	StrategyDeep  = "deep"
	StrategyKeyed = "keyed"
)

// MergeNode joins multiple execution paths. It is the one node type allowed
// to receive several connections into its input ports: the resolver rejects
// ambiguous multi-input wiring everywhere else.
type MergeNode struct {
	id         string
	inputPorts []string
	mergeMode  string
	strategy   string
}

// NewMergeNode creates a new merge node.
func NewMergeNode(id string, config map[string]any) (*MergeNode, error) {
	inputPortsAny, ok := config["input_ports"].([]any)
	if !ok || len(inputPortsAny) == 0 {
		return nil, errors.New("missing required field 'input_ports'")
	}

	inputPorts := make([]string, len(inputPortsAny))

	for i, port := range inputPortsAny {
		portStr, ok := port.(string)
		if !ok {
			return nil, fmt.Errorf("input_port %d must be a string", i)
		}

		inputPorts[i] = portStr
	}

	mergeMode := MergeModeAll
	if mode, ok := config["merge_mode"].(string); ok {
		mergeMode = mode
	}

	switch mergeMode {
	case MergeModeAll, MergeModeAny, MergeModeFirst:
	default:
		return nil, fmt.Errorf("unknown merge mode: %s", mergeMode)
	}

	strategy := StrategyKeyed
	if s, ok := config["strategy"].(string); ok {
		strategy = s
	}

	switch strategy {
	case StrategyDeep, StrategyKeyed:
	default:
		return nil, fmt.Errorf("unknown merge strategy: %s", strategy)
	}

	return &MergeNode{
		id:         id,
		inputPorts: inputPorts,
		mergeMode:  mergeMode,
		strategy:   strategy,
	}, nil
}

func (n *MergeNode) ID() string {
	return n.id
}

func (n *MergeNode) Type() string {
	return "merge"
}

// CollectsInputs marks the node as accepting multi-connection input wiring.
func (n *MergeNode) CollectsInputs() bool {
	return true
}

// Execute joins whatever inputs arrived. The engine only invokes the node
// once its wait condition holds, so "all" mode sees every required port.
func (n *MergeNode) Execute(_ context.Context, _ models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	received := make([]string, 0, len(inputs))
	for port := range inputs {
		received = append(received, port)
	}

	// Deterministic merge order regardless of map iteration.
	sort.Strings(received)

	if n.mergeMode == MergeModeFirst && len(received) > 1 {
		received = received[:1]
	}

	var (
		merged map[string]any
		err    error
	)

	switch n.strategy {
	case StrategyDeep:
		merged, err = n.deepMerge(received, inputs)
	default:
		merged = n.keyedMerge(received, inputs)
	}

	if err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}

	return map[string]models.NodeResult{
		OutputPortMerged: {
			NodeID: n.id,
			Data: map[string]any{
				"merged_inputs":   merged,
				"inputs_received": received,
				"merge_mode":      n.mergeMode,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

// keyedMerge namespaces each input payload under its port name, so no data
// is lost on key collisions.
func (n *MergeNode) keyedMerge(ports []string, inputs map[string]models.NodeResult) map[string]any {
	merged := make(map[string]any, len(ports))

	for _, port := range ports {
		merged[port] = inputs[port].Data
	}

	return merged
}

// deepMerge folds all payloads into one map; later ports (sorted order)
// override earlier ones on collisions.
func (n *MergeNode) deepMerge(ports []string, inputs map[string]models.NodeResult) (map[string]any, error) {
	merged := make(map[string]any)

	for _, port := range ports {
		data := inputs[port].Data
		if data == nil {
			continue
		}

		if err := mergo.Merge(&merged, data, mergo.WithOverride); err != nil {
			return nil, err
		}
	}

	return merged, nil
}

// WaitSatisfied reports whether the received input ports meet the node's
// merge mode. The engine consults this before invoking the node.
func (n *MergeNode) WaitSatisfied(received map[string]models.NodeResult) bool {
	switch n.mergeMode {
	case MergeModeAny, MergeModeFirst:
		return len(received) > 0
	default:
		for _, port := range n.inputPorts {
			if _, ok := received[port]; !ok {
				return false
			}
		}

		return true
	}
}

func (n *MergeNode) InputPorts() []models.InputPort {
	ports := make([]models.InputPort, 0, len(n.inputPorts))

	for _, name := range n.inputPorts {
		ports = append(ports, models.InputPort{
			Port: models.Port{
				ID:     models.MakePortID(n.id, name),
				NodeID: n.id,
				Name:   name,
			},
			Required: n.mergeMode == MergeModeAll,
		})
	}

	return ports
}

func (n *MergeNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortMerged),
				NodeID:      n.id,
				Name:        OutputPortMerged,
				Description: "Combined data from all received inputs",
			},
		},
	}
}
