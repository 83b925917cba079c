package merge

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// MergeNodeFactory creates MergeNode instances.
type MergeNodeFactory struct{}

func NewMergeNodeFactory() protocol.NodeFactory {
	return &MergeNodeFactory{}
}

func (f *MergeNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewMergeNode(id, config)
}

func (f *MergeNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          "merge",
		Name:        "Merge",
		Version:     "1.0.0",
		Category:    models.CategoryTypeLogic,
		Description: "Joins multiple execution paths, combining their payloads",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input_ports": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Named input ports the upstream branches connect to",
				},
				"merge_mode": map[string]any{
					"type":    "string",
					"enum":    []string{MergeModeAll, MergeModeAny, MergeModeFirst},
					"default": MergeModeAll,
				},
				"strategy": map[string]any{
					"type":        "string",
					"enum":        []string{StrategyKeyed, StrategyDeep},
					"default":     StrategyKeyed,
					"description": "keyed namespaces payloads per port; deep folds them into one map",
				},
			},
			"required": []string{"input_ports"},
		},
		Inputs: []models.InputPort{
			{Port: models.Port{Name: "a"}},
			{Port: models.Port{Name: "b"}},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortMerged}},
		},
		Tags:          []string{"join", "logic"},
		SupportsAsync: true,
	}
}
