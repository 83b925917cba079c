package graph

import (
	"context"
	"log/slog"
	"testing"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver() *Resolver {
	reg := registry.NewRegistry(slog.Default())
	registry.RegisterDefaultNodes(reg)

	return NewResolver(reg, slog.Default())
}

func triggerNode(id string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:       id,
		Type:     models.NodeTypeTriggerManual,
		Category: models.CategoryTypeTrigger,
		Enabled:  true,
	}
}

func transformNode(id string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:       id,
		Type:     "transform",
		Category: models.CategoryTypeTransformer,
		Config:   map[string]any{"expression": "{{.trigger_data}}"},
		Enabled:  true,
	}
}

func connect(id, sourcePort, targetPort string) *models.Connection {
	return &models.Connection{ID: id, SourcePort: sourcePort, TargetPort: targetPort}
}

func TestResolver_LinearChain(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-1",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("first"),
			transformNode("second"),
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "first:main"),
			connect("c2", "first:success", "second:main"),
		},
	}

	plan, err := resolver.Resolve(context.Background(), workflow)
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "first", "second"}, plan.Order)
	assert.Equal(t, []string{"start"}, plan.Triggers)
	assert.Equal(t, []string{"second"}, plan.Terminal)
	require.Len(t, plan.Nodes, 3)

	require.Len(t, plan.Outgoing["first"]["success"], 1)
	assert.Equal(t, "second", plan.Outgoing["first"]["success"][0].TargetNode())
}

func TestResolver_DeclarationOrderBreaksTies(t *testing.T) {
	resolver := newTestResolver()

	// Fan-out: both branches become ready at the same time. Declaration
	// order decides, not node id order.
	workflow := &models.Workflow{
		ID: "wf-fanout",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("zeta"),
			transformNode("alpha"),
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "zeta:main"),
			connect("c2", "start:main", "alpha:main"),
		},
	}

	plan, err := resolver.Resolve(context.Background(), workflow)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "zeta", "alpha"}, plan.Order)

	// Resolution is deterministic across repeated runs.
	for range 10 {
		again, err := resolver.Resolve(context.Background(), workflow)
		require.NoError(t, err)
		assert.Equal(t, plan.Order, again.Order)
	}
}

func TestResolver_CycleReportsAllMembers(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-cycle",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("a"),
			transformNode("b"),
			transformNode("c"),
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "a:main"),
			connect("c2", "a:success", "b:main"),
			connect("c3", "b:success", "c:main"),
			connect("c4", "c:success", "a:main"),
		},
	}

	_, err := resolver.Resolve(context.Background(), workflow)
	require.Error(t, err)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	require.Len(t, problems, 1)
	assert.Equal(t, CodeCycle, problems[0].Code)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, problems[0].NodeIDs,
		"every node on the cycle is reported, not just the first edge found")
}

func TestResolver_SelfLoopIsACycle(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-selfloop",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("a"),
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "a:main"),
			connect("c2", "a:success", "a:main"),
		},
	}

	_, err := resolver.Resolve(context.Background(), workflow)
	require.Error(t, err)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Equal(t, CodeCycle, problems[0].Code)
	assert.Equal(t, []string{"a"}, problems[0].NodeIDs)
}

func TestResolver_RejectsAmbiguousFanIn(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-fanin",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("a"),
			transformNode("b"),
			transformNode("sink"),
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "a:main"),
			connect("c2", "start:main", "b:main"),
			connect("c3", "a:success", "sink:main"),
			connect("c4", "b:success", "sink:other"),
		},
	}

	_, err := resolver.Resolve(context.Background(), workflow)
	require.Error(t, err)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	require.Len(t, problems, 1)
	assert.Equal(t, CodeAmbiguousInput, problems[0].Code)
	assert.Equal(t, []string{"sink"}, problems[0].NodeIDs)
}

func TestResolver_MergeNodeAcceptsFanIn(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-merge",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("a"),
			transformNode("b"),
			{
				ID:       "join",
				Type:     "merge",
				Category: models.CategoryTypeLogic,
				Config:   map[string]any{"input_ports": []any{"left", "right"}},
				Enabled:  true,
			},
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "a:main"),
			connect("c2", "start:main", "b:main"),
			connect("c3", "a:success", "join:left"),
			connect("c4", "b:success", "join:right"),
		},
	}

	plan, err := resolver.Resolve(context.Background(), workflow)
	require.NoError(t, err)
	assert.Equal(t, "join", plan.Order[len(plan.Order)-1])
	assert.Len(t, plan.Incoming["join"], 2)
}

func TestResolver_SamePortFedTwiceIsAmbiguousEvenForMerge(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-doublefeed",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("a"),
			transformNode("b"),
			{
				ID:       "join",
				Type:     "merge",
				Category: models.CategoryTypeLogic,
				Config:   map[string]any{"input_ports": []any{"left"}},
				Enabled:  true,
			},
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "a:main"),
			connect("c2", "start:main", "b:main"),
			connect("c3", "a:success", "join:left"),
			connect("c4", "b:success", "join:left"),
		},
	}

	_, err := resolver.Resolve(context.Background(), workflow)
	require.Error(t, err)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Equal(t, CodeAmbiguousInput, problems[0].Code)
}

func TestResolver_CollectsAllStructuralProblems(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-broken",
		Nodes: []*models.WorkflowNode{
			{ID: "ghost-type", Type: "no-such-type", Enabled: true},
			{ID: "bad-config", Type: "transform", Enabled: true, Config: map[string]any{}},
		},
		Connections: []*models.Connection{
			connect("c1", "ghost-node:main", "bad-config:main"),
		},
	}

	_, err := resolver.Resolve(context.Background(), workflow)
	require.Error(t, err)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)

	codes := make(map[string]bool)
	for _, problem := range problems {
		codes[problem.Code] = true
	}

	assert.True(t, codes[CodeUnknownNodeType])
	assert.True(t, codes[CodeInvalidConfig])
	assert.True(t, codes[CodeDanglingRef])
	assert.True(t, codes[CodeNoTrigger])
}

func TestResolver_DuplicateNodeID(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID: "wf-dup",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			transformNode("a"),
			transformNode("a"),
		},
	}

	_, err := resolver.Resolve(context.Background(), workflow)
	require.Error(t, err)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Equal(t, CodeDuplicateNode, problems[0].Code)
}

func TestResolver_DisabledNodesAreExcluded(t *testing.T) {
	resolver := newTestResolver()

	disabled := transformNode("middle")
	disabled.Enabled = false

	workflow := &models.Workflow{
		ID: "wf-disabled",
		Nodes: []*models.WorkflowNode{
			triggerNode("start"),
			disabled,
			transformNode("end"),
		},
		Connections: []*models.Connection{
			connect("c1", "start:main", "middle:main"),
			connect("c2", "middle:success", "end:main"),
		},
	}

	plan, err := resolver.Resolve(context.Background(), workflow)
	require.NoError(t, err)

	assert.NotContains(t, plan.Order, "middle")
	assert.Empty(t, plan.Incoming["end"], "connections through disabled nodes are dropped")
}

func TestResolver_NoTriggerFails(t *testing.T) {
	resolver := newTestResolver()

	workflow := &models.Workflow{
		ID:    "wf-notrigger",
		Nodes: []*models.WorkflowNode{transformNode("a")},
	}

	_, err := resolver.Resolve(context.Background(), workflow)
	require.Error(t, err)

	var problems ValidationErrors
	require.ErrorAs(t, err, &problems)
	assert.Equal(t, CodeNoTrigger, problems[0].Code)
}
