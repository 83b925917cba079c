// Package graph resolves a workflow's node and connection definitions into a
// validated, topologically ordered execution plan.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
	"github.com/loomery/loom/pkg/registry"
)

// Plan is the resolved form of a workflow: instantiated nodes, a total
// execution order and the wiring indexes the engine walks at run time.
type Plan struct {
	// Order is a topological order over the enabled nodes. Ties are broken
	// by declaration order, so resolution is deterministic for a given
	// workflow document.
	Order []string

	// Nodes holds the instantiated node for every id in Order.
	Nodes map[string]protocol.Node

	// Incoming indexes connections by target node id.
	Incoming map[string][]*models.Connection

	// Outgoing indexes connections by source node id, then source port name.
	Outgoing map[string]map[string][]*models.Connection

	// Triggers lists enabled trigger nodes in declaration order.
	Triggers []string

	// Terminal lists nodes with no outgoing connections. Their outputs form
	// the run's final output data.
	Terminal []string
}

// ValidationError describes one structural problem found during resolution.
type ValidationError struct {
	Code    string
	Message string
	NodeIDs []string
}

func (e *ValidationError) Error() string {
	if len(e.NodeIDs) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s (nodes: %s)", e.Code, e.Message, strings.Join(e.NodeIDs, ", "))
}

const (
	CodeDuplicateNode   = "duplicate_node"
	CodeUnknownNodeType = "unknown_node_type"
	CodeInvalidConfig   = "invalid_config"
	CodeDanglingRef     = "dangling_connection"
	CodeInvalidPort     = "invalid_port"
	CodeNoTrigger       = "no_trigger"
	CodeAmbiguousInput  = "ambiguous_input"
	CodeCycle           = "cycle"
)

// ValidationErrors aggregates every problem found in one pass, so callers
// can surface them all at once instead of fixing one at a time.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, len(e))
	for i, err := range e {
		messages[i] = err.Error()
	}

	return strings.Join(messages, "; ")
}

// Resolver builds execution plans. It needs the node registry to instantiate
// nodes and to learn which ones accept multi-connection input wiring.
type Resolver struct {
	registry *registry.Registry
	logger   *slog.Logger
}

func NewResolver(registry *registry.Registry, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		logger:   logger.With("module", "graph"),
	}
}

// Resolve validates the workflow and produces its execution plan. Disabled
// nodes are excluded along with any connection touching them. On failure it
// returns ValidationErrors carrying every problem found.
func (r *Resolver) Resolve(ctx context.Context, workflow *models.Workflow) (*Plan, error) {
	var problems ValidationErrors

	enabled, declarationIndex, dupErrs := r.collectNodes(workflow)
	problems = append(problems, dupErrs...)

	nodes, createErrs := r.instantiate(ctx, enabled)
	problems = append(problems, createErrs...)

	connections, connErrs := r.collectConnections(workflow, enabled)
	problems = append(problems, connErrs...)

	problems = append(problems, r.checkInputWiring(nodes, connections)...)

	triggers := make([]string, 0)

	for _, node := range workflow.Nodes {
		if _, ok := enabled[node.ID]; ok && node.IsTriggerNode() {
			triggers = append(triggers, node.ID)
		}
	}

	if len(triggers) == 0 {
		problems = append(problems, &ValidationError{
			Code:    CodeNoTrigger,
			Message: "workflow has no enabled trigger node",
		})
	}

	// Structural problems make order computation meaningless, stop here.
	if len(problems) > 0 {
		return nil, problems
	}

	if cycleNodes := findCycleMembers(enabled, connections); len(cycleNodes) > 0 {
		return nil, ValidationErrors{{
			Code:    CodeCycle,
			Message: "workflow graph contains a cycle",
			NodeIDs: cycleNodes,
		}}
	}

	order := topologicalOrder(enabled, connections, declarationIndex)

	plan := &Plan{
		Order:    order,
		Nodes:    nodes,
		Incoming: make(map[string][]*models.Connection),
		Outgoing: make(map[string]map[string][]*models.Connection),
		Triggers: triggers,
	}

	for _, conn := range connections {
		source, sourcePort, _ := models.ParsePortID(conn.SourcePort)
		target := conn.TargetNode()

		plan.Incoming[target] = append(plan.Incoming[target], conn)

		if plan.Outgoing[source] == nil {
			plan.Outgoing[source] = make(map[string][]*models.Connection)
		}

		plan.Outgoing[source][sourcePort] = append(plan.Outgoing[source][sourcePort], conn)
	}

	for _, id := range order {
		if len(plan.Outgoing[id]) == 0 {
			plan.Terminal = append(plan.Terminal, id)
		}
	}

	r.logger.Debug("Resolved workflow plan",
		"workflow_id", workflow.ID,
		"nodes", len(order),
		"triggers", len(triggers),
		"terminal", len(plan.Terminal))

	return plan, nil
}

// collectNodes filters to enabled nodes, records declaration order and
// reports duplicate ids.
func (r *Resolver) collectNodes(workflow *models.Workflow) (map[string]*models.WorkflowNode, map[string]int, ValidationErrors) {
	var problems ValidationErrors

	enabled := make(map[string]*models.WorkflowNode)
	declarationIndex := make(map[string]int)

	for i, node := range workflow.Nodes {
		if _, seen := declarationIndex[node.ID]; seen {
			problems = append(problems, &ValidationError{
				Code:    CodeDuplicateNode,
				Message: "node id declared more than once",
				NodeIDs: []string{node.ID},
			})

			continue
		}

		declarationIndex[node.ID] = i

		if node.Enabled {
			enabled[node.ID] = node
		}
	}

	return enabled, declarationIndex, problems
}

// instantiate creates every enabled node through the registry so type and
// configuration problems surface at resolution time, not mid-run.
func (r *Resolver) instantiate(ctx context.Context, enabled map[string]*models.WorkflowNode) (map[string]protocol.Node, ValidationErrors) {
	var problems ValidationErrors

	nodes := make(map[string]protocol.Node, len(enabled))

	for id, definition := range enabled {
		if _, ok := r.registry.Factory(definition.Type); !ok {
			problems = append(problems, &ValidationError{
				Code:    CodeUnknownNodeType,
				Message: fmt.Sprintf("node type '%s' is not registered", definition.Type),
				NodeIDs: []string{id},
			})

			continue
		}

		node, err := r.registry.Create(ctx, definition.Type, id, definition.Config)
		if err != nil {
			problems = append(problems, &ValidationError{
				Code:    CodeInvalidConfig,
				Message: err.Error(),
				NodeIDs: []string{id},
			})

			continue
		}

		nodes[id] = node
	}

	return nodes, problems
}

// collectConnections keeps connections between enabled nodes and reports
// dangling or malformed endpoints. Connections touching disabled nodes are
// dropped silently, matching how disabled nodes themselves are skipped.
func (r *Resolver) collectConnections(workflow *models.Workflow, enabled map[string]*models.WorkflowNode) ([]*models.Connection, ValidationErrors) {
	var problems ValidationErrors

	connections := make([]*models.Connection, 0, len(workflow.Connections))

	for _, conn := range workflow.Connections {
		source, _, ok := models.ParsePortID(conn.SourcePort)
		if !ok {
			problems = append(problems, &ValidationError{
				Code:    CodeInvalidPort,
				Message: fmt.Sprintf("connection '%s' has malformed source port '%s'", conn.ID, conn.SourcePort),
			})

			continue
		}

		target, _, ok := models.ParsePortID(conn.TargetPort)
		if !ok {
			problems = append(problems, &ValidationError{
				Code:    CodeInvalidPort,
				Message: fmt.Sprintf("connection '%s' has malformed target port '%s'", conn.ID, conn.TargetPort),
			})

			continue
		}

		sourceDeclared := workflowHasNode(workflow, source)
		targetDeclared := workflowHasNode(workflow, target)

		if !sourceDeclared || !targetDeclared {
			missing := make([]string, 0, 2)
			if !sourceDeclared {
				missing = append(missing, source)
			}

			if !targetDeclared {
				missing = append(missing, target)
			}

			problems = append(problems, &ValidationError{
				Code:    CodeDanglingRef,
				Message: fmt.Sprintf("connection '%s' references undeclared nodes", conn.ID),
				NodeIDs: missing,
			})

			continue
		}

		_, sourceEnabled := enabled[source]
		_, targetEnabled := enabled[target]

		if sourceEnabled && targetEnabled {
			connections = append(connections, conn)
		}
	}

	return connections, problems
}

// checkInputWiring rejects ambiguous fan-in. A node may receive more than
// one connection only when it declares itself an input collector, and no
// single input port may be fed twice even then.
func (r *Resolver) checkInputWiring(nodes map[string]protocol.Node, connections []*models.Connection) ValidationErrors {
	var problems ValidationErrors

	incomingPorts := make(map[string]map[string]int)

	for _, conn := range connections {
		target, targetPort, _ := models.ParsePortID(conn.TargetPort)

		if incomingPorts[target] == nil {
			incomingPorts[target] = make(map[string]int)
		}

		incomingPorts[target][targetPort]++
	}

	targets := make([]string, 0, len(incomingPorts))
	for target := range incomingPorts {
		targets = append(targets, target)
	}

	sort.Strings(targets)

	for _, target := range targets {
		ports := incomingPorts[target]

		total := 0

		for port, count := range ports {
			total += count

			if count > 1 {
				problems = append(problems, &ValidationError{
					Code:    CodeAmbiguousInput,
					Message: fmt.Sprintf("input port '%s' is fed by %d connections", port, count),
					NodeIDs: []string{target},
				})
			}
		}

		if total > 1 && !collectsInputs(nodes[target]) {
			problems = append(problems, &ValidationError{
				Code:    CodeAmbiguousInput,
				Message: fmt.Sprintf("node receives %d connections but does not collect inputs", total),
				NodeIDs: []string{target},
			})
		}
	}

	return problems
}

func collectsInputs(node protocol.Node) bool {
	collector, ok := node.(protocol.InputCollector)

	return ok && collector.CollectsInputs()
}

func workflowHasNode(workflow *models.Workflow, id string) bool {
	for _, node := range workflow.Nodes {
		if node.ID == id {
			return true
		}
	}

	return false
}
