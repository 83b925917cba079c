// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"

	"github.com/loomery/loom/pkg/models"
)

// Node is the single capability set every node variant implements. The
// engine never special-cases a node type; it only calls this contract.
//
// Execute returns its outputs keyed by OUTPUT PORT name. A branching node
// emits only the ports that actually matched; the engine routes data only
// along connections whose source port was emitted. Business-logic failures
// must be captured into an error-port NodeResult carrying ErrorInfo, never
// raised as a process fault; a returned error is reserved for faults the
// node could not express as a result at all.
type Node interface {
	// ID returns the workflow-unique id of this node instance
	ID() string

	// Type returns the registered node type key
	Type() string

	// Execute runs the node against the supplied context and gathered inputs
	Execute(ctx context.Context, ectx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error)

	// InputPorts returns the declared input ports
	InputPorts() []models.InputPort

	// OutputPorts returns the declared output ports
	OutputPorts() []models.OutputPort
}

// NodeFactory creates node instances and describes the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// Descriptor returns the immutable registry entry for this node type
	Descriptor() models.NodeDescriptor
}

// InputCollector is implemented by nodes that accept multiple upstream
// connections into the same input port (merge). The resolver rejects
// ambiguous multi-input wiring into any node that does not implement it.
type InputCollector interface {
	// CollectsInputs reports that multi-connection input wiring is intended
	CollectsInputs() bool
}
