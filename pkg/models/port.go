// Package models defines port-based workflow models for node connections.
package models

// DefaultPort is the port name assumed when a connection does not name one.
const DefaultPort = "main"

// Port represents a connection point on a node.
type Port struct {
	ID          string         `json:"id"`      // Globally unique: "{nodeID}:{portName}"
	NodeID      string         `json:"node_id"` // Which node this port belongs to
	Name        string         `json:"name"`    // Port name (unique within node)
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// InputPort extends Port with input-specific properties.
type InputPort struct {
	Port

	// Required marks ports whose input must be present before execution.
	Required bool `json:"required,omitempty"`
}

// OutputPort extends Port with output-specific properties.
type OutputPort struct {
	Port
}

// Connection connects two ports directly (fully normalized).
type Connection struct {
	ID         string `json:"id"`
	SourcePort string `json:"source_port" validate:"required"` // References Port.ID: "{node_id}:{port_name}"
	TargetPort string `json:"target_port" validate:"required"` // References Port.ID: "{node_id}:{port_name}"
}

// SourceNode returns the node id half of the source port reference.
func (c *Connection) SourceNode() string {
	nodeID, _, _ := ParsePortID(c.SourcePort)

	return nodeID
}

// TargetNode returns the node id half of the target port reference.
func (c *Connection) TargetNode() string {
	nodeID, _, _ := ParsePortID(c.TargetPort)

	return nodeID
}

// ParsePortID parses a port ID in format "{node_id}:{port_name}" into components.
// A missing port name resolves to DefaultPort.
func ParsePortID(portID string) (string, string, bool) {
	for i := range len(portID) {
		if portID[i] == ':' {
			return portID[:i], portID[i+1:], true
		}
	}

	if portID == "" {
		return "", "", false
	}

	return portID, DefaultPort, true
}

// MakePortID creates a port ID from node ID and port name.
func MakePortID(nodeID, portName string) string {
	return nodeID + ":" + portName
}
