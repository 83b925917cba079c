package models

// NodeDescriptor is the registry entry describing a node type. Descriptors
// are immutable after registration; the registry rejects a second
// registration under the same id.
type NodeDescriptor struct {
	ID               string         `json:"id"       validate:"required"`
	Name             string         `json:"name"     validate:"required"`
	Version          string         `json:"version"`
	Category         CategoryType   `json:"category" validate:"required"`
	Description      string         `json:"description"`
	Schema           map[string]any `json:"schema,omitempty"` // JSON schema for node config
	Inputs           []InputPort    `json:"inputs"`
	Outputs          []OutputPort   `json:"outputs"`
	Tags             []string       `json:"tags,omitempty"`
	MaxExecutionTime int            `json:"max_execution_time_seconds,omitempty"`
	SupportsAsync    bool           `json:"supports_async"`
	Priority         int            `json:"priority,omitempty"`
}

// HasTag reports whether the descriptor carries the given tag.
func (d NodeDescriptor) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}

	return false
}
