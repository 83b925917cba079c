// Package log provides the structured log emission node.
package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/template"
)

const (
	OutputPortSuccess = "success"
	InputPortMain     = "main"
)

// LogNode emits a templated message into the run's structured log.
type LogNode struct {
	id      string
	message string
	level   string
}

// NewLogNode creates a new logging node.
func NewLogNode(id string, config map[string]any) (*LogNode, error) {
	message, ok := config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level := "info"
	if lvl, ok := config["level"].(string); ok {
		level = lvl
	}

	return &LogNode{
		id:      id,
		message: message,
		level:   level,
	}, nil
}

func (n *LogNode) ID() string {
	return n.id
}

func (n *LogNode) Type() string {
	return "log"
}

// Execute renders and logs the message. Template failures fall back to the
// raw message: a log node failing the run would be worse than a bad message.
func (n *LogNode) Execute(_ context.Context, ectx models.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	message := n.message

	rendered, err := template.RenderWithContext(n.message, &ectx)
	if err == nil {
		message = fmt.Sprintf("%v", rendered)
	}

	logger := ectx.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With("node_id", n.id, "node_type", "log")

	switch n.level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}

	return map[string]models.NodeResult{
		OutputPortSuccess: {
			NodeID: n.id,
			Data: map[string]any{
				"message": message,
				"level":   n.level,
				"logged":  true,
			},
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func (n *LogNode) InputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, InputPortMain),
				NodeID:      n.id,
				Name:        InputPortMain,
				Description: "Main input for triggering the log emission",
			},
			Required: true,
		},
	}
}

func (n *LogNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortSuccess),
				NodeID:      n.id,
				Name:        OutputPortSuccess,
				Description: "The logged message",
			},
		},
	}
}
