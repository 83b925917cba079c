// Package trigger provides the trigger node implementations that seed a run.
package trigger

import (
	"context"
	"time"

	"github.com/loomery/loom/pkg/models"
)

const (
	OutputPortMain = "main"

	defaultResponseCode = 200
)

// WebhookTriggerNode seeds a run from an incoming webhook request. It passes
// the trigger payload through to its main output and declares the response
// code/body the webhook endpoint answers with on success.
type WebhookTriggerNode struct {
	id           string
	path         string
	responseCode int
	responseBody string
}

func NewWebhookTriggerNode(id string, config map[string]any) (*WebhookTriggerNode, error) {
	node := &WebhookTriggerNode{
		id:           id,
		responseCode: defaultResponseCode,
	}

	if path, ok := config["path"].(string); ok {
		node.path = path
	}

	if code, ok := config["response_code"].(float64); ok {
		node.responseCode = int(code)
	}

	if body, ok := config["response_body"].(string); ok {
		node.responseBody = body
	}

	return node, nil
}

func (n *WebhookTriggerNode) ID() string {
	return n.id
}

func (n *WebhookTriggerNode) Type() string {
	return models.NodeTypeTriggerWebhook
}

// ResponseCode returns the HTTP status the webhook endpoint answers with.
func (n *WebhookTriggerNode) ResponseCode() int {
	return n.responseCode
}

// ResponseBody returns the configured response body, empty for the default.
func (n *WebhookTriggerNode) ResponseBody() string {
	return n.responseBody
}

// Execute passes the trigger payload through to the main output port.
func (n *WebhookTriggerNode) Execute(_ context.Context, ectx models.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	return map[string]models.NodeResult{
		OutputPortMain: {
			NodeID:    n.id,
			Data:      ectx.TriggerData,
			Status:    string(models.NodeStatusSuccess),
			Timestamp: time.Now().UTC(),
		},
	}, nil
}

func (n *WebhookTriggerNode) InputPorts() []models.InputPort {
	return nil
}

func (n *WebhookTriggerNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortMain),
				NodeID:      n.id,
				Name:        OutputPortMain,
				Description: "Webhook request payload",
			},
		},
	}
}
