package trigger

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// WebhookTriggerNodeFactory creates WebhookTriggerNode instances.
type WebhookTriggerNodeFactory struct{}

func NewWebhookTriggerNodeFactory() protocol.NodeFactory {
	return &WebhookTriggerNodeFactory{}
}

func (f *WebhookTriggerNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewWebhookTriggerNode(id, config)
}

func (f *WebhookTriggerNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          models.NodeTypeTriggerWebhook,
		Name:        "Webhook Trigger",
		Version:     "1.0.0",
		Category:    models.CategoryTypeTrigger,
		Description: "Starts the workflow when an HTTP request hits the workflow's webhook endpoint",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Webhook path suffix, defaults to the workflow id",
				},
				"response_code": map[string]any{
					"type":        "number",
					"description": "HTTP status returned to the webhook caller on success",
					"default":     200,
				},
				"response_body": map[string]any{
					"type":        "string",
					"description": "Response body template returned to the webhook caller",
				},
			},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortMain, Description: "Webhook request payload"}},
		},
		// Tags double as the execution modes this trigger seeds.
		Tags:          []string{"webhook"},
		SupportsAsync: true,
	}
}
