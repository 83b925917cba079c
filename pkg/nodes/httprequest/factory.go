// Package httprequest provides the HTTP request node factory for registry integration.
package httprequest

import (
	"context"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
)

// HTTPRequestNodeFactory creates HTTPRequestNode instances.
type HTTPRequestNodeFactory struct{}

func NewHTTPRequestNodeFactory() protocol.NodeFactory {
	return &HTTPRequestNodeFactory{}
}

func (f *HTTPRequestNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewHTTPRequestNode(id, config)
}

func (f *HTTPRequestNodeFactory) Descriptor() models.NodeDescriptor {
	return models.NodeDescriptor{
		ID:          "httprequest",
		Name:        "HTTP Request",
		Version:     "1.0.0",
		Category:    models.CategoryTypeAction,
		Description: "Performs an HTTP request with templated URL, headers and body",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Request URL. Supports templating.",
					"examples":    []string{"https://api.example.com/items/{{.trigger_data.body.id}}"},
				},
				"method": map[string]any{
					"type":    "string",
					"enum":    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"},
					"default": "GET",
				},
				"headers": map[string]any{
					"type":        "object",
					"description": "Request headers. Values support templating.",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Request body template",
				},
				"timeout": map[string]any{
					"type":        "number",
					"description": "Request timeout in seconds",
					"default":     30,
				},
				"retries": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"attempts": map[string]any{"type": "number", "default": 1},
						"delay":    map[string]any{"type": "number", "description": "Delay between attempts in milliseconds"},
					},
				},
			},
			"required": []string{"url"},
		},
		Inputs: []models.InputPort{
			{Port: models.Port{Name: InputPortMain}, Required: true},
		},
		Outputs: []models.OutputPort{
			{Port: models.Port{Name: OutputPortSuccess}},
			{Port: models.Port{Name: OutputPortError}},
		},
		Tags:             []string{"http", "api"},
		MaxExecutionTime: 120,
		SupportsAsync:    true,
	}
}
