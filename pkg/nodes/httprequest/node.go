// Package httprequest provides the HTTP request node with success/error output ports.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/template"
)

const (
	OutputPortSuccess = "success"
	OutputPortError   = "error"
	InputPortMain     = "main"
)

// HTTPRequestNode performs an HTTP call with templated URL, headers and body.
type HTTPRequestNode struct {
	id     string
	config HTTPRequestConfig
	client *http.Client
}

// HTTPRequestConfig defines the configuration for HTTP request nodes.
type HTTPRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body,omitempty"`
	Timeout int               `json:"timeout"`
	Retries RetryConfig       `json:"retries"`
}

// RetryConfig defines in-node retry behavior for transient request failures.
// This is the node's own concern; the engine never retries a node.
type RetryConfig struct {
	Attempts int `json:"attempts"`
	Delay    int `json:"delay"`
}

// NewHTTPRequestNode creates a new HTTP request node.
func NewHTTPRequestNode(id string, config map[string]any) (*HTTPRequestNode, error) {
	httpConfig := HTTPRequestConfig{
		Method:  http.MethodGet,
		Headers: make(map[string]string),
		Timeout: 30,
		Retries: RetryConfig{Attempts: 1, Delay: 0},
	}

	url, ok := config["url"].(string)
	if !ok {
		return nil, errors.New("missing required field 'url'")
	}

	httpConfig.URL = url

	if method, ok := config["method"].(string); ok {
		httpConfig.Method = strings.ToUpper(method)
	}

	if headers, ok := config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				httpConfig.Headers[k] = strVal
			}
		}
	}

	if body, ok := config["body"].(string); ok {
		httpConfig.Body = body
	}

	if timeout, ok := config["timeout"].(float64); ok {
		httpConfig.Timeout = int(timeout)
	}

	if retries, ok := config["retries"].(map[string]any); ok {
		if attempts, ok := retries["attempts"].(float64); ok {
			httpConfig.Retries.Attempts = int(attempts)
		}

		if delay, ok := retries["delay"].(float64); ok {
			httpConfig.Retries.Delay = int(delay)
		}
	}

	return &HTTPRequestNode{
		id:     id,
		config: httpConfig,
		client: &http.Client{Timeout: time.Duration(httpConfig.Timeout) * time.Second},
	}, nil
}

func (n *HTTPRequestNode) ID() string {
	return n.id
}

func (n *HTTPRequestNode) Type() string {
	return "httprequest"
}

// Execute performs the HTTP request and returns the response envelope on the
// success port, or an ErrorInfo-carrying result on the error port.
func (n *HTTPRequestNode) Execute(ctx context.Context, ectx models.ExecutionContext, _ map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	urlStr, err := template.RenderString(n.config.URL, &ectx)
	if err != nil {
		return n.errorResult("failed to render URL template: "+err.Error(), models.ErrorCategoryFatal), nil
	}

	var renderedBody string

	if n.config.Body != "" {
		renderedBody, err = template.RenderString(n.config.Body, &ectx)
		if err != nil {
			return n.errorResult("failed to render body template: "+err.Error(), models.ErrorCategoryFatal), nil
		}
	}

	renderedHeaders := make(map[string]string, len(n.config.Headers))

	for key, value := range n.config.Headers {
		rendered, err := template.RenderString(value, &ectx)
		if err != nil {
			renderedHeaders[key] = value

			continue
		}

		renderedHeaders[key] = rendered
	}

	var lastErr error

	for attempt := 1; attempt <= n.config.Retries.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return n.errorResult("request canceled: "+ctx.Err().Error(), models.ErrorCategoryRetryable), nil
			case <-time.After(time.Duration(n.config.Retries.Delay) * time.Millisecond):
			}
		}

		envelope, err := n.performRequest(ctx, urlStr, renderedBody, renderedHeaders)
		if err == nil {
			return map[string]models.NodeResult{
				OutputPortSuccess: {
					NodeID:    n.id,
					Data:      envelope,
					Status:    string(models.NodeStatusSuccess),
					Timestamp: time.Now().UTC(),
				},
			}, nil
		}

		lastErr = err

		// Client errors are not transient, stop retrying.
		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			break
		}
	}

	message := fmt.Sprintf("HTTP request failed after %d attempts: %v", n.config.Retries.Attempts, lastErr)

	category := models.ErrorCategoryRetryable

	httpErr := &HTTPError{}
	if errors.As(lastErr, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
		category = models.ErrorCategoryFatal
	}

	return n.errorResult(message, category), nil
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// performRequest executes a single HTTP request.
func (n *HTTPRequestNode) performRequest(ctx context.Context, url, body string, headers map[string]string) (map[string]any, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, n.config.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	envelope := map[string]any{
		"status_code": resp.StatusCode,
		"headers":     resp.Header,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		envelope["json"] = jsonBody
	}

	return envelope, nil
}

func (n *HTTPRequestNode) errorResult(message string, category models.ErrorCategory) map[string]models.NodeResult {
	return map[string]models.NodeResult{
		OutputPortError: {
			NodeID: n.id,
			Data: map[string]any{
				"error": message,
			},
			Status:    string(models.NodeStatusError),
			Timestamp: time.Now().UTC(),
			Error: &models.ErrorInfo{
				Message:  message,
				Code:     "http_request_failed",
				Category: category,
			},
		},
	}
}

func (n *HTTPRequestNode) InputPorts() []models.InputPort {
	return []models.InputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, InputPortMain),
				NodeID:      n.id,
				Name:        InputPortMain,
				Description: "Main input for triggering the request",
			},
			Required: true,
		},
	}
}

func (n *HTTPRequestNode) OutputPorts() []models.OutputPort {
	return []models.OutputPort{
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortSuccess),
				NodeID:      n.id,
				Name:        OutputPortSuccess,
				Description: "HTTP response envelope",
			},
		},
		{
			Port: models.Port{
				ID:          models.MakePortID(n.id, OutputPortError),
				NodeID:      n.id,
				Name:        OutputPortError,
				Description: "Request failure details",
			},
		},
	}
}
