// Package template provides templating functionality for dynamic node configuration.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/loomery/loom/pkg/models"
)

// RenderWithContext renders a template string against the execution context,
// exposing trigger data, variables, upstream node results and metadata.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	data := map[string]any{
		"node_results": executionCtx.NodeResults,
		"variables":    executionCtx.Variables,
		"vars":         executionCtx.Variables,
		"trigger_data": executionCtx.TriggerData,
		"metadata":     executionCtx.Metadata,
		"env":          getEnvVars(),
		"execution": map[string]any{
			"id":          executionCtx.ID,
			"workflow_id": executionCtx.WorkflowID,
			"mode":        string(executionCtx.Mode),
		},
	}

	return Render(input, data)
}

// Render parses and executes a template, then coerces the output into the
// richest JSON-compatible value it parses as (object, array, number, bool),
// falling back to the raw string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)

				_, err := rand.Read(num)
				if err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderString renders and forces the result back to a string, for
// configuration fields that are textual by contract (URLs, headers).
func RenderString(input string, executionCtx *models.ExecutionContext) (string, error) {
	rendered, err := RenderWithContext(input, executionCtx)
	if err != nil {
		return "", err
	}

	if s, ok := rendered.(string); ok {
		return s, nil
	}

	return fmt.Sprintf("%v", rendered), nil
}

// getEnvVars returns environment variables as a map.
func getEnvVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			envMap[parts[0]] = parts[1]
		}
	}

	return envMap
}
