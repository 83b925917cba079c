package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/nodes/trigger"
)

// HandleWebhook runs the target workflow synchronously in webhook mode and
// answers with the response configured on the workflow's webhook trigger node.
func (h *APIHandlers) HandleWebhook(c fiber.Ctx) error {
	workflowID := c.Params("workflowID")

	wf, err := h.workflowService.FetchByID(c.Context(), workflowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	triggerNode := findWebhookTrigger(wf)
	if triggerNode == nil {
		return notFound(c, "Workflow has no webhook trigger")
	}

	triggerData := map[string]any{
		"headers": requestHeaders(c),
		"method":  c.Method(),
		"path":    c.Path(),
		"query":   queryParams(c),
	}

	var body any
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err == nil {
			triggerData["body"] = body
		} else {
			triggerData["body"] = string(c.Body())
		}
	}

	result, err := h.executionService.Execute(c.Context(), workflowID, models.ExecutionModeWebhook, triggerData)
	if err != nil {
		return handleServiceError(c, err)
	}

	if result.Status != models.ExecutionStatusSuccess {
		return internalError(c, errors.New("workflow execution failed"))
	}

	webhook, err := trigger.NewWebhookTriggerNode(triggerNode.ID, triggerNode.Config)
	if err != nil {
		return internalError(c, err)
	}

	if webhook.ResponseBody() != "" {
		return c.Status(webhook.ResponseCode()).SendString(webhook.ResponseBody())
	}

	return c.Status(webhook.ResponseCode()).JSON(fiber.Map{
		"execution_id": result.ExecutionID,
		"status":       string(result.Status),
	})
}

func findWebhookTrigger(wf *models.Workflow) *models.WorkflowNode {
	for _, node := range wf.Nodes {
		if node.Type == models.NodeTypeTriggerWebhook && node.Enabled {
			return node
		}
	}

	return nil
}

func requestHeaders(c fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	for key, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	return headers
}

func queryParams(c fiber.Ctx) map[string]string {
	params := make(map[string]string)
	for key, values := range c.Queries() {
		params[key] = values
	}

	return params
}
