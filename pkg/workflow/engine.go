// Package workflow provides synchronous workflow graph execution.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/loomery/loom/pkg/graph"
	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/nodes/wait"
	"github.com/loomery/loom/pkg/protocol"
	"github.com/loomery/loom/pkg/registry"
)

// Engine executes a resolved workflow graph to completion within one call.
// It owns node sequencing, port routing and the failure taxonomy; queueing
// and retries belong to the dispatcher.
type Engine struct {
	resolver *graph.Resolver
	registry *registry.Registry
	logger   *slog.Logger
}

func NewEngine(registry *registry.Registry, logger *slog.Logger) *Engine {
	return &Engine{
		resolver: graph.NewResolver(registry, logger),
		registry: registry,
		logger:   logger.With("module", "workflow_engine"),
	}
}

// NodeFailure records one node that failed during a run.
type NodeFailure struct {
	NodeID string           `json:"node_id"`
	Error  models.ErrorInfo `json:"error"`
}

// ExecutionResult is the outcome of one synchronous run.
type ExecutionResult struct {
	ExecutionID string                       `json:"execution_id"`
	Status      models.ExecutionStatus       `json:"status"`
	NodeResults map[string]models.NodeResult `json:"node_results"`
	OutputData  map[string]any               `json:"output_data,omitempty"`
	Skipped     []string                     `json:"skipped,omitempty"`
	Failures    []NodeFailure                `json:"failures,omitempty"`
	Error       *models.ErrorInfo            `json:"error,omitempty"`

	// Suspended is set when a wait node parked the run; ResumeAt tells the
	// dispatcher when to re-enqueue it.
	Suspended bool       `json:"suspended,omitempty"`
	ResumeAt  *time.Time `json:"resume_at,omitempty"`
}

// Option adjusts a single run.
type Option func(*runOptions)

type runOptions struct {
	metadata map[string]any
}

// WithMetadata attaches metadata to the execution context, visible to nodes.
// The dispatcher uses this to mark resumed runs.
func WithMetadata(metadata map[string]any) Option {
	return func(o *runOptions) {
		o.metadata = metadata
	}
}

// Validate resolves the workflow without running it, returning every
// structural problem found.
func (e *Engine) Validate(ctx context.Context, workflow *models.Workflow) error {
	_, err := e.resolver.Resolve(ctx, workflow)

	return err
}

// ExecuteSync runs the workflow to completion. The execution record is moved
// through its lifecycle as a side effect; the returned result always carries
// the final (or suspended) state. The returned error covers infrastructure
// problems only, node failures are reported through the result.
func (e *Engine) ExecuteSync(ctx context.Context, workflow *models.Workflow, execution *models.Execution, opts ...Option) (*ExecutionResult, error) {
	options := runOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := e.logger.With(
		"workflow_id", workflow.ID,
		"execution_id", execution.ID,
		"mode", execution.Mode,
	)

	result := &ExecutionResult{
		ExecutionID: execution.ID,
		NodeResults: make(map[string]models.NodeResult),
	}

	plan, err := e.resolver.Resolve(ctx, workflow)
	if err != nil {
		logger.Error("Workflow failed validation", "error", err)

		_ = execution.Fail(err.Error())
		result.Status = execution.Status
		result.Error = &models.ErrorInfo{
			Message:  err.Error(),
			Code:     "invalid_workflow",
			Category: models.ErrorCategoryFatal,
		}

		return result, nil
	}

	seeded := false

	for _, triggerID := range plan.Triggers {
		if e.triggerMatches(workflow.NodeByID(triggerID), execution.Mode) {
			seeded = true

			break
		}
	}

	if !seeded {
		message := fmt.Sprintf("no trigger in workflow %s accepts %s runs", workflow.ID, execution.Mode)
		logger.Error("Refusing execution", "error", message)

		_ = execution.Fail(message)
		result.Status = execution.Status
		result.Error = &models.ErrorInfo{
			Message:  message,
			Code:     "no_matching_trigger",
			Category: models.ErrorCategoryFatal,
		}

		return result, nil
	}

	if err := execution.Start(); err != nil {
		return nil, fmt.Errorf("cannot start execution %s: %w", execution.ID, err)
	}

	logger.Info("Starting workflow execution", "nodes", len(plan.Order))

	ectx := models.ExecutionContext{
		ID:          execution.ID,
		WorkflowID:  workflow.ID,
		Mode:        execution.Mode,
		TriggerData: execution.InputData,
		Variables:   workflow.Variables,
		NodeResults: make(map[string]any),
		Metadata:    options.metadata,
		Logger:      logger,
	}

	run := &runState{
		plan:    plan,
		emitted: make(map[string]map[string]models.NodeResult),
	}

	for _, nodeID := range plan.Order {
		if ctx.Err() != nil {
			logger.Warn("Execution canceled", "at_node", nodeID)

			_ = execution.Cancel()
			result.Status = execution.Status

			return result, nil
		}

		definition := workflow.NodeByID(nodeID)
		node := plan.Nodes[nodeID]

		var (
			inputs   map[string]models.NodeResult
			runnable bool
		)

		if definition.IsTriggerNode() {
			runnable = e.triggerMatches(definition, execution.Mode)
		} else {
			inputs, runnable = run.gatherInputs(definition, node)
		}

		if !runnable {
			logger.Debug("Skipping node", "node_id", nodeID)
			result.Skipped = append(result.Skipped, nodeID)

			continue
		}

		outputs, nodeErr := e.executeNode(ctx, node, definition, ectx, inputs)
		if nodeErr != nil {
			if errors.Is(nodeErr, context.Canceled) && ctx.Err() != nil {
				_ = execution.Cancel()
				result.Status = execution.Status

				return result, nil
			}

			if e.handleFailure(logger, run, result, definition, failureInfo(nodeErr)) {
				_ = execution.Fail(result.Error.Message)
				result.Status = execution.Status

				return result, nil
			}

			continue
		}

		suspendAt := e.routeOutputs(run, ectx, result, definition, outputs)
		if suspendAt != nil {
			logger.Info("Execution suspended", "node_id", nodeID, "resume_at", suspendAt)

			if err := execution.Suspend(); err != nil {
				return nil, err
			}

			result.Status = execution.Status
			result.Suspended = true
			result.ResumeAt = suspendAt

			return result, nil
		}

		if failed := run.failedResult(outputs, definition); failed != nil {
			if e.handleFailure(logger, run, result, definition, *failed.Error) {
				_ = execution.Fail(result.Error.Message)
				result.Status = execution.Status

				return result, nil
			}
		}
	}

	output := run.terminalOutput()

	if run.deferred != nil {
		_ = execution.Fail(run.deferred.Message)
		result.Status = execution.Status
		result.Error = run.deferred

		logger.Warn("Workflow finished with non-critical failures",
			"duration_ms", execution.DurationMs,
			"skipped", len(result.Skipped),
			"failures", len(result.Failures))

		return result, nil
	}

	if err := execution.Complete(output); err != nil {
		return nil, err
	}

	result.Status = execution.Status
	result.OutputData = output

	logger.Info("Workflow execution completed",
		"duration_ms", execution.DurationMs,
		"skipped", len(result.Skipped),
		"failures", len(result.Failures))

	return result, nil
}

// triggerMatches checks the trigger type's declared tags against the run
// mode. A webhook-only trigger does not seed a manual run.
func (e *Engine) triggerMatches(definition *models.WorkflowNode, mode models.ExecutionMode) bool {
	factory, ok := e.registry.Factory(definition.Type)
	if !ok {
		return false
	}

	return factory.Descriptor().HasTag(string(mode))
}

// executeNode runs one node under its declared time budget.
func (e *Engine) executeNode(ctx context.Context, node protocol.Node, definition *models.WorkflowNode, ectx models.ExecutionContext, inputs map[string]models.NodeResult) (map[string]models.NodeResult, error) {
	nodeCtx := ctx

	if factory, ok := e.registry.Factory(definition.Type); ok {
		// MaxExecutionTime is declared in seconds.
		if budget := factory.Descriptor().MaxExecutionTime; budget > 0 {
			var cancel context.CancelFunc

			nodeCtx, cancel = context.WithTimeout(ctx, time.Duration(budget)*time.Second)
			defer cancel()
		}
	}

	ectx.Logger = ectx.Logger.With("node_id", definition.ID, "node_type", definition.Type)

	return node.Execute(nodeCtx, ectx, inputs)
}

// routeOutputs records emitted results, feeds wired downstream ports and
// reports a suspension request if one of the results carries one. Only
// emitted ports fire: connections off ports the node did not emit stay dark.
func (e *Engine) routeOutputs(run *runState, ectx models.ExecutionContext, result *ExecutionResult, definition *models.WorkflowNode, outputs map[string]models.NodeResult) *time.Time {
	run.emitted[definition.ID] = outputs

	ports := make([]string, 0, len(outputs))
	for port := range outputs {
		ports = append(ports, port)
	}

	sort.Strings(ports)

	var suspendAt *time.Time

	for _, port := range ports {
		if raw, ok := outputs[port].Metadata[wait.MetadataSuspendUntil].(string); ok {
			if at, err := time.Parse(time.RFC3339, raw); err == nil {
				suspendAt = &at
			}
		}
	}

	merged := mergedResult(outputs, ports)
	result.NodeResults[definition.ID] = merged
	ectx.NodeResults[definition.ID] = merged.Data

	return suspendAt
}

// mergedResult flattens a node's emitted ports into the single node-keyed
// result the API and templates see. Data maps merge in port order; a failed
// port's status and error win so the failure stays visible even when another
// port also fired.
func mergedResult(outputs map[string]models.NodeResult, ports []string) models.NodeResult {
	if len(ports) == 1 {
		return outputs[ports[0]]
	}

	merged := outputs[ports[0]]
	merged.Data = make(map[string]any)

	for _, port := range ports {
		output := outputs[port]

		for key, value := range output.Data {
			merged.Data[key] = value
		}

		if output.Failed() {
			merged.Status = output.Status
			merged.Error = output.Error
		}
	}

	return merged
}

// handleFailure applies the error taxonomy to one failed node. It returns
// true when the run must stop with an error status.
func (e *Engine) handleFailure(logger *slog.Logger, run *runState, result *ExecutionResult, definition *models.WorkflowNode, info models.ErrorInfo) bool {
	result.Failures = append(result.Failures, NodeFailure{NodeID: definition.ID, Error: info})

	switch {
	case info.Category == models.ErrorCategoryCritical:
		// Critical failures stop the run no matter how the node is flagged.
		logger.Error("Node reported a critical failure", "node_id", definition.ID, "error", info.Message)

		result.Error = &info

		return true
	case definition.IgnoreErrors:
		logger.Warn("Node failed but errors are ignored", "node_id", definition.ID, "error", info.Message)

		return false
	case definition.NonCritical:
		logger.Warn("Non-critical node failed, sibling branches continue", "node_id", definition.ID, "error", info.Message)

		if run.deferred == nil {
			run.deferred = &info
		}

		return false
	default:
		logger.Error("Node failed", "node_id", definition.ID, "error", info.Message, "category", info.Category)

		result.Error = &info

		return true
	}
}

// failureInfo normalizes a Go error returned from Execute into the taxonomy.
// Timeouts are transient, everything else defaults to retryable too: a node
// that wants a fatal or critical verdict says so through an error-port result.
func failureInfo(err error) models.ErrorInfo {
	code := "node_failed"
	if errors.Is(err, context.DeadlineExceeded) {
		code = "node_timeout"
	}

	return models.ErrorInfo{
		Message:  err.Error(),
		Code:     code,
		Category: models.ErrorCategoryRetryable,
	}
}

// runState tracks which ports fired as the walk proceeds.
type runState struct {
	plan    *graph.Plan
	emitted map[string]map[string]models.NodeResult

	// deferred holds the first non-critical failure that was not ignored.
	// Sibling branches keep running, but the execution still finalizes as
	// error when it is set.
	deferred *models.ErrorInfo
}

// gatherInputs collects the results feeding a node and decides whether it
// should run at all. A node runs when at least one wired input fired and,
// for collectors, when its wait condition holds.
func (s *runState) gatherInputs(definition *models.WorkflowNode, node protocol.Node) (map[string]models.NodeResult, bool) {
	incoming := s.plan.Incoming[definition.ID]
	inputs := make(map[string]models.NodeResult, len(incoming))

	for _, conn := range incoming {
		source, sourcePort, _ := models.ParsePortID(conn.SourcePort)
		_, targetPort, _ := models.ParsePortID(conn.TargetPort)

		if output, ok := s.emitted[source][sourcePort]; ok {
			inputs[targetPort] = output
		}
	}

	if len(incoming) > 0 && len(inputs) == 0 {
		return nil, false
	}

	if collector, ok := node.(protocol.InputCollector); ok && collector.CollectsInputs() {
		if waiter, ok := node.(interface {
			WaitSatisfied(map[string]models.NodeResult) bool
		}); ok && !waiter.WaitSatisfied(inputs) {
			return nil, false
		}
	}

	return inputs, true
}

// failedResult returns the emitted error-port result that should count as a
// node failure, or nil. An error result that downstream wiring consumes is
// an intentional error route, not a failure.
func (s *runState) failedResult(outputs map[string]models.NodeResult, definition *models.WorkflowNode) *models.NodeResult {
	ports := make([]string, 0, len(outputs))
	for port := range outputs {
		ports = append(ports, port)
	}

	sort.Strings(ports)

	for _, port := range ports {
		output := outputs[port]
		if !output.Failed() || output.Error == nil {
			continue
		}

		if len(s.plan.Outgoing[definition.ID][port]) > 0 {
			continue
		}

		return &output
	}

	return nil
}

// terminalOutput aggregates the data of terminal nodes that actually ran.
func (s *runState) terminalOutput() map[string]any {
	output := make(map[string]any)

	for _, nodeID := range s.plan.Terminal {
		outputs, ok := s.emitted[nodeID]
		if !ok {
			continue
		}

		ports := make([]string, 0, len(outputs))
		for port := range outputs {
			ports = append(ports, port)
		}

		sort.Strings(ports)

		output[nodeID] = mergedResult(outputs, ports).Data
	}

	return output
}
