// Package file provides file-based persistence for workflows, executions
// and execution logs. It is meant for development and single-node setups.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/persistence"
)

const dirMode = 0o755

// Persistence implements persistence.Persistence on top of a directory tree:
// one JSON document per workflow and execution, one JSONL file of log
// entries per execution.
type Persistence struct {
	mu   sync.RWMutex
	root string
}

// NewPersistence creates a file persistence rooted at the given directory,
// accepting either a plain path or a file:// URL.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	for _, sub := range []string{"workflows", "executions", "execution_logs"} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, sub), dirMode); err != nil {
			return nil, fmt.Errorf("failed to prepare data directory: %w", err)
		}
	}

	return &Persistence{root: cleanRoot}, nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return err
	}

	return nil
}

func (p *Persistence) Workflows(_ context.Context) ([]*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	workflows := make([]*models.Workflow, 0)

	err := p.eachDocument("workflows", func(data []byte) error {
		var workflow models.Workflow
		if err := json.Unmarshal(data, &workflow); err != nil {
			return err
		}

		workflows = append(workflows, &workflow)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (p *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeDocument(filepath.Join("workflows", workflow.ID+".json"), workflow)
}

func (p *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var workflow models.Workflow

	found, err := p.readDocument(filepath.Join("workflows", id+".json"), &workflow)
	if err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	if !found {
		return nil, nil
	}

	return &workflow, nil
}

func (p *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(filepath.Join(p.root, "workflows", id+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewWorkflowError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	return err
}

func (p *Persistence) Executions(_ context.Context, workflowID string) ([]*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	executions := make([]*models.Execution, 0)

	err := p.eachDocument("executions", func(data []byte) error {
		var execution models.Execution
		if err := json.Unmarshal(data, &execution); err != nil {
			return err
		}

		if workflowID == "" || execution.WorkflowID == workflowID {
			executions = append(executions, &execution)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].CreatedAt.After(executions[j].CreatedAt)
	})

	return executions, nil
}

func (p *Persistence) SaveExecution(_ context.Context, execution *models.Execution) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeDocument(filepath.Join("executions", execution.ID+".json"), execution)
}

func (p *Persistence) ExecutionByID(_ context.Context, id string) (*models.Execution, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var execution models.Execution

	found, err := p.readDocument(filepath.Join("executions", id+".json"), &execution)
	if err != nil {
		return nil, persistence.NewExecutionError("ExecutionByID", id, err)
	}

	if !found {
		return nil, nil
	}

	return &execution, nil
}

// AppendExecutionLog appends one JSONL line to the execution's trace file.
func (p *Persistence) AppendExecutionLog(_ context.Context, entry *models.ExecutionLogEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}

	path := filepath.Join(p.root, "execution_logs", entry.ExecutionID+".jsonl")

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	_, err = file.Write(append(data, '\n'))

	return err
}

func (p *Persistence) ExecutionLogs(_ context.Context, executionID string) ([]*models.ExecutionLogEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	path := filepath.Join(p.root, "execution_logs", executionID+".jsonl")

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*models.ExecutionLogEntry{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	entries := make([]*models.ExecutionLogEntry, 0)

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}

		var entry models.ExecutionLogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("corrupt log entry for execution %s: %w", executionID, err)
		}

		entries = append(entries, &entry)
	}

	return entries, nil
}

// writeDocument writes via a temp file and rename so readers never see a
// half-written document.
func (p *Persistence) writeDocument(relPath string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	path := filepath.Join(p.root, relPath)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	return os.Rename(tmp, path)
}

func (p *Persistence) readDocument(relPath string, value any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(p.root, relPath))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, json.Unmarshal(data, value)
}

func (p *Persistence) eachDocument(dir string, visit func(data []byte) error) error {
	entries, err := os.ReadDir(filepath.Join(p.root, dir))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.root, dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}

		if err := visit(data); err != nil {
			return err
		}
	}

	return nil
}
