// Package executor dispatches rendered prompts to external AI agents.
// Each agent type maps to one Executor implementation through a
// type-keyed registry; the CLI strategy spawns a subprocess, the SDK
// strategy drives a streaming collaborator.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
)

// Result is the raw outcome of one agent execution.
type Result struct {
	Output        string
	SessionID     string
	TotalCostUSD  float64
	NumTurns      int
	DurationAPIMS float64
}

// Executor runs one rendered prompt against an external agent.
type Executor interface {
	Execute(ctx context.Context, def *agent.Definition, prompt string, actx *event.ActionContext) (*Result, error)
}

// ExecutionError reports a failed execution: nonzero exit, SDK error
// or missing configuration. It never aborts sibling agents.
type ExecutionError struct {
	Agent  string
	Stderr string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("agent %s execution failed: %v: %s", e.Agent, e.Err, e.Stderr)
	}
	return fmt.Sprintf("agent %s execution failed: %v", e.Agent, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TimeoutError distinguishes a slow agent from a broken one.
type TimeoutError struct {
	Agent   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("agent %s timed out after %s", e.Agent, e.Timeout)
}

// Registry maps agent types to executors.
type Registry struct {
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

func (r *Registry) Register(agentType string, e Executor) {
	r.executors[agentType] = e
}

// For returns the executor registered for agentType.
func (r *Registry) For(agentType string) (Executor, error) {
	e, ok := r.executors[agentType]
	if !ok {
		return nil, fmt.Errorf("no executor registered for agent type '%s'", agentType)
	}
	return e, nil
}
