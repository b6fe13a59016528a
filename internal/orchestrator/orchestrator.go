// Package orchestrator ties one incoming event to a full run: discover
// agents, filter by triggers, execute them sequentially and route
// their output.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/executor"
	"github.com/a5c-ai/gitagent/internal/gitops"
	"github.com/a5c-ai/gitagent/internal/output"
	"github.com/a5c-ai/gitagent/internal/template"
	"github.com/a5c-ai/gitagent/internal/trigger"
	"github.com/a5c-ai/gitagent/internal/workflow"
)

// Settings carries the run tunables resolved from configuration.
type Settings struct {
	CommitHistoryCount int
	EnabledEvents      []string
	DisabledEvents     []string
}

// EventAllowed applies the deny list first, then the allow list. An
// empty allow list admits every event type.
func (s Settings) EventAllowed(eventType string) bool {
	for _, t := range s.DisabledEvents {
		if t == eventType {
			return false
		}
	}
	if len(s.EnabledEvents) == 0 {
		return true
	}
	for _, t := range s.EnabledEvents {
		if t == eventType {
			return true
		}
	}
	return false
}

// ExecutionResult is the per-agent outcome in a run summary.
type ExecutionResult struct {
	AgentName         string             `json:"agent_name"`
	AgentType         string             `json:"agent_type"`
	Success           bool               `json:"success"`
	Output            string             `json:"output,omitempty"`
	Error             string             `json:"error,omitempty"`
	ExecutionTime     float64            `json:"execution_time"`
	OutputDestination string             `json:"output_destination"`
	OutputFile        string             `json:"output_file,omitempty"`
	FilesChanged      []event.FileChange `json:"files_changed,omitempty"`

	BranchCreated string `json:"branch_created,omitempty"`
	PRCreated     int    `json:"pr_created,omitempty"`
	PRURL         string `json:"pr_url,omitempty"`
	WorkflowError string `json:"workflow_error,omitempty"`

	StatusCheckPosted string `json:"status_check_posted,omitempty"`
	CommentPosted     string `json:"comment_posted,omitempty"`
	IssueCreated      int    `json:"issue_created,omitempty"`
	IssueURL          string `json:"issue_url,omitempty"`

	SessionID     string  `json:"session_id,omitempty"`
	TotalCostUSD  float64 `json:"total_cost_usd,omitempty"`
	NumTurns      int     `json:"num_turns,omitempty"`
	DurationAPIMS float64 `json:"duration_api_ms,omitempty"`
}

// RunResult is the summary of one orchestration pass, consumable as
// JSON by a calling layer.
type RunResult struct {
	RunID            string               `json:"run_id"`
	EventType        string               `json:"event_type"`
	Success          bool                 `json:"success"`
	Message          string               `json:"message"`
	ProcessingTime   float64              `json:"processing_time"`
	AgentsDiscovered int                  `json:"agents_discovered"`
	AgentsExecuted   int                  `json:"agents_executed"`
	Context          *event.ActionContext `json:"github_context,omitempty"`
	History          *event.CommitHistory `json:"commit_history,omitempty"`
	Results          []ExecutionResult    `json:"agent_results"`
}

// Deps are the collaborators one orchestrator instance runs against.
type Deps struct {
	Catalog   *agent.Catalog
	Evaluator *trigger.Evaluator
	Renderer  *template.Renderer
	Registry  *executor.Registry
	Router    *output.Router
	Git       *gitops.Git
	Workflow  *workflow.Manager
	Logger    *slog.Logger
}

type Orchestrator struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
}

func New(deps Deps, settings Settings) *Orchestrator {
	return &Orchestrator{deps: deps, settings: settings, logger: deps.Logger}
}

// ProcessEvent runs every triggered agent for one event, strictly
// sequentially in priority order. Agent failures are recorded, never
// propagated; cancellation is honored between agents only.
func (o *Orchestrator) ProcessEvent(ctx context.Context, ev *event.Event, eventType string, actx *event.ActionContext) *RunResult {
	start := time.Now()
	run := &RunResult{
		RunID:     uuid.NewString(),
		EventType: eventType,
		Success:   true,
		Context:   actx,
	}

	if !o.settings.EventAllowed(eventType) {
		run.Message = fmt.Sprintf("event type %q disabled by configuration", eventType)
		run.ProcessingTime = time.Since(start).Seconds()
		o.logger.Info("skipping disabled event type", "event_type", eventType, "run_id", run.RunID)
		return run
	}

	history, err := o.deps.Git.Log(ctx, o.settings.CommitHistoryCount)
	if err != nil {
		o.logger.Warn("failed to collect commit history", "error", err)
	}
	run.History = history

	files := o.deps.Git.ExtractFileChanges(ctx, ev)

	defs := o.deps.Catalog.Discover(eventType, actx.Workspace)
	run.AgentsDiscovered = len(defs)

	matched := o.deps.Evaluator.Filter(defs, ev, actx, history, files)
	o.logger.Info("agents filtered",
		"run_id", run.RunID, "event_type", eventType,
		"discovered", len(defs), "triggered", len(matched))

	for _, def := range matched {
		if ctx.Err() != nil {
			run.Success = false
			run.Message = fmt.Sprintf("run cancelled after %d of %d agents: %v",
				len(run.Results), len(matched), ctx.Err())
			break
		}
		res := o.executeAgent(ctx, def, ev, actx, history, files)
		if !res.Success {
			run.Success = false
		}
		run.Results = append(run.Results, res)
	}

	run.AgentsExecuted = len(run.Results)
	run.ProcessingTime = time.Since(start).Seconds()
	if run.Message == "" {
		run.Message = fmt.Sprintf("processed %d agents for %s event", run.AgentsExecuted, eventType)
	}
	return run
}

func (o *Orchestrator) executeAgent(ctx context.Context, def *agent.Definition, ev *event.Event, actx *event.ActionContext, history *event.CommitHistory, files []event.FileChange) ExecutionResult {
	start := time.Now()
	name := def.Agent.Name
	result := ExecutionResult{
		AgentName:         name,
		AgentType:         def.Agent.Type,
		OutputDestination: def.Output.Destination,
	}

	enriched := files
	if def.Triggers.IncludeFileContent || def.Triggers.IncludeFileDiff {
		enriched = o.deps.Git.Enrich(ctx, files, ev.Before, ev.After,
			def.Triggers.IncludeFileContent, def.Triggers.IncludeFileDiff, def.Triggers.FileDiffContext)
	}
	result.FilesChanged = enriched

	vars := map[string]interface{}{
		"Event":   ev,
		"Context": actx,
		"History": history,
		"Files":   enriched,
		"Agent":   name,
		"Config":  def.Configuration,
	}

	prompt, err := o.deps.Renderer.Render(def.PromptTemplate, vars, actx.Workspace, enriched)
	if err != nil {
		o.logger.Error("prompt rendering failed", "agent", name, "error", err)
		result.Error = err.Error()
		result.ExecutionTime = time.Since(start).Seconds()
		return result
	}

	exec, err := o.deps.Registry.For(def.Agent.Type)
	if err != nil {
		o.logger.Error("no executor for agent type", "agent", name, "type", def.Agent.Type)
		result.Error = err.Error()
		result.ExecutionTime = time.Since(start).Seconds()
		return result
	}

	execRes, err := exec.Execute(ctx, def, prompt, actx)
	if err != nil {
		o.logger.Error("agent execution failed", "agent", name, "error", err)
		result.Error = err.Error()
		result.ExecutionTime = time.Since(start).Seconds()
		return result
	}

	result.Success = true
	result.Output = execRes.Output
	result.SessionID = execRes.SessionID
	result.TotalCostUSD = execRes.TotalCostUSD
	result.NumTurns = execRes.NumTurns
	result.DurationAPIMS = execRes.DurationAPIMS

	if def.BranchAutomation != nil && def.BranchAutomation.Enabled {
		wfRes, err := o.deps.Workflow.Run(ctx, def.BranchAutomation, name, execRes.Output, actx, ev, vars)
		if err != nil {
			o.logger.Error("branch automation failed", "agent", name, "error", err)
			result.WorkflowError = err.Error()
		} else if wfRes != nil {
			result.BranchCreated = wfRes.Branch
			result.PRCreated = wfRes.PRNumber
			result.PRURL = wfRes.PRURL
		}
	}

	delivery, err := o.deps.Router.Route(ctx, def, execRes.Output, actx, ev, enriched)
	if err != nil {
		o.logger.Error("output routing failed", "agent", name, "error", err)
	}
	if delivery != nil {
		result.StatusCheckPosted = delivery.StatusCheckPosted
		result.CommentPosted = delivery.CommentURL
		result.IssueCreated = delivery.IssueCreated
		result.IssueURL = delivery.IssueURL
		result.OutputFile = delivery.FilePath
	}

	result.ExecutionTime = time.Since(start).Seconds()
	o.logger.Info("agent executed",
		"agent", name, "success", result.Success, "execution_time", result.ExecutionTime)
	return result
}
