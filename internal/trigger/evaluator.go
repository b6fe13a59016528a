// Package trigger decides which agents run for a given event. Trigger
// categories AND together; patterns within a category OR together.
// Condition evaluation is fail-closed: any render or parse error
// disables the agent for this event.
package trigger

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/glob"
)

// Renderer renders template text against the trigger variable set.
// Satisfied by template.Renderer.
type Renderer interface {
	Render(text string, vars map[string]interface{}, workspace string, files []event.FileChange) (string, error)
}

// Evaluator applies an agent's trigger spec to one event.
type Evaluator struct {
	renderer Renderer
	logger   *slog.Logger
}

func NewEvaluator(renderer Renderer, logger *slog.Logger) *Evaluator {
	return &Evaluator{renderer: renderer, logger: logger}
}

// Filter returns the agents that should run for the event, sorted
// ascending by priority. Ties keep discovery order.
func (e *Evaluator) Filter(
	defs []*agent.Definition,
	ev *event.Event,
	actx *event.ActionContext,
	history *event.CommitHistory,
	files []event.FileChange,
) []*agent.Definition {
	var matched []*agent.Definition
	for _, def := range defs {
		if e.ShouldRun(def, ev, actx, history, files) {
			matched = append(matched, def)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority < matched[j].Priority
	})
	return matched
}

// ShouldRun evaluates every configured trigger category in order; the
// first failing category decides.
func (e *Evaluator) ShouldRun(
	def *agent.Definition,
	ev *event.Event,
	actx *event.ActionContext,
	history *event.CommitHistory,
	files []event.FileChange,
) bool {
	t := def.Triggers

	if len(t.Branches) > 0 {
		branch, ok := strings.CutPrefix(actx.Ref, "refs/heads/")
		if !ok || !glob.MatchAny(t.Branches, branch) {
			return false
		}
	}

	if len(t.Tags) > 0 {
		tag, ok := strings.CutPrefix(actx.Ref, "refs/tags/")
		if !ok || !glob.MatchAny(t.Tags, tag) {
			return false
		}
	}

	if len(t.EventActions) > 0 && ev.Action != "" {
		found := false
		for _, action := range t.EventActions {
			if action == ev.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	// File-count and path constraints only apply when the event
	// carries commit data.
	if len(ev.Commits) > 0 {
		total := ev.TotalFilesChanged()
		if t.FilesChangedMin != nil && total < *t.FilesChangedMin {
			return false
		}
		if t.FilesChangedMax != nil && total > *t.FilesChangedMax {
			return false
		}

		if len(t.Paths) > 0 {
			matched := false
			for _, path := range ev.ChangedPaths() {
				if glob.MatchAny(t.Paths, path) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}

	if len(t.FilesChanged) > 0 && len(files) > 0 {
		matched := false
		for _, fc := range files {
			if glob.MatchAny(t.FilesChanged, fc.Filename) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, condition := range t.Conditions {
		if !e.evalCondition(def, condition, ev, actx, history, files) {
			return false
		}
	}

	return true
}

func (e *Evaluator) evalCondition(
	def *agent.Definition,
	condition string,
	ev *event.Event,
	actx *event.ActionContext,
	history *event.CommitHistory,
	files []event.FileChange,
) bool {
	vars := map[string]interface{}{
		"Event":   ev,
		"Context": actx,
		"History": history,
		"Files":   files,
	}

	rendered, err := e.renderer.Render(condition, vars, actx.Workspace, files)
	if err != nil {
		e.logger.Warn("failed to render agent condition",
			"agent", def.Agent.Name,
			"condition", condition,
			"error", err)
		return false
	}

	ok, err := EvalExpr(strings.TrimSpace(rendered))
	if err != nil {
		e.logger.Warn("failed to evaluate agent condition",
			"agent", def.Agent.Name,
			"condition", condition,
			"rendered", rendered,
			"error", err)
		return false
	}
	return ok
}
