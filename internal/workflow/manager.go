// Package workflow runs branch automation for a finished agent: a
// feature branch off the base, the agent output committed, pushed, and
// optionally opened as a pull request.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/githubapi"
	"github.com/a5c-ai/gitagent/internal/gitops"
	"github.com/a5c-ai/gitagent/internal/template"
)

// WorkflowError reports a failed automation step. By the time the
// caller sees one, the workspace has been checked out back to the base
// branch.
type WorkflowError struct {
	Agent string
	Step  string
	Err   error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("branch automation for agent %q failed at %s: %v", e.Agent, e.Step, e.Err)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// Result describes what the automation produced. A nil Result with a
// nil error means the agent changed nothing and the run was a no-op.
type Result struct {
	Branch    string `json:"branch"`
	CommitSHA string `json:"commit_sha"`
	PRNumber  int    `json:"pr_number,omitempty"`
	PRURL     string `json:"pr_url,omitempty"`
}

// Manager drives the branch workflow against a local checkout and the
// hosting API. The API may be nil; pull request creation is then
// skipped with a warning.
type Manager struct {
	git      *gitops.Git
	api      githubapi.API
	renderer *template.Renderer
	logger   *slog.Logger
}

func NewManager(git *gitops.Git, api githubapi.API, renderer *template.Renderer, logger *slog.Logger) *Manager {
	return &Manager{git: git, api: api, renderer: renderer, logger: logger}
}

// Run executes the workflow for one agent. Once the feature branch is
// checked out, the base branch is restored before returning on every
// path; restore errors are logged and any step error wins.
func (m *Manager) Run(ctx context.Context, spec *agent.BranchAutomation, agentName, output string, actx *event.ActionContext, ev *event.Event, vars map[string]interface{}) (res *Result, err error) {
	if spec == nil || !spec.Enabled {
		return nil, nil
	}

	prefix := spec.BranchPrefix
	if prefix == "" {
		prefix = "agent-fix"
	}
	branch := gitops.GenerateBranchName(prefix)

	base := spec.TargetBranch
	if base == "" {
		base, err = m.git.CurrentBranch(ctx)
		if err != nil {
			return nil, &WorkflowError{Agent: agentName, Step: "resolve base branch", Err: err}
		}
	}

	if err := m.git.CreateBranch(ctx, branch, base); err != nil {
		return nil, &WorkflowError{Agent: agentName, Step: "create branch", Err: err}
	}

	// On the feature branch from here on. The workspace always
	// comes back to base, success or failure; a restore error never
	// masks the step error.
	defer func() {
		if rerr := m.git.Checkout(ctx, base); rerr != nil {
			m.logger.Warn("failed to restore base branch",
				"agent", agentName, "base", base, "error", rerr)
		}
	}()

	if err := m.applyOutput(actx.Workspace, agentName, output); err != nil {
		return nil, &WorkflowError{Agent: agentName, Step: "write output file", Err: err}
	}

	vars = m.withDefaults(vars, agentName, output, actx, ev)

	message := spec.CommitMessage
	if message == "" {
		message = "Auto-fix by " + agentName
	}
	message = m.render(message, vars, actx)

	sha, err := m.git.Commit(ctx, message)
	if err != nil {
		return nil, &WorkflowError{Agent: agentName, Step: "commit", Err: err}
	}
	if sha == "" {
		m.logger.Info("no changes to commit, skipping branch automation", "agent", agentName)
		return nil, nil
	}

	if err := m.git.Push(ctx, branch); err != nil {
		return nil, &WorkflowError{Agent: agentName, Step: "push", Err: err}
	}

	res = &Result{Branch: branch, CommitSHA: sha}

	if spec.CreatePullRequest {
		if m.api == nil {
			m.logger.Warn("pull request requested but no API credentials configured", "agent", agentName)
		} else {
			number, url, err := m.openPullRequest(ctx, spec, agentName, output, branch, base, actx, vars)
			if err != nil {
				return nil, err
			}
			res.PRNumber = number
			res.PRURL = url
		}
	}

	m.logger.Info("branch automation complete",
		"agent", agentName, "branch", branch, "commit", sha, "pr", res.PRNumber)
	return res, nil
}

func (m *Manager) openPullRequest(ctx context.Context, spec *agent.BranchAutomation, agentName, output, branch, base string, actx *event.ActionContext, vars map[string]interface{}) (int, string, error) {
	owner, repo, err := actx.OwnerRepo()
	if err != nil {
		return 0, "", &WorkflowError{Agent: agentName, Step: "create pull request", Err: err}
	}

	title := spec.PRTitle
	if title == "" {
		title = "Auto-fix by " + agentName
	}
	body := spec.PRBody
	if body == "" {
		body = fmt.Sprintf("Automated changes by %s:\n\n%s", agentName, output)
	}
	title = m.render(title, vars, actx)
	body = m.render(body, vars, actx)

	number, url, err := m.api.CreatePullRequest(ctx, owner, repo, title, body, branch, base,
		spec.PRLabels, spec.PRAssignees, spec.PRReviewers)
	if err != nil {
		return 0, "", &WorkflowError{Agent: agentName, Step: "create pull request", Err: err}
	}
	return number, url, nil
}

// applyOutput materializes the agent output as a markdown file in the
// workspace so there is always something to commit.
func (m *Manager) applyOutput(workspace, agentName, output string) error {
	path := filepath.Join(workspace, agentName+"-output.md")
	content := fmt.Sprintf("# Agent Output: %s\n\n%s", agentName, output)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func (m *Manager) withDefaults(vars map[string]interface{}, agentName, output string, actx *event.ActionContext, ev *event.Event) map[string]interface{} {
	merged := make(map[string]interface{}, len(vars)+4)
	for k, v := range vars {
		merged[k] = v
	}
	if _, ok := merged["Agent"]; !ok {
		merged["Agent"] = agentName
	}
	if _, ok := merged["Output"]; !ok {
		merged["Output"] = output
	}
	if _, ok := merged["Event"]; !ok {
		merged["Event"] = ev
	}
	if _, ok := merged["Context"]; !ok {
		merged["Context"] = actx
	}
	return merged
}

// render evaluates commit message and PR templates. Failures degrade
// to the raw text so a bad template never aborts the workflow.
func (m *Manager) render(text string, vars map[string]interface{}, actx *event.ActionContext) string {
	files, _ := vars["Files"].([]event.FileChange)
	rendered, err := m.renderer.Render(text, vars, actx.Workspace, files)
	if err != nil {
		m.logger.Warn("template rendering failed, using raw text", "error", err)
		return text
	}
	return rendered
}
