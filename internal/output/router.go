// Package output post-processes agent output and delivers it to the
// configured destination.
package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/githubapi"
	"github.com/a5c-ai/gitagent/internal/template"
)

const truncationMarker = "...\n[Output truncated]"

// RoutingError reports a delivery failure. It is logged by the caller
// and never flips the agent's own success status.
type RoutingError struct {
	Agent       string
	Destination string
	Err         error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("failed to route output of agent %s to %s: %v", e.Agent, e.Destination, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// Delivery records where the output ended up.
type Delivery struct {
	StatusCheckPosted string `json:"status_check_posted,omitempty"`
	CommentURL        string `json:"comment_posted,omitempty"`
	IssueCreated      int    `json:"issue_created,omitempty"`
	IssueURL          string `json:"issue_url,omitempty"`
	FilePath          string `json:"file_path,omitempty"`
}

// Router dispatches post-processed output. A nil API turns the
// network-backed destinations into warned no-ops.
type Router struct {
	renderer *template.Renderer
	api      githubapi.API
	stdout   io.Writer
	logger   *slog.Logger
}

func NewRouter(renderer *template.Renderer, api githubapi.API, stdout io.Writer, logger *slog.Logger) *Router {
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Router{renderer: renderer, api: api, stdout: stdout, logger: logger}
}

// Route runs the post-processing pipeline (file replacement, output
// template, truncation) and dispatches on the destination.
func (r *Router) Route(
	ctx context.Context,
	def *agent.Definition,
	output string,
	actx *event.ActionContext,
	ev *event.Event,
	files []event.FileChange,
) (*Delivery, error) {
	name := def.Agent.Name
	spec := def.Output

	if spec.OutputFile != "" {
		data, err := os.ReadFile(r.resolve(actx, spec.OutputFile))
		if err != nil {
			r.logger.Warn("failed to read output file, using direct output",
				"agent", name, "output_file", spec.OutputFile, "error", err)
		} else {
			output = string(data)
		}
	}

	if spec.Template != "" {
		rendered, err := r.render(spec.Template, output, def, actx, ev, files)
		if err != nil {
			r.logger.Warn("failed to apply output template", "agent", name, "error", err)
		} else {
			output = rendered
		}
	}

	if spec.MaxLength > 0 && len(output) > spec.MaxLength {
		output = output[:spec.MaxLength] + truncationMarker
	}

	delivery := &Delivery{}
	switch spec.Destination {
	case agent.DestConsole:
		fmt.Fprintf(r.stdout, "\n=== Agent: %s ===\n%s\n%s\n", name, output, strings.Repeat("=", 50))

	case agent.DestFile:
		path := r.resolve(actx, spec.FilePath)
		if err := writeFile(path, output); err != nil {
			return delivery, &RoutingError{Agent: name, Destination: spec.Destination, Err: err}
		}
		delivery.FilePath = path
		r.logger.Info("agent output written to file", "agent", name, "path", path)

	case agent.DestArtifact:
		path := filepath.Join(actx.Workspace, "agent-artifacts",
			fmt.Sprintf("%s-output.%s", name, spec.Format))
		if err := writeFile(path, output); err != nil {
			return delivery, &RoutingError{Agent: name, Destination: spec.Destination, Err: err}
		}
		delivery.FilePath = path
		r.logger.Info("agent output written to artifact", "agent", name, "path", path)

	case agent.DestStatusCheck:
		return r.routeStatusCheck(ctx, def, output, actx)

	case agent.DestComment:
		return r.routeComment(ctx, def, output, actx, ev, files)

	case agent.DestCreateIssue:
		return r.routeCreateIssue(ctx, def, output, actx, ev, files)

	default:
		r.logger.Info("agent output ready",
			"agent", name, "destination", spec.Destination, "length", len(output))
	}
	return delivery, nil
}

// ResolveStatusState scans the post-processed output for the
// configured keywords: a failure keyword always wins; configured
// success keywords with no match yield "error"; otherwise "success".
func ResolveStatusState(spec agent.Output, output string) string {
	lower := strings.ToLower(output)
	for _, keyword := range spec.StatusCheckFailureOn {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return "failure"
		}
	}
	if len(spec.StatusCheckSuccessOn) > 0 {
		for _, keyword := range spec.StatusCheckSuccessOn {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return "success"
			}
		}
		return "error"
	}
	return "success"
}

func (r *Router) routeStatusCheck(ctx context.Context, def *agent.Definition, output string, actx *event.ActionContext) (*Delivery, error) {
	name := def.Agent.Name
	delivery := &Delivery{}
	if r.api == nil {
		r.logger.Warn("no GitHub credential configured, skipping status check", "agent", name)
		return delivery, nil
	}

	owner, repo, err := actx.OwnerRepo()
	if err != nil {
		return delivery, &RoutingError{Agent: name, Destination: agent.DestStatusCheck, Err: err}
	}

	state := ResolveStatusState(def.Output, output)
	checkName := def.Output.StatusCheckName
	if checkName == "" {
		checkName = "AI Agent: " + name
	}

	description := strings.TrimSpace(strings.ReplaceAll(firstN(output, 140), "\n", " "))
	if len(output) > 140 {
		description += "..."
	}

	if err := r.api.CreateStatusCheck(ctx, owner, repo, actx.SHA, state, checkName, description); err != nil {
		return delivery, &RoutingError{Agent: name, Destination: agent.DestStatusCheck, Err: err}
	}
	delivery.StatusCheckPosted = state
	return delivery, nil
}

func (r *Router) routeComment(ctx context.Context, def *agent.Definition, output string, actx *event.ActionContext, ev *event.Event, files []event.FileChange) (*Delivery, error) {
	name := def.Agent.Name
	delivery := &Delivery{}
	if r.api == nil {
		r.logger.Warn("no GitHub credential configured, skipping comment", "agent", name)
		return delivery, nil
	}

	number := ev.IssueNumber()
	if number == 0 {
		r.logger.Warn("no pull request or issue number found for comment",
			"agent", name, "event", actx.EventName)
		return delivery, nil
	}

	owner, repo, err := actx.OwnerRepo()
	if err != nil {
		return delivery, &RoutingError{Agent: name, Destination: agent.DestComment, Err: err}
	}

	body := output
	if def.Output.CommentOutputFile != "" {
		data, err := os.ReadFile(r.resolve(actx, def.Output.CommentOutputFile))
		if err != nil {
			r.logger.Warn("failed to read comment file, using output",
				"agent", name, "comment_file", def.Output.CommentOutputFile, "error", err)
		} else {
			body = string(data)
		}
	} else if def.Output.CommentTemplate != "" {
		rendered, err := r.render(def.Output.CommentTemplate, output, def, actx, ev, files)
		if err != nil {
			r.logger.Warn("failed to apply comment template", "agent", name, "error", err)
		} else {
			body = rendered
		}
	}

	url, err := r.api.CreateComment(ctx, owner, repo, number, body)
	if err != nil {
		return delivery, &RoutingError{Agent: name, Destination: agent.DestComment, Err: err}
	}
	delivery.CommentURL = url
	return delivery, nil
}

func (r *Router) routeCreateIssue(ctx context.Context, def *agent.Definition, output string, actx *event.ActionContext, ev *event.Event, files []event.FileChange) (*Delivery, error) {
	name := def.Agent.Name
	delivery := &Delivery{}
	if r.api == nil {
		r.logger.Warn("no GitHub credential configured, skipping issue creation", "agent", name)
		return delivery, nil
	}

	owner, repo, err := actx.OwnerRepo()
	if err != nil {
		return delivery, &RoutingError{Agent: name, Destination: agent.DestCreateIssue, Err: err}
	}

	body := output
	if def.Output.IssueBodyFile != "" {
		data, err := os.ReadFile(r.resolve(actx, def.Output.IssueBodyFile))
		if err != nil {
			r.logger.Warn("failed to read issue body file, using output",
				"agent", name, "body_file", def.Output.IssueBodyFile, "error", err)
		} else {
			body = string(data)
		}
	}

	title := "AI Agent Report: " + name
	if def.Output.IssueTitleTemplate != "" {
		rendered, err := r.render(def.Output.IssueTitleTemplate, body, def, actx, ev, files)
		if err != nil {
			r.logger.Warn("failed to apply issue title template", "agent", name, "error", err)
		} else {
			title = strings.TrimSpace(rendered)
		}
	}
	if def.Output.IssueBodyTemplate != "" {
		rendered, err := r.render(def.Output.IssueBodyTemplate, body, def, actx, ev, files)
		if err != nil {
			r.logger.Warn("failed to apply issue body template", "agent", name, "error", err)
		} else {
			body = rendered
		}
	}

	number, url, err := r.api.CreateIssue(ctx, owner, repo, title, body,
		def.Output.IssueLabels, def.Output.IssueAssignees)
	if err != nil {
		return delivery, &RoutingError{Agent: name, Destination: agent.DestCreateIssue, Err: err}
	}
	delivery.IssueCreated = number
	delivery.IssueURL = url
	return delivery, nil
}

func (r *Router) render(text, output string, def *agent.Definition, actx *event.ActionContext, ev *event.Event, files []event.FileChange) (string, error) {
	vars := map[string]interface{}{
		"Output":  output,
		"Agent":   def.Agent,
		"Event":   ev,
		"Context": actx,
		"Files":   files,
	}
	return r.renderer.Render(text, vars, actx.Workspace, files)
}

// resolve joins relative paths onto the workspace.
func (r *Router) resolve(actx *event.ActionContext, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(actx.Workspace, path)
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
