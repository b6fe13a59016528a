// Package gitops wraps the git subprocess operations behind the
// branch-automation workflow and file-change extraction.
package gitops

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/a5c-ai/gitagent/internal/event"
)

// Runner executes one git command in a directory. Tests substitute a
// fake; production uses the exec-backed implementation.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

type execRunner struct {
	logger *slog.Logger
}

// NewRunner returns the subprocess-backed Runner.
func NewRunner(logger *slog.Logger) Runner {
	return &execRunner{logger: logger}
}

func (r *execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running git command", "args", strings.Join(args, " "), "dir", dir)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %w: %s",
			args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Git exposes the repository operations used by the workflow and the
// orchestrator, all relative to one workspace.
type Git struct {
	runner    Runner
	workspace string
	logger    *slog.Logger
}

func New(runner Runner, workspace string, logger *slog.Logger) *Git {
	return &Git{runner: runner, workspace: workspace, logger: logger}
}

func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	return g.runner.Run(ctx, g.workspace, "branch", "--show-current")
}

func (g *Git) Checkout(ctx context.Context, branch string) error {
	_, err := g.runner.Run(ctx, g.workspace, "checkout", branch)
	return err
}

func (g *Git) Pull(ctx context.Context, branch string) error {
	_, err := g.runner.Run(ctx, g.workspace, "pull", "origin", branch)
	return err
}

// CreateBranch checks out and refreshes base, then creates and checks
// out the new branch.
func (g *Git) CreateBranch(ctx context.Context, name, base string) error {
	if base != "" {
		if err := g.Checkout(ctx, base); err != nil {
			return err
		}
		if err := g.Pull(ctx, base); err != nil {
			g.logger.Warn("failed to pull base branch", "branch", base, "error", err)
		}
	}
	if _, err := g.runner.Run(ctx, g.workspace, "checkout", "-b", name); err != nil {
		return err
	}
	g.logger.Info("created branch", "branch", name, "base", base)
	return nil
}

// Commit stages everything and commits. With nothing staged it
// returns an empty SHA and no error.
func (g *Git) Commit(ctx context.Context, message string) (string, error) {
	if _, err := g.runner.Run(ctx, g.workspace, "add", "."); err != nil {
		return "", err
	}

	staged, err := g.runner.Run(ctx, g.workspace, "diff", "--cached", "--name-only")
	if err != nil {
		return "", err
	}
	if staged == "" {
		g.logger.Info("no changes to commit")
		return "", nil
	}

	if _, err := g.runner.Run(ctx, g.workspace, "commit", "-m", message); err != nil {
		return "", err
	}

	sha, err := g.runner.Run(ctx, g.workspace, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	g.logger.Info("committed changes", "sha", sha)
	return sha, nil
}

func (g *Git) Push(ctx context.Context, branch string) error {
	if _, err := g.runner.Run(ctx, g.workspace, "push", "origin", branch); err != nil {
		return err
	}
	g.logger.Info("pushed branch", "branch", branch)
	return nil
}

const logFormat = "%H|%s|%an|%ae|%cn|%ce|%aI"

// Log returns the most recent commits on the current branch.
func (g *Git) Log(ctx context.Context, count int) (*event.CommitHistory, error) {
	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	out, err := g.runner.Run(ctx, g.workspace,
		"log", "-n", strconv.Itoa(count), "--pretty=format:"+logFormat)
	if err != nil {
		return nil, err
	}

	var commits []event.Commit
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "|", 7)
		if len(fields) < 7 {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, fields[6])
		commits = append(commits, event.Commit{
			SHA:            fields[0],
			Message:        fields[1],
			AuthorName:     fields[2],
			AuthorEmail:    fields[3],
			CommitterName:  fields[4],
			CommitterEmail: fields[5],
			Timestamp:      ts,
		})
	}

	history := &event.CommitHistory{
		Branch:       branch,
		TotalCommits: len(commits),
		Commits:      commits,
		RetrievedAt:  time.Now().UTC(),
	}
	if len(commits) > 0 {
		history.HeadSHA = commits[0].SHA
	}
	return history, nil
}

// FileDiff returns the unified diff for one file between two commits,
// or empty when the file did not change.
func (g *Git) FileDiff(ctx context.Context, filename, base, head string, contextLines int) (string, error) {
	return g.runner.Run(ctx, g.workspace,
		"diff", fmt.Sprintf("--unified=%d", contextLines), base+".."+head, "--", filename)
}

// FileContent returns file content at a commit, or the working-tree
// content when sha is empty.
func (g *Git) FileContent(ctx context.Context, filename, sha string) (string, error) {
	if sha != "" {
		return g.runner.Run(ctx, g.workspace, "show", sha+":"+filename)
	}
	data, err := os.ReadFile(filepath.Join(g.workspace, filename))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GenerateBranchName appends an 8-hex random suffix to the prefix.
func GenerateBranchName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
