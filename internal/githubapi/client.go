// Package githubapi wraps the code-hosting REST operations the output
// router and branch automation depend on.
package githubapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"
)

// API is the collaborator surface consumed by the output router and
// the branch-automation workflow. Fakes implement it in tests.
type API interface {
	CreateComment(ctx context.Context, owner, repo string, issueNumber int, body string) (string, error)
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels, assignees []string) (int, string, error)
	CreateStatusCheck(ctx context.Context, owner, repo, sha, state, name, description string) error
	CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string, labels, assignees, reviewers []string) (int, string, error)
}

// Client is the go-github implementation of API. Every call carries
// its own timeout.
type Client struct {
	client  *github.Client
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a token-authenticated client. An empty token is rejected;
// callers treat that as "network destinations disabled".
func New(token string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("a GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	return &Client{
		client:  github.NewClient(tc),
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (c *Client) CreateComment(ctx context.Context, owner, repo string, issueNumber int, body string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	comment, _, err := c.client.Issues.CreateComment(cctx, owner, repo, issueNumber, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create comment on #%d: %w", issueNumber, err)
	}

	c.logger.Info("posted comment", "repo", owner+"/"+repo, "issue", issueNumber)
	return comment.GetHTMLURL(), nil
}

func (c *Client) CreateIssue(ctx context.Context, owner, repo, title, body string, labels, assignees []string) (int, string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	if len(assignees) > 0 {
		req.Assignees = &assignees
	}

	issue, _, err := c.client.Issues.Create(cctx, owner, repo, req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create issue: %w", err)
	}

	c.logger.Info("created issue", "repo", owner+"/"+repo, "number", issue.GetNumber())
	return issue.GetNumber(), issue.GetHTMLURL(), nil
}

func (c *Client) CreateStatusCheck(ctx context.Context, owner, repo, sha, state, name, description string) error {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, _, err := c.client.Repositories.CreateStatus(cctx, owner, repo, sha, &github.RepoStatus{
		State:       github.String(state),
		Context:     github.String(name),
		Description: github.String(description),
	})
	if err != nil {
		return fmt.Errorf("failed to create status check '%s': %w", name, err)
	}

	c.logger.Info("posted status check", "repo", owner+"/"+repo, "context", name, "state", state)
	return nil
}

func (c *Client) CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string, labels, assignees, reviewers []string) (int, string, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, _, err := c.client.PullRequests.Create(cctx, owner, repo, &github.NewPullRequest{
		Title: github.String(title),
		Body:  github.String(body),
		Head:  github.String(head),
		Base:  github.String(base),
	})
	if err != nil {
		return 0, "", fmt.Errorf("failed to create pull request: %w", err)
	}
	number := pr.GetNumber()

	// Labels, assignees and reviewers are attached best-effort; the
	// pull request itself already exists.
	if len(labels) > 0 {
		if _, _, err := c.client.Issues.AddLabelsToIssue(cctx, owner, repo, number, labels); err != nil {
			c.logger.Warn("failed to add labels to pull request", "number", number, "error", err)
		}
	}
	if len(assignees) > 0 {
		if _, _, err := c.client.Issues.AddAssignees(cctx, owner, repo, number, assignees); err != nil {
			c.logger.Warn("failed to add assignees to pull request", "number", number, "error", err)
		}
	}
	if len(reviewers) > 0 {
		req := github.ReviewersRequest{Reviewers: reviewers}
		if _, _, err := c.client.PullRequests.RequestReviewers(cctx, owner, repo, number, req); err != nil {
			c.logger.Warn("failed to request reviewers", "number", number, "error", err)
		}
	}

	c.logger.Info("created pull request", "repo", owner+"/"+repo, "number", number)
	return number, pr.GetHTMLURL(), nil
}
