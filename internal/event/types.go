// Package event holds the normalized representation of source-control
// events and the run-scoped action context they arrive with.
package event

import (
	"encoding/json"
	"strings"
	"time"
)

// Known event types. GitHub emits more than these; unknown types still
// parse and are processed with the default behavior.
const (
	TypePush               = "push"
	TypePullRequest        = "pull_request"
	TypePullRequestReview  = "pull_request_review"
	TypePullRequestComment = "pull_request_review_comment"
	TypeIssues             = "issues"
	TypeIssueComment       = "issue_comment"
	TypeWorkflowRun        = "workflow_run"
	TypeWorkflowJob        = "workflow_job"
	TypeWorkflowDispatch   = "workflow_dispatch"
	TypeRelease            = "release"
	TypeCreate             = "create"
	TypeDelete             = "delete"
	TypeStatus             = "status"
	TypeCheckRun           = "check_run"
	TypeCheckSuite         = "check_suite"
	TypeDiscussion         = "discussion"
	TypeRepositoryDispatch = "repository_dispatch"
	TypeSchedule           = "schedule"
)

// KnownTypes lists the event types the CLI enumerates for discovery.
func KnownTypes() []string {
	return []string{
		TypePush, TypePullRequest, TypePullRequestReview,
		TypePullRequestComment, TypeIssues, TypeIssueComment,
		TypeWorkflowRun, TypeWorkflowJob, TypeWorkflowDispatch,
		TypeRelease, TypeCreate, TypeDelete, TypeStatus,
		TypeCheckRun, TypeCheckSuite, TypeDiscussion,
		TypeRepositoryDispatch, TypeSchedule,
	}
}

// User is the author/sender object shared by several payload shapes.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Repository carries the subset of repository fields the orchestrator
// reads; the full payload is preserved in Event.Extra.
type Repository struct {
	ID            int64  `json:"id,omitempty"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Private       bool   `json:"private,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	HTMLURL       string `json:"html_url,omitempty"`
}

// PushCommit is one commit entry of a push payload.
type PushCommit struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Author    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"author,omitempty"`
	Added    []string `json:"added,omitempty"`
	Removed  []string `json:"removed,omitempty"`
	Modified []string `json:"modified,omitempty"`
}

// PullRequest is the pull_request sub-object.
type PullRequest struct {
	Number int    `json:"number"`
	State  string `json:"state,omitempty"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	Draft  bool   `json:"draft,omitempty"`
	User   *User  `json:"user,omitempty"`
	Head   struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head,omitempty"`
	Base struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"base,omitempty"`
}

// Issue is the issue sub-object.
type Issue struct {
	Number int    `json:"number"`
	State  string `json:"state,omitempty"`
	Title  string `json:"title,omitempty"`
	Body   string `json:"body,omitempty"`
	User   *User  `json:"user,omitempty"`
}

// Event is the normalized source-control event. Only the documented
// subset of fields is typed; everything else passes through in Extra
// so serializing an event loses nothing.
type Event struct {
	Action      string       `json:"action,omitempty"`
	Ref         string       `json:"ref,omitempty"`
	Before      string       `json:"before,omitempty"`
	After       string       `json:"after,omitempty"`
	Commits     []PushCommit `json:"commits,omitempty"`
	HeadCommit  *PushCommit  `json:"head_commit,omitempty"`
	PullRequest *PullRequest `json:"pull_request,omitempty"`
	Issue       *Issue       `json:"issue,omitempty"`
	Repository  *Repository  `json:"repository,omitempty"`
	Sender      *User        `json:"sender,omitempty"`

	// Extra preserves payload fields this package does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// IssueNumber resolves the comment target: pull request first, then
// issue. Zero means the event has no target.
func (e *Event) IssueNumber() int {
	if e.PullRequest != nil && e.PullRequest.Number > 0 {
		return e.PullRequest.Number
	}
	if e.Issue != nil && e.Issue.Number > 0 {
		return e.Issue.Number
	}
	return 0
}

// ChangedPaths returns the union of added, removed and modified paths
// across all push commits, in first-seen order.
func (e *Event) ChangedPaths() []string {
	seen := make(map[string]struct{})
	var paths []string
	add := func(list []string) {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	for _, c := range e.Commits {
		add(c.Added)
		add(c.Removed)
		add(c.Modified)
	}
	return paths
}

// TotalFilesChanged sums added+removed+modified entries over all commits.
func (e *Event) TotalFilesChanged() int {
	total := 0
	for _, c := range e.Commits {
		total += len(c.Added) + len(c.Removed) + len(c.Modified)
	}
	return total
}

// BranchName extracts the branch from a refs/heads/ reference.
func BranchName(ref string) (string, bool) {
	if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		return name, true
	}
	return "", false
}

// TagName extracts the tag from a refs/tags/ reference.
func TagName(ref string) (string, bool) {
	if name, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
		return name, true
	}
	return "", false
}

// ShortRef strips the refs/heads/ or refs/tags/ prefix if present.
func ShortRef(ref string) string {
	if name, ok := BranchName(ref); ok {
		return name
	}
	if name, ok := TagName(ref); ok {
		return name
	}
	return ref
}
