package event

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ActionContext is the run-scoped execution context: constant for one
// orchestration pass, populated from the CI environment.
type ActionContext struct {
	EventName  string `json:"event_name"`
	Workflow   string `json:"workflow"`
	Job        string `json:"job"`
	RunID      string `json:"run_id"`
	RunNumber  int    `json:"run_number"`
	Actor      string `json:"actor"`
	Repository string `json:"repository"`
	Ref        string `json:"ref"`
	SHA        string `json:"sha"`
	Workspace  string `json:"workspace"`
	ServerURL  string `json:"server_url"`
	APIURL     string `json:"api_url"`
	GraphQLURL string `json:"graphql_url"`
}

// ContextFromEnv builds the action context from the standard GitHub
// Actions environment variables, with safe defaults outside CI.
func ContextFromEnv() *ActionContext {
	workspace := os.Getenv("WORKSPACE_PATH")
	if workspace == "" {
		workspace = os.Getenv("GITHUB_WORKSPACE")
	}
	if workspace == "" {
		workspace, _ = os.Getwd()
	}

	runNumber, _ := strconv.Atoi(envOr("GITHUB_RUN_NUMBER", "0"))

	return &ActionContext{
		EventName:  envOr("GITHUB_EVENT_NAME", "unknown"),
		Workflow:   envOr("GITHUB_WORKFLOW", "unknown"),
		Job:        envOr("GITHUB_JOB", "unknown"),
		RunID:      envOr("GITHUB_RUN_ID", "0"),
		RunNumber:  runNumber,
		Actor:      envOr("GITHUB_ACTOR", "unknown"),
		Repository: envOr("GITHUB_REPOSITORY", "unknown"),
		Ref:        envOr("GITHUB_REF", "refs/heads/main"),
		SHA:        envOr("GITHUB_SHA", "unknown"),
		Workspace:  workspace,
		ServerURL:  envOr("GITHUB_SERVER_URL", "https://github.com"),
		APIURL:     envOr("GITHUB_API_URL", "https://api.github.com"),
		GraphQLURL: envOr("GITHUB_GRAPHQL_URL", "https://api.github.com/graphql"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// OwnerRepo splits the owner/repo pair out of the repository field.
func (c *ActionContext) OwnerRepo() (string, string, error) {
	owner, repo, ok := strings.Cut(c.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", c.Repository)
	}
	return owner, repo, nil
}

// Commit is one entry of the commit-history context handed to templates.
type Commit struct {
	SHA            string    `json:"sha"`
	Message        string    `json:"message"`
	AuthorName     string    `json:"author_name"`
	AuthorEmail    string    `json:"author_email"`
	CommitterName  string    `json:"committer_name"`
	CommitterEmail string    `json:"committer_email"`
	Timestamp      time.Time `json:"timestamp"`
}

// CommitHistory is the recent-commit context for the current branch.
type CommitHistory struct {
	Branch       string    `json:"branch"`
	TotalCommits int       `json:"total_commits"`
	Commits      []Commit  `json:"commits"`
	HeadSHA      string    `json:"head_sha"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// FileChange describes one changed file, lazily enrichable with its
// patch and content.
type FileChange struct {
	Filename      string `json:"filename"`
	Status        string `json:"status"`
	Additions     int    `json:"additions"`
	Deletions     int    `json:"deletions"`
	Changes       int    `json:"changes"`
	Patch         string `json:"patch,omitempty"`
	Content       string `json:"content,omitempty"`
	ContentBefore string `json:"content_before,omitempty"`
	ContentAfter  string `json:"content_after,omitempty"`
}
