package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/githubapi"
	"github.com/a5c-ai/gitagent/internal/template"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeAPI records calls and replays canned results.
type fakeAPI struct {
	commentURL  string
	commentErr  error
	issueNumber int
	statusErr   error

	gotCommentBody string
	gotCommentNum  int
	gotState       string
	gotCheckName   string
	gotDescription string
	gotIssueTitle  string
	gotIssueBody   string
	gotLabels      []string
}

func (f *fakeAPI) CreateComment(ctx context.Context, owner, repo string, issueNumber int, body string) (string, error) {
	f.gotCommentNum = issueNumber
	f.gotCommentBody = body
	return f.commentURL, f.commentErr
}

func (f *fakeAPI) CreateIssue(ctx context.Context, owner, repo, title, body string, labels, assignees []string) (int, string, error) {
	f.gotIssueTitle = title
	f.gotIssueBody = body
	f.gotLabels = labels
	return f.issueNumber, "https://github.test/issues/7", nil
}

func (f *fakeAPI) CreateStatusCheck(ctx context.Context, owner, repo, sha, state, name, description string) error {
	f.gotState = state
	f.gotCheckName = name
	f.gotDescription = description
	return f.statusErr
}

func (f *fakeAPI) CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string, labels, assignees, reviewers []string) (int, string, error) {
	return 0, "", nil
}

func defWithOutput(o agent.Output) *agent.Definition {
	return &agent.Definition{
		Agent:          agent.Meta{Name: "reporter", Type: agent.TypeClaude},
		PromptTemplate: "x",
		Output:         o,
	}
}

func testCtx(ws string) *event.ActionContext {
	return &event.ActionContext{
		Repository: "octo/widgets",
		SHA:        "abc123",
		Workspace:  ws,
		EventName:  "push",
	}
}

func newRouter(api *fakeAPI, stdout io.Writer) *Router {
	var a githubapi.API
	if api != nil {
		a = api
	}
	return NewRouter(template.NewRenderer(discardLogger()), a, stdout, discardLogger())
}

func TestRouteConsole(t *testing.T) {
	var buf bytes.Buffer
	r := newRouter(nil, &buf)
	def := defWithOutput(agent.Output{Destination: agent.DestConsole})

	_, err := r.Route(context.Background(), def, "all good", testCtx(t.TempDir()), &event.Event{}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "=== Agent: reporter ===")
	assert.Contains(t, buf.String(), "all good")
}

func TestRouteFileCreatesParents(t *testing.T) {
	ws := t.TempDir()
	r := newRouter(nil, io.Discard)
	def := defWithOutput(agent.Output{Destination: agent.DestFile, FilePath: "reports/out.md"})

	d, err := r.Route(context.Background(), def, "report body", testCtx(ws), &event.Event{}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(ws, "reports", "out.md"))
	require.NoError(t, err)
	assert.Equal(t, "report body", string(data))
	assert.Equal(t, filepath.Join(ws, "reports", "out.md"), d.FilePath)
}

func TestRouteArtifactPath(t *testing.T) {
	ws := t.TempDir()
	r := newRouter(nil, io.Discard)
	def := defWithOutput(agent.Output{Destination: agent.DestArtifact, Format: "markdown"})

	d, err := r.Route(context.Background(), def, "artifact body", testCtx(ws), &event.Event{}, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, "agent-artifacts", "reporter-output.markdown"), d.FilePath)

	_, err = os.Stat(d.FilePath)
	assert.NoError(t, err)
}

func TestRouteTruncation(t *testing.T) {
	ws := t.TempDir()
	r := newRouter(nil, io.Discard)
	def := defWithOutput(agent.Output{
		Destination: agent.DestFile,
		FilePath:    "out.txt",
		MaxLength:   10,
	})

	_, err := r.Route(context.Background(), def, strings.Repeat("z", 50), testCtx(ws), &event.Event{}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(ws, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("z", 10)+truncationMarker, string(data))
}

func TestRouteOutputFileReplacement(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "agent-wrote.md"), []byte("from file"), 0o644))

	r := newRouter(nil, io.Discard)
	def := defWithOutput(agent.Output{
		Destination: agent.DestFile,
		FilePath:    "out.txt",
		OutputFile:  "agent-wrote.md",
	})

	_, err := r.Route(context.Background(), def, "direct output", testCtx(ws), &event.Event{}, nil)
	require.NoError(t, err)

	data, _ := os.ReadFile(filepath.Join(ws, "out.txt"))
	assert.Equal(t, "from file", string(data))
}

func TestRouteOutputTemplateDegradesOnError(t *testing.T) {
	ws := t.TempDir()
	r := newRouter(nil, io.Discard)
	def := defWithOutput(agent.Output{
		Destination: agent.DestFile,
		FilePath:    "out.txt",
		Template:    "{{ .Broken",
	})

	_, err := r.Route(context.Background(), def, "unchanged", testCtx(ws), &event.Event{}, nil)
	require.NoError(t, err)

	data, _ := os.ReadFile(filepath.Join(ws, "out.txt"))
	assert.Equal(t, "unchanged", string(data))
}

func TestResolveStatusState(t *testing.T) {
	tests := []struct {
		name    string
		spec    agent.Output
		output  string
		want    string
	}{
		{
			name:   "failure keyword wins over success keyword",
			spec:   agent.Output{StatusCheckSuccessOn: []string{"passed"}, StatusCheckFailureOn: []string{"failed"}},
			output: "tests passed, linting FAILED",
			want:   "failure",
		},
		{
			name:   "success keyword found",
			spec:   agent.Output{StatusCheckSuccessOn: []string{"passed"}},
			output: "All checks PASSED",
			want:   "success",
		},
		{
			name:   "success configured but absent",
			spec:   agent.Output{StatusCheckSuccessOn: []string{"passed"}},
			output: "inconclusive run",
			want:   "error",
		},
		{
			name:   "no keywords configured",
			spec:   agent.Output{},
			output: "anything",
			want:   "success",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveStatusState(tt.spec, tt.output))
		})
	}
}

func TestRouteStatusCheck(t *testing.T) {
	api := &fakeAPI{}
	r := newRouter(api, io.Discard)
	def := defWithOutput(agent.Output{
		Destination:          agent.DestStatusCheck,
		StatusCheckName:      "lint",
		StatusCheckFailureOn: []string{"error"},
	})

	long := strings.Repeat("the build log line ", 20)
	d, err := r.Route(context.Background(), def, long, testCtx(t.TempDir()), &event.Event{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "success", d.StatusCheckPosted)
	assert.Equal(t, "lint", api.gotCheckName)
	assert.True(t, strings.HasSuffix(api.gotDescription, "..."))
	assert.LessOrEqual(t, len(api.gotDescription), 143)
}

func TestRouteStatusCheckFailure(t *testing.T) {
	api := &fakeAPI{statusErr: errors.New("api down")}
	r := newRouter(api, io.Discard)
	def := defWithOutput(agent.Output{Destination: agent.DestStatusCheck})

	_, err := r.Route(context.Background(), def, "out", testCtx(t.TempDir()), &event.Event{}, nil)
	require.Error(t, err)
	var rerr *RoutingError
	assert.ErrorAs(t, err, &rerr)
}

func TestRouteCommentToPullRequest(t *testing.T) {
	api := &fakeAPI{commentURL: "https://github.test/pr/5#c1"}
	r := newRouter(api, io.Discard)
	def := defWithOutput(agent.Output{Destination: agent.DestComment})

	ev := &event.Event{PullRequest: &event.PullRequest{Number: 5}}
	d, err := r.Route(context.Background(), def, "review notes", testCtx(t.TempDir()), ev, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, api.gotCommentNum)
	assert.Equal(t, "review notes", api.gotCommentBody)
	assert.Equal(t, "https://github.test/pr/5#c1", d.CommentURL)
}

func TestRouteCommentNoTargetIsNoop(t *testing.T) {
	api := &fakeAPI{}
	r := newRouter(api, io.Discard)
	def := defWithOutput(agent.Output{Destination: agent.DestComment})

	d, err := r.Route(context.Background(), def, "orphan", testCtx(t.TempDir()), &event.Event{}, nil)
	require.NoError(t, err)
	assert.Empty(t, d.CommentURL)
	assert.Zero(t, api.gotCommentNum)
}

func TestRouteCommentWithoutCredentialIsNoop(t *testing.T) {
	r := newRouter(nil, io.Discard)
	def := defWithOutput(agent.Output{Destination: agent.DestComment})

	ev := &event.Event{Issue: &event.Issue{Number: 12}}
	d, err := r.Route(context.Background(), def, "body", testCtx(t.TempDir()), ev, nil)
	require.NoError(t, err)
	assert.Empty(t, d.CommentURL)
}

func TestRouteCreateIssue(t *testing.T) {
	api := &fakeAPI{issueNumber: 7}
	r := newRouter(api, io.Discard)
	def := defWithOutput(agent.Output{
		Destination:        agent.DestCreateIssue,
		IssueTitleTemplate: "Report from {{ .Agent.Name }}",
		IssueLabels:        []string{"automated"},
	})

	d, err := r.Route(context.Background(), def, "issue body", testCtx(t.TempDir()), &event.Event{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, d.IssueCreated)
	assert.Equal(t, "Report from reporter", api.gotIssueTitle)
	assert.Equal(t, "issue body", api.gotIssueBody)
	assert.Equal(t, []string{"automated"}, api.gotLabels)
}
