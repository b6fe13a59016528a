package gitops

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a5c-ai/gitagent/internal/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// fakeRunner replays canned output per command prefix and records
// every invocation.
type fakeRunner struct {
	out   map[string]string
	fail  map[string]error
	calls []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{out: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	call := strings.Join(args, " ")
	f.calls = append(f.calls, call)
	for prefix, err := range f.fail {
		if strings.HasPrefix(call, prefix) {
			return "", err
		}
	}
	for prefix, out := range f.out {
		if strings.HasPrefix(call, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func (f *fakeRunner) called(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func TestCommitNothingStaged(t *testing.T) {
	r := newFakeRunner()
	r.out["diff --cached --name-only"] = ""
	g := New(r, "/ws", discardLogger())

	sha, err := g.Commit(context.Background(), "msg")
	require.NoError(t, err)
	assert.Empty(t, sha)
	assert.False(t, r.called("commit"))
}

func TestCommitStageInspectionError(t *testing.T) {
	r := newFakeRunner()
	r.fail["diff --cached"] = fmt.Errorf("not a git repository")
	g := New(r, "/ws", discardLogger())

	sha, err := g.Commit(context.Background(), "msg")
	require.Error(t, err)
	assert.Empty(t, sha)
	assert.False(t, r.called("commit"))
}

func TestCommitStagedChanges(t *testing.T) {
	r := newFakeRunner()
	r.out["diff --cached --name-only"] = "a.go\nb.go"
	r.out["rev-parse HEAD"] = "deadbeef"
	g := New(r, "/ws", discardLogger())

	sha, err := g.Commit(context.Background(), "apply fixes")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", sha)
	assert.True(t, r.called("add ."))
	assert.True(t, r.called("commit -m apply fixes"))
}

func TestCreateBranchRefreshesBase(t *testing.T) {
	r := newFakeRunner()
	g := New(r, "/ws", discardLogger())

	require.NoError(t, g.CreateBranch(context.Background(), "agent-fix-abc12345", "main"))
	assert.Equal(t, []string{
		"checkout main",
		"pull origin main",
		"checkout -b agent-fix-abc12345",
	}, r.calls)
}

func TestLogParsesCommits(t *testing.T) {
	r := newFakeRunner()
	r.out["branch --show-current"] = "main"
	r.out["log"] = strings.Join([]string{
		"aaa111|fix parser|Ann|ann@x.dev|Ann|ann@x.dev|2024-06-01T10:00:00Z",
		"bbb222|add tests|Bob|bob@x.dev|Bob|bob@x.dev|2024-05-31T09:30:00Z",
	}, "\n")
	g := New(r, "/ws", discardLogger())

	history, err := g.Log(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "main", history.Branch)
	assert.Equal(t, 2, history.TotalCommits)
	assert.Equal(t, "aaa111", history.HeadSHA)
	require.Len(t, history.Commits, 2)
	assert.Equal(t, "fix parser", history.Commits[0].Message)
	assert.Equal(t, "bob@x.dev", history.Commits[1].AuthorEmail)
}

func TestGenerateBranchName(t *testing.T) {
	name := GenerateBranchName("agent-fix")
	require.True(t, strings.HasPrefix(name, "agent-fix-"))
	suffix := strings.TrimPrefix(name, "agent-fix-")
	assert.Len(t, suffix, 8)
	assert.NotEqual(t, name, GenerateBranchName("agent-fix"))
}

const sampleDiff = `diff --git a/src/app.py b/src/app.py
index 1111111..2222222 100644
--- a/src/app.py
+++ b/src/app.py
@@ -1,3 +1,4 @@
 import os
+import sys
 
-print("old")
+print("new")
diff --git a/docs/new.md b/docs/new.md
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/docs/new.md
@@ -0,0 +1,2 @@
+# Title
+body
`

func TestFileChangesParsesDiff(t *testing.T) {
	r := newFakeRunner()
	r.out["diff abc..def"] = sampleDiff
	g := New(r, "/ws", discardLogger())

	changes, err := g.FileChanges(context.Background(), "abc", "def")
	require.NoError(t, err)
	require.Len(t, changes, 2)

	assert.Equal(t, "src/app.py", changes[0].Filename)
	assert.Equal(t, "modified", changes[0].Status)
	assert.Equal(t, 2, changes[0].Additions)
	assert.Equal(t, 1, changes[0].Deletions)
	assert.Equal(t, 3, changes[0].Changes)

	assert.Equal(t, "docs/new.md", changes[1].Filename)
	assert.Equal(t, "added", changes[1].Status)
	assert.Equal(t, 2, changes[1].Additions)
}

func TestExtractFileChangesFallsBackToCommitLists(t *testing.T) {
	r := newFakeRunner()
	r.fail["diff "] = fmt.Errorf("unknown revision")
	g := New(r, "/ws", discardLogger())

	ev := &event.Event{
		Before: "abc",
		After:  "def",
		Commits: []event.PushCommit{
			{Added: []string{"new.go"}, Modified: []string{"main.go"}},
			{Modified: []string{"main.go"}, Removed: []string{"old.go"}},
		},
	}
	changes := g.ExtractFileChanges(context.Background(), ev)
	require.Len(t, changes, 3)
	assert.Equal(t, "new.go", changes[0].Filename)
	assert.Equal(t, "added", changes[0].Status)
	assert.Equal(t, "main.go", changes[1].Filename)
	assert.Equal(t, "old.go", changes[2].Filename)
	assert.Equal(t, "removed", changes[2].Status)
}

func TestExtractFileChangesNoRange(t *testing.T) {
	g := New(newFakeRunner(), "/ws", discardLogger())
	assert.Nil(t, g.ExtractFileChanges(context.Background(), &event.Event{}))
}
