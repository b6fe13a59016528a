package executor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func customDef(name, executable string, cfg map[string]interface{}) *agent.Definition {
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	cfg["executable_path"] = executable
	return &agent.Definition{
		Agent:          agent.Meta{Name: name, Type: agent.TypeCustom},
		Configuration:  cfg,
		PromptTemplate: "x",
		Enabled:        true,
	}
}

func TestCLIExecutePromptOnStdin(t *testing.T) {
	e := NewCLIExecutor(10*time.Second, discardLogger())
	def := customDef("echoer", "cat", nil)

	res, err := e.Execute(context.Background(), def, "hello agent", &event.ActionContext{Workspace: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "hello agent", res.Output)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCLIExecuteTimeout(t *testing.T) {
	e := NewCLIExecutor(100*time.Millisecond, discardLogger())
	def := customDef("sleeper", writeScript(t, "sleep 5"), nil)

	_, err := e.Execute(context.Background(), def, "", &event.ActionContext{Workspace: t.TempDir()})
	require.Error(t, err)
	var terr *TimeoutError
	assert.ErrorAs(t, err, &terr)
}

func TestCLIExecuteNonZeroExit(t *testing.T) {
	e := NewCLIExecutor(10*time.Second, discardLogger())
	def := customDef("failer", writeScript(t, "echo bad >&2; exit 3"), nil)

	_, err := e.Execute(context.Background(), def, "", &event.ActionContext{Workspace: t.TempDir()})
	require.Error(t, err)
	var xerr *ExecutionError
	require.ErrorAs(t, err, &xerr)
	assert.Contains(t, xerr.Stderr, "bad")
}

func TestCLIExecuteMissingCustomExecutable(t *testing.T) {
	e := NewCLIExecutor(time.Second, discardLogger())
	def := &agent.Definition{
		Agent:          agent.Meta{Name: "bare", Type: agent.TypeCustom},
		PromptTemplate: "x",
	}

	_, err := e.Execute(context.Background(), def, "", &event.ActionContext{})
	require.Error(t, err)
	var xerr *ExecutionError
	assert.ErrorAs(t, err, &xerr)
}

func TestBuildCommandArgOrder(t *testing.T) {
	e := NewCLIExecutor(time.Second, discardLogger())
	def := &agent.Definition{
		Agent: agent.Meta{Name: "r", Type: agent.TypeClaude},
		Configuration: map[string]interface{}{
			"model":       "opus",
			"max_tokens":  4000,
			"temperature": 0.2,
			"zeta":        "last",
			"alpha":       "first",
			"skip_me":     []interface{}{"not", "scalar"},
		},
	}

	executable, args, err := e.buildCommand(def)
	require.NoError(t, err)
	assert.Equal(t, "claude", executable)
	assert.Equal(t, []string{
		"-d", "--dangerously-skip-permissions",
		"--model", "opus",
		"--max-tokens", "4000",
		"--temperature", "0.2",
		"--alpha", "first",
		"--zeta", "last",
	}, args)
}

func TestBuildCommandUnknownType(t *testing.T) {
	e := NewCLIExecutor(time.Second, discardLogger())
	def := &agent.Definition{Agent: agent.Meta{Name: "x", Type: "mystery"}}
	_, _, err := e.buildCommand(def)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	cli := NewCLIExecutor(time.Second, discardLogger())
	r.Register(agent.TypeClaude, cli)

	got, err := r.For(agent.TypeClaude)
	require.NoError(t, err)
	assert.Same(t, Executor(cli), got)

	_, err = r.For("unregistered")
	assert.Error(t, err)
}
