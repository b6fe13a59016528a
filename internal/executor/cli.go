package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
)

// cliProfile is the fixed executable and flag set for one agent type.
type cliProfile struct {
	executable string
	args       []string
}

var cliProfiles = map[string]cliProfile{
	agent.TypeClaude: {
		executable: "claude",
		args:       []string{"-d", "--dangerously-skip-permissions"},
	},
	agent.TypeGemini: {
		executable: "gemini",
		args:       []string{"-y"},
	},
	agent.TypeCodex: {
		executable: "codex",
	},
	// The custom type takes its executable from the agent's
	// configuration (`executable_path`).
	agent.TypeCustom: {},
}

// Configuration keys translated to their conventional long flags
// before the generic --key value expansion runs.
var genericFlags = []struct {
	key  string
	flag string
}{
	{"model", "--model"},
	{"max_tokens", "--max-tokens"},
	{"temperature", "--temperature"},
	{"base_url", "--base-url"},
}

// CLIExecutor runs agents as child processes, writing the prompt to
// standard input and capturing standard output as the result.
type CLIExecutor struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewCLIExecutor(timeout time.Duration, logger *slog.Logger) *CLIExecutor {
	return &CLIExecutor{timeout: timeout, logger: logger}
}

func (e *CLIExecutor) Execute(ctx context.Context, def *agent.Definition, prompt string, actx *event.ActionContext) (*Result, error) {
	name := def.Agent.Name

	executable, args, err := e.buildCommand(def)
	if err != nil {
		return nil, &ExecutionError{Agent: name, Err: err}
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, executable, args...)
	cmd.Dir = actx.Workspace
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("executing agent CLI",
		"agent", name,
		"command", executable,
		"timeout", e.timeout)

	start := time.Now()
	err = cmd.Run()
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return nil, &TimeoutError{Agent: name, Timeout: e.timeout}
	}
	if err != nil {
		return nil, &ExecutionError{
			Agent:  name,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	e.logger.Debug("agent CLI completed",
		"agent", name,
		"duration", time.Since(start),
		"output_length", stdout.Len())

	return &Result{Output: stdout.String()}, nil
}

// buildCommand assembles the argument vector: the per-type fixed
// flags, the generic long flags, then one --key value pair per scalar
// configuration entry, in sorted key order.
func (e *CLIExecutor) buildCommand(def *agent.Definition) (string, []string, error) {
	profile, ok := cliProfiles[def.Agent.Type]
	if !ok {
		return "", nil, fmt.Errorf("no CLI profile for agent type '%s'", def.Agent.Type)
	}

	executable := profile.executable
	if def.Agent.Type == agent.TypeCustom {
		path, _ := def.Configuration["executable_path"].(string)
		if path == "" {
			return "", nil, fmt.Errorf("custom agents require configuration.executable_path")
		}
		executable = path
	}

	args := append([]string{}, profile.args...)
	consumed := map[string]bool{"executable_path": true}
	for _, gf := range genericFlags {
		if v, ok := def.Configuration[gf.key]; ok {
			if s := scalarString(v); s != "" {
				args = append(args, gf.flag, s)
			}
			consumed[gf.key] = true
		}
	}

	var keys []string
	for k := range def.Configuration {
		if !consumed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s := scalarString(def.Configuration[k]); s != "" {
			args = append(args, "--"+k, s)
		}
	}

	return executable, args, nil
}

// scalarString formats strings and numbers; anything else is skipped.
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", t), "0"), ".")
	}
	return ""
}
