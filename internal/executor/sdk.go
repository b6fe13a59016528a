package executor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/a5c-ai/gitagent/internal/agent"
	"github.com/a5c-ai/gitagent/internal/event"
)

// Message is one element of an SDK message stream. The stream is
// terminated by an optional "result" message carrying the final text
// plus cost and turn metadata.
type Message struct {
	Type          string                 `json:"type"`
	Subtype       string                 `json:"subtype,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	Message       map[string]interface{} `json:"message,omitempty"`
	Result        string                 `json:"result,omitempty"`
	IsError       bool                   `json:"is_error,omitempty"`
	NumTurns      int                    `json:"num_turns,omitempty"`
	TotalCostUSD  float64                `json:"total_cost_usd,omitempty"`
	DurationAPIMS float64                `json:"duration_api_ms,omitempty"`
}

// Options shapes one SDK query.
type Options struct {
	Model              string
	MaxTurns           int
	SystemPrompt       string
	AppendSystemPrompt string
	AllowedTools       []string
	DisallowedTools    []string
	PermissionMode     string
	Cwd                string
}

// Streamer is the SDK collaborator: it answers a prompt with a stream
// of messages.
type Streamer interface {
	Query(ctx context.Context, prompt string, opts Options) ([]Message, error)
}

// SDKExecutor drives a Streamer and extracts the final text from the
// message stream.
type SDKExecutor struct {
	streamer Streamer
	timeout  time.Duration
	logger   *slog.Logger
}

func NewSDKExecutor(streamer Streamer, timeout time.Duration, logger *slog.Logger) *SDKExecutor {
	return &SDKExecutor{streamer: streamer, timeout: timeout, logger: logger}
}

func (e *SDKExecutor) Execute(ctx context.Context, def *agent.Definition, prompt string, actx *event.ActionContext) (*Result, error) {
	name := def.Agent.Name
	opts := e.buildOptions(def, actx)

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	messages, err := e.streamer.Query(cctx, prompt, opts)
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return nil, &TimeoutError{Agent: name, Timeout: e.timeout}
	}
	if err != nil {
		return nil, &ExecutionError{Agent: name, Err: err}
	}

	result := extractResult(messages)
	e.logger.Debug("SDK agent completed",
		"agent", name,
		"messages", len(messages),
		"turns", result.NumTurns,
		"session_id", result.SessionID)
	return result, nil
}

// buildOptions maps the agent's configuration onto SDK options. The
// working directory defaults to the run workspace.
func (e *SDKExecutor) buildOptions(def *agent.Definition, actx *event.ActionContext) Options {
	cfg := def.Configuration
	opts := Options{
		MaxTurns: 10,
		Cwd:      actx.Workspace,
	}
	if v, ok := cfg["model"].(string); ok {
		opts.Model = v
	}
	if v, ok := cfg["max_turns"].(int); ok {
		opts.MaxTurns = v
	}
	if v, ok := cfg["max_turns"].(float64); ok {
		opts.MaxTurns = int(v)
	}
	if v, ok := cfg["system_prompt"].(string); ok {
		opts.SystemPrompt = v
	}
	if v, ok := cfg["append_system_prompt"].(string); ok {
		opts.AppendSystemPrompt = v
	}
	if v, ok := cfg["permission_mode"].(string); ok && v != "default" {
		opts.PermissionMode = v
	}
	if v, ok := cfg["cwd"].(string); ok && v != "" {
		opts.Cwd = v
	}
	opts.AllowedTools = stringList(cfg["allowed_tools"])
	opts.DisallowedTools = stringList(cfg["disallowed_tools"])
	return opts
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// extractResult prefers the terminal result message; without one it
// falls back to the last assistant message's text content.
func extractResult(messages []Message) *Result {
	result := &Result{}

	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Type == "result" {
			result.Output = m.Result
			result.SessionID = m.SessionID
			result.TotalCostUSD = m.TotalCostUSD
			result.NumTurns = m.NumTurns
			result.DurationAPIMS = m.DurationAPIMS
			if result.Output != "" {
				return result
			}
			break
		}
	}

	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Type != "assistant" || m.Message == nil {
			continue
		}
		if text := assistantText(m.Message); text != "" {
			result.Output = text
			if result.SessionID == "" {
				result.SessionID = m.SessionID
			}
			return result
		}
	}
	return result
}

func assistantText(message map[string]interface{}) string {
	content, ok := message["content"]
	if !ok {
		return ""
	}
	switch c := content.(type) {
	case string:
		return c
	case []interface{}:
		var parts []string
		for _, block := range c {
			b, ok := block.(map[string]interface{})
			if !ok || b["type"] != "text" {
				continue
			}
			if text, ok := b["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// ProcessStreamer implements Streamer over a child process emitting
// one JSON message per stdout line.
type ProcessStreamer struct {
	command string
	logger  *slog.Logger
}

func NewProcessStreamer(command string, logger *slog.Logger) *ProcessStreamer {
	return &ProcessStreamer{command: command, logger: logger}
}

func (s *ProcessStreamer) Query(ctx context.Context, prompt string, opts Options) ([]Message, error) {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if opts.SystemPrompt != "" {
		args = append(args, "--system-prompt", opts.SystemPrompt)
	}
	if opts.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.AppendSystemPrompt)
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if len(opts.DisallowedTools) > 0 {
		args = append(args, "--disallowedTools", strings.Join(opts.DisallowedTools, ","))
	}
	if opts.PermissionMode != "" {
		args = append(args, "--permission-mode", opts.PermissionMode)
	}

	cmd := exec.CommandContext(ctx, s.command, args...)
	cmd.Dir = opts.Cwd
	cmd.Stdin = strings.NewReader(prompt)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var messages []Message
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			s.logger.Warn("skipping unparseable stream line", "error", err)
			continue
		}
		messages = append(messages, m)
	}

	if err := cmd.Wait(); err != nil {
		return messages, err
	}
	return messages, scanner.Err()
}
