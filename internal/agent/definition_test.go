package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewAgentYAML = `
agent:
  name: code-reviewer
  type: claude
triggers:
  branches: ["main", "release/*"]
  paths: ["src/**"]
prompt_template: "Review the following changes: {{ .CHANGED_FILES }}"
output:
  destination: console
priority: 10
`

func TestParseDefaults(t *testing.T) {
	def, err := Parse([]byte(`
agent:
  type: gemini
prompt_template: "Summarize the push."
`))
	require.NoError(t, err)

	assert.True(t, def.Enabled)
	assert.Equal(t, 100, def.Priority)
	assert.Equal(t, "markdown", def.Output.Format)
	assert.Equal(t, DestConsole, def.Output.Destination)
	assert.Equal(t, 3, def.Triggers.FileDiffContext)
}

func TestParseExplicitDisable(t *testing.T) {
	def, err := Parse([]byte(`
agent:
  type: claude
prompt_template: "x"
enabled: false
priority: 5
`))
	require.NoError(t, err)
	assert.False(t, def.Enabled)
	assert.Equal(t, 5, def.Priority)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing type", "prompt_template: x\n"},
		{"unknown type", "agent: {type: gpt9}\nprompt_template: x\n"},
		{"missing prompt", "agent: {type: claude}\n"},
		{"bad destination", "agent: {type: claude}\nprompt_template: x\noutput: {destination: pager}\n"},
		{"file destination without path", "agent: {type: claude}\nprompt_template: x\noutput: {destination: file}\n"},
		{"inverted file bounds", "agent: {type: claude}\nprompt_template: x\ntriggers: {files_changed_min: 5, files_changed_max: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadNameDefaultsToFileStem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "security-scan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  type: codex
prompt_template: "Scan for vulnerabilities."
`), 0o644))

	def, err := Load(path, "push")
	require.NoError(t, err)
	assert.Equal(t, "security-scan", def.Agent.Name)
	assert.Equal(t, path, def.FilePath)
	assert.Equal(t, "push", def.EventType)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "push")
	require.Error(t, err)
	var defErr *DefinitionError
	assert.ErrorAs(t, err, &defErr)
}

func TestMarshalRoundTrip(t *testing.T) {
	def, err := Parse([]byte(reviewAgentYAML))
	require.NoError(t, err)

	data, err := def.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, def.Agent, again.Agent)
	assert.Equal(t, def.Triggers, again.Triggers)
	assert.Equal(t, def.Output, again.Output)
	assert.Equal(t, def.Priority, again.Priority)
	assert.Equal(t, def.Enabled, again.Enabled)
}
