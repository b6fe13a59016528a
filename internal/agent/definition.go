// Package agent loads and caches agent definitions. An agent is a
// declaratively configured automation task bound to one or more event
// triggers; definitions live as YAML files in a per-event-type
// directory tree.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Agent types understood by the execution dispatcher.
const (
	TypeClaude    = "claude"
	TypeClaudeSDK = "claude_code_sdk"
	TypeGemini    = "gemini"
	TypeCodex     = "codex"
	TypeCustom    = "custom"
)

// Output destinations.
const (
	DestConsole     = "console"
	DestFile        = "file"
	DestArtifact    = "artifact"
	DestStatusCheck = "status_check"
	DestComment     = "comment"
	DestCreateIssue = "create_issue"
)

// DefinitionError reports a malformed agent definition file. The
// catalog skips the file and continues with the others.
type DefinitionError struct {
	Path string
	Err  error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("agent definition %s: %v", e.Path, e.Err)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// Meta holds agent identity fields from the top-level `agent` block.
type Meta struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Version     string `yaml:"version,omitempty"`
}

// Triggers declares when an agent runs. Every field is optional;
// absence means unconstrained.
type Triggers struct {
	Branches        []string `yaml:"branches,omitempty"`
	Tags            []string `yaml:"tags,omitempty"`
	Paths           []string `yaml:"paths,omitempty"`
	EventActions    []string `yaml:"event_actions,omitempty"`
	Conditions      []string `yaml:"conditions,omitempty"`
	FilesChangedMin *int     `yaml:"files_changed_min,omitempty"`
	FilesChangedMax *int     `yaml:"files_changed_max,omitempty"`
	FilesChanged    []string `yaml:"files_changed,omitempty"`

	IncludeFileContent bool `yaml:"include_file_content,omitempty"`
	IncludeFileDiff    bool `yaml:"include_file_diff,omitempty"`
	FileDiffContext    int  `yaml:"file_diff_context,omitempty"`
}

// Output declares where and how the agent's result is delivered.
type Output struct {
	Format      string `yaml:"format,omitempty"`
	Destination string `yaml:"destination,omitempty"`
	FilePath    string `yaml:"file_path,omitempty"`
	MaxLength   int    `yaml:"max_length,omitempty"`
	Template    string `yaml:"template,omitempty"`

	OutputFile        string `yaml:"output_file,omitempty"`
	CommentOutputFile string `yaml:"comment_output_file,omitempty"`
	CommentTemplate   string `yaml:"comment_template,omitempty"`

	StatusCheckName      string   `yaml:"status_check_name,omitempty"`
	StatusCheckSuccessOn []string `yaml:"status_check_success_on,omitempty"`
	StatusCheckFailureOn []string `yaml:"status_check_failure_on,omitempty"`

	IssueTitleTemplate string   `yaml:"issue_title_template,omitempty"`
	IssueBodyTemplate  string   `yaml:"issue_body_template,omitempty"`
	IssueBodyFile      string   `yaml:"issue_body_file,omitempty"`
	IssueLabels        []string `yaml:"issue_labels,omitempty"`
	IssueAssignees     []string `yaml:"issue_assignees,omitempty"`
}

// BranchAutomation declares the branch-and-pull-request workflow run
// after a successful execution.
type BranchAutomation struct {
	Enabled           bool     `yaml:"enabled"`
	BranchPrefix      string   `yaml:"branch_prefix,omitempty"`
	CommitMessage     string   `yaml:"commit_message,omitempty"`
	CreatePullRequest bool     `yaml:"create_pull_request,omitempty"`
	PRTitle           string   `yaml:"pr_title,omitempty"`
	PRBody            string   `yaml:"pr_body,omitempty"`
	PRLabels          []string `yaml:"pr_labels,omitempty"`
	PRAssignees       []string `yaml:"pr_assignees,omitempty"`
	PRReviewers       []string `yaml:"pr_reviewers,omitempty"`
	TargetBranch      string   `yaml:"target_branch,omitempty"`
}

// Definition is one loaded agent. Identity is the source file path;
// definitions are immutable once loaded and replaced wholesale on
// cache expiry.
type Definition struct {
	Agent            Meta                   `yaml:"agent"`
	Configuration    map[string]interface{} `yaml:"configuration,omitempty"`
	Triggers         Triggers               `yaml:"triggers,omitempty"`
	PromptTemplate   string                 `yaml:"prompt_template"`
	Output           Output                 `yaml:"output,omitempty"`
	BranchAutomation *BranchAutomation      `yaml:"branch_automation,omitempty"`
	Enabled          bool                   `yaml:"enabled"`
	Priority         int                    `yaml:"priority"`

	// Attached after parsing, not part of the YAML document.
	FilePath  string `yaml:"-"`
	EventType string `yaml:"-"`
}

// Load reads and validates one agent definition file. The agent name
// defaults to the file stem when the definition does not set one.
func Load(path, eventType string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DefinitionError{Path: path, Err: fmt.Errorf("failed to read agent file: %w", err)}
	}

	def, err := Parse(data)
	if err != nil {
		return nil, &DefinitionError{Path: path, Err: err}
	}

	def.FilePath = path
	def.EventType = eventType
	if def.Agent.Name == "" {
		def.Agent.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return def, nil
}

// Parse unmarshals and validates a definition from YAML bytes.
func Parse(data []byte) (*Definition, error) {
	// Fields absent from the document keep these values.
	def := Definition{
		Enabled:  true,
		Priority: 100,
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse agent file: %w", err)
	}

	if def.Output.Format == "" {
		def.Output.Format = "markdown"
	}
	if def.Output.Destination == "" {
		def.Output.Destination = DestConsole
	}
	if def.Triggers.FileDiffContext == 0 {
		def.Triggers.FileDiffContext = 3
	}
	if def.BranchAutomation != nil && def.BranchAutomation.BranchPrefix == "" {
		def.BranchAutomation.BranchPrefix = "agent-fix"
	}

	if err := validate(&def); err != nil {
		return nil, fmt.Errorf("invalid agent definition: %w", err)
	}
	return &def, nil
}

// Marshal serializes a definition back to YAML. A round-tripped
// definition must keep its trigger semantics.
func (d *Definition) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal agent definition: %w", err)
	}
	return data, nil
}

func validate(d *Definition) error {
	if d.Agent.Type == "" {
		return fmt.Errorf("agent.type is required")
	}
	switch d.Agent.Type {
	case TypeClaude, TypeClaudeSDK, TypeGemini, TypeCodex, TypeCustom:
	default:
		return fmt.Errorf("unsupported agent type '%s'", d.Agent.Type)
	}

	if d.PromptTemplate == "" {
		return fmt.Errorf("prompt_template is required")
	}

	switch d.Output.Destination {
	case DestConsole, DestFile, DestArtifact, DestStatusCheck, DestComment, DestCreateIssue:
	default:
		return fmt.Errorf("unsupported output destination '%s'", d.Output.Destination)
	}

	if d.Output.Destination == DestFile && d.Output.FilePath == "" {
		return fmt.Errorf("output.file_path is required for the file destination")
	}

	min, max := d.Triggers.FilesChangedMin, d.Triggers.FilesChangedMax
	if min != nil && *min < 0 {
		return fmt.Errorf("triggers.files_changed_min must not be negative")
	}
	if min != nil && max != nil && *max < *min {
		return fmt.Errorf("triggers.files_changed_max must not be below files_changed_min")
	}

	return nil
}
