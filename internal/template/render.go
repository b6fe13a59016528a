// Package template renders prompt, condition and output templates with
// support for dynamic file inclusion from the workspace.
package template

import (
	"fmt"
	"log/slog"
	"strings"
	texttemplate "text/template"

	"github.com/a5c-ai/gitagent/internal/event"
)

// RenderError reports a template parse or execution failure. Callers
// decide severity: prompt failures abort the agent, output-template
// failures degrade to the unmodified text.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template render failed: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer renders template text against a variable map. Each render
// binds an `include` function and the convenience variables for the
// given workspace and changed files.
type Renderer struct {
	logger *slog.Logger
}

func NewRenderer(logger *slog.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// Render executes text as a template over vars. The resolver-backed
// entries (WORKSPACE, CHANGED_FILES, directory lists, include) are
// merged in without clobbering caller-supplied keys.
func (r *Renderer) Render(text string, vars map[string]interface{}, workspace string, files []event.FileChange) (string, error) {
	resolver := NewResolver(workspace, files, r.logger)

	data := make(map[string]interface{}, len(vars)+4)
	changed := make([]string, len(files))
	for i, fc := range files {
		changed[i] = fc.Filename
	}
	data["WORKSPACE"] = workspace
	data["CHANGED_FILES"] = changed
	data["ALL_UNIQUE_CHANGED_FILE_DIRS"] = resolver.ChangedDirs()
	data["ALL_UNIQUE_CHANGED_FILE_DIRS_AND_THEIR_ANCESTORS"] = resolver.ChangedDirsAndAncestors()
	for k, v := range vars {
		data[k] = v
	}

	funcs := texttemplate.FuncMap{
		"include":      resolver.IncludeFiles,
		"includeFiles": resolver.IncludeFiles,
	}

	tmpl, err := texttemplate.New("gitagent").Funcs(funcs).Parse(text)
	if err != nil {
		return "", &RenderError{Err: err}
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", &RenderError{Err: err}
	}
	return out.String(), nil
}
