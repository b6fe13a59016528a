package template

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/a5c-ai/gitagent/internal/event"
	"github.com/a5c-ai/gitagent/internal/glob"
)

// Symbolic tokens recognized inside include patterns. A pattern
// carries at most one; the first listed here wins.
const (
	tokenDirsAndAncestors = "$ALL_UNIQUE_CHANGED_FILE_DIRS_AND_THEIR_ANCESTORS"
	tokenDirs             = "$ALL_UNIQUE_CHANGED_FILE_DIRS"
	tokenWorkspace        = "$WORKSPACE"
	tokenChangedFiles     = "$CHANGED_FILES"
)

// Resolver expands include patterns to concrete file sets rooted at a
// workspace and reads their content.
type Resolver struct {
	workspace string
	files     []event.FileChange
	logger    *slog.Logger
}

func NewResolver(workspace string, files []event.FileChange, logger *slog.Logger) *Resolver {
	return &Resolver{workspace: workspace, files: files, logger: logger}
}

// ChangedDirs returns the distinct parent directories of the changed
// files, plus the workspace root, sorted.
func (r *Resolver) ChangedDirs() []string {
	set := map[string]struct{}{}
	for _, fc := range r.files {
		set["."] = struct{}{}
		if dir := filepath.Dir(fc.Filename); dir != "." {
			set[dir] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// ChangedDirsAndAncestors returns ChangedDirs plus every ancestor
// directory up to the workspace root.
func (r *Resolver) ChangedDirsAndAncestors() []string {
	set := map[string]struct{}{}
	for _, dir := range r.ChangedDirs() {
		for dir != "." {
			set[dir] = struct{}{}
			dir = filepath.Dir(dir)
		}
		set["."] = struct{}{}
	}
	return sortedKeys(set)
}

// IncludeFiles expands pattern, reads every matching file under the
// workspace and concatenates their content with a marker per file.
// Unreadable files contribute an inline error comment instead of
// aborting the render.
func (r *Resolver) IncludeFiles(pattern string) string {
	patterns := r.resolvePattern(pattern)
	matches := r.findMatching(patterns)

	var parts []string
	for _, rel := range matches {
		content, err := os.ReadFile(filepath.Join(r.workspace, rel))
		if err != nil {
			r.logger.Warn("failed to read file for inclusion", "path", rel, "error", err)
			parts = append(parts, fmt.Sprintf("<!-- Error reading file: %s - %v -->", rel, err))
			continue
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("<!-- File: %s -->", rel), string(content), "")
	}

	result := strings.Join(parts, "\n")
	r.logger.Debug("included files in template",
		"pattern", pattern,
		"files", len(matches),
		"length", len(result))
	return result
}

// resolvePattern substitutes the symbolic token, yielding one concrete
// glob per substitution. A pattern without a token is used verbatim.
func (r *Resolver) resolvePattern(pattern string) []string {
	switch {
	case strings.Contains(pattern, tokenDirsAndAncestors):
		var out []string
		for _, dir := range r.ChangedDirsAndAncestors() {
			out = append(out, strings.ReplaceAll(pattern, tokenDirsAndAncestors, dir))
		}
		return out
	case strings.Contains(pattern, tokenDirs):
		var out []string
		for _, dir := range r.ChangedDirs() {
			out = append(out, strings.ReplaceAll(pattern, tokenDirs, dir))
		}
		return out
	case strings.Contains(pattern, tokenWorkspace):
		return []string{strings.ReplaceAll(pattern, tokenWorkspace, r.workspace)}
	case strings.Contains(pattern, tokenChangedFiles):
		var out []string
		for _, fc := range r.files {
			out = append(out, strings.ReplaceAll(pattern, tokenChangedFiles, fc.Filename))
		}
		return out
	}
	return []string{pattern}
}

// findMatching walks the workspace once and returns the deduplicated,
// lexicographically sorted relative paths matching any pattern.
// Patterns are matched against both the relative and the absolute
// path, so workspace-rooted substitutions work either way.
func (r *Resolver) findMatching(patterns []string) []string {
	set := map[string]struct{}{}
	err := filepath.WalkDir(r.workspace, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(r.workspace, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, pattern := range patterns {
			pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
			if glob.MatchPath(pattern, rel) || glob.MatchPath(pattern, filepath.ToSlash(path)) {
				set[rel] = struct{}{}
				break
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("failed to walk workspace", "workspace", r.workspace, "error", err)
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
