package gitops

import (
	"context"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/a5c-ai/gitagent/internal/event"
)

// FileChanges diffs two commits and returns one FileChange per file,
// with line counts taken from the parsed fragments.
func (g *Git) FileChanges(ctx context.Context, base, head string) ([]event.FileChange, error) {
	raw, err := g.runner.Run(ctx, g.workspace, "diff", base+".."+head)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	if !strings.HasSuffix(raw, "\n") {
		raw += "\n"
	}

	files, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}

	changes := make([]event.FileChange, 0, len(files))
	for _, f := range files {
		fc := event.FileChange{
			Filename: f.NewName,
			Status:   fileStatus(f),
		}
		if fc.Filename == "" {
			fc.Filename = f.OldName
		}
		for _, frag := range f.TextFragments {
			for _, line := range frag.Lines {
				switch line.Op {
				case gitdiff.OpAdd:
					fc.Additions++
				case gitdiff.OpDelete:
					fc.Deletions++
				}
			}
		}
		fc.Changes = fc.Additions + fc.Deletions
		changes = append(changes, fc)
	}
	return changes, nil
}

func fileStatus(f *gitdiff.File) string {
	switch {
	case f.IsNew:
		return "added"
	case f.IsDelete:
		return "removed"
	case f.IsRename:
		return "renamed"
	case f.IsCopy:
		return "copied"
	default:
		return "modified"
	}
}

// ExtractFileChanges builds the FileChange set for an event. Push
// events diff before..after; when the diff cannot be produced (shallow
// clone, unknown SHAs) the commit file lists stand in. Other events
// yield no changes.
func (g *Git) ExtractFileChanges(ctx context.Context, ev *event.Event) []event.FileChange {
	if ev.Before == "" || ev.After == "" {
		return nil
	}

	changes, err := g.FileChanges(ctx, ev.Before, ev.After)
	if err != nil {
		g.logger.Warn("failed to diff event range, falling back to commit file lists",
			"before", ev.Before, "after", ev.After, "error", err)
		return changesFromCommits(ev)
	}
	return changes
}

// Enrich attaches per-file patches and content to a copy of changes,
// honoring the agent's inclusion flags.
func (g *Git) Enrich(ctx context.Context, changes []event.FileChange, before, after string, includeContent, includeDiff bool, diffContext int) []event.FileChange {
	if !includeContent && !includeDiff {
		return changes
	}

	out := make([]event.FileChange, len(changes))
	copy(out, changes)
	for i := range out {
		fc := &out[i]
		if includeDiff {
			patch, err := g.FileDiff(ctx, fc.Filename, before, after, diffContext)
			if err != nil {
				g.logger.Warn("failed to get file diff", "file", fc.Filename, "error", err)
			} else {
				fc.Patch = patch
			}
		}
		if includeContent {
			if content, err := g.FileContent(ctx, fc.Filename, before); err == nil {
				fc.ContentBefore = content
			}
			if content, err := g.FileContent(ctx, fc.Filename, after); err == nil {
				fc.ContentAfter = content
				fc.Content = content
			}
		}
	}
	return out
}

// changesFromCommits derives minimal FileChanges from the push
// payload's per-commit file lists, without line counts.
func changesFromCommits(ev *event.Event) []event.FileChange {
	seen := map[string]bool{}
	var changes []event.FileChange
	add := func(names []string, status string) {
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			changes = append(changes, event.FileChange{Filename: name, Status: status})
		}
	}
	for _, c := range ev.Commits {
		add(c.Added, "added")
		add(c.Removed, "removed")
		add(c.Modified, "modified")
	}
	return changes
}
