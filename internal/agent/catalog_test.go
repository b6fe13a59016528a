package agent

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeAgent(t *testing.T, workspace, relPath, body string) {
	t.Helper()
	path := filepath.Join(workspace, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

const minimalAgent = `
agent:
  type: claude
prompt_template: "do the thing"
`

func TestDiscoverScansEventAndWildcardDirs(t *testing.T) {
	ws := t.TempDir()
	writeAgent(t, ws, ".gitagent/agents/push/reviewer.yaml", minimalAgent)
	writeAgent(t, ws, ".gitagent/agents/all/linter.yml", minimalAgent)
	writeAgent(t, ws, ".gitagent/agents/common/notifier.yaml", minimalAgent)
	writeAgent(t, ws, ".gitagent/agents/issues/triager.yaml", minimalAgent)

	c := NewCatalog(".gitagent/agents", 0, discardLogger())
	defs := c.Discover("push", ws)

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Agent.Name
	}
	assert.ElementsMatch(t, []string{"reviewer", "linter", "notifier"}, names)
}

func TestDiscoverMissingDirectoryYieldsEmpty(t *testing.T) {
	c := NewCatalog(".gitagent/agents", 0, discardLogger())
	defs := c.Discover("push", t.TempDir())
	assert.Empty(t, defs)
}

func TestDiscoverDropsInvalidAndDisabled(t *testing.T) {
	ws := t.TempDir()
	writeAgent(t, ws, ".gitagent/agents/push/good.yaml", minimalAgent)
	writeAgent(t, ws, ".gitagent/agents/push/broken.yaml", "agent: {type: claude}\n")
	writeAgent(t, ws, ".gitagent/agents/push/off.yaml", minimalAgent+"enabled: false\n")

	c := NewCatalog(".gitagent/agents", 0, discardLogger())
	defs := c.Discover("push", ws)
	require.Len(t, defs, 1)
	assert.Equal(t, "good", defs[0].Agent.Name)
}

func TestDiscoverCachesUntilTTL(t *testing.T) {
	ws := t.TempDir()
	writeAgent(t, ws, ".gitagent/agents/push/first.yaml", minimalAgent)

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCatalog(".gitagent/agents", 5*time.Minute, discardLogger()).
		WithClock(func() time.Time { return clock })

	require.Len(t, c.Discover("push", ws), 1)

	// A new definition inside the TTL window is not seen.
	writeAgent(t, ws, ".gitagent/agents/push/second.yaml", minimalAgent)
	clock = clock.Add(time.Minute)
	assert.Len(t, c.Discover("push", ws), 1)

	// Past the TTL the directory is rescanned.
	clock = clock.Add(5 * time.Minute)
	assert.Len(t, c.Discover("push", ws), 2)
}

func TestDiscoverTTLStampIsGlobal(t *testing.T) {
	ws := t.TempDir()
	writeAgent(t, ws, ".gitagent/agents/push/p.yaml", minimalAgent)
	writeAgent(t, ws, ".gitagent/agents/issues/i.yaml", minimalAgent)

	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewCatalog(".gitagent/agents", 5*time.Minute, discardLogger()).
		WithClock(func() time.Time { return clock })

	require.Len(t, c.Discover("push", ws), 1)

	// A later refresh of a different key restarts the shared stamp,
	// keeping the push entry fresh past its own scan time.
	clock = clock.Add(4 * time.Minute)
	require.Len(t, c.Discover("issues", ws), 1)

	writeAgent(t, ws, ".gitagent/agents/push/extra.yaml", minimalAgent)
	clock = clock.Add(4 * time.Minute)
	assert.Len(t, c.Discover("push", ws), 1)
}
