package agent

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Directories under the agents root whose definitions apply to every
// event type.
var wildcardDirs = []string{"*", "all", "common"}

type cacheEntry struct {
	defs    []*Definition
	stamped time.Time
}

// Catalog discovers agent definitions under a workspace and caches
// them per (event type, directory) key. Staleness is governed by one
// clock shared across all keys: any refresh restarts the TTL for the
// whole cache.
type Catalog struct {
	agentsDir string
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger

	cache   map[string]cacheEntry
	stamped time.Time
}

// NewCatalog creates a catalog rooted at agentsDir (relative to the
// workspace passed to Discover). A zero ttl disables caching.
func NewCatalog(agentsDir string, ttl time.Duration, logger *slog.Logger) *Catalog {
	return &Catalog{
		agentsDir: agentsDir,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
		cache:     make(map[string]cacheEntry),
	}
}

// WithClock replaces the catalog's clock. Tests use this to step time
// deterministically.
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	c.now = now
	return c
}

// Discover returns the enabled, valid agent definitions applicable to
// eventType in the given workspace. Results come from the cache when
// the global TTL stamp is still fresh. A missing agents directory
// yields an empty set.
func (c *Catalog) Discover(eventType, workspace string) []*Definition {
	root := filepath.Join(workspace, c.agentsDir)
	key := eventType + ":" + root

	now := c.now()
	if entry, ok := c.cache[key]; ok && c.ttl > 0 && now.Sub(c.stamped) < c.ttl {
		return entry.defs
	}

	var defs []*Definition
	defs = append(defs, c.loadDir(filepath.Join(root, eventType), eventType)...)
	for _, dir := range wildcardDirs {
		defs = append(defs, c.loadDir(filepath.Join(root, dir), eventType)...)
	}

	c.cache[key] = cacheEntry{defs: defs, stamped: now}
	c.stamped = now

	c.logger.Debug("discovered agents",
		"event_type", eventType,
		"directory", root,
		"count", len(defs))
	return defs
}

// loadDir loads every *.yml and *.yaml file in dir. Invalid or
// disabled definitions are dropped with a log line; a missing
// directory contributes nothing.
func (c *Catalog) loadDir(dir, eventType string) []*Definition {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("failed to read agents directory", "directory", dir, "error", err)
		}
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yml", ".yaml":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var defs []*Definition
	for _, name := range names {
		path := filepath.Join(dir, name)
		def, err := Load(path, eventType)
		if err != nil {
			c.logger.Warn("skipping invalid agent definition", "path", path, "error", err)
			continue
		}
		if !def.Enabled {
			c.logger.Debug("skipping disabled agent", "agent", def.Agent.Name, "path", path)
			continue
		}
		defs = append(defs, def)
	}
	return defs
}
