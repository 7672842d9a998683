package taxcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"taxid/internal/logging"
)

// Cache is the resume-safe mapping from normalized species name to resolved
// TaxID. An empty-string value records a confirmed "searched, not found" and
// is as sticky as a hit; absence of a key means the name was never looked up.
type Cache struct {
	path    string
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]string
}

// New creates an empty cache backed by the given path, ignoring any existing
// snapshot. The next Flush overwrites it. Used when a run starts without
// --resume.
func New(path string, logger *slog.Logger) *Cache {
	return &Cache{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "taxcache"),
		entries: make(map[string]string),
	}
}

// Open creates a cache backed by the given path and loads any existing
// snapshot. A missing, unreadable, or unparseable snapshot starts the cache
// empty rather than failing the caller; the run will simply re-resolve.
func Open(path string, logger *slog.Logger) *Cache {
	logger = logging.NewComponentLogger(logger, "taxcache")

	c := &Cache{
		path:    path,
		logger:  logger,
		entries: make(map[string]string),
	}

	if path == "" {
		return c
	}

	if err := c.load(); err != nil {
		logger.Warn("failed to load cache snapshot",
			logging.String(logging.FieldEventType, "cache_load_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "cache will start empty"),
			logging.String(logging.FieldImpact, "previously resolved names will be re-queried"))
		c.entries = make(map[string]string)
	}

	return c
}

// Get returns the resolved TaxID for a name. The boolean distinguishes a
// cached empty-string miss from a name that was never looked up.
func (c *Cache) Get(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	taxID, found := c.entries[name]
	return taxID, found
}

// Put records a resolution result, including the empty string for a confirmed
// no-match. The entry is kept in memory until the next Flush.
func (c *Cache) Put(name, taxID string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = taxID
}

// Len returns the number of cached names.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Names returns all cached names in lexicographic order.
func (c *Cache) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flush durably persists the full mapping. A temporary sibling file is written
// first and renamed over the snapshot so a crash mid-flush never corrupts the
// previous durable state.
func (c *Cache) Flush() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".part"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	c.logger.Debug("flushed cache snapshot",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))

	return nil
}

// Clear empties the cache and persists the empty snapshot, forcing full
// re-resolution on the next run.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]string)
	c.mu.Unlock()
	return c.Flush()
}

// Path returns the snapshot location backing this cache.
func (c *Cache) Path() string {
	return c.path
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse cache file: %w", err)
	}
	c.entries = entries

	c.logger.Debug("loaded cache snapshot",
		logging.Int("entry_count", len(c.entries)),
		logging.String("path", c.path))

	return nil
}
