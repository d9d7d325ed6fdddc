package staleness

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// stampSuffix marks sentinel files; the registry and anything else dropped in
// the cache root are still subject to Prune.
const stampSuffix = ".stamp"

// Cache tracks "last checked" timestamps as sentinel files under a root
// directory. A sentinel's modification time is the timestamp.
type Cache struct {
	root string
	now  func() time.Time
}

// New returns a cache rooted at root. The directory is created on first write.
func New(root string) *Cache {
	return &Cache{root: root, now: time.Now}
}

// Root returns the cache directory
func (c *Cache) Root() string {
	return c.root
}

// Limit returns the staleness boundary for interval, relative to now.
func (c *Cache) Limit(interval time.Duration) time.Time {
	return c.now().Add(-interval)
}

// IsStale reports whether key has never been checked or was last checked
// more than interval ago.
func (c *Cache) IsStale(key string, interval time.Duration) bool {
	return c.StaleSince(key, c.Limit(interval))
}

// StaleSince reports whether key is missing or older than limit.
func (c *Cache) StaleSince(key string, limit time.Time) bool {
	checked, ok := c.LastChecked(key)
	if !ok {
		return true
	}
	return checked.Before(limit)
}

// LastChecked returns the timestamp recorded for key, if any.
func (c *Cache) LastChecked(key string) (time.Time, bool) {
	info, err := os.Stat(c.path(key))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// MarkChecked records now as the last check time for key.
func (c *Cache) MarkChecked(key string) error {
	if err := os.MkdirAll(c.root, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := c.path(key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create stamp %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close stamp %s: %w", key, err)
	}

	now := c.now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("failed to touch stamp %s: %w", key, err)
	}
	return nil
}

// Prune deletes every regular file in the cache root last modified more than
// maxAge ago. Individual deletion failures are ignored. A missing root is not
// an error.
func (c *Cache) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	cutoff := c.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.root, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.root, key+stampSuffix)
}
