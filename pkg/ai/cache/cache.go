// Package cache implements the two-tier (memory + disk) content-addressed
// summary cache described in SPEC_FULL.md §4.3, ported from
// original_source/codeconcat/ai/cache.py's SummaryCache.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tsanders/codeconcat-ai/pkg/ai/providers/common"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "cache")

// Entry is the persisted shape of one cache record.
type Entry struct {
	Summary   string         `json:"summary"`
	Timestamp float64        `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

// Cache is a two-tier content-addressed store: an in-memory map guarded by
// a mutex, backed by one JSON file per key under Dir. Corrupt or unreadable
// disk entries are treated as misses and deleted.
type Cache struct {
	mu    sync.Mutex
	mem   map[string]Entry
	Dir   string
	TTL   time.Duration
}

// New creates a cache rooted at dir with the given TTL. dir is created lazily
// on first disk write.
func New(dir string, ttl time.Duration) *Cache {
	return &Cache{
		mem: make(map[string]Entry),
		Dir: dir,
		TTL: ttl,
	}
}

// GenerateKey derives the bit-exact cache key for (content, provider, model,
// operation, extra).
func GenerateKey(content, provider, model, operation string, extra map[string]any) string {
	return common.CacheKey(content, provider, model, operation, extra)
}

// Get returns the cached summary for k, or ("", false) on a miss (including
// an expired or corrupt entry, both of which are deleted as a side effect).
func (c *Cache) Get(k string) (string, bool) {
	c.mu.Lock()
	entry, ok := c.mem[k]
	if ok {
		if c.fresh(entry) {
			c.mu.Unlock()
			return entry.Summary, true
		}
		delete(c.mem, k)
	}
	c.mu.Unlock()

	entry, ok = c.readDisk(k)
	if !ok {
		return "", false
	}
	if !c.fresh(entry) {
		c.deleteDisk(k)
		return "", false
	}

	c.mu.Lock()
	c.mem[k] = entry
	c.mu.Unlock()
	return entry.Summary, true
}

// Set writes summary under k to both tiers. Disk persistence is best-effort:
// an I/O error is logged and swallowed, since the cache remains correct in
// memory either way.
func (c *Cache) Set(k, summary string, metadata map[string]any) {
	entry := Entry{
		Summary:   summary,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Metadata:  metadata,
	}

	c.mu.Lock()
	c.mem[k] = entry
	c.mu.Unlock()

	if err := c.writeDisk(k, entry); err != nil {
		log.WithError(err).WithField("key", k).Debug("cache disk write failed, continuing in-memory only")
	}
}

// Clear empties the memory tier and unlinks every *.json file under Dir.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.mem = make(map[string]Entry)
	c.mu.Unlock()

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".json" {
			_ = os.Remove(filepath.Join(c.Dir, e.Name()))
		}
	}
}

// ClearExpired sweeps both tiers, deleting entries older than TTL.
func (c *Cache) ClearExpired() int {
	removed := 0

	c.mu.Lock()
	for k, entry := range c.mem {
		if !c.fresh(entry) {
			delete(c.mem, k)
			removed++
		}
	}
	c.mu.Unlock()

	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return removed
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		key := e.Name()[:len(e.Name())-len(".json")]
		entry, ok := c.readDisk(key)
		if !ok || !c.fresh(entry) {
			c.deleteDisk(key)
		}
	}
	return removed
}

// Stats summarizes the cache's current footprint.
type Stats struct {
	MemoryEntries int
	DiskEntries   int
	DiskBytes     int64
}

// Stats returns counts and total disk bytes used by the cache.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	memCount := len(c.mem)
	c.mu.Unlock()

	var diskCount int
	var diskBytes int64
	entries, err := os.ReadDir(c.Dir)
	if err == nil {
		for _, e := range entries {
			if filepath.Ext(e.Name()) != ".json" {
				continue
			}
			diskCount++
			if info, err := e.Info(); err == nil {
				diskBytes += info.Size()
			}
		}
	}

	return Stats{MemoryEntries: memCount, DiskEntries: diskCount, DiskBytes: diskBytes}
}

func (c *Cache) fresh(e Entry) bool {
	age := time.Since(time.Unix(0, int64(e.Timestamp*float64(time.Second))))
	return age < c.TTL
}

func (c *Cache) path(k string) string {
	return filepath.Join(c.Dir, k+".json")
}

func (c *Cache) readDisk(k string) (Entry, bool) {
	data, err := os.ReadFile(c.path(k))
	if err != nil {
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.deleteDisk(k)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) writeDisk(k string, entry Entry) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(k), data, 0o644)
}

func (c *Cache) deleteDisk(k string) {
	_ = os.Remove(c.path(k))
}
