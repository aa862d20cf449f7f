package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := New(t.TempDir(), time.Hour)

	k := GenerateKey("func foo() {}", "openai", "gpt-4o-mini", "summarize_code", nil)
	c.Set(k, "does a thing", map[string]any{"tokens_used": 42})

	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, "does a thing", got)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := New(t.TempDir(), time.Hour)

	_, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCache_SurvivesRestartViaDisk(t *testing.T) {
	dir := t.TempDir()
	k := GenerateKey("content", "anthropic", "claude-3-haiku", "summarize_code", nil)

	c1 := New(dir, time.Hour)
	c1.Set(k, "summary text", nil)

	c2 := New(dir, time.Hour)
	got, ok := c2.Get(k)
	require.True(t, ok)
	assert.Equal(t, "summary text", got)
}

func TestCache_ExpiredEntryIsAMiss(t *testing.T) {
	c := New(t.TempDir(), time.Millisecond)
	k := GenerateKey("content", "openai", "gpt-4o-mini", "summarize_code", nil)
	c.Set(k, "stale", nil)

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(k)
	assert.False(t, ok)
}

func TestCache_ExpiredDiskEntryIsDeletedOnRead(t *testing.T) {
	dir := t.TempDir()
	k := GenerateKey("content", "openai", "gpt-4o-mini", "summarize_code", nil)

	c1 := New(dir, time.Millisecond)
	c1.Set(k, "stale", nil)
	time.Sleep(5 * time.Millisecond)

	c2 := New(dir, time.Millisecond)
	_, ok := c2.Get(k)
	assert.False(t, ok)

	_, ok = c1.readDisk(k)
	assert.False(t, ok, "expired disk entry should be unlinked after a failed read")
}

func TestCache_ClearRemovesBothTiers(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, time.Hour)
	k := GenerateKey("content", "openai", "gpt-4o-mini", "summarize_code", nil)
	c.Set(k, "summary", nil)

	c.Clear()

	_, ok := c.Get(k)
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, 0, stats.MemoryEntries)
	assert.Equal(t, 0, stats.DiskEntries)
}

func TestCache_ClearExpiredOnlyRemovesStale(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, 50*time.Millisecond)

	staleKey := GenerateKey("stale content", "openai", "gpt-4o-mini", "summarize_code", nil)
	c.Set(staleKey, "stale", nil)
	time.Sleep(60 * time.Millisecond)

	freshKey := GenerateKey("fresh content", "openai", "gpt-4o-mini", "summarize_code", nil)
	c.Set(freshKey, "fresh", nil)

	removed := c.ClearExpired()
	assert.Equal(t, 1, removed)

	_, ok := c.Get(freshKey)
	assert.True(t, ok)
}

func TestCache_CorruptDiskEntryTreatedAsMiss(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, time.Hour)
	k := GenerateKey("content", "openai", "gpt-4o-mini", "summarize_code", nil)

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(c.path(k), []byte("not json"), 0o644))

	_, ok := c.Get(k)
	assert.False(t, ok)
}
