package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/gomsbuild/construction"
)

func parseRoot(t *testing.T, name string) *construction.ProjectRootElement {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(`<Project></Project>`), 0o644))
	root, err := construction.Open(path)
	require.NoError(t, err)
	return root
}

func TestDocumentCacheGetPut(t *testing.T) {
	dc := NewDocumentCache(4)
	root := parseRoot(t, "a.proj")

	assert.Nil(t, dc.Get("a"))

	dc.Put("a", root)
	assert.Same(t, root, dc.Get("a"))

	stats := dc.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Unpinned)
}

func TestDocumentCachePutReplaces(t *testing.T) {
	dc := NewDocumentCache(4)
	first := parseRoot(t, "a.proj")
	second := parseRoot(t, "b.proj")

	dc.Put("a", first)
	dc.Put("a", second)

	assert.Same(t, second, dc.Get("a"))
	assert.Equal(t, 1, dc.Stats().Entries)
}

func TestDocumentCacheLRUEviction(t *testing.T) {
	dc := NewDocumentCache(2)
	a := parseRoot(t, "a.proj")
	b := parseRoot(t, "b.proj")
	c := parseRoot(t, "c.proj")

	dc.Put("a", a)
	dc.Put("b", b)

	// Refresh "a" so "b" is the eviction candidate.
	require.NotNil(t, dc.Get("a"))

	dc.Put("c", c)

	assert.NotNil(t, dc.Get("a"))
	assert.Nil(t, dc.Get("b"))
	assert.NotNil(t, dc.Get("c"))
}

func TestDocumentCachePinPreventsEviction(t *testing.T) {
	dc := NewDocumentCache(1)
	a := parseRoot(t, "a.proj")
	b := parseRoot(t, "b.proj")

	dc.Put("a", a)
	dc.Pin("a")
	assert.True(t, dc.Pinned("a"))

	// The pinned entry sits outside the LRU list, so filling the budget
	// with other entries never touches it.
	dc.Put("b", b)
	assert.Same(t, a, dc.Get("a"))
	assert.Same(t, b, dc.Get("b"))

	dc.Unpin("a")
	assert.False(t, dc.Pinned("a"))

	// Back in the LRU list; the next insert pushes one entry out.
	dc.Put("c", parseRoot(t, "c.proj"))
	stats := dc.Stats()
	assert.Equal(t, 1, stats.Entries)
}

func TestDocumentCachePinsNest(t *testing.T) {
	dc := NewDocumentCache(4)
	dc.Put("a", parseRoot(t, "a.proj"))

	dc.Pin("a")
	dc.Pin("a")
	dc.Unpin("a")
	assert.True(t, dc.Pinned("a"))

	dc.Unpin("a")
	assert.False(t, dc.Pinned("a"))

	// Extra unpins are ignored.
	dc.Unpin("a")
	assert.False(t, dc.Pinned("a"))
}

func TestDocumentCacheDiscard(t *testing.T) {
	dc := NewDocumentCache(4)
	dc.Put("a", parseRoot(t, "a.proj"))
	dc.Put("b", parseRoot(t, "b.proj"))
	dc.Pin("b")

	assert.True(t, dc.Discard("a"))
	assert.Nil(t, dc.Get("a"))

	// Pinned entries refuse to be discarded.
	assert.False(t, dc.Discard("b"))
	assert.NotNil(t, dc.Get("b"))

	assert.False(t, dc.Discard("missing"))
}

func TestDocumentCacheClearKeepsPinned(t *testing.T) {
	dc := NewDocumentCache(4)
	dc.Put("a", parseRoot(t, "a.proj"))
	dc.Put("b", parseRoot(t, "b.proj"))
	dc.Pin("b")

	dc.Clear()

	assert.Nil(t, dc.Get("a"))
	assert.NotNil(t, dc.Get("b"))
	assert.Equal(t, 1, dc.Stats().Entries)
	assert.Equal(t, 0, dc.Stats().Unpinned)
}

func TestDocumentCachePinUnknownKey(t *testing.T) {
	dc := NewDocumentCache(4)

	// Pinning and unpinning keys that were never cached is a no-op.
	dc.Pin("ghost")
	dc.Unpin("ghost")
	assert.False(t, dc.Pinned("ghost"))
}
