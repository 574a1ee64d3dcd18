// Package cache provides in-memory caching for parsed project documents.
package cache

import (
	"container/list"
	"sync"

	"github.com/willibrandon/gomsbuild/construction"
	"github.com/willibrandon/gomsbuild/observability"
)

// DocumentCache is an LRU cache of parsed project roots keyed by path.
//
// Roots are shared by reference: every consumer asking for the same path
// gets the same *ProjectRootElement, which is what makes cross-project
// import sharing and version-based dirty checks work. Entries referenced
// by a loaded project are pinned and never evicted; unpinned entries
// (typically import-only files) are evicted least-recently-used once the
// cache exceeds its entry budget.
type DocumentCache struct {
	maxEntries int

	mu      sync.Mutex
	entries map[string]*list.Element // key -> list element
	lruList *list.List               // unpinned LRU order, front = most recent
}

// docEntry wraps one cached root. pins counts loaded projects holding the
// document; a pinned entry lives outside the LRU list until fully unpinned.
type docEntry struct {
	key  string
	root *construction.ProjectRootElement
	pins int
}

// NewDocumentCache creates a document cache evicting unpinned entries
// beyond maxEntries.
func NewDocumentCache(maxEntries int) *DocumentCache {
	return &DocumentCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		lruList:    list.New(),
	}
}

// Get returns the cached root for key, or nil. A hit refreshes the entry's
// LRU position.
func (dc *DocumentCache) Get(key string) *construction.ProjectRootElement {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	elem, ok := dc.entries[key]
	if !ok {
		observability.DocumentCacheMissesTotal.Inc()
		return nil
	}
	observability.DocumentCacheHitsTotal.Inc()
	entry := elem.Value.(*docEntry)
	if entry.pins == 0 {
		dc.lruList.MoveToFront(elem)
	}
	return entry.root
}

// Put caches root under key, replacing any previous entry for the key.
func (dc *DocumentCache) Put(key string, root *construction.ProjectRootElement) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if elem, ok := dc.entries[key]; ok {
		elem.Value.(*docEntry).root = root
		if elem.Value.(*docEntry).pins == 0 {
			dc.lruList.MoveToFront(elem)
		}
		return
	}
	entry := &docEntry{key: key, root: root}
	elem := dc.lruList.PushFront(entry)
	dc.entries[key] = elem
	dc.evictIfNeeded()
	observability.DocumentCacheEntries.Set(float64(len(dc.entries)))
}

// Pin marks the entry for key as referenced by a loaded project, removing
// it from eviction consideration. Pins nest.
func (dc *DocumentCache) Pin(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	elem, ok := dc.entries[key]
	if !ok {
		return
	}
	entry := elem.Value.(*docEntry)
	if entry.pins == 0 {
		dc.lruList.Remove(elem)
	}
	entry.pins++
}

// Unpin releases one pin. When the last pin drops, the entry rejoins the
// LRU list as most recently used.
func (dc *DocumentCache) Unpin(key string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	elem, ok := dc.entries[key]
	if !ok {
		return
	}
	entry := elem.Value.(*docEntry)
	if entry.pins == 0 {
		return
	}
	entry.pins--
	if entry.pins == 0 {
		dc.entries[key] = dc.lruList.PushFront(entry)
		dc.evictIfNeeded()
		observability.DocumentCacheEntries.Set(float64(len(dc.entries)))
	}
}

// Pinned reports whether key is currently pinned.
func (dc *DocumentCache) Pinned(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if elem, ok := dc.entries[key]; ok {
		return elem.Value.(*docEntry).pins > 0
	}
	return false
}

// Discard drops the entry for key regardless of LRU position. Pinned
// entries are not discarded; the caller must resolve references first.
// Returns true if the entry was removed.
func (dc *DocumentCache) Discard(key string) bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	elem, ok := dc.entries[key]
	if !ok {
		return false
	}
	entry := elem.Value.(*docEntry)
	if entry.pins > 0 {
		return false
	}
	dc.lruList.Remove(elem)
	delete(dc.entries, key)
	observability.DocumentCacheEntries.Set(float64(len(dc.entries)))
	return true
}

// Clear drops every unpinned entry.
func (dc *DocumentCache) Clear() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for e := dc.lruList.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*docEntry)
		dc.lruList.Remove(e)
		delete(dc.entries, entry.key)
		e = next
	}
	observability.DocumentCacheEntries.Set(float64(len(dc.entries)))
}

// Stats returns cache statistics.
func (dc *DocumentCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return Stats{
		Entries:  len(dc.entries),
		Unpinned: dc.lruList.Len(),
	}
}

// evictIfNeeded evicts least recently used unpinned entries until within
// the entry budget (must hold lock).
func (dc *DocumentCache) evictIfNeeded() {
	for dc.lruList.Len() > dc.maxEntries {
		elem := dc.lruList.Back()
		if elem == nil {
			return
		}
		entry := elem.Value.(*docEntry)
		dc.lruList.Remove(elem)
		delete(dc.entries, entry.key)
	}
}

// Stats holds cache statistics.
type Stats struct {
	Entries  int
	Unpinned int
}
