package evaluation

import (
	"sort"
	"strings"
	"sync"
)

// Toolset is one named set of engine defaults: a tools version string, the
// directory its build logic lives in, and the properties it contributes at
// toolset precedence.
type Toolset struct {
	toolsVersion string
	toolsPath    string
	properties   map[string]string // original-cased name -> escaped value
}

// NewToolset returns a toolset. properties may be nil.
func NewToolset(toolsVersion, toolsPath string, properties map[string]string) *Toolset {
	t := &Toolset{
		toolsVersion: toolsVersion,
		toolsPath:    toolsPath,
		properties:   make(map[string]string, len(properties)),
	}
	for k, v := range properties {
		t.properties[k] = v
	}
	return t
}

// ToolsVersion returns the version string this toolset registers under.
func (t *Toolset) ToolsVersion() string { return t.toolsVersion }

// ToolsPath returns the toolset's root directory.
func (t *Toolset) ToolsPath() string { return t.toolsPath }

// Properties returns the toolset's contributed properties in name order.
func (t *Toolset) Properties() map[string]string {
	out := make(map[string]string, len(t.properties))
	for k, v := range t.properties {
		out[k] = v
	}
	return out
}

// toolsetTable is the registry of toolsets a collection owns. Changing the
// table bumps its version so loaded projects can detect staleness.
type toolsetTable struct {
	mu       sync.Mutex
	toolsets map[string]*Toolset // key: lower-cased tools version
	version  int64
}

func newToolsetTable() *toolsetTable {
	return &toolsetTable{toolsets: make(map[string]*Toolset)}
}

func (tt *toolsetTable) register(t *Toolset) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.toolsets[strings.ToLower(t.toolsVersion)] = t
	tt.version++
}

func (tt *toolsetTable) remove(toolsVersion string) bool {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	key := strings.ToLower(toolsVersion)
	if _, ok := tt.toolsets[key]; !ok {
		return false
	}
	delete(tt.toolsets, key)
	tt.version++
	return true
}

func (tt *toolsetTable) get(toolsVersion string) *Toolset {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.toolsets[strings.ToLower(toolsVersion)]
}

func (tt *toolsetTable) currentVersion() int64 {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	return tt.version
}

func (tt *toolsetTable) knownVersions() []string {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	versions := make([]string, 0, len(tt.toolsets))
	for _, t := range tt.toolsets {
		versions = append(versions, t.toolsVersion)
	}
	sort.Strings(versions)
	return versions
}

// resolve picks the effective tools version: an explicit override wins,
// then the document's ToolsVersion attribute, then the collection default.
// The winner must name a registered toolset.
func (tt *toolsetTable) resolve(explicit, documentAttr, defaultVersion string) (*Toolset, error) {
	effective := defaultVersion
	if documentAttr != "" {
		effective = documentAttr
	}
	if explicit != "" {
		effective = explicit
	}
	if ts := tt.get(effective); ts != nil {
		return ts, nil
	}
	return nil, &ToolsVersionNotFoundError{ToolsVersion: effective, Known: tt.knownVersions()}
}
