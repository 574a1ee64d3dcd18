package evaluation

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/willibrandon/gomsbuild/cache"
	"github.com/willibrandon/gomsbuild/construction"
	"github.com/willibrandon/gomsbuild/observability"
)

// DefaultToolsVersion is the tools version assumed when neither the caller
// nor the document names one.
const DefaultToolsVersion = "Current"

// defaultDocumentCacheSize bounds how many unpinned import documents stay
// parsed in memory.
const defaultDocumentCacheSize = 256

// CollectionOption configures a ProjectCollection.
type CollectionOption func(*ProjectCollection)

// WithFileSystem replaces the filesystem collaborator, typically with an
// in-memory implementation in tests.
func WithFileSystem(fsys FileSystem) CollectionOption {
	return func(c *ProjectCollection) { c.fsys = fsys }
}

// WithEnvironment replaces the environment property source. The default is
// an empty environment; callers wanting process inheritance pass os.Environ
// parsed into a map.
func WithEnvironment(env map[string]string) CollectionOption {
	return func(c *ProjectCollection) {
		c.environment = make(map[string]string, len(env))
		for k, v := range env {
			c.environment[k] = v
		}
	}
}

// WithLogger replaces the collection logger.
func WithLogger(log observability.Logger) CollectionOption {
	return func(c *ProjectCollection) { c.log = log }
}

// WithDefaultToolsVersion sets the fallback tools version.
func WithDefaultToolsVersion(v string) CollectionOption {
	return func(c *ProjectCollection) { c.defaultToolsVersion = v }
}

// WithGlobalProperties sets collection-wide global properties, inherited by
// every project loaded without its own set.
func WithGlobalProperties(globals map[string]string) CollectionOption {
	return func(c *ProjectCollection) {
		c.globalProperties = make(map[string]string, len(globals))
		for k, v := range globals {
			c.globalProperties[k] = v
		}
	}
}

// ProjectCollection owns a set of loaded projects, the shared document
// cache their import closures draw from, and the toolset registry.
//
// Identity rule: one project per (full path, global properties, tools
// version) triple. Loading the same triple twice returns the same Project;
// registering a distinct equivalent is an error.
type ProjectCollection struct {
	fsys                FileSystem
	log                 observability.Logger
	environment         map[string]string
	globalProperties    map[string]string
	defaultToolsVersion string

	toolsets  *toolsetTable
	documents *cache.DocumentCache

	mu               sync.Mutex
	projects         map[string]*Project // key: identity triple
	disableMarkDirty bool
}

// NewProjectCollection creates a collection with a default toolset
// registered under DefaultToolsVersion.
func NewProjectCollection(opts ...CollectionOption) *ProjectCollection {
	c := &ProjectCollection{
		fsys:                OSFileSystem{},
		log:                 observability.NewNullLogger(),
		environment:         make(map[string]string),
		globalProperties:    make(map[string]string),
		defaultToolsVersion: DefaultToolsVersion,
		toolsets:            newToolsetTable(),
		documents:           cache.NewDocumentCache(defaultDocumentCacheSize),
		projects:            make(map[string]*Project),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.toolsets.get(c.defaultToolsVersion) == nil {
		c.toolsets.register(NewToolset(c.defaultToolsVersion, "", nil))
	}
	return c
}

// RegisterToolset adds or replaces a toolset. Loaded projects become dirty
// and pick up the change on their next reevaluation.
func (c *ProjectCollection) RegisterToolset(t *Toolset) {
	c.toolsets.register(t)
}

// Toolset returns the registered toolset for a version, or nil.
func (c *ProjectCollection) Toolset(toolsVersion string) *Toolset {
	return c.toolsets.get(toolsVersion)
}

// Toolsets returns the registered tools versions in sorted order.
func (c *ProjectCollection) Toolsets() []string {
	return c.toolsets.knownVersions()
}

// RemoveToolset removes a toolset registration. Returns true if present.
func (c *ProjectCollection) RemoveToolset(toolsVersion string) bool {
	return c.toolsets.remove(toolsVersion)
}

func (c *ProjectCollection) resolveToolset(explicit, documentAttr string) (*Toolset, error) {
	return c.toolsets.resolve(explicit, documentAttr, c.defaultToolsVersion)
}

// Environment returns a copy of the environment property source.
func (c *ProjectCollection) Environment() map[string]string {
	out := make(map[string]string, len(c.environment))
	for k, v := range c.environment {
		out[k] = v
	}
	return out
}

// GlobalProperties returns a copy of the collection-wide globals.
func (c *ProjectCollection) GlobalProperties() map[string]string {
	out := make(map[string]string, len(c.globalProperties))
	for k, v := range c.globalProperties {
		out[k] = v
	}
	return out
}

// SetDisableMarkDirty toggles dirty suppression: while set, Project
// mutations that would flag a reevaluation are silently dropped. Tree
// version changes still register, since those are observed, not flagged.
func (c *ProjectCollection) SetDisableMarkDirty(disable bool) {
	c.mu.Lock()
	c.disableMarkDirty = disable
	c.mu.Unlock()
}

// DisableMarkDirty reports whether dirty suppression is active.
func (c *ProjectCollection) DisableMarkDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disableMarkDirty
}

// loadDocument returns the shared parsed root for path, parsing and caching
// it on first use. Import processing goes through here so that two projects
// importing the same file share one document.
func (c *ProjectCollection) loadDocument(path string) (*construction.ProjectRootElement, error) {
	key := importKey(path)
	ctx, span := observability.StartCacheLookupSpan(context.Background(), key)
	if root := c.documents.Get(key); root != nil {
		observability.RecordCacheHit(ctx, true)
		span.End()
		return root, nil
	}
	observability.RecordCacheHit(ctx, false)
	span.End()

	_, parseSpan := observability.StartParseSpan(context.Background(), path)
	root, err := construction.Open(path)
	observability.EndSpanWithError(parseSpan, err)
	if err != nil {
		return nil, err
	}
	c.documents.Put(key, root)
	return root, nil
}

// projectKey builds the identity triple key.
func projectKey(path string, globals map[string]string, toolsVersion string) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(filepath.Clean(path)))
	sb.WriteByte('|')
	sb.WriteString(strings.ToLower(toolsVersion))
	keys := make([]string, 0, len(globals))
	for k := range globals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte('|')
		sb.WriteString(strings.ToLower(k))
		sb.WriteByte('=')
		sb.WriteString(globals[k])
	}
	return sb.String()
}

// LoadProject loads and evaluates the project file at path. Loading an
// already-loaded identity returns the existing Project.
func (c *ProjectCollection) LoadProject(path string, globals map[string]string, toolsVersion string) (*Project, error) {
	return c.LoadProjectWithSettings(path, globals, toolsVersion, LoadSettings{})
}

// LoadProjectWithSettings is LoadProject with explicit import handling.
func (c *ProjectCollection) LoadProjectWithSettings(path string, globals map[string]string, toolsVersion string, settings LoadSettings) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	effectiveGlobals := c.mergedGlobals(globals)
	key := projectKey(abs, effectiveGlobals, toolsVersion)

	c.mu.Lock()
	if existing, ok := c.projects[key]; ok {
		c.mu.Unlock()
		return existing, nil
	}
	c.mu.Unlock()

	root, err := c.loadDocument(abs)
	if err != nil {
		return nil, err
	}
	return c.attachProject(key, root, effectiveGlobals, toolsVersion, settings, false)
}

// AddProject evaluates and registers a project over an existing root,
// typically one built in memory or parsed from a reader. Registering a
// second project with the same identity fails.
func (c *ProjectCollection) AddProject(root *construction.ProjectRootElement, globals map[string]string, toolsVersion string) (*Project, error) {
	return c.AddProjectWithSettings(root, globals, toolsVersion, LoadSettings{})
}

// AddProjectWithSettings is AddProject with explicit import handling.
func (c *ProjectCollection) AddProjectWithSettings(root *construction.ProjectRootElement, globals map[string]string, toolsVersion string, settings LoadSettings) (*Project, error) {
	effectiveGlobals := c.mergedGlobals(globals)
	key := projectKey(root.Path(), effectiveGlobals, toolsVersion)
	docKey := importKey(root.Path())
	if c.documents.Get(docKey) == nil {
		c.documents.Put(docKey, root)
	}
	return c.attachProject(key, root, effectiveGlobals, toolsVersion, settings, true)
}

func (c *ProjectCollection) attachProject(key string, root *construction.ProjectRootElement, globals map[string]string, toolsVersion string, settings LoadSettings, failOnDuplicate bool) (*Project, error) {
	c.mu.Lock()
	if existing, ok := c.projects[key]; ok {
		c.mu.Unlock()
		if failOnDuplicate {
			return nil, &DuplicateProjectError{Path: root.Path(), ToolsVersion: toolsVersion}
		}
		return existing, nil
	}
	c.mu.Unlock()

	p, err := newProject(root, globals, toolsVersion, c, settings)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.projects[key]; ok {
		c.mu.Unlock()
		c.unpinClosure(p)
		if failOnDuplicate {
			return nil, &DuplicateProjectError{Path: root.Path(), ToolsVersion: toolsVersion}
		}
		return existing, nil
	}
	c.projects[key] = p
	observability.ProjectsLoaded.Set(float64(len(c.projects)))
	c.mu.Unlock()

	c.log.Debug("loaded project {Path} ({ToolsVersion})", root.Path(), p.ToolsVersion())
	return p, nil
}

func (c *ProjectCollection) mergedGlobals(globals map[string]string) map[string]string {
	merged := make(map[string]string, len(c.globalProperties)+len(globals))
	for k, v := range c.globalProperties {
		merged[k] = v
	}
	for k, v := range globals {
		merged[k] = v
	}
	return merged
}

// repinClosure moves document pins from a project's previous import
// closure to its new one. New pins land before old ones release so a
// document in both closures never becomes transiently evictable.
func (c *ProjectCollection) repinClosure(old, new []*ImportEntry) {
	for _, entry := range new {
		if entry.ImportedRoot != nil && !entry.Duplicate {
			c.documents.Pin(importKey(entry.ResolvedPath))
		}
	}
	for _, entry := range old {
		if entry.ImportedRoot != nil && !entry.Duplicate {
			c.documents.Unpin(importKey(entry.ResolvedPath))
		}
	}
}

func (c *ProjectCollection) unpinClosure(p *Project) {
	c.repinClosure(p.Imports(), nil)
}

// LoadedProjects returns every loaded project, in no particular order.
func (c *ProjectCollection) LoadedProjects() []*Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Project, 0, len(c.projects))
	for _, p := range c.projects {
		out = append(out, p)
	}
	return out
}

// GetLoadedProjects returns the loaded projects for one full path across
// all global-property and tools-version variants.
func (c *ProjectCollection) GetLoadedProjects(path string) []*Project {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Project
	for _, p := range c.projects {
		if strings.EqualFold(filepath.Clean(p.FullPath()), filepath.Clean(abs)) {
			out = append(out, p)
		}
	}
	return out
}

// UnloadProject removes a project from the collection and releases its
// pins on the document cache.
func (c *ProjectCollection) UnloadProject(p *Project) error {
	c.mu.Lock()
	found := ""
	for key, loaded := range c.projects {
		if loaded == p {
			found = key
			break
		}
	}
	if found == "" {
		c.mu.Unlock()
		return fmt.Errorf("project %q is not loaded in this collection", p.FullPath())
	}
	delete(c.projects, found)
	observability.ProjectsLoaded.Set(float64(len(c.projects)))
	c.mu.Unlock()

	c.unpinClosure(p)
	return nil
}

// UnloadDocument discards a cached document that no loaded project
// references. Unloading a document still pinned by a project fails with
// ProjectInUseError naming a referencing project.
func (c *ProjectCollection) UnloadDocument(path string) error {
	key := importKey(path)
	if c.documents.Pinned(key) {
		if by := c.referencingProject(key); by != "" {
			return &ProjectInUseError{Path: path, ReferencedBy: by}
		}
		return &ProjectInUseError{Path: path}
	}
	c.documents.Discard(key)
	return nil
}

func (c *ProjectCollection) referencingProject(docKey string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.projects {
		for _, entry := range p.Imports() {
			if entry.ImportedRoot != nil && importKey(entry.ResolvedPath) == docKey {
				return p.FullPath()
			}
		}
	}
	return ""
}

// UnloadAllProjects drops every loaded project and clears the unpinned
// document cache.
func (c *ProjectCollection) UnloadAllProjects() {
	c.mu.Lock()
	projects := make([]*Project, 0, len(c.projects))
	for _, p := range c.projects {
		projects = append(projects, p)
	}
	c.projects = make(map[string]*Project)
	observability.ProjectsLoaded.Set(0)
	c.mu.Unlock()

	for _, p := range projects {
		c.unpinClosure(p)
	}
	c.documents.Clear()
}
