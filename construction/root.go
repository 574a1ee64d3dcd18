package construction

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ProjectRootElement is the root of a parsed project document.
//
// A root may be shared by reference across multiple consumers (a common
// imported targets file, for instance), so structural mutation and version
// increments are serialized through an internal lock. The version counter is
// monotonic; consumers record the version they evaluated against and compare
// it later for cheap dirty detection.
type ProjectRootElement struct {
	elementBase
	container

	path           string
	defaultTargets string
	initialTargets string
	toolsVersion   string

	mu       sync.Mutex
	version  int64
	modified bool

	rawBytes []byte
}

// Open reads and parses the project file at path.
func Open(path string) (*ProjectRootElement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return parseDocument(data, abs)
}

// Parse parses project markup from r. The given path is used for source
// locations and for resolving relative imports; it need not exist on disk.
func Parse(r io.Reader, path string) (*ProjectRootElement, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read project markup: %w", err)
	}
	return parseDocument(data, path)
}

// Create returns an empty in-memory project root associated with path.
func Create(path string) *ProjectRootElement {
	root := &ProjectRootElement{
		elementBase: elementBase{name: "Project", loc: Location{File: path, Line: 1, Column: 1}},
		path:        path,
	}
	root.root = root
	return root
}

// Path returns the full path this root was loaded from or created with.
func (r *ProjectRootElement) Path() string { return r.path }

// DirectoryPath returns the directory containing the project file, used to
// resolve relative import and item paths.
func (r *ProjectRootElement) DirectoryPath() string {
	return filepath.Dir(r.path)
}

// DefaultTargets returns the raw DefaultTargets attribute text.
func (r *ProjectRootElement) DefaultTargets() string { return r.defaultTargets }

// InitialTargets returns the raw InitialTargets attribute text.
func (r *ProjectRootElement) InitialTargets() string { return r.initialTargets }

// ToolsVersion returns the raw ToolsVersion attribute text.
func (r *ProjectRootElement) ToolsVersion() string { return r.toolsVersion }

// SetDefaultTargets replaces the DefaultTargets attribute.
func (r *ProjectRootElement) SetDefaultTargets(targets string) {
	r.defaultTargets = targets
	r.bumpVersion()
}

// Version returns the current mutation counter. Any structural change
// through this API increments it.
func (r *ProjectRootElement) Version() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// HasUnsavedChanges reports whether the tree was mutated since load or the
// last successful Save.
func (r *ProjectRootElement) HasUnsavedChanges() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modified
}

func (r *ProjectRootElement) bumpVersion() {
	r.mu.Lock()
	r.version++
	r.modified = true
	r.mu.Unlock()
}

// PropertyGroups returns the direct PropertyGroup children in document order.
func (r *ProjectRootElement) PropertyGroups() []*PropertyGroupElement {
	groups := make([]*PropertyGroupElement, 0, len(r.children))
	for _, child := range r.children {
		if g, ok := child.(*PropertyGroupElement); ok {
			groups = append(groups, g)
		}
	}
	return groups
}

// ItemGroups returns the direct ItemGroup children in document order.
func (r *ProjectRootElement) ItemGroups() []*ItemGroupElement {
	groups := make([]*ItemGroupElement, 0, len(r.children))
	for _, child := range r.children {
		if g, ok := child.(*ItemGroupElement); ok {
			groups = append(groups, g)
		}
	}
	return groups
}

// Targets returns the Target children in document order.
func (r *ProjectRootElement) Targets() []*TargetElement {
	targets := make([]*TargetElement, 0, len(r.children))
	for _, child := range r.children {
		if t, ok := child.(*TargetElement); ok {
			targets = append(targets, t)
		}
	}
	return targets
}

// Imports returns the direct Import children, including those nested one
// level down inside ImportGroups, in document order.
func (r *ProjectRootElement) Imports() []*ImportElement {
	var imports []*ImportElement
	for _, child := range r.children {
		switch el := child.(type) {
		case *ImportElement:
			imports = append(imports, el)
		case *ImportGroupElement:
			imports = append(imports, el.Imports()...)
		}
	}
	return imports
}

// AddPropertyGroup appends an empty PropertyGroup to the project.
func (r *ProjectRootElement) AddPropertyGroup() *PropertyGroupElement {
	g := &PropertyGroupElement{elementBase: elementBase{name: "PropertyGroup"}}
	adopt(r, r, &r.container, g)
	r.bumpVersion()
	return g
}

// AddItemGroup appends an empty ItemGroup to the project.
func (r *ProjectRootElement) AddItemGroup() *ItemGroupElement {
	g := &ItemGroupElement{elementBase: elementBase{name: "ItemGroup"}}
	adopt(r, r, &r.container, g)
	r.bumpVersion()
	return g
}

// AddImport appends an Import of the given project path expression.
func (r *ProjectRootElement) AddImport(project string) *ImportElement {
	imp := &ImportElement{
		elementBase: elementBase{name: "Import"},
		project:     project,
	}
	adopt(r, r, &r.container, imp)
	r.bumpVersion()
	return imp
}

// AddTarget appends an empty Target with the given name.
func (r *ProjectRootElement) AddTarget(name string) *TargetElement {
	t := &TargetElement{
		elementBase: elementBase{name: "Target"},
		targetName:  name,
	}
	adopt(r, r, &r.container, t)
	r.bumpVersion()
	return t
}

// SetProperty updates the last unconditional assignment of the named
// property, or appends a new assignment to the first unconditional
// PropertyGroup (creating one if necessary). Returns the affected element.
func (r *ProjectRootElement) SetProperty(name, value string) *PropertyElement {
	var last *PropertyElement
	var firstGroup *PropertyGroupElement
	for _, g := range r.PropertyGroups() {
		if g.Condition() != "" {
			continue
		}
		if firstGroup == nil {
			firstGroup = g
		}
		for _, p := range g.Properties() {
			if p.Condition() == "" && strings.EqualFold(p.Name(), name) {
				last = p
			}
		}
	}
	if last != nil {
		last.SetValue(value)
		return last
	}
	if firstGroup == nil {
		firstGroup = r.AddPropertyGroup()
	}
	return firstGroup.AddProperty(name, value)
}

// AddItem appends an item to the last unconditional ItemGroup already
// holding items of the same type, or to a new ItemGroup. The item and its
// metadata attach atomically.
func (r *ProjectRootElement) AddItem(itemType, include string, metadata map[string]string) *ItemElement {
	var target *ItemGroupElement
	for _, g := range r.ItemGroups() {
		if g.Condition() != "" {
			continue
		}
		for _, it := range g.Items() {
			if strings.EqualFold(it.ItemType(), itemType) {
				target = g
			}
		}
	}
	if target == nil {
		target = r.AddItemGroup()
	}
	return target.AddItem(itemType, include, metadata)
}

// RemoveElement detaches child from its parent anywhere in this tree.
// Returns false if the child's parent is not part of this tree.
func (r *ProjectRootElement) RemoveElement(child Element) bool {
	parent := child.Parent()
	if parent == nil || child.Root() != r {
		return false
	}
	if pc, ok := parent.(interface{ removeChild(Element) bool }); ok {
		if pc.removeChild(child) {
			child.setParent(nil)
			r.bumpVersion()
			return true
		}
	}
	return false
}

// Save writes the document back to its path. An unmodified tree writes the
// original bytes verbatim, preserving formatting; a modified tree is
// re-serialized with canonical two-space indentation.
func (r *ProjectRootElement) Save() error {
	var buf bytes.Buffer
	if err := r.Write(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(r.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write project file: %w", err)
	}
	r.mu.Lock()
	r.modified = false
	r.mu.Unlock()
	return nil
}

// Write serializes the document to w, applying the same formatting rules
// as Save.
func (r *ProjectRootElement) Write(w io.Writer) error {
	r.mu.Lock()
	unmodified := !r.modified && r.rawBytes != nil
	raw := r.rawBytes
	r.mu.Unlock()

	if unmodified {
		_, err := w.Write(raw)
		return err
	}
	return writeDocument(w, r)
}
