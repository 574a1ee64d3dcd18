package evaluation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/willibrandon/gomsbuild/construction"
	"github.com/willibrandon/gomsbuild/observability"
)

// Project is an evaluated project: a construction root plus the result of
// running the evaluation passes over it and its import closure.
//
// A Project caches its evaluation. Mutations (to the backing tree, to
// global properties, to the collection's toolsets) make it dirty;
// ReevaluateIfNecessary rebuilds the evaluated state from scratch when and
// only when something actually changed.
type Project struct {
	root       *construction.ProjectRootElement
	collection *ProjectCollection
	settings   LoadSettings
	log        observability.Logger

	// explicitToolsVersion is the caller's override, or "" to use the
	// document attribute or collection default.
	explicitToolsVersion string

	mu               sync.Mutex
	globalProperties map[string]string
	data             *evalData
	view             *DataView
	dirty            bool
	lastRootVersion  int64
	lastToolsetsSeen int64
	evaluationCount  int
}

func newProject(root *construction.ProjectRootElement, globals map[string]string, toolsVersion string, collection *ProjectCollection, settings LoadSettings) (*Project, error) {
	p := &Project{
		root:                 root,
		collection:           collection,
		settings:             settings,
		log:                  collection.log.ForContext("project", root.Path()),
		explicitToolsVersion: toolsVersion,
		globalProperties:     make(map[string]string, len(globals)),
	}
	for k, v := range globals {
		p.globalProperties[k] = v
	}
	if err := p.reevaluate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Xml returns the backing construction root. Mutations through it dirty
// the project via the root's version counter.
func (p *Project) Xml() *construction.ProjectRootElement { return p.root }

// FullPath returns the project file path.
func (p *Project) FullPath() string { return p.root.Path() }

// DirectoryPath returns the project directory.
func (p *Project) DirectoryPath() string { return p.root.DirectoryPath() }

// EvaluationCount returns how many evaluations this project has run. Each
// successful (re)evaluation increments it, so callers can cheaply detect
// that cached derived state is stale.
func (p *Project) EvaluationCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evaluationCount
}

// View returns the read-only evaluated state of the latest evaluation.
func (p *Project) View() *DataView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// GetPropertyValue returns the unescaped evaluated value of name, or "".
func (p *Project) GetPropertyValue(name string) string {
	return p.View().PropertyValue(name)
}

// GetProperty returns the live evaluated property for name, or nil.
func (p *Project) GetProperty(name string) *Property {
	return p.View().Property(name)
}

// Properties returns the live evaluated properties sorted by name.
func (p *Project) Properties() []*Property { return p.View().Properties() }

// Items returns every conditioned item in declaration order.
func (p *Project) Items() []*Item { return p.View().Items() }

// ItemsOf returns the conditioned items of one type in declaration order.
func (p *Project) ItemsOf(itemType string) []*Item { return p.View().ItemsOf(itemType) }

// ItemsByEvaluatedInclude returns the conditioned items of any type whose
// evaluated include equals include, compared case-insensitively.
func (p *Project) ItemsByEvaluatedInclude(include string) []*Item {
	return p.View().ItemsByEvaluatedInclude(include)
}

// ItemsIgnoringCondition returns the items evaluated as if every item and
// item group condition were true.
func (p *Project) ItemsIgnoringCondition() []*Item { return p.View().ItemsIgnoringCondition() }

// Targets returns the surviving targets in first-registration order.
func (p *Project) Targets() []*Target { return p.View().Targets() }

// Target returns the target registered under name, or nil.
func (p *Project) Target(name string) *Target { return p.View().Target(name) }

// DefaultTargets returns the expanded default target names.
func (p *Project) DefaultTargets() []string { return p.View().DefaultTargets() }

// InitialTargets returns the accumulated initial target names.
func (p *Project) InitialTargets() []string { return p.View().InitialTargets() }

// Imports returns every import occurrence the last evaluation considered.
func (p *Project) Imports() []*ImportEntry { return p.View().Imports() }

// ConditionedProperties returns the property-to-literal hints harvested
// from conditions during the last evaluation.
func (p *Project) ConditionedProperties() map[string][]string {
	return p.View().ConditionedProperties()
}

// ToolsVersion returns the effective tools version of the last evaluation.
func (p *Project) ToolsVersion() string { return p.View().ToolsVersion() }

// GlobalProperties returns a copy of the project's global properties.
func (p *Project) GlobalProperties() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.globalProperties))
	for k, v := range p.globalProperties {
		out[k] = v
	}
	return out
}

// SetProperty writes a property assignment into the backing tree (see
// ProjectRootElement.SetProperty) and dirties the project. Reserved names
// are rejected; assigning a name that is global is an error because the
// assignment could never win.
func (p *Project) SetProperty(name, value string) (*construction.PropertyElement, error) {
	if IsReservedPropertyName(name) {
		return nil, fmt.Errorf("property %q is reserved and cannot be set", name)
	}
	p.mu.Lock()
	for k := range p.globalProperties {
		if strings.EqualFold(k, name) {
			p.mu.Unlock()
			return nil, fmt.Errorf("property %q is a global property; use SetGlobalProperty", name)
		}
	}
	p.mu.Unlock()
	return p.root.SetProperty(name, value), nil
}

// SetGlobalProperty sets a global property, dirtying the project when the
// value actually changes. Returns true if anything changed.
func (p *Project) SetGlobalProperty(name, value string) bool {
	p.mu.Lock()
	for k, v := range p.globalProperties {
		if strings.EqualFold(k, name) {
			if v == value {
				p.mu.Unlock()
				return false
			}
			delete(p.globalProperties, k)
			break
		}
	}
	p.globalProperties[name] = value
	p.mu.Unlock()
	p.MarkDirty()
	return true
}

// RemoveGlobalProperty removes a global property. Returns true if it was
// present.
func (p *Project) RemoveGlobalProperty(name string) bool {
	p.mu.Lock()
	removed := false
	for k := range p.globalProperties {
		if strings.EqualFold(k, name) {
			delete(p.globalProperties, k)
			removed = true
			break
		}
	}
	p.mu.Unlock()
	if removed {
		p.MarkDirty()
	}
	return removed
}

// AddItem writes an item declaration into the backing tree and dirties the
// project. The evaluated collections update on the next reevaluation.
func (p *Project) AddItem(itemType, include string, metadata map[string]string) *construction.ItemElement {
	return p.root.AddItem(itemType, include, metadata)
}

// RemoveItem removes one evaluated item and reconciles the backing tree.
// When the originating element produced exactly this item, the element is
// removed. When it produced several (a list or wildcard include), the
// element is split: each surviving sibling is materialized as its own
// single-include element carrying the original explicit metadata, and the
// original element is removed.
func (p *Project) RemoveItem(item *Item) error {
	if item == nil || item.Source == nil {
		return fmt.Errorf("item does not originate from this project's markup")
	}
	p.mu.Lock()
	owned := false
	var siblings []*Item
	for _, it := range p.data.ItemsOf(item.ItemType()) {
		if it == item {
			owned = true
			continue
		}
		if it.Source == item.Source {
			siblings = append(siblings, it)
		}
	}
	if !owned {
		p.mu.Unlock()
		return fmt.Errorf("item %q is not part of the current evaluation", item.EvaluatedInclude())
	}

	// Drop the item from the evaluated collections so reads are coherent
	// before the next reevaluation.
	p.data.removeItems(item.ItemType(), map[*Item]bool{item: true})
	p.mu.Unlock()

	el := item.Source
	if len(siblings) > 0 {
		group, ok := el.Parent().(*construction.ItemGroupElement)
		if !ok {
			return fmt.Errorf("item %q has no containing item group", item.EvaluatedInclude())
		}
		meta := make(map[string]string)
		for _, m := range el.Metadata() {
			meta[m.Name()] = m.Value()
		}
		for _, s := range siblings {
			group.AddItem(el.ItemType(), s.EvaluatedIncludeEscaped(), meta)
		}
	}
	if !p.root.RemoveElement(el) {
		return fmt.Errorf("item element for %q could not be removed", item.EvaluatedInclude())
	}
	return nil
}

// MarkDirty flags the project for reevaluation. A no-op when the owning
// collection has dirtying disabled.
func (p *Project) MarkDirty() {
	if p.collection.DisableMarkDirty() {
		return
	}
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// IsDirty reports whether the evaluated state may be stale: an explicit
// MarkDirty, a mutation of the root or of any imported document since the
// last evaluation, or a toolset registry change.
func (p *Project) IsDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isDirtyLocked()
}

func (p *Project) isDirtyLocked() bool {
	if p.dirty {
		return true
	}
	if p.root.Version() != p.lastRootVersion {
		return true
	}
	for _, entry := range p.data.imports {
		if entry.ImportedRoot != nil && entry.ImportedRoot.Version() != entry.VersionAtImport {
			return true
		}
	}
	return p.collection.toolsets.currentVersion() != p.lastToolsetsSeen
}

// ReevaluateIfNecessary rebuilds the evaluated state if the project is
// dirty. A clean project returns immediately.
func (p *Project) ReevaluateIfNecessary() error {
	if !p.IsDirty() {
		return nil
	}
	return p.reevaluate()
}

// reevaluate always runs a full evaluation from a fresh state; there is no
// incremental path, by contract.
func (p *Project) reevaluate() error {
	p.mu.Lock()
	globals := make(map[string]string, len(p.globalProperties))
	for k, v := range p.globalProperties {
		globals[k] = v
	}
	p.mu.Unlock()

	toolset, err := p.collection.resolveToolset(p.explicitToolsVersion, p.root.ToolsVersion())
	if err != nil {
		return err
	}
	toolsetsSeen := p.collection.toolsets.currentVersion()
	rootVersion := p.root.Version()

	evalID := uuid.NewString()
	_, span := observability.StartEvaluationSpan(context.Background(), p.root.Path(), toolset.ToolsVersion(), evalID)
	start := time.Now()

	data, err := evaluate(evalInput{
		root:             p.root,
		globalProperties: globals,
		toolset:          toolset,
		environment:      p.collection.Environment(),
		fsys:             p.collection.fsys,
		loadDocument:     p.collection.loadDocument,
		settings:         p.settings,
		log:              p.log.ForContext("evaluationId", evalID),
	})
	observability.EvaluationDuration.WithLabelValues(toolset.ToolsVersion()).Observe(time.Since(start).Seconds())
	observability.EndSpanWithError(span, err)
	if err != nil {
		observability.EvaluationsTotal.WithLabelValues("failure").Inc()
		return err
	}
	observability.EvaluationsTotal.WithLabelValues("success").Inc()

	p.mu.Lock()
	var oldImports []*ImportEntry
	if p.data != nil {
		oldImports = p.data.imports
	}
	p.data = data
	p.view = &DataView{data: data}
	p.dirty = false
	p.lastRootVersion = rootVersion
	p.lastToolsetsSeen = toolsetsSeen
	p.evaluationCount++
	p.mu.Unlock()

	p.collection.repinClosure(oldImports, data.imports)
	return nil
}
