package evaluation

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/willibrandon/gomsbuild/construction"
	"github.com/willibrandon/gomsbuild/observability"
)

// maxChooseDepth bounds Choose nesting. Deeper nesting is rejected rather
// than risking unbounded recursion on hostile input.
const maxChooseDepth = 50

// LoadSettings control how the evaluator treats problematic imports.
// The zero value is the strict default: missing and circular imports are
// errors.
type LoadSettings struct {
	// IgnoreMissingImports records imports that resolve to nonexistent
	// files instead of failing the evaluation.
	IgnoreMissingImports bool

	// IgnoreCircularImports skips an import that would re-enter a file
	// already being processed instead of failing the evaluation.
	IgnoreCircularImports bool
}

// reservedEngineProperties are computed by the engine and can never be
// assigned from markup. Keys are lower-cased.
var reservedEngineProperties = map[string]bool{
	"msbuildprojectfile":       true,
	"msbuildprojectname":       true,
	"msbuildprojectextension":  true,
	"msbuildprojectdirectory":  true,
	"msbuildprojectfullpath":   true,
	"msbuildthisfile":          true,
	"msbuildthisfilename":      true,
	"msbuildthisfiledirectory": true,
	"msbuildthisfileextension": true,
	"msbuildthisfilefullpath":  true,
	"msbuildtoolsversion":      true,
	"msbuildtoolspath":         true,
}

// IsReservedPropertyName reports whether name is an engine-computed
// property that markup may not assign.
func IsReservedPropertyName(name string) bool {
	return reservedEngineProperties[strings.ToLower(name)]
}

// evalInput is everything one evaluation run needs, assembled by the
// Project layer.
type evalInput struct {
	root             *construction.ProjectRootElement
	globalProperties map[string]string
	toolset          *Toolset
	environment      map[string]string
	fsys             FileSystem
	loadDocument     func(path string) (*construction.ProjectRootElement, error)
	settings         LoadSettings
	log              observability.Logger
}

// fileContext identifies the document whose elements are currently being
// evaluated; per-file reserved properties and import resolution derive
// from it.
type fileContext struct {
	path string
	dir  string
}

type pendingItemDefGroup struct {
	group *construction.ItemDefinitionGroupElement
	file  fileContext
}

type pendingItemGroup struct {
	group *construction.ItemGroupElement
	file  fileContext
}

type pendingTarget struct {
	target *construction.TargetElement
	file   fileContext
}

// evaluator runs the multi-pass evaluation over one root document and its
// import closure. Pass 1 interleaves properties and imports in document
// order, collecting the later-pass work lists; passes 2 through 4 then run
// over the fully flattened closure.
type evaluator struct {
	in   evalInput
	data *evalData
	log  observability.Logger

	globalKeys  map[string]bool // lower-cased global property names
	importStack []string        // cleaned paths of files being processed

	pendingDefs    []pendingItemDefGroup
	pendingItems   []pendingItemGroup
	pendingTargets []pendingTarget

	// importsSeen maps cleaned lower-cased paths to the first occurrence,
	// so repeats are recorded but never reprocessed.
	importsSeen map[string]*ImportEntry

	defaultTargetsRaw  string
	defaultTargetsFile fileContext
}

// evaluate runs a full evaluation and returns the populated state.
func evaluate(in evalInput) (*evalData, error) {
	log := in.log
	if log == nil {
		log = observability.NewNullLogger()
	}
	e := &evaluator{
		in:          in,
		data:        newEvalData(),
		log:         log,
		globalKeys:  make(map[string]bool, len(in.globalProperties)),
		importsSeen: make(map[string]*ImportEntry),
	}
	e.data.projectDir = in.root.DirectoryPath()
	e.data.toolsVersion = in.toolset.ToolsVersion()
	for k, v := range in.globalProperties {
		e.data.globalProperties[k] = v
		e.globalKeys[strings.ToLower(k)] = true
	}

	e.seedEngineProperties()

	// Pass 1: properties and imports, interleaved in document order.
	rootEntry := &ImportEntry{
		ImportedRoot:    in.root,
		ResolvedPath:    in.root.Path(),
		VersionAtImport: in.root.Version(),
	}
	e.data.imports = append(e.data.imports, rootEntry)
	e.importsSeen[importKey(in.root.Path())] = rootEntry
	e.importStack = append(e.importStack, filepath.Clean(in.root.Path()))
	if err := e.walkFile(in.root); err != nil {
		return nil, err
	}
	e.importStack = e.importStack[:0]

	// Pass 2: item definitions.
	if err := e.evaluateItemDefinitions(); err != nil {
		return nil, err
	}

	// Pass 3: items.
	if err := e.evaluateItems(); err != nil {
		return nil, err
	}

	// Pass 4: targets.
	if err := e.evaluateTargets(); err != nil {
		return nil, err
	}

	if err := e.resolveDefaultTargets(); err != nil {
		return nil, err
	}

	e.log.Debug("evaluated {Path}: {Properties} properties, {Items} items, {Targets} targets, {Imports} imports",
		in.root.Path(), e.data.properties.Count(), len(e.data.items), len(e.data.targets), len(e.data.imports))
	return e.data, nil
}

// seedEngineProperties loads the pre-markup property layers in ascending
// precedence: environment, toolset, reserved, then globals, so the live
// table lands with globals on top.
func (e *evaluator) seedEngineProperties() {
	for _, k := range sortedStringKeys(e.in.environment) {
		e.data.properties.Set(k, Escape(e.in.environment[k]), OriginEnvironment, nil)
	}

	toolsetProps := e.in.toolset.Properties()
	for _, k := range sortedStringKeys(toolsetProps) {
		e.data.properties.Set(k, toolsetProps[k], OriginToolset, nil)
	}
	e.data.properties.Set("MSBuildToolsVersion", Escape(e.in.toolset.ToolsVersion()), OriginReserved, nil)
	e.data.properties.Set("MSBuildToolsPath", Escape(e.in.toolset.ToolsPath()), OriginReserved, nil)

	full := e.in.root.Path()
	base := filepath.Base(full)
	ext := filepath.Ext(base)
	e.data.properties.Set("MSBuildProjectFullPath", Escape(full), OriginReserved, nil)
	e.data.properties.Set("MSBuildProjectFile", Escape(base), OriginReserved, nil)
	e.data.properties.Set("MSBuildProjectName", Escape(strings.TrimSuffix(base, ext)), OriginReserved, nil)
	e.data.properties.Set("MSBuildProjectExtension", Escape(ext), OriginReserved, nil)
	e.data.properties.Set("MSBuildProjectDirectory", Escape(e.in.root.DirectoryPath()), OriginReserved, nil)

	for _, k := range sortedStringKeys(e.in.globalProperties) {
		e.data.properties.Set(k, Escape(e.in.globalProperties[k]), OriginGlobal, nil)
	}
}

// setThisFile swaps the per-file reserved properties to the document now
// being evaluated.
func (e *evaluator) setThisFile(file fileContext) {
	base := filepath.Base(file.path)
	ext := filepath.Ext(base)
	e.data.properties.Set("MSBuildThisFile", Escape(base), OriginReserved, nil)
	e.data.properties.Set("MSBuildThisFileName", Escape(strings.TrimSuffix(base, ext)), OriginReserved, nil)
	e.data.properties.Set("MSBuildThisFileExtension", Escape(ext), OriginReserved, nil)
	e.data.properties.Set("MSBuildThisFileDirectory", Escape(file.dir+string(filepath.Separator)), OriginReserved, nil)
	e.data.properties.Set("MSBuildThisFileFullPath", Escape(file.path), OriginReserved, nil)
}

// condTrue evaluates a condition against the current state. metadata may
// be nil outside per-item scopes.
func (e *evaluator) condTrue(cond string, loc construction.Location, file fileContext, mode ExpandMode, metadata metadataScope) (bool, error) {
	x := &Expander{properties: e.data.properties, metadata: metadata}
	if mode >= ExpandPropertiesAndItems {
		x.items = e.data
	}
	ctx := &conditionContext{
		expander:    x,
		mode:        mode,
		evalDir:     file.dir,
		fsys:        e.in.fsys,
		loc:         loc,
		conditioned: e.data.conditionedProperties,
	}
	return evaluateCondition(cond, ctx)
}

func (e *evaluator) propertyExpander() *Expander {
	return &Expander{properties: e.data.properties}
}

// --- pass 1 ---

func (e *evaluator) walkFile(root *construction.ProjectRootElement) error {
	file := fileContext{path: root.Path(), dir: root.DirectoryPath()}
	e.setThisFile(file)

	if raw := root.InitialTargets(); raw != "" {
		names, err := e.expandTargetList(raw)
		if err != nil {
			return err
		}
		e.data.initialTargets = append(e.data.initialTargets, names...)
	}
	if e.defaultTargetsRaw == "" && root.DefaultTargets() != "" {
		e.defaultTargetsRaw = root.DefaultTargets()
		e.defaultTargetsFile = file
	}

	for _, child := range root.Children() {
		if err := e.walkElement(child, file); err != nil {
			return err
		}
	}
	return nil
}

func (e *evaluator) walkElement(child construction.Element, file fileContext) error {
	switch el := child.(type) {
	case *construction.PropertyGroupElement:
		return e.evaluatePropertyGroup(el, file)
	case *construction.ImportElement:
		return e.processImport(el, file)
	case *construction.ImportGroupElement:
		ok, err := e.condTrue(el.Condition(), el.ConditionLocation(), file, ExpandPropertiesOnly, nil)
		if err != nil || !ok {
			return err
		}
		for _, imp := range el.Imports() {
			if err := e.processImport(imp, file); err != nil {
				return err
			}
		}
		return nil
	case *construction.ChooseElement:
		return e.processChoose(el, file, 1)
	case *construction.ItemDefinitionGroupElement:
		e.pendingDefs = append(e.pendingDefs, pendingItemDefGroup{group: el, file: file})
		return nil
	case *construction.ItemGroupElement:
		e.pendingItems = append(e.pendingItems, pendingItemGroup{group: el, file: file})
		return nil
	case *construction.TargetElement:
		e.pendingTargets = append(e.pendingTargets, pendingTarget{target: el, file: file})
		return nil
	default:
		// ProjectExtensions and any other opaque content is not evaluated.
		return nil
	}
}

func (e *evaluator) evaluatePropertyGroup(g *construction.PropertyGroupElement, file fileContext) error {
	ok, err := e.condTrue(g.Condition(), g.ConditionLocation(), file, ExpandPropertiesOnly, nil)
	if err != nil || !ok {
		return err
	}
	for _, p := range g.Properties() {
		ok, err := e.condTrue(p.Condition(), p.ConditionLocation(), file, ExpandPropertiesOnly, nil)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if IsReservedPropertyName(p.Name()) {
			return construction.NewInvalidProjectFileError(construction.CodeReservedName, p.Location(),
				"the property %q is reserved and cannot be modified", p.Name())
		}
		if e.globalKeys[strings.ToLower(p.Name())] {
			// Globals outrank markup; the assignment is skipped, not an error.
			continue
		}
		value, err := e.propertyExpander().Expand(p.Value(), ExpandPropertiesOnly)
		if err != nil {
			return err
		}
		e.data.properties.Set(p.Name(), value, OriginXML, p)
	}
	return nil
}

func (e *evaluator) processChoose(c *construction.ChooseElement, file fileContext, depth int) error {
	if depth > maxChooseDepth {
		return &ChooseNestingError{Depth: depth, Loc: c.Location()}
	}
	for _, when := range c.Whens() {
		ok, err := e.condTrue(when.Condition(), when.ConditionLocation(), file, ExpandPropertiesOnly, nil)
		if err != nil {
			return err
		}
		if ok {
			return e.processChooseBody(when.Children(), file, depth)
		}
	}
	if otherwise := c.Otherwise(); otherwise != nil {
		return e.processChooseBody(otherwise.Children(), file, depth)
	}
	return nil
}

// processChooseBody evaluates the chosen branch: property groups run
// immediately at the Choose's document position, item groups defer to
// pass 3 like any other item group.
func (e *evaluator) processChooseBody(children []construction.Element, file fileContext, depth int) error {
	for _, child := range children {
		switch el := child.(type) {
		case *construction.PropertyGroupElement:
			if err := e.evaluatePropertyGroup(el, file); err != nil {
				return err
			}
		case *construction.ItemGroupElement:
			e.pendingItems = append(e.pendingItems, pendingItemGroup{group: el, file: file})
		case *construction.ChooseElement:
			if err := e.processChoose(el, file, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- imports ---

func importKey(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

func (e *evaluator) processImport(imp *construction.ImportElement, file fileContext) error {
	ok, err := e.condTrue(imp.Condition(), imp.ConditionLocation(), file, ExpandPropertiesOnly, nil)
	if err != nil || !ok {
		return err
	}
	expanded, err := e.propertyExpander().Expand(imp.Project(), ExpandPropertiesOnly)
	if err != nil {
		return err
	}
	for _, fragment := range splitEscaped(expanded) {
		spec := Unescape(fragment)
		if hasWildcards(spec) {
			// A wildcard import that matches nothing imports nothing.
			observability.GlobExpansionsTotal.WithLabelValues("import").Inc()
			for _, m := range expandGlob(e.in.fsys, file.dir, spec) {
				if err := e.importOne(imp, file, e.resolveImportPath(file, m.path), spec); err != nil {
					return err
				}
			}
			continue
		}
		if err := e.importOne(imp, file, e.resolveImportPath(file, spec), spec); err != nil {
			return err
		}
	}
	return nil
}

func (e *evaluator) resolveImportPath(file fileContext, spec string) string {
	p := filepath.FromSlash(spec)
	if !filepath.IsAbs(p) {
		p = filepath.Join(file.dir, p)
	}
	return filepath.Clean(p)
}

func (e *evaluator) importOne(imp *construction.ImportElement, file fileContext, path, expression string) error {
	for _, active := range e.importStack {
		if strings.EqualFold(active, path) {
			observability.ImportsResolvedTotal.WithLabelValues("circular").Inc()
			if e.in.settings.IgnoreCircularImports {
				e.log.Warn("skipping circular import of {Path} from {File}", path, file.path)
				return nil
			}
			stack := append(append([]string(nil), e.importStack...), path)
			return &CircularImportError{Stack: stack, Loc: imp.Location()}
		}
	}

	key := importKey(path)
	if first, seen := e.importsSeen[key]; seen {
		observability.ImportsResolvedTotal.WithLabelValues("duplicate").Inc()
		// Recorded again for tooling, but side effects run only once.
		e.data.imports = append(e.data.imports, &ImportEntry{
			ImportingElement: imp,
			ImportedRoot:     first.ImportedRoot,
			ResolvedPath:     path,
			VersionAtImport:  first.VersionAtImport,
			Duplicate:        true,
		})
		return nil
	}

	if !e.in.fsys.FileExists(path) {
		observability.ImportsResolvedTotal.WithLabelValues("missing").Inc()
		if e.in.settings.IgnoreMissingImports {
			entry := &ImportEntry{ImportingElement: imp, ResolvedPath: path, Missing: true}
			e.data.imports = append(e.data.imports, entry)
			e.importsSeen[key] = entry
			e.log.Debug("ignoring missing import {Path}", path)
			return nil
		}
		return &ImportNotFoundError{ResolvedPath: path, Expression: expression, Loc: imp.Location()}
	}

	_, span := observability.StartImportSpan(context.Background(), path, expression)
	imported, err := e.in.loadDocument(path)
	observability.EndSpanWithError(span, err)
	if err != nil {
		return err
	}
	entry := &ImportEntry{
		ImportingElement: imp,
		ImportedRoot:     imported,
		ResolvedPath:     path,
		VersionAtImport:  imported.Version(),
	}
	e.data.imports = append(e.data.imports, entry)
	e.importsSeen[key] = entry
	observability.ImportsResolvedTotal.WithLabelValues("loaded").Inc()

	e.importStack = append(e.importStack, path)
	err = e.walkFile(imported)
	e.importStack = e.importStack[:len(e.importStack)-1]
	if err != nil {
		return err
	}

	// Restore the importing file's reserved properties.
	e.setThisFile(file)
	return nil
}

// --- pass 2 ---

func (e *evaluator) evaluateItemDefinitions() error {
	for _, pd := range e.pendingDefs {
		e.setThisFile(pd.file)
		ok, err := e.condTrue(pd.group.Condition(), pd.group.ConditionLocation(), pd.file, ExpandPropertiesOnly, nil)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, def := range pd.group.Definitions() {
			ok, err := e.condTrue(def.Condition(), def.ConditionLocation(), pd.file, ExpandPropertiesOnly, nil)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			merged := e.data.ensureItemDefinition(def.ItemType())
			merged.Source = def
			scope := definitionMetadataScope{def: merged}
			x := &Expander{properties: e.data.properties, metadata: scope}
			for _, m := range def.Metadata() {
				ok, err := e.condTrueWith(x, m.Condition(), m.ConditionLocation(), pd.file)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				// No items exist yet; an item list reference here can never
				// be satisfied.
				if strings.Contains(m.Value(), "@(") {
					return &InvalidMetadataError{
						ItemType:     def.ItemType(),
						MetadataName: m.Name(),
						Value:        m.Value(),
						Loc:          m.Location(),
					}
				}
				value, err := x.Expand(m.Value(), ExpandFull)
				if err != nil {
					return err
				}
				merged.set(m.Name(), value)
			}
		}
	}
	return nil
}

// condTrueWith evaluates a condition with an explicit expander, used where
// metadata scope matters.
func (e *evaluator) condTrueWith(x *Expander, cond string, loc construction.Location, file fileContext) (bool, error) {
	ctx := &conditionContext{
		expander:    x,
		mode:        ExpandFull,
		evalDir:     file.dir,
		fsys:        e.in.fsys,
		loc:         loc,
		conditioned: e.data.conditionedProperties,
	}
	return evaluateCondition(cond, ctx)
}

// --- pass 3 ---

func (e *evaluator) evaluateItems() error {
	for _, pg := range e.pendingItems {
		e.setThisFile(pg.file)
		groupOK, err := e.condTrue(pg.group.Condition(), pg.group.ConditionLocation(), pg.file, ExpandPropertiesAndItems, nil)
		if err != nil {
			return err
		}
		for _, el := range pg.group.Items() {
			if err := e.evaluateItemElement(el, pg.file, groupOK); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *evaluator) evaluateItemElement(el *construction.ItemElement, file fileContext, groupOK bool) error {
	conditioned := groupOK
	if conditioned {
		ok, err := e.condTrue(el.Condition(), el.ConditionLocation(), file, ExpandPropertiesAndItems, nil)
		if err != nil {
			return err
		}
		conditioned = ok
	}

	if el.Remove() != "" {
		return e.applyItemRemove(el, conditioned)
	}

	items, err := e.expandItemElement(el)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := e.applyItemMetadata(it, el, file); err != nil {
			return err
		}
		// The ignoring-condition collection sees every item; the
		// conditioned collection only those whose gates held.
		e.data.addItemIgnoringCondition(it)
		if conditioned {
			e.data.addItem(it)
		}
	}
	return nil
}

// expandItemElement turns one item element's Include/Exclude into items.
// Relative paths and wildcards anchor at the root project directory, not
// the declaring file's directory.
func (e *evaluator) expandItemElement(el *construction.ItemElement) ([]*Item, error) {
	def := e.data.itemDefinition(el.ItemType())
	newItem := func(escapedInclude, recursiveDir string) *Item {
		it := &Item{
			itemType:                el.ItemType(),
			evaluatedIncludeEscaped: escapedInclude,
			Source:                  el,
			projectDir:              e.data.projectDir,
			recursiveDir:            recursiveDir,
		}
		if def != nil {
			it.metadata = append([]metadataEntry(nil), def.metadata...)
		}
		return it
	}

	var out []*Item
	for _, rawFrag := range strings.Split(el.Include(), ";") {
		rawFrag = strings.TrimSpace(rawFrag)
		if rawFrag == "" {
			continue
		}
		if srcType, ok := wholeItemReference(rawFrag); ok {
			// A verbatim item reference copies the source items, explicit
			// metadata included.
			for _, src := range e.data.ItemsOf(srcType) {
				clone := &Item{
					itemType:                el.ItemType(),
					evaluatedIncludeEscaped: src.evaluatedIncludeEscaped,
					metadata:                append([]metadataEntry(nil), src.metadata...),
					Source:                  el,
					projectDir:              e.data.projectDir,
					recursiveDir:            src.recursiveDir,
				}
				out = append(out, clone)
			}
			continue
		}
		x := &Expander{properties: e.data.properties, items: e.data}
		expanded, err := x.Expand(rawFrag, ExpandPropertiesAndItems)
		if err != nil {
			return nil, err
		}
		for _, fragment := range splitEscaped(expanded) {
			spec := Unescape(fragment)
			if hasWildcards(spec) {
				observability.GlobExpansionsTotal.WithLabelValues("item").Inc()
				for _, m := range expandGlob(e.in.fsys, e.data.projectDir, spec) {
					out = append(out, newItem(Escape(m.path), m.recursiveDir))
				}
			} else {
				out = append(out, newItem(fragment, ""))
			}
		}
	}

	if el.Exclude() != "" {
		fragments, err := e.expandSpecFragments(el.Exclude())
		if err != nil {
			return nil, err
		}
		matcher := newItemSpecMatcher(e.data.projectDir, fragments)
		kept := out[:0]
		for _, it := range out {
			if !matcher.matches(it.EvaluatedInclude()) {
				kept = append(kept, it)
			}
		}
		out = kept
	}
	return out, nil
}

// expandSpecFragments expands an Exclude or Remove expression into plain
// unescaped fragments, with wildcards resolved against the project dir.
func (e *evaluator) expandSpecFragments(raw string) ([]string, error) {
	x := &Expander{properties: e.data.properties, items: e.data}
	expanded, err := x.Expand(raw, ExpandPropertiesAndItems)
	if err != nil {
		return nil, err
	}
	var fragments []string
	for _, f := range splitEscaped(expanded) {
		spec := Unescape(f)
		if hasWildcards(spec) {
			for _, m := range expandGlob(e.in.fsys, e.data.projectDir, spec) {
				fragments = append(fragments, m.path)
			}
		} else {
			fragments = append(fragments, spec)
		}
	}
	return fragments, nil
}

func (e *evaluator) applyItemRemove(el *construction.ItemElement, conditioned bool) error {
	fragments, err := e.expandSpecFragments(el.Remove())
	if err != nil {
		return err
	}
	matcher := newItemSpecMatcher(e.data.projectDir, fragments)

	if conditioned {
		victims := make(map[*Item]bool)
		for _, it := range e.data.ItemsOf(el.ItemType()) {
			if matcher.matches(it.EvaluatedInclude()) {
				victims[it] = true
			}
		}
		if len(victims) > 0 {
			e.data.removeItems(el.ItemType(), victims)
		}
	}

	// The ignoring-condition collection treats the removal's own gates as
	// true, so it always applies there.
	key := strings.ToLower(el.ItemType())
	victims := make(map[*Item]bool)
	for _, it := range e.data.itemsIgnoringConditionByType[key] {
		if matcher.matches(it.EvaluatedInclude()) {
			victims[it] = true
		}
	}
	if len(victims) > 0 {
		kept := e.data.itemsIgnoringCondition[:0]
		for _, it := range e.data.itemsIgnoringCondition {
			if !victims[it] {
				kept = append(kept, it)
			}
		}
		e.data.itemsIgnoringCondition = kept
		typed := e.data.itemsIgnoringConditionByType[key][:0]
		for _, it := range e.data.itemsIgnoringConditionByType[key] {
			if !victims[it] {
				typed = append(typed, it)
			}
		}
		e.data.itemsIgnoringConditionByType[key] = typed
	}
	return nil
}

// applyItemMetadata evaluates the element's explicit metadata onto one
// item. Metadata expressions see the item itself, so %(Filename) and
// friends resolve against the include being processed.
func (e *evaluator) applyItemMetadata(it *Item, el *construction.ItemElement, file fileContext) error {
	scope := itemMetadataScope{item: it}
	x := &Expander{properties: e.data.properties, items: e.data, metadata: scope}
	for _, m := range el.Metadata() {
		ok, err := e.condTrueWith(x, m.Condition(), m.ConditionLocation(), file)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		value, err := x.Expand(m.Value(), ExpandFull)
		if err != nil {
			return err
		}
		it.setMetadata(m.Name(), value)
	}
	return nil
}

// wholeItemReference reports whether a raw include fragment is exactly one
// @(Type) reference with a plain type name.
func wholeItemReference(fragment string) (string, bool) {
	if !strings.HasPrefix(fragment, "@(") || !strings.HasSuffix(fragment, ")") {
		return "", false
	}
	inner := strings.TrimSpace(fragment[2 : len(fragment)-1])
	if inner == "" || strings.ContainsAny(inner, "$@%()->,'") {
		return "", false
	}
	return inner, true
}

// --- pass 4 ---

func (e *evaluator) evaluateTargets() error {
	for _, pt := range e.pendingTargets {
		e.setThisFile(pt.file)
		el := pt.target
		depends, err := e.expandTargetList(el.DependsOnTargets())
		if err != nil {
			return err
		}
		before, err := e.expandTargetList(el.BeforeTargets())
		if err != nil {
			return err
		}
		after, err := e.expandTargetList(el.AfterTargets())
		if err != nil {
			return err
		}
		e.data.registerTarget(&Target{
			name:      el.Name(),
			Source:    el,
			DependsOn: depends,
			Before:    before,
			After:     after,
		})
	}
	return nil
}

// expandTargetList expands a semicolon list of target names with the
// current property state.
func (e *evaluator) expandTargetList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	expanded, err := e.propertyExpander().Expand(raw, ExpandPropertiesOnly)
	if err != nil {
		return nil, err
	}
	fragments := splitEscaped(expanded)
	names := make([]string, 0, len(fragments))
	for _, f := range fragments {
		names = append(names, Unescape(f))
	}
	return names, nil
}

func (e *evaluator) resolveDefaultTargets() error {
	if e.defaultTargetsRaw == "" {
		return nil
	}
	e.setThisFile(e.defaultTargetsFile)
	names, err := e.expandTargetList(e.defaultTargetsRaw)
	if err != nil {
		return err
	}
	e.data.defaultTargets = names
	return nil
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
