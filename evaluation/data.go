package evaluation

import (
	"sort"
	"strings"
)

// evalData is the mutable state an evaluation accumulates pass by pass.
// One instance backs exactly one evaluation run; a re-evaluation starts
// from a fresh instance so stale state can never leak across runs.
type evalData struct {
	properties *PropertyTable

	itemDefinitions map[string]*ItemDefinition // key: lower-cased item type
	definitionOrder []string                   // first-seen item types

	items       []*Item            // global declaration order
	itemsByType map[string][]*Item // key: lower-cased item type

	// itemsIgnoringCondition mirrors items but with every item and item
	// group condition treated as true. Maintained in the same pass so the
	// two collections see identical reference state.
	itemsIgnoringCondition       []*Item
	itemsIgnoringConditionByType map[string][]*Item

	targets     map[string]*Target // key: lower-cased name; last wins
	targetOrder []string           // first-registration order of surviving names

	imports []*ImportEntry

	// conditionedProperties maps property names to the literals they were
	// compared against in conditions, for configuration discovery.
	conditionedProperties map[string][]string

	defaultTargets []string
	initialTargets []string
	toolsVersion   string
	projectDir     string

	globalProperties map[string]string // key: original-cased name
}

func newEvalData() *evalData {
	return &evalData{
		properties:                   NewPropertyTable(),
		itemDefinitions:              make(map[string]*ItemDefinition),
		itemsByType:                  make(map[string][]*Item),
		itemsIgnoringConditionByType: make(map[string][]*Item),
		targets:                      make(map[string]*Target),
		conditionedProperties:        make(map[string][]string),
		globalProperties:             make(map[string]string),
	}
}

// ItemsOf returns the conditioned items of one type in declaration order.
// Implements the expander's item lookup.
func (d *evalData) ItemsOf(itemType string) []*Item {
	return d.itemsByType[strings.ToLower(itemType)]
}

func (d *evalData) addItem(it *Item) {
	d.items = append(d.items, it)
	key := strings.ToLower(it.itemType)
	d.itemsByType[key] = append(d.itemsByType[key], it)
}

func (d *evalData) removeItems(itemType string, victims map[*Item]bool) {
	filter := func(items []*Item) []*Item {
		keep := items[:0]
		for _, it := range items {
			if !victims[it] {
				keep = append(keep, it)
			}
		}
		return keep
	}
	key := strings.ToLower(itemType)
	d.items = filter(d.items)
	d.itemsByType[key] = filter(d.itemsByType[key])
	// The ignoring-condition collection shares item pointers with the
	// conditioned one, so the same victims drop out of both.
	d.itemsIgnoringCondition = filter(d.itemsIgnoringCondition)
	d.itemsIgnoringConditionByType[key] = filter(d.itemsIgnoringConditionByType[key])
}

func (d *evalData) addItemIgnoringCondition(it *Item) {
	d.itemsIgnoringCondition = append(d.itemsIgnoringCondition, it)
	key := strings.ToLower(it.itemType)
	d.itemsIgnoringConditionByType[key] = append(d.itemsIgnoringConditionByType[key], it)
}

func (d *evalData) itemDefinition(itemType string) *ItemDefinition {
	return d.itemDefinitions[strings.ToLower(itemType)]
}

func (d *evalData) ensureItemDefinition(itemType string) *ItemDefinition {
	key := strings.ToLower(itemType)
	if def, ok := d.itemDefinitions[key]; ok {
		return def
	}
	def := &ItemDefinition{itemType: itemType}
	d.itemDefinitions[key] = def
	d.definitionOrder = append(d.definitionOrder, itemType)
	return def
}

// registerTarget records a target, later definitions replacing earlier ones
// of the same name while keeping the original registration position.
func (d *evalData) registerTarget(t *Target) {
	key := strings.ToLower(t.name)
	if _, exists := d.targets[key]; !exists {
		d.targetOrder = append(d.targetOrder, t.name)
	}
	d.targets[key] = t
}

// DataView is a read-only snapshot interface over one completed evaluation.
// Reads are cheap accessor calls; every mutation returns NotSupportedError
// so callers holding a view cannot corrupt evaluated state.
type DataView struct {
	data *evalData
}

// Properties returns the live evaluated properties sorted by name.
func (v *DataView) Properties() []*Property {
	props := v.data.properties.Live()
	sort.Slice(props, func(i, j int) bool {
		return strings.ToLower(props[i].Name()) < strings.ToLower(props[j].Name())
	})
	return props
}

// Property returns the live property for name, or nil.
func (v *DataView) Property(name string) *Property {
	return v.data.properties.Get(name)
}

// PropertyValue returns the unescaped value of name, or "".
func (v *DataView) PropertyValue(name string) string {
	return Unescape(v.data.properties.Value(name))
}

// Items returns every conditioned item in declaration order.
func (v *DataView) Items() []*Item {
	return append([]*Item(nil), v.data.items...)
}

// ItemsOf returns the conditioned items of one type in declaration order.
func (v *DataView) ItemsOf(itemType string) []*Item {
	return append([]*Item(nil), v.data.ItemsOf(itemType)...)
}

// ItemsByEvaluatedInclude returns the conditioned items of any type whose
// evaluated include equals include, compared case-insensitively, in
// declaration order.
func (v *DataView) ItemsByEvaluatedInclude(include string) []*Item {
	var out []*Item
	for _, it := range v.data.items {
		if strings.EqualFold(it.EvaluatedInclude(), include) {
			out = append(out, it)
		}
	}
	return out
}

// ItemsIgnoringCondition returns the item collection evaluated as if every
// item condition were true.
func (v *DataView) ItemsIgnoringCondition() []*Item {
	return append([]*Item(nil), v.data.itemsIgnoringCondition...)
}

// ItemTypes returns the item types with at least one conditioned item, in
// first-appearance order.
func (v *DataView) ItemTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, it := range v.data.items {
		key := strings.ToLower(it.itemType)
		if !seen[key] {
			seen[key] = true
			types = append(types, it.itemType)
		}
	}
	return types
}

// ItemDefinition returns the merged default metadata for an item type, or
// nil when no definition contributed.
func (v *DataView) ItemDefinition(itemType string) *ItemDefinition {
	return v.data.itemDefinition(itemType)
}

// Targets returns the surviving targets in first-registration order.
func (v *DataView) Targets() []*Target {
	out := make([]*Target, 0, len(v.data.targetOrder))
	for _, name := range v.data.targetOrder {
		out = append(out, v.data.targets[strings.ToLower(name)])
	}
	return out
}

// Target returns the target registered under name, or nil.
func (v *DataView) Target(name string) *Target {
	return v.data.targets[strings.ToLower(name)]
}

// DefaultTargets returns the expanded default target names.
func (v *DataView) DefaultTargets() []string {
	return append([]string(nil), v.data.defaultTargets...)
}

// InitialTargets returns the accumulated initial target names, root first,
// then imports in declaration order.
func (v *DataView) InitialTargets() []string {
	return append([]string(nil), v.data.initialTargets...)
}

// Imports returns every import occurrence considered during evaluation.
func (v *DataView) Imports() []*ImportEntry {
	return append([]*ImportEntry(nil), v.data.imports...)
}

// ConditionedProperties returns the property-to-literal hints harvested
// from condition equality comparisons.
func (v *DataView) ConditionedProperties() map[string][]string {
	out := make(map[string][]string, len(v.data.conditionedProperties))
	for name, values := range v.data.conditionedProperties {
		out[name] = append([]string(nil), values...)
	}
	return out
}

// ToolsVersion returns the effective tools version the evaluation used.
func (v *DataView) ToolsVersion() string { return v.data.toolsVersion }

// GlobalProperties returns a copy of the global property set.
func (v *DataView) GlobalProperties() map[string]string {
	out := make(map[string]string, len(v.data.globalProperties))
	for k, val := range v.data.globalProperties {
		out[k] = val
	}
	return out
}

// SetProperty always fails: views are read-only.
func (v *DataView) SetProperty(name, value string) error {
	return &NotSupportedError{Operation: "SetProperty"}
}

// AddItem always fails: views are read-only.
func (v *DataView) AddItem(itemType, include string) error {
	return &NotSupportedError{Operation: "AddItem"}
}

// RemoveItem always fails: views are read-only.
func (v *DataView) RemoveItem(item *Item) error {
	return &NotSupportedError{Operation: "RemoveItem"}
}
