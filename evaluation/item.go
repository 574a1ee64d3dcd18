package evaluation

import (
	"path/filepath"
	"strings"

	"github.com/willibrandon/gomsbuild/construction"
)

// metadataEntry is one evaluated metadata assignment on an item.
type metadataEntry struct {
	name         string
	escapedValue string
}

// Item is one evaluated item: a typed build input with ordered metadata.
// A single item element can expand to many Items (wildcards, lists, item
// references); Source points back at the shared originating element so
// edits can be reconciled.
type Item struct {
	itemType                string
	evaluatedIncludeEscaped string
	metadata                []metadataEntry

	// Source is the item element this item expanded from.
	Source *construction.ItemElement

	// projectDir anchors well-known path metadata.
	projectDir string

	// recursiveDir is the portion of the path matched by a ** wildcard,
	// or "" for non-recursive matches.
	recursiveDir string
}

// ItemType returns the item type.
func (i *Item) ItemType() string { return i.itemType }

// EvaluatedInclude returns the unescaped evaluated include value - the
// item's identity.
func (i *Item) EvaluatedInclude() string { return Unescape(i.evaluatedIncludeEscaped) }

// EvaluatedIncludeEscaped returns the evaluated include with escapes intact.
func (i *Item) EvaluatedIncludeEscaped() string { return i.evaluatedIncludeEscaped }

// MetadataNames returns the explicit metadata names in assignment order.
func (i *Item) MetadataNames() []string {
	names := make([]string, 0, len(i.metadata))
	for _, m := range i.metadata {
		names = append(names, m.name)
	}
	return names
}

// MetadataValue returns the unescaped value of the named metadata.
// Well-known computed metadata (Identity, Filename, FullPath, ...) resolve
// here too. Missing metadata returns "" - never an error.
func (i *Item) MetadataValue(name string) string {
	if v, ok := i.explicitMetadata(name); ok {
		return Unescape(v)
	}
	if v, ok := i.wellKnownMetadata(name); ok {
		return v
	}
	return ""
}

// HasMetadata reports whether the named metadata exists, explicit or
// computed.
func (i *Item) HasMetadata(name string) bool {
	if _, ok := i.explicitMetadata(name); ok {
		return true
	}
	_, ok := i.wellKnownMetadata(name)
	return ok
}

func (i *Item) explicitMetadata(name string) (string, bool) {
	// Later assignments override earlier ones; scan backwards.
	for j := len(i.metadata) - 1; j >= 0; j-- {
		if strings.EqualFold(i.metadata[j].name, name) {
			return i.metadata[j].escapedValue, true
		}
	}
	return "", false
}

func (i *Item) setMetadata(name, escapedValue string) {
	for j := range i.metadata {
		if strings.EqualFold(i.metadata[j].name, name) {
			i.metadata[j].escapedValue = escapedValue
			return
		}
	}
	i.metadata = append(i.metadata, metadataEntry{name: name, escapedValue: escapedValue})
}

// wellKnownMetadata computes the path-derived metadata of the item.
func (i *Item) wellKnownMetadata(name string) (string, bool) {
	include := i.EvaluatedInclude()
	switch {
	case strings.EqualFold(name, "Identity"):
		return include, true
	case strings.EqualFold(name, "Filename"):
		base := filepath.Base(include)
		return strings.TrimSuffix(base, filepath.Ext(base)), true
	case strings.EqualFold(name, "Extension"):
		return filepath.Ext(include), true
	case strings.EqualFold(name, "FullPath"):
		return i.fullPath(include), true
	case strings.EqualFold(name, "RootDir"):
		full := i.fullPath(include)
		vol := filepath.VolumeName(full)
		return vol + string(filepath.Separator), true
	case strings.EqualFold(name, "Directory"):
		full := i.fullPath(include)
		vol := filepath.VolumeName(full)
		dir := filepath.Dir(full)
		dir = strings.TrimPrefix(dir, vol)
		dir = strings.TrimPrefix(dir, string(filepath.Separator))
		if dir == "." || dir == "" {
			return "", true
		}
		return dir + string(filepath.Separator), true
	case strings.EqualFold(name, "RelativeDir"):
		dir := filepath.Dir(include)
		if dir == "." {
			return "", true
		}
		return dir + string(filepath.Separator), true
	case strings.EqualFold(name, "RecursiveDir"):
		return i.recursiveDir, true
	default:
		return "", false
	}
}

func (i *Item) fullPath(include string) string {
	if filepath.IsAbs(include) {
		return filepath.Clean(include)
	}
	return filepath.Clean(filepath.Join(i.projectDir, include))
}

// ItemDefinition holds the default metadata for one item type, built during
// pass 2 and used to seed items of that type in pass 3.
type ItemDefinition struct {
	itemType string
	metadata []metadataEntry

	// Source is the last contributing definition element.
	Source *construction.ItemDefinitionElement
}

// ItemType returns the item type this definition applies to.
func (d *ItemDefinition) ItemType() string { return d.itemType }

// MetadataNames returns the default metadata names in assignment order.
func (d *ItemDefinition) MetadataNames() []string {
	names := make([]string, 0, len(d.metadata))
	for _, m := range d.metadata {
		names = append(names, m.name)
	}
	return names
}

// MetadataValue returns the unescaped default value for name, or "".
func (d *ItemDefinition) MetadataValue(name string) string {
	for j := len(d.metadata) - 1; j >= 0; j-- {
		if strings.EqualFold(d.metadata[j].name, name) {
			return Unescape(d.metadata[j].escapedValue)
		}
	}
	return ""
}

func (d *ItemDefinition) get(name string) (string, bool) {
	for j := len(d.metadata) - 1; j >= 0; j-- {
		if strings.EqualFold(d.metadata[j].name, name) {
			return d.metadata[j].escapedValue, true
		}
	}
	return "", false
}

func (d *ItemDefinition) set(name, escapedValue string) {
	for j := range d.metadata {
		if strings.EqualFold(d.metadata[j].name, name) {
			d.metadata[j].escapedValue = escapedValue
			return
		}
	}
	d.metadata = append(d.metadata, metadataEntry{name: name, escapedValue: escapedValue})
}
