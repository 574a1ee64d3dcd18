package construction

// ItemGroupElement represents an <ItemGroup> element.
type ItemGroupElement struct {
	elementBase
	container
}

// Items returns the group's item children in document order.
func (g *ItemGroupElement) Items() []*ItemElement {
	items := make([]*ItemElement, 0, len(g.children))
	for _, child := range g.children {
		if it, ok := child.(*ItemElement); ok {
			items = append(items, it)
		}
	}
	return items
}

// AddItem appends a new item with the given metadata. The item and all of
// its metadata children are materialized before attachment, so the tree is
// never observable with a partially constructed item.
func (g *ItemGroupElement) AddItem(itemType, include string, metadata map[string]string) *ItemElement {
	item := &ItemElement{
		elementBase: elementBase{name: itemType},
		include:     include,
	}
	for _, name := range sortedKeys(metadata) {
		m := &MetadataElement{
			elementBase: elementBase{name: name},
			value:       metadata[name],
		}
		m.setParent(item)
		item.appendChild(m)
	}
	adopt(g.root, g, &g.container, item)
	g.markDirty()
	return item
}

// RemoveItem detaches item from the group. Returns false if it is not a child.
func (g *ItemGroupElement) RemoveItem(item *ItemElement) bool {
	if g.removeChild(item) {
		item.setParent(nil)
		g.markDirty()
		return true
	}
	return false
}

// ItemElement represents an item declaration. The markup tag name is the
// item type; Include, Exclude and Remove hold raw attribute text.
type ItemElement struct {
	elementBase
	container
	include string
	exclude string
	remove  string
}

// ItemType returns the item type (the tag name).
func (i *ItemElement) ItemType() string { return i.name }

// Include returns the raw Include attribute text.
func (i *ItemElement) Include() string { return i.include }

// Exclude returns the raw Exclude attribute text.
func (i *ItemElement) Exclude() string { return i.exclude }

// Remove returns the raw Remove attribute text.
func (i *ItemElement) Remove() string { return i.remove }

// SetInclude replaces the Include attribute and dirties the root.
func (i *ItemElement) SetInclude(include string) {
	i.include = include
	i.markDirty()
}

// SetExclude replaces the Exclude attribute and dirties the root.
func (i *ItemElement) SetExclude(exclude string) {
	i.exclude = exclude
	i.markDirty()
}

// Metadata returns the explicit metadata children in document order.
func (i *ItemElement) Metadata() []*MetadataElement {
	meta := make([]*MetadataElement, 0, len(i.children))
	for _, child := range i.children {
		if m, ok := child.(*MetadataElement); ok {
			meta = append(meta, m)
		}
	}
	return meta
}

// AddMetadata appends a metadata child and dirties the root.
func (i *ItemElement) AddMetadata(name, value string) *MetadataElement {
	m := &MetadataElement{
		elementBase: elementBase{name: name},
		value:       value,
	}
	adopt(i.root, i, &i.container, m)
	i.markDirty()
	return m
}

// ItemDefinitionGroupElement represents an <ItemDefinitionGroup> element.
type ItemDefinitionGroupElement struct {
	elementBase
	container
}

// Definitions returns the item definition children in document order.
func (g *ItemDefinitionGroupElement) Definitions() []*ItemDefinitionElement {
	defs := make([]*ItemDefinitionElement, 0, len(g.children))
	for _, child := range g.children {
		if d, ok := child.(*ItemDefinitionElement); ok {
			defs = append(defs, d)
		}
	}
	return defs
}

// ItemDefinitionElement supplies default metadata for one item type.
type ItemDefinitionElement struct {
	elementBase
	container
}

// ItemType returns the item type this definition applies to.
func (d *ItemDefinitionElement) ItemType() string { return d.name }

// Metadata returns the default metadata children in document order.
func (d *ItemDefinitionElement) Metadata() []*MetadataElement {
	meta := make([]*MetadataElement, 0, len(d.children))
	for _, child := range d.children {
		if m, ok := child.(*MetadataElement); ok {
			meta = append(meta, m)
		}
	}
	return meta
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Insertion sort keeps the helper dependency-free; metadata maps are tiny.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
