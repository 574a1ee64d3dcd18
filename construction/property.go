package construction

// PropertyGroupElement represents a <PropertyGroup> element.
type PropertyGroupElement struct {
	elementBase
	container
}

// Properties returns the group's property children in document order.
func (g *PropertyGroupElement) Properties() []*PropertyElement {
	props := make([]*PropertyElement, 0, len(g.children))
	for _, child := range g.children {
		if p, ok := child.(*PropertyElement); ok {
			props = append(props, p)
		}
	}
	return props
}

// AddProperty appends a new property to the group and dirties the root.
func (g *PropertyGroupElement) AddProperty(name, value string) *PropertyElement {
	p := &PropertyElement{
		elementBase: elementBase{name: name},
		value:       value,
	}
	adopt(g.root, g, &g.container, p)
	g.markDirty()
	return p
}

// RemoveProperty detaches p from the group. Returns false if p is not a child.
func (g *PropertyGroupElement) RemoveProperty(p *PropertyElement) bool {
	if g.removeChild(p) {
		p.setParent(nil)
		g.markDirty()
		return true
	}
	return false
}

// PropertyElement represents a property assignment. The markup tag name is
// the property name; the element text is the raw, unevaluated value.
type PropertyElement struct {
	elementBase
	value string
}

// Name returns the property name.
func (p *PropertyElement) Name() string { return p.name }

// Value returns the raw, unevaluated property value text.
func (p *PropertyElement) Value() string { return p.value }

// SetValue replaces the raw value and dirties the root.
func (p *PropertyElement) SetValue(value string) {
	p.value = value
	p.markDirty()
}

// MetadataElement represents a metadata assignment under an item or an item
// definition. Like properties, the tag name is the metadata name.
type MetadataElement struct {
	elementBase
	value string
}

// Name returns the metadata name.
func (m *MetadataElement) Name() string { return m.name }

// Value returns the raw, unevaluated metadata value text.
func (m *MetadataElement) Value() string { return m.value }

// SetValue replaces the raw value and dirties the root.
func (m *MetadataElement) SetValue(value string) {
	m.value = value
	m.markDirty()
}
