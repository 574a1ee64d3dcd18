package construction

// ImportElement represents an <Import> element. Project holds the raw path
// expression, which may contain property references and wildcards.
type ImportElement struct {
	elementBase
	project string
}

// Project returns the raw Project attribute text.
func (i *ImportElement) Project() string { return i.project }

// SetProject replaces the Project attribute and dirties the root.
func (i *ImportElement) SetProject(project string) {
	i.project = project
	i.markDirty()
}

// ImportGroupElement represents an <ImportGroup> element.
type ImportGroupElement struct {
	elementBase
	container
}

// Imports returns the import children in document order.
func (g *ImportGroupElement) Imports() []*ImportElement {
	imports := make([]*ImportElement, 0, len(g.children))
	for _, child := range g.children {
		if imp, ok := child.(*ImportElement); ok {
			imports = append(imports, imp)
		}
	}
	return imports
}

// ChooseElement represents a <Choose> element. A Choose carries no Condition
// of its own; branching happens through its When children.
type ChooseElement struct {
	elementBase
	container
}

// Whens returns the When branches in document order.
func (c *ChooseElement) Whens() []*WhenElement {
	whens := make([]*WhenElement, 0, len(c.children))
	for _, child := range c.children {
		if w, ok := child.(*WhenElement); ok {
			whens = append(whens, w)
		}
	}
	return whens
}

// Otherwise returns the Otherwise branch, or nil if absent.
func (c *ChooseElement) Otherwise() *OtherwiseElement {
	for _, child := range c.children {
		if o, ok := child.(*OtherwiseElement); ok {
			return o
		}
	}
	return nil
}

// WhenElement represents a <When> branch inside a Choose.
type WhenElement struct {
	elementBase
	container
}

// OtherwiseElement represents the <Otherwise> branch inside a Choose.
type OtherwiseElement struct {
	elementBase
	container
}

// ProjectExtensionsElement holds opaque host-specific content that the
// evaluator passes through untouched.
type ProjectExtensionsElement struct {
	elementBase
	content string
}

// Content returns the raw inner markup.
func (e *ProjectExtensionsElement) Content() string { return e.content }
