// Package construction provides the mutable, order-preserving document tree
// for build project files.
//
// The tree holds raw, unevaluated attribute text together with source
// locations. It is produced by parsing markup (see Open and Parse) and
// mutated only through its own API; every mutation bumps a version counter
// on the owning root so consumers can detect staleness without hashing.
// Evaluation never mutates this tree.
package construction

// Location identifies a position in a source document.
type Location struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether the location carries no information.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0 && l.Column == 0
}

// Element is the common surface of every node in the document tree.
// All elements may carry Condition and Label attributes and know their
// source location and parent.
type Element interface {
	// ElementName returns the markup tag name (e.g. "PropertyGroup").
	ElementName() string

	// Condition returns the raw, unevaluated Condition attribute text.
	Condition() string

	// SetCondition replaces the Condition attribute and dirties the root.
	SetCondition(condition string)

	// Label returns the Label attribute text.
	Label() string

	// SetLabel replaces the Label attribute and dirties the root.
	SetLabel(label string)

	// Location returns where this element starts in its source document.
	Location() Location

	// ConditionLocation returns where the Condition attribute appears,
	// or the element location if no Condition is present.
	ConditionLocation() Location

	// Parent returns the containing element, or nil for the root.
	Parent() Element

	// Root returns the owning ProjectRootElement.
	Root() *ProjectRootElement

	setParent(parent Element)
	setRoot(root *ProjectRootElement)
}

// elementBase carries the state shared by all element kinds. Concrete
// element types embed it and add their own attributes and children.
type elementBase struct {
	name         string
	condition    string
	label        string
	loc          Location
	conditionLoc Location
	parent       Element
	root         *ProjectRootElement
}

func (e *elementBase) ElementName() string { return e.name }
func (e *elementBase) Condition() string   { return e.condition }
func (e *elementBase) Label() string       { return e.label }
func (e *elementBase) Location() Location  { return e.loc }

func (e *elementBase) ConditionLocation() Location {
	if e.conditionLoc.IsZero() {
		return e.loc
	}
	return e.conditionLoc
}

func (e *elementBase) Parent() Element           { return e.parent }
func (e *elementBase) Root() *ProjectRootElement { return e.root }

func (e *elementBase) SetCondition(condition string) {
	e.condition = condition
	e.markDirty()
}

func (e *elementBase) SetLabel(label string) {
	e.label = label
	e.markDirty()
}

func (e *elementBase) setParent(parent Element)       { e.parent = parent }
func (e *elementBase) setRoot(root *ProjectRootElement) { e.root = root }

func (e *elementBase) markDirty() {
	if e.root != nil {
		e.root.bumpVersion()
	}
}

// container is embedded by elements that hold ordered children. Child order
// is semantically significant: later same-named properties override earlier
// ones and item iteration order is preserved.
type container struct {
	children []Element
}

// Children returns the ordered child list. Callers must not mutate the
// returned slice.
func (c *container) Children() []Element { return c.children }

func (c *container) appendChild(child Element) {
	c.children = append(c.children, child)
}

func (c *container) insertChild(index int, child Element) {
	c.children = append(c.children, nil)
	copy(c.children[index+1:], c.children[index:])
	c.children[index] = child
}

func (c *container) removeChild(child Element) bool {
	for i, existing := range c.children {
		if existing == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return true
		}
	}
	return false
}

// adopt wires child under parent inside root, detaching it from any previous
// parent first so no node ever appears under two parents.
func adopt(root *ProjectRootElement, parent Element, c *container, child Element) {
	if prev := child.Parent(); prev != nil {
		if pc, ok := prev.(interface{ removeChild(Element) bool }); ok {
			pc.removeChild(child)
		}
	}
	child.setParent(parent)
	setRootRecursive(child, root)
	c.appendChild(child)
}

func setRootRecursive(el Element, root *ProjectRootElement) {
	el.setRoot(root)
	if withChildren, ok := el.(interface{ Children() []Element }); ok {
		for _, child := range withChildren.Children() {
			setRootRecursive(child, root)
		}
	}
}
