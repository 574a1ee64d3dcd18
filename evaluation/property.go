package evaluation

import (
	"strings"

	"github.com/willibrandon/gomsbuild/construction"
)

// PropertyOrigin identifies where an evaluated property came from.
type PropertyOrigin int

const (
	// OriginXML: assigned by a property element during pass 1.
	OriginXML PropertyOrigin = iota
	// OriginEnvironment: seeded from the process environment.
	OriginEnvironment
	// OriginToolset: supplied by the effective toolset.
	OriginToolset
	// OriginReserved: computed by the engine (project path properties etc).
	OriginReserved
	// OriginGlobal: supplied by the caller; can never be overridden in-file.
	OriginGlobal
)

// String returns a short provenance label.
func (o PropertyOrigin) String() string {
	switch o {
	case OriginXML:
		return "xml"
	case OriginEnvironment:
		return "environment"
	case OriginToolset:
		return "toolset"
	case OriginReserved:
		return "reserved"
	case OriginGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Property is one evaluated property. Properties of the same name form an
// override chain: the latest assignment survives in the live table and links
// back to the assignment it replaced.
type Property struct {
	name         string
	escapedValue string
	origin       PropertyOrigin

	// Source is the producing document element, or nil when the property is
	// not XML-derived.
	Source *construction.PropertyElement

	// Predecessor is the same-named property this one overrode, or nil.
	Predecessor *Property
}

// Name returns the property name.
func (p *Property) Name() string { return p.name }

// EscapedValue returns the evaluated value with escapes intact.
func (p *Property) EscapedValue() string { return p.escapedValue }

// EvaluatedValue returns the evaluated, unescaped value.
func (p *Property) EvaluatedValue() string { return Unescape(p.escapedValue) }

// Origin returns the property's provenance.
func (p *Property) Origin() PropertyOrigin { return p.origin }

// IsGlobal reports whether the property was supplied as a global.
func (p *Property) IsGlobal() bool { return p.origin == OriginGlobal }

// IsReserved reports whether the property is engine-computed.
func (p *Property) IsReserved() bool { return p.origin == OriginReserved }

// PropertyTable is the live, case-insensitive property lookup plus the
// ordered log of every assignment made during evaluation.
type PropertyTable struct {
	live map[string]*Property // key: lower-cased name
	log  []*Property          // assignment order, including overridden entries
}

// NewPropertyTable returns an empty table.
func NewPropertyTable() *PropertyTable {
	return &PropertyTable{live: make(map[string]*Property)}
}

// Get returns the live property for name, or nil.
func (t *PropertyTable) Get(name string) *Property {
	return t.live[strings.ToLower(name)]
}

// Value returns the escaped value of name, or "" when unset. Missing
// properties expand to empty by design, so this never errors.
func (t *PropertyTable) Value(name string) string {
	if p := t.Get(name); p != nil {
		return p.escapedValue
	}
	return ""
}

// Set assigns name, recording predecessor linkage, and returns the new
// property. The caller is responsible for precedence decisions; Set always
// overrides.
func (t *PropertyTable) Set(name, escapedValue string, origin PropertyOrigin, source *construction.PropertyElement) *Property {
	key := strings.ToLower(name)
	p := &Property{
		name:         name,
		escapedValue: escapedValue,
		origin:       origin,
		Source:       source,
		Predecessor:  t.live[key],
	}
	t.live[key] = p
	t.log = append(t.log, p)
	return p
}

// Live returns the current properties in no particular order.
func (t *PropertyTable) Live() []*Property {
	props := make([]*Property, 0, len(t.live))
	for _, p := range t.live {
		props = append(props, p)
	}
	return props
}

// Log returns every assignment in evaluation order, including entries that
// were later overridden. Tooling walks this for provenance.
func (t *PropertyTable) Log() []*Property { return t.log }

// Count returns the number of live properties.
func (t *PropertyTable) Count() int { return len(t.live) }
