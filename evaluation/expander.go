package evaluation

import (
	"fmt"
	"strconv"
	"strings"
)

// ExpandMode selects which reference kinds an expansion resolves.
// References of a kind outside the mode are left as literal text.
type ExpandMode int

const (
	// ExpandPropertiesOnly resolves $(Name) only.
	ExpandPropertiesOnly ExpandMode = iota
	// ExpandPropertiesAndItems additionally resolves @(Type) references.
	ExpandPropertiesAndItems
	// ExpandFull additionally resolves %(Metadata) references.
	ExpandFull
)

// itemProvider exposes the items accumulated so far to the expander.
type itemProvider interface {
	ItemsOf(itemType string) []*Item
}

// metadataScope exposes the metadata in scope during per-item evaluation.
// The returned value is escaped.
type metadataScope interface {
	metadataValue(itemType, name string) (string, bool)
}

// Expander performs reference expansion over raw strings: $(Property),
// @(ItemType) with transforms and functions, and %(Metadata). Results stay
// escaped until a final unescape, so expanded values can be re-embedded
// without double interpretation. Unresolvable references expand to empty;
// that is deliberate permissiveness, never an error.
type Expander struct {
	properties *PropertyTable
	items      itemProvider
	metadata   metadataScope

	// strictMetadata turns bare metadata references outside a per-item
	// context into errors instead of empty expansion, for diagnostics.
	strictMetadata bool
}

// NewExpander returns an expander over the given lookups. items and
// metadata may be nil when those reference kinds are not in scope.
func NewExpander(properties *PropertyTable, items itemProvider, metadata metadataScope) *Expander {
	return &Expander{properties: properties, items: items, metadata: metadata}
}

// Expand resolves the references in s per mode and returns the expanded,
// still-escaped string.
func (x *Expander) Expand(s string, mode ExpandMode) (string, error) {
	if !strings.ContainsAny(s, "$@%") {
		return s, nil
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '$' && i+1 < len(s) && s[i+1] == '(':
			inner, end, ok := balancedRef(s, i+2)
			if !ok {
				return "", fmt.Errorf("unterminated property reference in %q", s)
			}
			name, err := x.Expand(inner, ExpandPropertiesOnly)
			if err != nil {
				return "", err
			}
			sb.WriteString(x.properties.Value(strings.TrimSpace(name)))
			i = end
		case c == '@' && i+1 < len(s) && s[i+1] == '(' && mode >= ExpandPropertiesAndItems:
			inner, end, ok := balancedRef(s, i+2)
			if !ok {
				return "", fmt.Errorf("unterminated item reference in %q", s)
			}
			expanded, err := x.expandItemRef(inner)
			if err != nil {
				return "", err
			}
			sb.WriteString(expanded)
			i = end
		case c == '%' && i+1 < len(s) && s[i+1] == '(' && mode >= ExpandFull:
			inner, end, ok := balancedRef(s, i+2)
			if !ok {
				return "", fmt.Errorf("unterminated metadata reference in %q", s)
			}
			expanded, err := x.expandMetadataRef(strings.TrimSpace(inner))
			if err != nil {
				return "", err
			}
			sb.WriteString(expanded)
			i = end
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), nil
}

// balancedRef scans from start (just past the opening paren) to the
// matching close paren. Returns the inner text and the index past the
// closing paren.
func balancedRef(s string, start int) (inner string, end int, ok bool) {
	depth := 1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[start:i], i + 1, true
			}
		}
	}
	return "", 0, false
}

// expandMetadataRef resolves a bare or qualified metadata reference.
// Outside a per-item context it is a no-op empty expansion unless strict
// mode is on.
func (x *Expander) expandMetadataRef(ref string) (string, error) {
	itemType := ""
	name := ref
	if dot := strings.IndexByte(ref, '.'); dot >= 0 {
		itemType = strings.TrimSpace(ref[:dot])
		name = strings.TrimSpace(ref[dot+1:])
	}
	if x.metadata == nil {
		if x.strictMetadata {
			return "", fmt.Errorf("metadata reference %%(%s) is not valid outside a per-item context", ref)
		}
		return "", nil
	}
	v, ok := x.metadata.metadataValue(itemType, name)
	if !ok {
		return "", nil
	}
	return v, nil
}

// expandItemRef resolves the contents of an @( ) reference:
//
//	ItemType
//	ItemType, 'sep'
//	ItemType -> 'transform expr'
//	ItemType -> 'transform expr', 'sep'
//	ItemType -> Count() | Distinct() | Metadata('Name')
func (x *Expander) expandItemRef(inner string) (string, error) {
	itemType, transform, sep, err := parseItemRef(inner)
	if err != nil {
		return "", err
	}
	if x.items == nil {
		// Items are not in scope (e.g. properties pass); an item list
		// reference expands to nothing.
		return "", nil
	}
	items := x.items.ItemsOf(itemType)

	switch {
	case transform == nil:
		values := make([]string, 0, len(items))
		for _, it := range items {
			values = append(values, it.EvaluatedIncludeEscaped())
		}
		return strings.Join(values, sep), nil

	case transform.isExpr:
		values := make([]string, 0, len(items))
		for _, it := range items {
			itemExp := &Expander{
				properties: x.properties,
				items:      x.items,
				metadata:   itemMetadataScope{item: it},
			}
			v, err := itemExp.Expand(transform.expr, ExpandFull)
			if err != nil {
				return "", err
			}
			values = append(values, v)
		}
		return strings.Join(values, sep), nil

	default:
		return x.applyItemFunction(itemType, items, transform, sep)
	}
}

func (x *Expander) applyItemFunction(itemType string, items []*Item, fn *itemTransform, sep string) (string, error) {
	switch strings.ToLower(fn.funcName) {
	case "count":
		if len(fn.funcArgs) != 0 {
			return "", fmt.Errorf("item function Count() takes no arguments")
		}
		return strconv.Itoa(len(items)), nil
	case "distinct":
		if len(fn.funcArgs) != 0 {
			return "", fmt.Errorf("item function Distinct() takes no arguments")
		}
		seen := make(map[string]bool, len(items))
		var values []string
		for _, it := range items {
			key := strings.ToLower(it.EvaluatedIncludeEscaped())
			if !seen[key] {
				seen[key] = true
				values = append(values, it.EvaluatedIncludeEscaped())
			}
		}
		return strings.Join(values, sep), nil
	case "metadata":
		if len(fn.funcArgs) != 1 {
			return "", fmt.Errorf("item function Metadata() takes exactly one argument")
		}
		var values []string
		for _, it := range items {
			if v := it.MetadataValue(fn.funcArgs[0]); v != "" {
				values = append(values, Escape(v))
			}
		}
		return strings.Join(values, sep), nil
	default:
		return "", fmt.Errorf("unknown item function %q on item type %q", fn.funcName, itemType)
	}
}

// itemTransform is the parsed right side of "->" in an item reference:
// either a quoted per-item expression or a named function call.
type itemTransform struct {
	isExpr   bool
	expr     string
	funcName string
	funcArgs []string
}

func parseItemRef(inner string) (itemType string, transform *itemTransform, sep string, err error) {
	sep = ";"
	rest := strings.TrimSpace(inner)

	// Item type runs to the first '->' or ',' outside quotes.
	end := len(rest)
	for i := 0; i < len(rest); i++ {
		if rest[i] == '-' && i+1 < len(rest) && rest[i+1] == '>' {
			end = i
			break
		}
		if rest[i] == ',' {
			end = i
			break
		}
	}
	itemType = strings.TrimSpace(rest[:end])
	if itemType == "" {
		return "", nil, "", fmt.Errorf("item reference @(%s) is missing an item type", inner)
	}
	rest = rest[end:]

	if strings.HasPrefix(rest, "->") {
		rest = strings.TrimSpace(rest[2:])
		switch {
		case strings.HasPrefix(rest, "'"):
			expr, remaining, ok := takeQuoted(rest)
			if !ok {
				return "", nil, "", fmt.Errorf("unterminated transform expression in @(%s)", inner)
			}
			transform = &itemTransform{isExpr: true, expr: expr}
			rest = strings.TrimSpace(remaining)
		default:
			open := strings.IndexByte(rest, '(')
			closeParen := strings.LastIndexByte(rest, ')')
			if open < 0 || closeParen < open {
				return "", nil, "", fmt.Errorf("malformed item function in @(%s)", inner)
			}
			name := strings.TrimSpace(rest[:open])
			argText := strings.TrimSpace(rest[open+1 : closeParen])
			var args []string
			if argText != "" {
				for _, a := range strings.Split(argText, ",") {
					a = strings.TrimSpace(a)
					a = strings.Trim(a, "'")
					args = append(args, a)
				}
			}
			transform = &itemTransform{funcName: name, funcArgs: args}
			rest = strings.TrimSpace(rest[closeParen+1:])
		}
	}

	if strings.HasPrefix(rest, ",") {
		rest = strings.TrimSpace(rest[1:])
		quoted, remaining, ok := takeQuoted(rest)
		if !ok {
			return "", nil, "", fmt.Errorf("malformed separator in @(%s)", inner)
		}
		sep = quoted
		rest = strings.TrimSpace(remaining)
	}
	if rest != "" {
		return "", nil, "", fmt.Errorf("unexpected trailing text %q in @(%s)", rest, inner)
	}
	return itemType, transform, sep, nil
}

// takeQuoted consumes a single-quoted string at the start of s.
func takeQuoted(s string) (content, rest string, ok bool) {
	if !strings.HasPrefix(s, "'") {
		return "", "", false
	}
	end := strings.IndexByte(s[1:], '\'')
	if end < 0 {
		return "", "", false
	}
	return s[1 : 1+end], s[end+2:], true
}

// itemMetadataScope binds %(Meta) references to one item during per-item
// expansion (transforms and pass-3 metadata evaluation).
type itemMetadataScope struct {
	item *Item
}

func (s itemMetadataScope) metadataValue(itemType, name string) (string, bool) {
	if itemType != "" && !strings.EqualFold(itemType, s.item.ItemType()) {
		// Qualified references to other item types batch at execution
		// time, which is outside project evaluation; expand to empty.
		return "", false
	}
	if v, ok := s.item.explicitMetadata(name); ok {
		return v, true
	}
	if v, ok := s.item.wellKnownMetadata(name); ok {
		return Escape(v), true
	}
	return "", false
}

// definitionMetadataScope binds %(Meta) references to the default metadata
// accumulated so far on one item definition during pass 2.
type definitionMetadataScope struct {
	def *ItemDefinition
}

func (s definitionMetadataScope) metadataValue(itemType, name string) (string, bool) {
	if itemType != "" && !strings.EqualFold(itemType, s.def.ItemType()) {
		return "", false
	}
	return s.def.get(name)
}
