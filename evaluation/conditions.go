package evaluation

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/willibrandon/gomsbuild/construction"
	"github.com/willibrandon/gomsbuild/version"
)

// conditionContext carries everything condition evaluation needs: the
// expander over the partial evaluation state, the directory for resolving
// Exists() paths, the filesystem collaborator, and the source location for
// diagnostics. Condition evaluation is side-effect free; it never mutates
// evaluated state.
type conditionContext struct {
	expander *Expander
	mode     ExpandMode
	evalDir  string
	fsys     FileSystem
	loc      construction.Location

	// condition is the full raw text, kept for error messages.
	condition string

	// conditioned, when non-nil, collects property-name-to-literal hints
	// from equality comparisons for configuration discovery tooling.
	conditioned map[string][]string
}

// evaluateCondition parses and evaluates cond. An empty or whitespace
// condition is true (an absent gate never blocks).
func evaluateCondition(cond string, ctx *conditionContext) (bool, error) {
	if strings.TrimSpace(cond) == "" {
		return true, nil
	}
	ctx.condition = cond
	p := &condParser{lexer: newCondLexer(cond)}
	node, err := p.parseOr()
	if err != nil {
		return false, &ConditionSyntaxError{Condition: cond, Detail: err.Error(), Loc: ctx.loc}
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return false, &ConditionSyntaxError{
			Condition: cond,
			Detail:    "unexpected token " + strconv.Quote(tok.text),
			Loc:       ctx.loc,
		}
	}
	return node.boolValue(ctx)
}

// --- lexer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokComma
	tokNot
	tokEQ
	tokNEQ
	tokLT
	tokGT
	tokLE
	tokGE
	tokAnd
	tokOr
	tokString // quoted; text holds the raw content without quotes
	tokBare   // unquoted token, possibly containing $()/@()/%() refs
)

type condToken struct {
	kind tokenKind
	text string
}

type condLexer struct {
	input string
	pos   int
}

func newCondLexer(input string) *condLexer {
	return &condLexer{input: input}
}

func (l *condLexer) next() (condToken, error) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t' || l.input[l.pos] == '\r' || l.input[l.pos] == '\n') {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return condToken{kind: tokEOF}, nil
	}
	c := l.input[l.pos]
	switch c {
	case '(':
		l.pos++
		return condToken{kind: tokLParen, text: "("}, nil
	case ')':
		l.pos++
		return condToken{kind: tokRParen, text: ")"}, nil
	case ',':
		l.pos++
		return condToken{kind: tokComma, text: ","}, nil
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return condToken{kind: tokNEQ, text: "!="}, nil
		}
		l.pos++
		return condToken{kind: tokNot, text: "!"}, nil
	case '=':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return condToken{kind: tokEQ, text: "=="}, nil
		}
		return condToken{}, strs("unexpected character '=' (did you mean '==')")
	case '<':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return condToken{kind: tokLE, text: "<="}, nil
		}
		l.pos++
		return condToken{kind: tokLT, text: "<"}, nil
	case '>':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return condToken{kind: tokGE, text: ">="}, nil
		}
		l.pos++
		return condToken{kind: tokGT, text: ">"}, nil
	case '\'':
		end := l.pos + 1
		for end < len(l.input) && l.input[end] != '\'' {
			end++
		}
		if end >= len(l.input) {
			return condToken{}, strs("unterminated quoted string")
		}
		text := l.input[l.pos+1 : end]
		l.pos = end + 1
		return condToken{kind: tokString, text: text}, nil
	}
	return l.bareToken()
}

// bareToken consumes an unquoted token. Expression references ($(, @(, %()
// are consumed whole, balanced parens included, so "$(A)" lexes as one
// token rather than splitting at the parens.
func (l *condLexer) bareToken() (condToken, error) {
	start := l.pos
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if (c == '$' || c == '@' || c == '%') && l.pos+1 < len(l.input) && l.input[l.pos+1] == '(' {
			depth := 0
			i := l.pos + 1
			for ; i < len(l.input); i++ {
				if l.input[i] == '(' {
					depth++
				} else if l.input[i] == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if depth != 0 {
				return condToken{}, strs("unterminated expression reference")
			}
			l.pos = i + 1
			continue
		}
		if strings.IndexByte(" \t\r\n()<>=!,'", c) >= 0 {
			break
		}
		l.pos++
	}
	if l.pos == start {
		return condToken{}, strs("unexpected character " + strconv.Quote(string(l.input[start])))
	}
	text := l.input[start:l.pos]
	switch strings.ToLower(text) {
	case "and":
		return condToken{kind: tokAnd, text: text}, nil
	case "or":
		return condToken{kind: tokOr, text: text}, nil
	}
	return condToken{kind: tokBare, text: text}, nil
}

type strs string

func (s strs) Error() string { return string(s) }

// --- parser ---

type condParser struct {
	lexer  *condLexer
	ahead  *condToken
	lexErr error
}

func (p *condParser) peek() condToken {
	if p.ahead == nil {
		tok, err := p.lexer.next()
		if err != nil {
			p.lexErr = err
			tok = condToken{kind: tokEOF}
		}
		p.ahead = &tok
	}
	return *p.ahead
}

func (p *condParser) advance() condToken {
	tok := p.peek()
	p.ahead = nil
	return tok
}

func (p *condParser) parseOr() (condNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "or", left: left, right: right}
	}
	return left, p.lexErr
}

func (p *condParser) parseAnd() (condNode, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "and", left: left, right: right}
	}
	return left, p.lexErr
}

var comparisonOps = map[tokenKind]string{
	tokEQ:  "==",
	tokNEQ: "!=",
	tokLT:  "<",
	tokGT:  ">",
	tokLE:  "<=",
	tokGE:  ">=",
}

func (p *condParser) parseRelational() (condNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if op, ok := comparisonOps[p.peek().kind]; ok {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &comparisonNode{op: op, left: left, right: right}, nil
	}
	return left, p.lexErr
}

func (p *condParser) parseUnary() (condNode, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNot:
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{inner: inner}, nil
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, strs("expected ')'")
		}
		p.advance()
		return inner, nil
	case tokString:
		p.advance()
		return &leafNode{text: tok.text, quoted: true}, nil
	case tokBare:
		p.advance()
		// A bare identifier followed by '(' is a function invocation.
		if p.peek().kind == tokLParen && isConditionFunction(tok.text) {
			return p.parseFunctionArgs(tok.text)
		}
		return &leafNode{text: tok.text}, nil
	default:
		return nil, strs("unexpected token " + strconv.Quote(tok.text))
	}
}

func isConditionFunction(name string) bool {
	switch strings.ToLower(name) {
	case "exists", "hastrailingslash":
		return true
	}
	return false
}

func (p *condParser) parseFunctionArgs(name string) (condNode, error) {
	p.advance() // '('
	var args []*leafNode
	for {
		tok := p.peek()
		switch tok.kind {
		case tokRParen:
			p.advance()
			if len(args) != 1 {
				return nil, strs("function " + name + " takes exactly one argument")
			}
			return &functionNode{name: name, arg: args[0]}, nil
		case tokString:
			p.advance()
			args = append(args, &leafNode{text: tok.text, quoted: true})
		case tokBare:
			p.advance()
			args = append(args, &leafNode{text: tok.text})
		case tokComma:
			p.advance()
		default:
			return nil, strs("unexpected token " + strconv.Quote(tok.text) + " in " + name + "()")
		}
	}
}

// --- AST evaluation ---

type condNode interface {
	// boolValue evaluates the node as a boolean, or fails with a type
	// error naming the offending sub-expression.
	boolValue(ctx *conditionContext) (bool, error)
}

type binaryNode struct {
	op          string // "and" / "or"
	left, right condNode
}

// boolValue short-circuits: the right operand is not evaluated (or even
// expanded) when the left operand decides the result.
func (n *binaryNode) boolValue(ctx *conditionContext) (bool, error) {
	left, err := n.left.boolValue(ctx)
	if err != nil {
		return false, err
	}
	if n.op == "or" {
		if left {
			return true, nil
		}
	} else if !left {
		return false, nil
	}
	return n.right.boolValue(ctx)
}

type notNode struct {
	inner condNode
}

func (n *notNode) boolValue(ctx *conditionContext) (bool, error) {
	v, err := n.inner.boolValue(ctx)
	if err != nil {
		return false, err
	}
	return !v, nil
}

type leafNode struct {
	text   string
	quoted bool
}

// expand resolves the leaf's references and returns the expanded, escaped
// text.
func (n *leafNode) expand(ctx *conditionContext) (string, error) {
	return ctx.expander.Expand(n.text, ctx.mode)
}

var booleanLiterals = map[string]bool{
	"true":  true,
	"on":    true,
	"yes":   true,
	"false": false,
	"off":   false,
	"no":    false,
}

func (n *leafNode) boolValue(ctx *conditionContext) (bool, error) {
	expanded, err := n.expand(ctx)
	if err != nil {
		return false, err
	}
	if v, ok := booleanLiterals[strings.ToLower(Unescape(expanded))]; ok {
		return v, nil
	}
	return false, &ConditionTypeError{
		Code:       CodeConditionType,
		Condition:  ctx.condition,
		Expression: n.text,
		Expanded:   expanded,
		Expected:   "a boolean",
		Loc:        ctx.loc,
	}
}

type functionNode struct {
	name string
	arg  *leafNode
}

func (n *functionNode) boolValue(ctx *conditionContext) (bool, error) {
	expanded, err := n.arg.expand(ctx)
	if err != nil {
		return false, err
	}
	value := Unescape(expanded)
	switch strings.ToLower(n.name) {
	case "exists":
		value = strings.TrimSpace(value)
		if value == "" {
			return false, nil
		}
		p := value
		if !filepath.IsAbs(p) {
			p = filepath.Join(ctx.evalDir, p)
		}
		return ctx.fsys.FileExists(p) || ctx.fsys.DirExists(p), nil
	case "hastrailingslash":
		return strings.HasSuffix(value, "/") || strings.HasSuffix(value, `\`), nil
	}
	return false, &ConditionSyntaxError{
		Condition: ctx.condition,
		Detail:    "unknown function " + strconv.Quote(n.name),
		Loc:       ctx.loc,
	}
}

type comparisonNode struct {
	op          string
	left, right condNode
}

func (n *comparisonNode) boolValue(ctx *conditionContext) (bool, error) {
	leftLeaf, lok := n.left.(*leafNode)
	rightLeaf, rok := n.right.(*leafNode)
	if !lok || !rok {
		return false, &ConditionSyntaxError{
			Condition: ctx.condition,
			Detail:    "operator " + n.op + " requires simple operands",
			Loc:       ctx.loc,
		}
	}

	left, err := leftLeaf.expand(ctx)
	if err != nil {
		return false, err
	}
	right, err := rightLeaf.expand(ctx)
	if err != nil {
		return false, err
	}
	leftVal := Unescape(left)
	rightVal := Unescape(right)

	n.recordConditionedProperty(ctx, leftLeaf, rightLeaf, rightVal)
	n.recordConditionedProperty(ctx, rightLeaf, leftLeaf, leftVal)

	if n.op == "==" || n.op == "!=" {
		eq := looseEquals(leftVal, rightVal)
		if n.op == "!=" {
			return !eq, nil
		}
		return eq, nil
	}

	// Relational operators require numbers or versions on both sides.
	lnum, lIsNum := parseNumeric(leftVal)
	rnum, rIsNum := parseNumeric(rightVal)
	if lIsNum && rIsNum {
		switch n.op {
		case "<":
			return lnum < rnum, nil
		case "<=":
			return lnum <= rnum, nil
		case ">":
			return lnum > rnum, nil
		case ">=":
			return lnum >= rnum, nil
		}
	}
	lver, lErr := version.Parse(leftVal)
	rver, rErr := version.Parse(rightVal)
	if lErr == nil && rErr == nil {
		c := lver.Compare(rver)
		switch n.op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		case ">=":
			return c >= 0, nil
		}
	}

	offender := leftLeaf
	offenderExpanded := left
	if lIsNum || lErr == nil {
		offender = rightLeaf
		offenderExpanded = right
	}
	return false, &ConditionTypeError{
		Code:       CodeNumericComparison,
		Condition:  ctx.condition,
		Expression: offender.text,
		Expanded:   offenderExpanded,
		Expected:   "a number or version",
		Loc:        ctx.loc,
	}
}

// recordConditionedProperty notes "property compared to literal" equality
// shapes ('$(P)' == 'Value') as configuration hints. Evaluation order and
// results are unaffected.
func (n *comparisonNode) recordConditionedProperty(ctx *conditionContext, propSide, literalSide *leafNode, literalValue string) {
	if ctx.conditioned == nil || (n.op != "==" && n.op != "!=") {
		return
	}
	name, ok := singlePropertyReference(propSide.text)
	if !ok {
		return
	}
	if strings.ContainsAny(literalSide.text, "$@%") || literalValue == "" {
		return
	}
	for _, existing := range ctx.conditioned[name] {
		if existing == literalValue {
			return
		}
	}
	ctx.conditioned[name] = append(ctx.conditioned[name], literalValue)
}

// singlePropertyReference reports whether text is exactly one $(Name)
// reference with a plain name.
func singlePropertyReference(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "$(") || !strings.HasSuffix(t, ")") {
		return "", false
	}
	name := t[2 : len(t)-1]
	if name == "" || strings.ContainsAny(name, "$@%()") {
		return "", false
	}
	return name, true
}

// looseEquals compares expanded operands: numerically when both sides are
// numbers, by component when both are dotted versions, else as
// case-insensitive text.
func looseEquals(a, b string) bool {
	an, aok := parseNumeric(a)
	bn, bok := parseNumeric(b)
	if aok && bok {
		return an == bn
	}
	av, aerr := version.Parse(a)
	bv, berr := version.Parse(b)
	if aerr == nil && berr == nil {
		return av.Equals(bv)
	}
	return strings.EqualFold(a, b)
}

// parseNumeric accepts decimal and 0x hexadecimal numbers.
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseInt(s[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
