// Package lock parses and evaluates boolean access-control expressions
// against the object graph. Lock expressions are pure predicates: they
// read flags and attributes off the subject and never mutate anything.
//
// Grammar (precedence NOT > AND > OR, parentheses override):
//
//	expr     := or_expr
//	or_expr  := and_expr ( '|' and_expr )*
//	and_expr := unary ( '&' unary )*
//	unary    := '!' unary | atom
//	atom     := '(' expr ')' | '#' integer | '@' kind | IDENT ( ':' test )?
//
// A bare IDENT is a flag test. IDENT ':' test is an attribute test, where
// test is an optional comparator (> < >= <= =) followed by a value.
package lock

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kochj23/webmush/pkg/gamedb"
)

// NodeType discriminates parsed expression nodes.
type NodeType int

const (
	NodeAnd NodeType = iota
	NodeOr
	NodeNot
	NodeRef  // subject is exactly #N
	NodeKind // subject's kind matches
	NodeFlag // subject carries the flag
	NodeAttr // subject's attribute compares against a value
)

// Cmp is an attribute-test comparator.
type Cmp int

const (
	CmpExists Cmp = iota // ATTR:  — attribute present
	CmpEq                // ATTR:v or ATTR:=v
	CmpGt
	CmpLt
	CmpGe
	CmpLe
)

// Node is one node of a parsed lock expression.
type Node struct {
	Type  NodeType
	Left  *Node
	Right *Node
	Ref   gamedb.DBRef
	Kind  gamedb.Kind
	Name  string // flag or attribute name
	Cmp   Cmp
	Value string
}

// ErrMalformed wraps every parse failure. A present-but-malformed lock
// always evaluates to deny; the error is surfaced so the owner can be
// told their lock is broken rather than silently locked open.
type ErrMalformed struct {
	Expr   string
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("lock: malformed expression %q: %s", e.Expr, e.Reason)
}

// Check parses and evaluates expr for a subject. An empty expression
// permits. A malformed expression denies and returns the parse error.
func Check(db *gamedb.Database, subject gamedb.DBRef, expr string) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	node, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return Eval(db, subject, node), nil
}

// Parse compiles a lock expression into a node tree.
func Parse(expr string) (*Node, error) {
	p := &parser{src: expr}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos < len(p.src) {
		return nil, p.fail("unexpected %q", p.src[p.pos:])
	}
	return node, nil
}

// Eval walks a parsed tree against the subject. AND stops at the first
// false, OR at the first true.
func Eval(db *gamedb.Database, subject gamedb.DBRef, n *Node) bool {
	if n == nil {
		return false
	}
	switch n.Type {
	case NodeAnd:
		return Eval(db, subject, n.Left) && Eval(db, subject, n.Right)
	case NodeOr:
		return Eval(db, subject, n.Left) || Eval(db, subject, n.Right)
	case NodeNot:
		return !Eval(db, subject, n.Left)
	case NodeRef:
		return db.Resolve(subject) != gamedb.Nothing && subject == n.Ref
	case NodeKind:
		k, ok := db.Kind(subject)
		return ok && k == n.Kind
	case NodeFlag:
		return db.HasFlag(subject, n.Name)
	case NodeAttr:
		return evalAttr(db, subject, n)
	}
	return false
}

func evalAttr(db *gamedb.Database, subject gamedb.DBRef, n *Node) bool {
	val, ok := db.GetAttr(subject, n.Name)
	if !ok {
		return false
	}
	switch n.Cmp {
	case CmpExists:
		return true
	case CmpEq:
		if av, aerr := strconv.ParseFloat(strings.TrimSpace(val), 64); aerr == nil {
			if bv, berr := strconv.ParseFloat(n.Value, 64); berr == nil {
				return av == bv
			}
		}
		return strings.EqualFold(strings.TrimSpace(val), n.Value)
	}
	// Ordered comparators are numeric only; unparsable sides fail the test.
	av, aerr := strconv.ParseFloat(strings.TrimSpace(val), 64)
	bv, berr := strconv.ParseFloat(n.Value, 64)
	if aerr != nil || berr != nil {
		return false
	}
	switch n.Cmp {
	case CmpGt:
		return av > bv
	case CmpLt:
		return av < bv
	case CmpGe:
		return av >= bv
	case CmpLe:
		return av <= bv
	}
	return false
}

type parser struct {
	src string
	pos int
}

func (p *parser) fail(format string, args ...any) error {
	return &ErrMalformed{Expr: p.src, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpaces()
		if p.peek() != '|' {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Type: NodeOr, Left: left, Right: right}
	}
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpaces()
		if p.peek() != '&' {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Node{Type: NodeAnd, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (*Node, error) {
	p.skipSpaces()
	if p.peek() == '!' {
		p.pos++
		sub, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Type: NodeNot, Left: sub}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (*Node, error) {
	p.skipSpaces()
	switch p.peek() {
	case 0:
		return nil, p.fail("missing operand")
	case '(':
		p.pos++
		sub, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpaces()
		if p.peek() != ')' {
			return nil, p.fail("missing ')'")
		}
		p.pos++
		return sub, nil
	case '#':
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		if p.pos == start {
			return nil, p.fail("'#' without object number")
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return nil, p.fail("bad object number %q", p.src[start:p.pos])
		}
		return &Node{Type: NodeRef, Ref: gamedb.DBRef(n)}, nil
	case '@':
		p.pos++
		name := p.ident()
		kind, ok := gamedb.KindFromString(name)
		if !ok {
			return nil, p.fail("unknown kind %q", name)
		}
		return &Node{Type: NodeKind, Kind: kind}, nil
	}

	name := p.ident()
	if name == "" {
		return nil, p.fail("unexpected %q", string(p.peek()))
	}
	if p.peek() != ':' {
		return &Node{Type: NodeFlag, Name: strings.ToUpper(name)}, nil
	}
	p.pos++ // skip ':'

	cmp := CmpEq
	switch {
	case strings.HasPrefix(p.src[p.pos:], ">="):
		cmp = CmpGe
		p.pos += 2
	case strings.HasPrefix(p.src[p.pos:], "<="):
		cmp = CmpLe
		p.pos += 2
	case p.peek() == '>':
		cmp = CmpGt
		p.pos++
	case p.peek() == '<':
		cmp = CmpLt
		p.pos++
	case p.peek() == '=':
		p.pos++
	}

	// Value runs to the next operator at this level.
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '&' || c == '|' || c == ')' {
			break
		}
		p.pos++
	}
	value := strings.TrimSpace(p.src[start:p.pos])
	if value == "" {
		cmp = CmpExists
	}
	return &Node{Type: NodeAttr, Name: gamedb.CanonAttr(name), Cmp: cmp, Value: value}, nil
}

// ident consumes an identifier: letters, digits, '_' and '-'.
func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			c >= '0' && c <= '9' || c == '_' || c == '-' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

// Unparse renders a node tree back into canonical expression text.
func Unparse(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case NodeAnd:
		left := Unparse(n.Left)
		if n.Left != nil && n.Left.Type == NodeOr {
			left = "(" + left + ")"
		}
		right := Unparse(n.Right)
		if n.Right != nil && n.Right.Type == NodeOr {
			right = "(" + right + ")"
		}
		return left + "&" + right
	case NodeOr:
		return Unparse(n.Left) + "|" + Unparse(n.Right)
	case NodeNot:
		sub := Unparse(n.Left)
		if n.Left != nil && (n.Left.Type == NodeAnd || n.Left.Type == NodeOr) {
			sub = "(" + sub + ")"
		}
		return "!" + sub
	case NodeRef:
		return "#" + strconv.Itoa(int(n.Ref))
	case NodeKind:
		return "@" + n.Kind.String()
	case NodeFlag:
		return n.Name
	case NodeAttr:
		op := ""
		switch n.Cmp {
		case CmpGt:
			op = ">"
		case CmpLt:
			op = "<"
		case CmpGe:
			op = ">="
		case CmpLe:
			op = "<="
		}
		return n.Name + ":" + op + n.Value
	}
	return "?"
}
