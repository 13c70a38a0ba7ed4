package query

import (
	"strconv"
	"strings"
)

// Query is a parsed statement in the supported dialect.
type Query struct {
	Alias  string
	Select Selection
	// Where is nil when the statement has no filter.
	Where Expr
}

// Selection is the projection of a query.
type Selection struct {
	Star bool
	// Value is set for SELECT VALUE <path>; Paths then holds one entry.
	Value bool
	Paths []Path
}

// Path is a property path relative to the FROM alias.
type Path []string

func (p Path) String() string { return strings.Join(p, ".") }

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Expr is a filter expression.
type Expr interface{ isExpr() }

// Comparison compares a property with a literal. Value is a string,
// float64, bool, or nil.
type Comparison struct {
	Path  Path
	Op    Op
	Value any
}

// Logical joins two expressions with AND or OR.
type Logical struct {
	And         bool
	Left, Right Expr
}

// Not negates an expression.
type Not struct{ Expr Expr }

func (Comparison) isExpr() {}
func (Logical) isExpr()    {}
func (Not) isExpr()        {}

// Parse parses src. Unsupported clauses are reported as
// *UnsupportedClauseError, everything else as *SyntaxError.
func Parse(src string) (*Query, error) {
	if err := CheckClauses(src); err != nil {
		return nil, err
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseQuery()
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) fail(t token, msg string) error {
	return &SyntaxError{Pos: t.pos, Msg: msg}
}

func (p *parser) expectKeyword(kw string) error {
	t := p.next()
	if !t.keyword(kw) {
		return p.fail(t, "expected "+kw)
	}
	return nil
}

func (p *parser) parseQuery() (*Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	q := &Query{}
	var raw []Path
	switch {
	case p.peek().punct("*"):
		p.next()
		q.Select.Star = true
	case p.peek().keyword("VALUE"):
		p.next()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		q.Select.Value = true
		raw = append(raw, path)
	default:
		for {
			path, err := p.parsePath()
			if err != nil {
				return nil, err
			}
			raw = append(raw, path)
			if !p.peek().punct(",") {
				break
			}
			p.next()
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	src := p.next()
	if src.kind != tokIdent {
		return nil, p.fail(src, "expected container alias")
	}
	q.Alias = src.text
	if p.peek().keyword("AS") {
		p.next()
	}
	if t := p.peek(); t.kind == tokIdent && !t.keyword("WHERE") {
		q.Alias = p.next().text
	}

	for _, path := range raw {
		if len(path) < 2 || path[0] != q.Alias {
			return nil, &SyntaxError{Msg: "projection " + path.String() + " must be a property of " + q.Alias}
		}
		q.Select.Paths = append(q.Select.Paths, path[1:])
	}

	if p.peek().keyword("WHERE") {
		p.next()
		expr, err := p.parseOr(q.Alias)
		if err != nil {
			return nil, err
		}
		q.Where = expr
	}

	if t := p.peek(); t.kind != tokEOF {
		return nil, p.fail(t, "unexpected "+strconv.Quote(t.text))
	}
	return q, nil
}

func (p *parser) parsePath() (Path, error) {
	t := p.next()
	if t.kind != tokIdent {
		return nil, p.fail(t, "expected property path")
	}
	path := Path{t.text}
	for {
		switch {
		case p.peek().punct("."):
			p.next()
			seg := p.next()
			if seg.kind != tokIdent {
				return nil, p.fail(seg, "expected property name")
			}
			path = append(path, seg.text)
		case p.peek().punct("["):
			p.next()
			seg := p.next()
			if seg.kind != tokString {
				return nil, p.fail(seg, "expected quoted property name")
			}
			if t := p.next(); !t.punct("]") {
				return nil, p.fail(t, "expected ]")
			}
			path = append(path, seg.text)
		default:
			return path, nil
		}
	}
}

func (p *parser) parseOr(alias string) (Expr, error) {
	left, err := p.parseAnd(alias)
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("OR") {
		p.next()
		right, err := p.parseAnd(alias)
		if err != nil {
			return nil, err
		}
		left = Logical{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd(alias string) (Expr, error) {
	left, err := p.parseUnary(alias)
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("AND") {
		p.next()
		right, err := p.parseUnary(alias)
		if err != nil {
			return nil, err
		}
		left = Logical{And: true, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary(alias string) (Expr, error) {
	if p.peek().keyword("NOT") {
		p.next()
		inner, err := p.parseUnary(alias)
		if err != nil {
			return nil, err
		}
		return Not{Expr: inner}, nil
	}
	if p.peek().punct("(") {
		p.next()
		inner, err := p.parseOr(alias)
		if err != nil {
			return nil, err
		}
		if t := p.next(); !t.punct(")") {
			return nil, p.fail(t, "expected )")
		}
		return inner, nil
	}
	return p.parseComparison(alias)
}

// operand is either a path or a literal.
type operand struct {
	path    Path
	literal any
	isPath  bool
}

func (p *parser) parseOperand(alias string) (operand, error) {
	t := p.peek()
	switch {
	case t.kind == tokString:
		p.next()
		return operand{literal: t.text}, nil
	case t.kind == tokNumber, t.punct("-"):
		neg := false
		if t.punct("-") {
			p.next()
			neg = true
			t = p.peek()
			if t.kind != tokNumber {
				return operand{}, p.fail(t, "expected number")
			}
		}
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return operand{}, p.fail(t, "invalid number "+t.text)
		}
		if neg {
			f = -f
		}
		return operand{literal: f}, nil
	case t.keyword("true"):
		p.next()
		return operand{literal: true}, nil
	case t.keyword("false"):
		p.next()
		return operand{literal: false}, nil
	case t.keyword("null"):
		p.next()
		return operand{literal: nil}, nil
	case t.kind == tokParam:
		return operand{}, p.fail(t, "query parameters are not supported")
	case t.kind == tokIdent:
		path, err := p.parsePath()
		if err != nil {
			return operand{}, err
		}
		if path[0] != alias || len(path) < 2 {
			return operand{}, p.fail(t, "expected a property of "+alias)
		}
		return operand{path: path[1:], isPath: true}, nil
	default:
		return operand{}, p.fail(t, "expected a property or literal")
	}
}

var flipped = map[Op]Op{OpEq: OpEq, OpNe: OpNe, OpLt: OpGt, OpLe: OpGe, OpGt: OpLt, OpGe: OpLe}

func (p *parser) parseComparison(alias string) (Expr, error) {
	left, err := p.parseOperand(alias)
	if err != nil {
		return nil, err
	}
	t := p.peek()
	var op Op
	switch {
	case t.punct("="):
		op = OpEq
	case t.punct("!="), t.punct("<>"):
		op = OpNe
	case t.punct("<"):
		op = OpLt
	case t.punct("<="):
		op = OpLe
	case t.punct(">"):
		op = OpGt
	case t.punct(">="):
		op = OpGe
	default:
		// A bare property is shorthand for "= true".
		if left.isPath {
			return Comparison{Path: left.path, Op: OpEq, Value: true}, nil
		}
		return nil, p.fail(t, "expected comparison operator")
	}
	p.next()

	right, err := p.parseOperand(alias)
	if err != nil {
		return nil, err
	}
	switch {
	case left.isPath && !right.isPath:
		return Comparison{Path: left.path, Op: op, Value: right.literal}, nil
	case !left.isPath && right.isPath:
		return Comparison{Path: right.path, Op: flipped[op], Value: left.literal}, nil
	default:
		return nil, p.fail(t, "comparisons must be between a property and a literal")
	}
}
