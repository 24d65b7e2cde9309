package formula

import (
	"strings"

	"github.com/newthinker/alphalab/internal/core"
)

// FuncSet reports whether a name is a callable function.
type FuncSet interface {
	Has(name string) bool
}

// Parse parses src into a Program. Identifiers are resolved while parsing:
// a bare name must be a field or a name assigned by an earlier statement, and
// a called name must be in funcs. It never returns a partial program.
func Parse(src string, funcs FuncSet) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, funcs: funcs, locals: make(map[string]bool)}
	return p.program()
}

type parser struct {
	toks   []token
	i      int
	funcs  FuncSet
	locals map[string]bool
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekN(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.unexpected(t, kind.String())
	}
	return t, nil
}

func (p *parser) unexpected(t token, want string) error {
	if t.kind == tokEOF {
		return parseError(t.pos, "unexpected end of formula, expected %s", want)
	}
	return parseError(t.pos, "unexpected %s %q, expected %s", t.kind, t.text, want)
}

func (p *parser) program() (*Program, error) {
	prog := &Program{}
	for {
		for p.peek().kind == tokSep {
			p.next()
		}
		if p.peek().kind == tokEOF {
			break
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)

		if t := p.peek(); t.kind != tokSep && t.kind != tokEOF {
			return nil, p.unexpected(t, "end of statement")
		}
	}
	if len(prog.Statements) == 0 {
		return nil, parseError(0, "empty formula")
	}
	return prog, nil
}

func (p *parser) statement() (Node, error) {
	if p.peek().kind == tokIdent && p.peekN(1).kind == tokAssign {
		name := p.next()
		p.next()
		if err := p.checkAssignable(name); err != nil {
			return nil, err
		}
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		// visible from the next statement on
		p.locals[name.text] = true
		return &Assign{At: name.pos, Name: name.text, Value: value}, nil
	}
	return p.expr()
}

func (p *parser) checkAssignable(name token) error {
	if _, ok := core.LookupField(name.text); ok {
		return parseError(name.pos, "cannot assign to field %q", name.text)
	}
	if isBoolLiteral(name.text) {
		return parseError(name.pos, "cannot assign to %q", name.text)
	}
	if p.funcs.Has(name.text) {
		return parseError(name.pos, "cannot assign to function %q", name.text)
	}
	return nil
}

func (p *parser) expr() (Node, error) {
	x, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return x, nil
		}
		p.next()
		y, err := p.term()
		if err != nil {
			return nil, err
		}
		x = &Binary{At: t.pos, Op: t.text[0], X: x, Y: y}
	}
}

func (p *parser) term() (Node, error) {
	x, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash {
			return x, nil
		}
		p.next()
		y, err := p.factor()
		if err != nil {
			return nil, err
		}
		x = &Binary{At: t.pos, Op: t.text[0], X: x, Y: y}
	}
}

// factor binds unary minus looser than '^', so -x^2 is -(x^2), and '^' is
// right-associative.
func (p *parser) factor() (Node, error) {
	if t := p.peek(); t.kind == tokMinus {
		p.next()
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &Unary{At: t.pos, Op: '-', X: x}, nil
	}
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokCaret {
		p.next()
		y, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &Binary{At: t.pos, Op: '^', X: x, Y: y}, nil
	}
	return x, nil
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return &Number{At: t.pos, Value: t.num}, nil
	case tokString:
		return &String{At: t.pos, Value: t.text}, nil
	case tokLParen:
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return x, nil
	case tokLBracket:
		return p.list(t)
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.call(t)
		}
		return p.ident(t)
	default:
		return nil, p.unexpected(t, "expression")
	}
}

func (p *parser) list(open token) (Node, error) {
	l := &List{At: open.pos}
	if p.peek().kind == tokRBracket {
		p.next()
		return l, nil
	}
	for {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		l.Elems = append(l.Elems, e)
		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRBracket:
			return l, nil
		default:
			return nil, p.unexpected(t, "',' or ']'")
		}
	}
}

func (p *parser) ident(t token) (Node, error) {
	if f, ok := core.LookupField(t.text); ok {
		return &FieldRef{At: t.pos, Field: f}, nil
	}
	switch strings.ToLower(t.text) {
	case "true":
		return &Number{At: t.pos, Value: 1}, nil
	case "false":
		return &Number{At: t.pos, Value: 0}, nil
	}
	if p.locals[t.text] {
		return &LocalRef{At: t.pos, Name: t.text}, nil
	}
	if p.funcs.Has(t.text) {
		return nil, parseError(t.pos, "function %q used without a call", t.text)
	}
	return nil, unknownError(t.pos, "unknown identifier %q", t.text)
}

func (p *parser) call(name token) (Node, error) {
	if !p.funcs.Has(name.text) {
		if p.locals[name.text] {
			return nil, parseError(name.pos, "%q is not a function", name.text)
		}
		return nil, unknownError(name.pos, "unknown function %q", name.text)
	}
	p.next() // (
	c := &Call{At: name.pos, Name: name.text}
	if p.peek().kind == tokRParen {
		p.next()
		return c, nil
	}
	for {
		if p.peek().kind == tokIdent && p.peekN(1).kind == tokAssign {
			kw := p.next()
			p.next()
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			c.Kwargs = append(c.Kwargs, Keyword{Name: kw.text, Value: v})
		} else {
			start := p.peek()
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			if len(c.Kwargs) > 0 {
				return nil, parseError(start.pos, "positional argument after keyword argument")
			}
			c.Args = append(c.Args, v)
		}

		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return c, nil
		default:
			return nil, p.unexpected(t, "',' or ')'")
		}
	}
}

func isBoolLiteral(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "false"
}
