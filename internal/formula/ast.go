package formula

import (
	"strconv"
	"strings"

	"github.com/newthinker/alphalab/internal/core"
)

// Node is an expression or statement in a parsed formula.
type Node interface {
	// Pos is the byte offset of the node in the source.
	Pos() int
	String() string
}

// Number is a numeric literal. true/false parse as 1/0.
type Number struct {
	At    int
	Value float64
}

// String is a quoted string literal.
type String struct {
	At    int
	Value string
}

// List is a bracketed list literal.
type List struct {
	At    int
	Elems []Node
}

// FieldRef references a market field.
type FieldRef struct {
	At    int
	Field core.Field
}

// LocalRef references a name assigned by an earlier statement.
type LocalRef struct {
	At   int
	Name string
}

// Keyword is a name=value call argument.
type Keyword struct {
	Name  string
	Value Node
}

// Call invokes an operator.
type Call struct {
	At     int
	Name   string
	Args   []Node
	Kwargs []Keyword
}

// Unary is a prefix minus.
type Unary struct {
	At int
	Op byte
	X  Node
}

// Binary is an infix arithmetic expression.
type Binary struct {
	At   int
	Op   byte
	X, Y Node
}

// Assign binds the value of an expression to a local name.
type Assign struct {
	At    int
	Name  string
	Value Node
}

func (n *Number) Pos() int   { return n.At }
func (n *String) Pos() int   { return n.At }
func (n *List) Pos() int     { return n.At }
func (n *FieldRef) Pos() int { return n.At }
func (n *LocalRef) Pos() int { return n.At }
func (n *Call) Pos() int     { return n.At }
func (n *Unary) Pos() int    { return n.At }
func (n *Binary) Pos() int   { return n.At }
func (n *Assign) Pos() int   { return n.At }

func (n *Number) String() string   { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (n *String) String() string   { return strconv.Quote(n.Value) }
func (n *FieldRef) String() string { return string(n.Field) }
func (n *LocalRef) String() string { return n.Name }
func (n *Unary) String() string    { return "(" + string(n.Op) + n.X.String() + ")" }
func (n *Binary) String() string {
	return "(" + n.X.String() + " " + string(n.Op) + " " + n.Y.String() + ")"
}
func (n *Assign) String() string { return n.Name + " = " + n.Value.String() }

func (n *List) String() string {
	parts := make([]string, len(n.Elems))
	for i, e := range n.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (n *Call) String() string {
	parts := make([]string, 0, len(n.Args)+len(n.Kwargs))
	for _, a := range n.Args {
		parts = append(parts, a.String())
	}
	for _, kw := range n.Kwargs {
		parts = append(parts, kw.Name+"="+kw.Value.String())
	}
	return n.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Program is a parsed formula: statements in source order.
type Program struct {
	Statements []Node
}

func (p *Program) String() string {
	parts := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}

// Fields returns the distinct market fields the program references.
func (p *Program) Fields() []core.Field {
	seen := make(map[core.Field]bool)
	var out []core.Field
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *FieldRef:
			if !seen[n.Field] {
				seen[n.Field] = true
				out = append(out, n.Field)
			}
		case *List:
			for _, e := range n.Elems {
				walk(e)
			}
		case *Call:
			for _, a := range n.Args {
				walk(a)
			}
			for _, kw := range n.Kwargs {
				walk(kw.Value)
			}
		case *Unary:
			walk(n.X)
		case *Binary:
			walk(n.X)
			walk(n.Y)
		case *Assign:
			walk(n.Value)
		}
	}
	for _, s := range p.Statements {
		walk(s)
	}
	return out
}
