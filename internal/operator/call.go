package operator

import (
	"math"
	"strconv"
	"strings"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
)

// ArgKind tags what an argument carries.
type ArgKind int

const (
	ArgValue ArgKind = iota
	ArgString
	ArgList
)

// Arg is one evaluated call argument: a value, a string literal or a list of
// numeric constants.
type Arg struct {
	Kind  ArgKind
	Value alpha.Value
	Str   string
	List  []float64
}

// ValueArg wraps an alpha value.
func ValueArg(v alpha.Value) Arg { return Arg{Kind: ArgValue, Value: v} }

// StringArg wraps a string literal.
func StringArg(s string) Arg { return Arg{Kind: ArgString, Str: s} }

// ListArg wraps a numeric list literal.
func ListArg(xs []float64) Arg { return Arg{Kind: ArgList, List: xs} }

// KeywordArg is a name=value argument.
type KeywordArg struct {
	Name string
	Arg  Arg
}

// Call holds arguments bound to an operator's parameter names.
type Call struct {
	Name  string
	named map[string]Arg
	// Rest holds positional arguments past the declared Params.
	Rest []Arg
}

func bind(s *Spec, args []Arg, kwargs []KeywordArg) (*Call, error) {
	c := &Call{Name: s.Name, named: make(map[string]Arg, len(args)+len(kwargs))}

	for i, a := range args {
		if i < len(s.Params) {
			c.named[s.Params[i]] = a
			continue
		}
		if !s.Variadic {
			return nil, core.Errorf(core.ErrArity, "%s takes at most %d arguments, got %d", s.Name, len(s.Params), len(args))
		}
		c.Rest = append(c.Rest, a)
	}

	for _, kw := range kwargs {
		if !s.accepts(kw.Name) {
			return nil, core.Errorf(core.ErrInvalidArgument, "%s: unexpected keyword %q", s.Name, kw.Name)
		}
		if _, dup := c.named[kw.Name]; dup {
			return nil, core.Errorf(core.ErrInvalidArgument, "%s: argument %q given twice", s.Name, kw.Name)
		}
		c.named[kw.Name] = kw.Arg
	}

	for _, p := range s.Params[:s.Required] {
		if _, ok := c.named[p]; !ok {
			return nil, core.Errorf(core.ErrArity, "%s requires %d arguments, missing %q", s.Name, s.Required, p)
		}
	}
	return c, nil
}

func (s *Spec) accepts(name string) bool {
	for _, p := range s.Params {
		if p == name {
			return true
		}
	}
	for _, k := range s.Keywords {
		if k == name {
			return true
		}
	}
	return false
}

// Has reports whether the named parameter was supplied.
func (c *Call) Has(name string) bool {
	_, ok := c.named[name]
	return ok
}

// Value returns the named argument as an alpha value.
func (c *Call) Value(name string) (alpha.Value, error) {
	a, ok := c.named[name]
	if !ok {
		return alpha.Value{}, core.Errorf(core.ErrArity, "%s: missing argument %q", c.Name, name)
	}
	if a.Kind != ArgValue {
		return alpha.Value{}, core.Errorf(core.ErrInvalidArgument, "%s: argument %q must be numeric", c.Name, name)
	}
	return a.Value, nil
}

// Values returns the first n named params followed by Rest, all as values.
func (c *Call) Values(params ...string) ([]alpha.Value, error) {
	out := make([]alpha.Value, 0, len(params)+len(c.Rest))
	for _, p := range params {
		v, err := c.Value(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	for _, a := range c.Rest {
		if a.Kind != ArgValue {
			return nil, core.Errorf(core.ErrInvalidArgument, "%s: arguments must be numeric", c.Name)
		}
		out = append(out, a.Value)
	}
	return out, nil
}

// Float returns a scalar argument, or def when absent.
func (c *Call) Float(name string, def float64) (float64, error) {
	a, ok := c.named[name]
	if !ok {
		return def, nil
	}
	if a.Kind != ArgValue || !a.Value.IsScalar() {
		return 0, core.Errorf(core.ErrInvalidArgument, "%s: %s must be a constant number", c.Name, name)
	}
	return a.Value.Float(), nil
}

// Int returns an integral scalar argument, or def when absent.
func (c *Call) Int(name string, def int) (int, error) {
	f, err := c.Float(name, float64(def))
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, core.Errorf(core.ErrInvalidArgument, "%s: %s must be an integer, got %v", c.Name, name, f)
	}
	return int(f), nil
}

// Window returns a positive integral window length. A zero def makes the
// argument required.
func (c *Call) Window(name string, def int) (int, error) {
	if def == 0 && !c.Has(name) {
		return 0, core.Errorf(core.ErrArity, "%s: missing window %q", c.Name, name)
	}
	n, err := c.Int(name, def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, core.Errorf(core.ErrInvalidArgument, "%s: %s must be positive, got %d", c.Name, name, n)
	}
	return n, nil
}

// Bool returns a flag argument: any non-zero number is true, as are the
// strings "true", "yes" and "on".
func (c *Call) Bool(name string, def bool) (bool, error) {
	a, ok := c.named[name]
	if !ok {
		return def, nil
	}
	switch a.Kind {
	case ArgString:
		switch strings.ToLower(strings.TrimSpace(a.Str)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0", "":
			return false, nil
		}
	case ArgValue:
		if a.Value.IsScalar() && !math.IsNaN(a.Value.Float()) {
			return a.Value.Float() != 0, nil
		}
	}
	return false, core.Errorf(core.ErrInvalidArgument, "%s: %s must be a boolean", c.Name, name)
}

// String returns a string argument, or def when absent.
func (c *Call) String(name, def string) (string, error) {
	a, ok := c.named[name]
	if !ok {
		return def, nil
	}
	if a.Kind != ArgString {
		return "", core.Errorf(core.ErrInvalidArgument, "%s: %s must be a string", c.Name, name)
	}
	return a.Str, nil
}

// List returns a numeric list given either as a list literal or as a
// comma-separated string. ok is false when the argument is absent.
func (c *Call) List(name string) (xs []float64, ok bool, err error) {
	a, ok := c.named[name]
	if !ok {
		return nil, false, nil
	}
	switch a.Kind {
	case ArgList:
		return append([]float64(nil), a.List...), true, nil
	case ArgString:
		xs, err := parseNumberList(a.Str)
		if err != nil {
			return nil, true, core.Errorf(core.ErrInvalidArgument, "%s: %s: %v", c.Name, name, err)
		}
		return xs, true, nil
	case ArgValue:
		if a.Value.IsScalar() {
			return []float64{a.Value.Float()}, true, nil
		}
	}
	return nil, true, core.Errorf(core.ErrInvalidArgument, "%s: %s must be a list of numbers", c.Name, name)
}

func parseNumberList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
