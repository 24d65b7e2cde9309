// Package operator implements the formula operator catalogue. Every operator
// is a pure function over alpha values; none of them mutate their inputs.
package operator

import (
	"sort"
	"sync"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
)

// Func computes an operator result from bound call arguments.
type Func func(c *Call) (alpha.Value, error)

// Category groups operators for listings.
type Category string

const (
	CategoryTimeSeries     Category = "time_series"
	CategoryCrossSectional Category = "cross_sectional"
	CategoryArithmetic     Category = "arithmetic"
	CategoryLogical        Category = "logical"
	CategoryConditional    Category = "conditional"
)

// Spec describes one operator: its parameters and implementation.
type Spec struct {
	Name     string
	Category Category
	Summary  string
	// Params are positional parameter names in order. They may also be
	// supplied by keyword.
	Params []string
	// Required is how many leading Params must be supplied.
	Required int
	// Variadic allows extra positional arguments past Params.
	Variadic bool
	// Keywords are keyword-only parameter names.
	Keywords []string
	Fn       Func
}

// Signature renders the parameter list for help output.
func (s *Spec) Signature() string {
	out := s.Name + "("
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		if i >= s.Required {
			out += "[" + p + "]"
		} else {
			out += p
		}
	}
	if s.Variadic {
		out += ", ..."
	}
	for _, k := range s.Keywords {
		out += ", " + k + "="
	}
	return out + ")"
}

// Registry maps case-sensitive function names to operator specs.
type Registry struct {
	mu      sync.RWMutex
	specs   map[string]*Spec
	aliases map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:   make(map[string]*Spec),
		aliases: make(map[string]string),
	}
}

// Register adds an operator, replacing any previous one with the same name.
func (r *Registry) Register(s *Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[s.Name] = s
}

// Alias makes name resolve to the operator registered as target.
func (r *Registry) Alias(name, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = target
}

// Get resolves name, following aliases.
func (r *Registry) Get(name string) (*Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	s, ok := r.specs[name]
	return s, ok
}

// Has reports whether name is a known function or alias.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// GetAll returns the canonical operators sorted by name.
func (r *Registry) GetAll() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Spec, 0, len(r.specs))
	for _, s := range r.specs {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Aliases returns alias → canonical name pairs.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for k, v := range r.aliases {
		out[k] = v
	}
	return out
}

// Invoke binds args to the operator's parameters and runs it.
func (r *Registry) Invoke(name string, args []Arg, kwargs []KeywordArg) (alpha.Value, error) {
	s, ok := r.Get(name)
	if !ok {
		return alpha.Value{}, core.Errorf(core.ErrUnknownIdentifier, "function %q", name)
	}
	c, err := bind(s, args, kwargs)
	if err != nil {
		return alpha.Value{}, err
	}
	return s.Fn(c)
}
