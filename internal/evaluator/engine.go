// Package evaluator reduces a parsed formula to an alpha value over a price
// table.
package evaluator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/alphalab/internal/alpha"
	"github.com/newthinker/alphalab/internal/core"
	"github.com/newthinker/alphalab/internal/formula"
	"github.com/newthinker/alphalab/internal/operator"
)

// ResultNames are the local names that designate the formula result. The
// most recent assignment to any of them wins; without one the value of the
// last statement is the result.
var ResultNames = []string{"alpha", "result", "df_alpha"}

// Observer receives evaluation measurements.
type Observer interface {
	RecordEvaluation(status string, duration float64)
	RecordOperator(name string)
}

type nopObserver struct{}

func (nopObserver) RecordEvaluation(string, float64) {}
func (nopObserver) RecordOperator(string)            {}

// Engine evaluates formulas. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	registry *operator.Registry
	logger   *zap.Logger
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRegistry replaces the built-in operator catalogue.
func WithRegistry(r *operator.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an engine using the built-in operator catalogue.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: operator.Default(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's operator catalogue.
func (e *Engine) Registry() *operator.Registry { return e.registry }

// Parse parses src against the engine's catalogue.
func (e *Engine) Parse(src string) (*formula.Program, error) {
	return formula.Parse(src, e.registry)
}

// Evaluate parses and evaluates src over table.
func (e *Engine) Evaluate(ctx context.Context, table *core.PriceTable, src string) (alpha.Value, error) {
	start := time.Now()
	v, err := e.evaluate(ctx, table, src)
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.observer.RecordEvaluation(status, time.Since(start).Seconds())
	if err != nil {
		e.logger.Debug("formula evaluation failed", zap.String("formula", src), zap.Error(err))
		return alpha.Value{}, err
	}
	e.logger.Debug("formula evaluated",
		zap.String("formula", src),
		zap.Stringer("kind", v.Kind()),
		zap.Int("dates", v.Rows()),
		zap.Int("instruments", v.Cols()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return v, nil
}

func (e *Engine) evaluate(ctx context.Context, table *core.PriceTable, src string) (alpha.Value, error) {
	if err := table.Validate(); err != nil {
		return alpha.Value{}, err
	}
	prog, err := e.Parse(src)
	if err != nil {
		return alpha.Value{}, err
	}
	return e.Run(ctx, table, prog)
}

// Run evaluates an already parsed program. The context is checked between
// statements.
func (e *Engine) Run(ctx context.Context, table *core.PriceTable, prog *formula.Program) (alpha.Value, error) {
	env := &env{
		engine: e,
		table:  table,
		fields: make(map[core.Field]alpha.Value),
		locals: make(map[string]alpha.Value),
	}

	var last, designated alpha.Value
	hasDesignated := false
	for _, stmt := range prog.Statements {
		select {
		case <-ctx.Done():
			return alpha.Value{}, ctx.Err()
		default:
		}

		v, err := env.eval(stmt)
		if err != nil {
			return alpha.Value{}, err
		}
		last = v
		if a, ok := stmt.(*formula.Assign); ok && isResultName(a.Name) {
			designated, hasDesignated = v, true
		}
	}
	if hasDesignated {
		return designated, nil
	}
	return last, nil
}

func isResultName(name string) bool {
	for _, n := range ResultNames {
		if n == name {
			return true
		}
	}
	return false
}

var defaultEngine = New()

// Evaluate evaluates src with a default engine.
func Evaluate(ctx context.Context, table *core.PriceTable, src string) (alpha.Value, error) {
	return defaultEngine.Evaluate(ctx, table, src)
}

// env is the state of one evaluation: bound fields and assigned locals.
type env struct {
	engine *Engine
	table  *core.PriceTable
	fields map[core.Field]alpha.Value
	locals map[string]alpha.Value
}

func (en *env) field(f core.Field) (alpha.Value, error) {
	if v, ok := en.fields[f]; ok {
		return v, nil
	}
	v, err := bindField(en.table, f)
	if err != nil {
		return alpha.Value{}, err
	}
	en.fields[f] = v
	return v, nil
}

func (en *env) eval(n formula.Node) (alpha.Value, error) {
	switch n := n.(type) {
	case *formula.Number:
		return alpha.Scalar(n.Value), nil
	case *formula.FieldRef:
		return en.field(n.Field)
	case *formula.LocalRef:
		v, ok := en.locals[n.Name]
		if !ok {
			return alpha.Value{}, core.Errorf(core.ErrUnknownIdentifier, "%q at offset %d", n.Name, n.At)
		}
		return v, nil
	case *formula.Assign:
		v, err := en.eval(n.Value)
		if err != nil {
			return alpha.Value{}, err
		}
		en.locals[n.Name] = v
		return v, nil
	case *formula.Unary:
		x, err := en.eval(n.X)
		if err != nil {
			return alpha.Value{}, err
		}
		return alpha.Map(x, func(v float64) float64 { return -v }), nil
	case *formula.Binary:
		return en.binary(n)
	case *formula.Call:
		return en.call(n)
	case *formula.String, *formula.List:
		return alpha.Value{}, core.Errorf(core.ErrInvalidArgument, "%s at offset %d is only allowed as a function argument", n, n.Pos())
	default:
		return alpha.Value{}, fmt.Errorf("unsupported node %T", n)
	}
}

func (en *env) binary(n *formula.Binary) (alpha.Value, error) {
	x, err := en.eval(n.X)
	if err != nil {
		return alpha.Value{}, err
	}
	y, err := en.eval(n.Y)
	if err != nil {
		return alpha.Value{}, err
	}
	var f func(a, b float64) float64
	switch n.Op {
	case '+':
		f = func(a, b float64) float64 { return a + b }
	case '-':
		f = func(a, b float64) float64 { return a - b }
	case '*':
		f = func(a, b float64) float64 { return a * b }
	case '/':
		f = operator.Divide
	case '^':
		f = operator.Power
	default:
		return alpha.Value{}, fmt.Errorf("unsupported operator %q", n.Op)
	}
	v, err := alpha.Zip(x, y, f)
	if err != nil {
		return alpha.Value{}, fmt.Errorf("%q at offset %d: %w", n.Op, n.At, err)
	}
	return v, nil
}

func (en *env) call(n *formula.Call) (alpha.Value, error) {
	args := make([]operator.Arg, len(n.Args))
	for i, a := range n.Args {
		arg, err := en.arg(a)
		if err != nil {
			return alpha.Value{}, err
		}
		args[i] = arg
	}
	kwargs := make([]operator.KeywordArg, len(n.Kwargs))
	for i, kw := range n.Kwargs {
		arg, err := en.arg(kw.Value)
		if err != nil {
			return alpha.Value{}, err
		}
		kwargs[i] = operator.KeywordArg{Name: kw.Name, Arg: arg}
	}

	en.engine.observer.RecordOperator(n.Name)
	v, err := en.engine.registry.Invoke(n.Name, args, kwargs)
	if err != nil {
		return alpha.Value{}, fmt.Errorf("%s at offset %d: %w", n.Name, n.At, err)
	}
	return v, nil
}

func (en *env) arg(n formula.Node) (operator.Arg, error) {
	switch n := n.(type) {
	case *formula.String:
		return operator.StringArg(n.Value), nil
	case *formula.List:
		xs := make([]float64, len(n.Elems))
		for i, e := range n.Elems {
			v, err := en.eval(e)
			if err != nil {
				return operator.Arg{}, err
			}
			if !v.IsScalar() {
				return operator.Arg{}, core.Errorf(core.ErrInvalidArgument, "list element at offset %d must be a constant", e.Pos())
			}
			xs[i] = v.Float()
		}
		return operator.ListArg(xs), nil
	default:
		v, err := en.eval(n)
		if err != nil {
			return operator.Arg{}, err
		}
		return operator.ValueArg(v), nil
	}
}
