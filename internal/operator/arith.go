package operator

import (
	"math"

	"github.com/newthinker/alphalab/internal/alpha"
)

// Elementwise operators broadcast scalars and tracks against their siblings.
// Domain errors (division by zero, log of a non-positive number, overflow in
// power) produce undefined values, never errors.

func unary(f func(float64) float64) Func {
	return func(c *Call) (alpha.Value, error) {
		x, err := c.Value("x")
		if err != nil {
			return alpha.Value{}, err
		}
		return alpha.Map(x, f), nil
	}
}

func binary(f func(x, y float64) float64) Func {
	return func(c *Call) (alpha.Value, error) {
		x, err := c.Value("x")
		if err != nil {
			return alpha.Value{}, err
		}
		y, err := c.Value("y")
		if err != nil {
			return alpha.Value{}, err
		}
		return alpha.Zip(x, y, f)
	}
}

// fold combines every positional argument with f. With filter set, undefined
// operands are replaced by identity first.
func fold(identity float64, f func(acc, v float64) float64) Func {
	return func(c *Call) (alpha.Value, error) {
		vals, err := c.Values("x", "y")
		if err != nil {
			return alpha.Value{}, err
		}
		filter, err := c.Bool("filter", false)
		if err != nil {
			return alpha.Value{}, err
		}
		return alpha.ZipN(vals, func(xs []float64) float64 {
			acc := xs[0]
			if filter && math.IsNaN(acc) {
				acc = identity
			}
			for _, v := range xs[1:] {
				if filter && math.IsNaN(v) {
					v = identity
				}
				acc = f(acc, v)
			}
			return acc
		})
	}
}

// extreme is max/min over all arguments; any undefined operand makes the
// result undefined.
func extreme(pick func(a, b float64) float64) Func {
	return func(c *Call) (alpha.Value, error) {
		vals, err := c.Values("x", "y")
		if err != nil {
			return alpha.Value{}, err
		}
		return alpha.ZipN(vals, func(xs []float64) float64 {
			acc := xs[0]
			for _, v := range xs[1:] {
				if math.IsNaN(v) || math.IsNaN(acc) {
					return math.NaN()
				}
				acc = pick(acc, v)
			}
			return acc
		})
	}
}

// finite maps infinities produced from finite operands to undefined.
func finite(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// Divide is x/y with division by zero undefined.
func Divide(x, y float64) float64 {
	if y == 0 {
		return math.NaN()
	}
	return x / y
}

// Power is x^y with domain errors and overflow undefined.
func Power(x, y float64) float64 {
	return finite(math.Pow(x, y))
}

func signedPower(x, y float64) float64 {
	return finite(sign(x) * math.Pow(math.Abs(x), y))
}

func boolean(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func registerArithmetic(r *Registry) {
	elem := func(name, summary string, params []string, fn Func) {
		r.Register(&Spec{
			Name:     name,
			Category: CategoryArithmetic,
			Summary:  summary,
			Params:   params,
			Required: len(params),
			Fn:       fn,
		})
	}
	variadic := func(name, summary string, keywords []string, fn Func) {
		r.Register(&Spec{
			Name:     name,
			Category: CategoryArithmetic,
			Summary:  summary,
			Params:   []string{"x", "y"},
			Required: 2,
			Variadic: true,
			Keywords: keywords,
			Fn:       fn,
		})
	}

	variadic("add", "sum of all arguments; filter=true treats undefined as 0", []string{"filter"},
		fold(0, func(a, b float64) float64 { return a + b }))
	variadic("multiply", "product of all arguments; filter=true treats undefined as 1", []string{"filter"},
		fold(1, func(a, b float64) float64 { return a * b }))
	variadic("max", "elementwise maximum", nil, extreme(math.Max))
	variadic("min", "elementwise minimum", nil, extreme(math.Min))

	r.Register(&Spec{
		Name:     "subtract",
		Category: CategoryArithmetic,
		Summary:  "x - y; filter=true treats undefined as 0",
		Params:   []string{"x", "y"},
		Required: 2,
		Keywords: []string{"filter"},
		Fn:       fold(0, func(a, b float64) float64 { return a - b }),
	})

	elem("divide", "x / y, undefined where y is 0", []string{"x", "y"}, binary(Divide))
	elem("power", "x ^ y, undefined on domain errors", []string{"x", "y"}, binary(Power))
	elem("signed_power", "sign(x) * |x| ^ y", []string{"x", "y"}, binary(signedPower))
	elem("inverse", "1 / x, undefined where x is 0", []string{"x"}, unary(func(v float64) float64 { return Divide(1, v) }))
	elem("log", "natural log, undefined for x <= 0", []string{"x"}, unary(func(v float64) float64 {
		if v <= 0 {
			return math.NaN()
		}
		return math.Log(v)
	}))
	elem("abs", "absolute value", []string{"x"}, unary(math.Abs))
	elem("sqrt", "square root, negative inputs clipped to 0", []string{"x"}, unary(func(v float64) float64 {
		return math.Sqrt(math.Max(v, 0))
	}))
	elem("sign", "-1, 0 or 1", []string{"x"}, unary(sign))
	elem("reverse", "-x", []string{"x"}, unary(func(v float64) float64 { return -v }))
}

func registerLogical(r *Registry) {
	cmp := func(name, summary string, f func(x, y float64) bool) {
		r.Register(&Spec{
			Name:     name,
			Category: CategoryLogical,
			Summary:  summary,
			Params:   []string{"x", "y"},
			Required: 2,
			Fn:       binary(func(x, y float64) float64 { return boolean(f(x, y)) }),
		})
	}

	cmp("lt", "1 if x < y else 0", func(x, y float64) bool { return x < y })
	cmp("le", "1 if x <= y else 0", func(x, y float64) bool { return x <= y })
	cmp("eq", "1 if x == y else 0", func(x, y float64) bool { return x == y })
	cmp("gt", "1 if x > y else 0", func(x, y float64) bool { return x > y })
	cmp("ge", "1 if x >= y else 0", func(x, y float64) bool { return x >= y })
	cmp("ne", "1 if x != y else 0", func(x, y float64) bool { return x != y })
	cmp("and", "1 if both x > 0 and y > 0", func(x, y float64) bool { return x > 0 && y > 0 })
	cmp("or", "1 if x > 0 or y > 0", func(x, y float64) bool { return x > 0 || y > 0 })

	r.Register(&Spec{
		Name:     "not",
		Category: CategoryLogical,
		Summary:  "1 if x <= 0 or undefined, else 0",
		Params:   []string{"x"},
		Required: 1,
		Fn:       unary(func(v float64) float64 { return boolean(!(v > 0)) }),
	})
	r.Register(&Spec{
		Name:     "is_nan",
		Category: CategoryLogical,
		Summary:  "1 where x is undefined",
		Params:   []string{"x"},
		Required: 1,
		Fn:       unary(func(v float64) float64 { return boolean(math.IsNaN(v)) }),
	})
}
