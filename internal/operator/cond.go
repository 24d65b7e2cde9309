package operator

import (
	"math"

	"github.com/newthinker/alphalab/internal/alpha"
)

func ifElse(c *Call) (alpha.Value, error) {
	vals, err := c.Values("cond", "a", "b")
	if err != nil {
		return alpha.Value{}, err
	}
	return alpha.ZipN(vals, func(xs []float64) float64 {
		if xs[0] > 0 {
			return xs[1]
		}
		return xs[2]
	})
}

// tradeWhen holds the last entered alpha per instrument until an exit
// signal clears it. Exit takes precedence over entry.
func tradeWhen(c *Call) (alpha.Value, error) {
	params := []string{"enter", "alpha"}
	if c.Has("exit") {
		params = append(params, "exit")
	}
	vals, err := c.Values(params...)
	if err != nil {
		return alpha.Value{}, err
	}
	return alpha.ZipColumns(vals, func(cols [][]float64) []float64 {
		enter, value := cols[0], cols[1]
		out := nanSlice(len(enter))
		held := math.NaN()
		for t := range enter {
			if len(cols) > 2 && cols[2][t] > 0 {
				held = math.NaN()
				continue
			}
			if enter[t] > 0 {
				held = value[t]
			}
			out[t] = held
		}
		return out
	})
}

func registerConditional(r *Registry) {
	r.Register(&Spec{
		Name:     "if_else",
		Category: CategoryConditional,
		Summary:  "a where cond > 0, else b",
		Params:   []string{"cond", "a", "b"},
		Required: 3,
		Fn:       ifElse,
	})
	r.Register(&Spec{
		Name:     "trade_when",
		Category: CategoryConditional,
		Summary:  "enter alpha when enter > 0, hold otherwise, clear when exit > 0",
		Params:   []string{"enter", "alpha", "exit"},
		Required: 2,
		Fn:       tradeWhen,
	})
}
