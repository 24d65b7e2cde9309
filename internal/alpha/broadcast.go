package alpha

import (
	"github.com/newthinker/alphalab/internal/core"
)

// Resolve returns a zero-data template describing the shape that vals
// broadcast to. Scalars match anything; a track broadcasts across the
// instruments of a panel with the same number of dates; panels must share
// their instrument list and date count.
func Resolve(vals ...Value) (Value, error) {
	target := Scalar(0)
	for _, v := range vals {
		switch v.kind {
		case KindScalar:
			continue
		case KindTrack:
			switch target.kind {
			case KindScalar:
				target = Value{kind: KindTrack, dates: v.dates, symbols: v.symbols}
			default:
				if len(target.dates) != len(v.dates) {
					return Value{}, core.Errorf(core.ErrDomain, "date axes differ: %d vs %d", len(target.dates), len(v.dates))
				}
			}
		case KindPanel:
			switch target.kind {
			case KindScalar:
				target = Value{kind: KindPanel, dates: v.dates, symbols: v.symbols}
			case KindTrack:
				if len(target.dates) != len(v.dates) {
					return Value{}, core.Errorf(core.ErrDomain, "date axes differ: %d vs %d", len(target.dates), len(v.dates))
				}
				target = Value{kind: KindPanel, dates: v.dates, symbols: v.symbols}
			case KindPanel:
				if len(target.dates) != len(v.dates) {
					return Value{}, core.Errorf(core.ErrDomain, "date axes differ: %d vs %d", len(target.dates), len(v.dates))
				}
				if !sameSymbols(target.symbols, v.symbols) {
					return Value{}, core.Errorf(core.ErrDomain, "instrument sets differ: %v vs %v", target.symbols, v.symbols)
				}
			}
		}
	}
	return target, nil
}

func sameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Expand returns v's data laid out in the shape of target, which must come
// from Resolve. When no expansion is needed the underlying slice is returned
// without copying.
func (v Value) Expand(target Value) []float64 {
	n := target.Len()
	switch {
	case v.kind == KindScalar:
		out := make([]float64, n)
		for i := range out {
			out[i] = v.scalar
		}
		return out
	case v.kind == KindTrack && target.kind == KindPanel:
		cols := target.Cols()
		out := make([]float64, n)
		for t := 0; t < len(v.data); t++ {
			row := out[t*cols : (t+1)*cols]
			for j := range row {
				row[j] = v.data[t]
			}
		}
		return out
	default:
		return v.data
	}
}

// Map applies f to every element of x.
func Map(x Value, f func(float64) float64) Value {
	src := x.Data()
	out := make([]float64, len(src))
	for i, d := range src {
		out[i] = f(d)
	}
	return x.WithData(out)
}

// Zip combines a and b elementwise after broadcasting.
func Zip(a, b Value, f func(x, y float64) float64) (Value, error) {
	target, err := Resolve(a, b)
	if err != nil {
		return Value{}, err
	}
	xs, ys := a.Expand(target), b.Expand(target)
	out := make([]float64, target.Len())
	for i := range out {
		out[i] = f(xs[i], ys[i])
	}
	return target.WithData(out), nil
}

// ZipN combines any number of values elementwise after broadcasting. The
// slice passed to f is reused between calls.
func ZipN(vals []Value, f func(xs []float64) float64) (Value, error) {
	target, err := Resolve(vals...)
	if err != nil {
		return Value{}, err
	}
	expanded := make([][]float64, len(vals))
	for k, v := range vals {
		expanded[k] = v.Expand(target)
	}
	out := make([]float64, target.Len())
	xs := make([]float64, len(vals))
	for i := range out {
		for k := range expanded {
			xs[k] = expanded[k][i]
		}
		out[i] = f(xs)
	}
	return target.WithData(out), nil
}

// MapColumns applies a time-series transform to each instrument of x. f
// receives a private copy of the column and returns a column of equal
// length. A scalar is treated as a one-point series.
func MapColumns(x Value, f func(col []float64) []float64) Value {
	rows, cols := x.Rows(), x.Cols()
	out := make([]float64, rows*cols)
	for j := 0; j < cols; j++ {
		res := f(x.Column(j))
		for t := 0; t < rows; t++ {
			out[t*cols+j] = res[t]
		}
	}
	return x.WithData(out)
}

// ZipColumns broadcasts vals and applies f per instrument to the aligned
// columns.
func ZipColumns(vals []Value, f func(cols [][]float64) []float64) (Value, error) {
	target, err := Resolve(vals...)
	if err != nil {
		return Value{}, err
	}
	expanded := make([]Value, len(vals))
	for k, v := range vals {
		expanded[k] = target.WithData(v.Expand(target))
	}
	rows, cols := target.Rows(), target.Cols()
	out := make([]float64, rows*cols)
	in := make([][]float64, len(vals))
	for j := 0; j < cols; j++ {
		for k := range expanded {
			in[k] = expanded[k].Column(j)
		}
		res := f(in)
		for t := 0; t < rows; t++ {
			out[t*cols+j] = res[t]
		}
	}
	return target.WithData(out), nil
}

// MapCross applies a cross-sectional transform. For a panel f sees one date
// at a time; for a track or scalar f sees the whole series at once.
func MapCross(x Value, f func(row []float64) []float64) Value {
	if x.kind != KindPanel {
		return x.WithData(f(append([]float64(nil), x.Data()...)))
	}
	rows, cols := x.Rows(), x.Cols()
	out := make([]float64, 0, rows*cols)
	for t := 0; t < rows; t++ {
		out = append(out, f(x.Row(t))...)
	}
	return x.WithData(out)
}

// ZipCross broadcasts a and b and applies a cross-sectional transform to
// aligned slices, using the same per-date / whole-track rule as MapCross.
func ZipCross(a, b Value, f func(xs, ys []float64) []float64) (Value, error) {
	target, err := Resolve(a, b)
	if err != nil {
		return Value{}, err
	}
	xs, ys := a.Expand(target), b.Expand(target)
	if target.kind != KindPanel {
		return target.WithData(f(append([]float64(nil), xs...), append([]float64(nil), ys...))), nil
	}
	rows, cols := target.Rows(), target.Cols()
	out := make([]float64, 0, rows*cols)
	for t := 0; t < rows; t++ {
		lo, hi := t*cols, (t+1)*cols
		out = append(out, f(append([]float64(nil), xs[lo:hi]...), append([]float64(nil), ys[lo:hi]...))...)
	}
	return target.WithData(out), nil
}
