// Package alpha defines the runtime value a formula evaluates to: a scalar,
// a single-instrument track or a multi-instrument panel.
package alpha

import (
	"math"
	"time"
)

// Kind tags the shape of a Value.
type Kind int

const (
	KindScalar Kind = iota
	KindTrack
	KindPanel
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTrack:
		return "track"
	case KindPanel:
		return "panel"
	default:
		return "unknown"
	}
}

// Value is an immutable scalar, track or panel. Track and panel data is laid
// out row-major by date: Data()[t*Cols()+j] is instrument j at date t. A track
// is stored as a one-column panel.
//
// Dates and symbols are shared between values derived from the same table and
// must never be modified.
type Value struct {
	kind    Kind
	scalar  float64
	dates   []time.Time
	symbols []string
	data    []float64
}

// Scalar returns a scalar value.
func Scalar(v float64) Value {
	return Value{kind: KindScalar, scalar: v}
}

// NaN returns an undefined scalar.
func NaN() Value {
	return Scalar(math.NaN())
}

// NewTrack wraps one instrument's date-indexed data. data is not copied.
func NewTrack(dates []time.Time, symbol string, data []float64) Value {
	return Value{kind: KindTrack, dates: dates, symbols: []string{symbol}, data: data}
}

// NewPanel wraps row-major date×instrument data. data is not copied.
func NewPanel(dates []time.Time, symbols []string, data []float64) Value {
	return Value{kind: KindPanel, dates: dates, symbols: symbols, data: data}
}

// Kind returns the shape tag.
func (v Value) Kind() Kind { return v.kind }

// IsScalar reports whether v is a scalar.
func (v Value) IsScalar() bool { return v.kind == KindScalar }

// Float returns the scalar payload. It is NaN for non-scalars.
func (v Value) Float() float64 {
	if v.kind != KindScalar {
		return math.NaN()
	}
	return v.scalar
}

// Dates returns the date axis (nil for scalars).
func (v Value) Dates() []time.Time { return v.dates }

// Symbols returns the instrument axis (nil for scalars).
func (v Value) Symbols() []string { return v.symbols }

// Rows returns the number of dates, 1 for a scalar.
func (v Value) Rows() int {
	if v.kind == KindScalar {
		return 1
	}
	return len(v.dates)
}

// Cols returns the number of instruments, 1 for scalars and tracks.
func (v Value) Cols() int {
	if v.kind == KindScalar {
		return 1
	}
	return len(v.symbols)
}

// Len returns Rows()*Cols().
func (v Value) Len() int { return v.Rows() * v.Cols() }

// Data exposes the underlying row-major data. Callers must not modify it.
// For a scalar it returns a one-element slice.
func (v Value) Data() []float64 {
	if v.kind == KindScalar {
		return []float64{v.scalar}
	}
	return v.data
}

// At returns the element at date t and instrument j.
func (v Value) At(t, j int) float64 {
	if v.kind == KindScalar {
		return v.scalar
	}
	return v.data[t*len(v.symbols)+j]
}

// Column returns a copy of instrument j along the date axis.
func (v Value) Column(j int) []float64 {
	rows, cols := v.Rows(), v.Cols()
	out := make([]float64, rows)
	for t := 0; t < rows; t++ {
		out[t] = v.Data()[t*cols+j]
	}
	return out
}

// Row returns a copy of date t across instruments.
func (v Value) Row(t int) []float64 {
	cols := v.Cols()
	out := make([]float64, cols)
	copy(out, v.Data()[t*cols:(t+1)*cols])
	return out
}

// WithData returns a value of the same shape carrying data.
func (v Value) WithData(data []float64) Value {
	if v.kind == KindScalar {
		return Scalar(data[0])
	}
	return Value{kind: v.kind, dates: v.dates, symbols: v.symbols, data: data}
}

// Fill returns a value shaped like v with every element set to x.
func (v Value) Fill(x float64) Value {
	data := make([]float64, v.Len())
	for i := range data {
		data[i] = x
	}
	return v.WithData(data)
}

// AsPanel reinterprets a track as a one-instrument panel.
func (v Value) AsPanel() Value {
	if v.kind != KindTrack {
		return v
	}
	return Value{kind: KindPanel, dates: v.dates, symbols: v.symbols, data: v.data}
}

// AsTrack reinterprets a one-instrument panel as a track.
func (v Value) AsTrack() Value {
	if v.kind != KindPanel || len(v.symbols) != 1 {
		return v
	}
	return Value{kind: KindTrack, dates: v.dates, symbols: v.symbols, data: v.data}
}

// AllEqual reports whether every element equals x exactly. NaN never matches.
func (v Value) AllEqual(x float64) bool {
	for _, d := range v.Data() {
		if d != x {
			return false
		}
	}
	return true
}
