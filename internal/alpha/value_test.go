package alpha

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/alphalab/internal/core"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	return out
}

func TestValue_Shape(t *testing.T) {
	s := Scalar(3)
	assert.Equal(t, KindScalar, s.Kind())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 3.0, s.Float())

	tr := NewTrack(dates(3), "A", []float64{1, 2, 3})
	assert.Equal(t, 3, tr.Rows())
	assert.Equal(t, 1, tr.Cols())
	assert.True(t, math.IsNaN(tr.Float()))

	p := NewPanel(dates(2), []string{"A", "B"}, []float64{1, 2, 3, 4})
	assert.Equal(t, 4.0, p.At(1, 1))
	assert.Equal(t, []float64{2, 4}, p.Column(1))
	assert.Equal(t, []float64{3, 4}, p.Row(1))
	assert.Equal(t, "panel", p.Kind().String())
}

func TestResolve(t *testing.T) {
	tr := NewTrack(dates(2), "A", []float64{1, 2})
	p := NewPanel(dates(2), []string{"A", "B"}, []float64{1, 2, 3, 4})

	target, err := Resolve(Scalar(1), tr, p)
	require.NoError(t, err)
	assert.Equal(t, KindPanel, target.Kind())
	assert.Equal(t, []float64{1, 1, 2, 2}, tr.Expand(target))
	assert.Equal(t, []float64{5, 5, 5, 5}, Scalar(5).Expand(target))

	other := NewPanel(dates(2), []string{"A", "C"}, []float64{1, 2, 3, 4})
	_, err = Resolve(p, other)
	assert.ErrorIs(t, err, core.ErrDomain)

	short := NewTrack(dates(3), "A", []float64{1, 2, 3})
	_, err = Resolve(short, p)
	assert.ErrorIs(t, err, core.ErrDomain)
}

func TestZip_Broadcast(t *testing.T) {
	p := NewPanel(dates(2), []string{"A", "B"}, []float64{1, 2, 3, 4})
	got, err := Zip(p, Scalar(10), func(x, y float64) float64 { return x * y })
	require.NoError(t, err)
	assert.Equal(t, KindPanel, got.Kind())
	assert.Equal(t, []float64{10, 20, 30, 40}, got.Data())
	// inputs are untouched
	assert.Equal(t, []float64{1, 2, 3, 4}, p.Data())
}

func TestMapColumnsAndCross(t *testing.T) {
	p := NewPanel(dates(2), []string{"A", "B"}, []float64{1, 2, 3, 4})

	cum := MapColumns(p, func(col []float64) []float64 {
		for i := 1; i < len(col); i++ {
			col[i] += col[i-1]
		}
		return col
	})
	assert.Equal(t, []float64{1, 2, 4, 6}, cum.Data())

	demean := MapCross(p, func(row []float64) []float64 {
		m := (row[0] + row[1]) / 2
		return []float64{row[0] - m, row[1] - m}
	})
	assert.Equal(t, []float64{-0.5, 0.5, -0.5, 0.5}, demean.Data())
	assert.Equal(t, []float64{1, 2, 3, 4}, p.Data())
}

func TestZipColumns_TrackIntoPanel(t *testing.T) {
	p := NewPanel(dates(2), []string{"A", "B"}, []float64{1, 2, 3, 4})
	tr := NewTrack(dates(2), "X", []float64{10, 20})
	got, err := ZipColumns([]Value{p, tr}, func(cols [][]float64) []float64 {
		out := make([]float64, len(cols[0]))
		for i := range out {
			out[i] = cols[0][i] + cols[1][i]
		}
		return out
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 12, 23, 24}, got.Data())
}

func TestAllEqual(t *testing.T) {
	assert.True(t, NewTrack(dates(2), "A", []float64{1, 1}).AllEqual(1))
	assert.False(t, NewTrack(dates(2), "A", []float64{1, math.NaN()}).AllEqual(1))
	assert.True(t, Scalar(1).Fill(1).AllEqual(1))
}
