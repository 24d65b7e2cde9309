package operator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/alphalab/internal/alpha"
)

var nan = math.NaN()

func testDates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	return out
}

func track(data ...float64) alpha.Value {
	return alpha.NewTrack(testDates(len(data)), "AAA", data)
}

// panel builds a panel from rows of per-instrument values.
func panel(rows ...[]float64) alpha.Value {
	symbols := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}[:len(rows[0])]
	var data []float64
	for _, r := range rows {
		data = append(data, r...)
	}
	return alpha.NewPanel(testDates(len(rows)), symbols, data)
}

func num(v float64) Arg { return ValueArg(alpha.Scalar(v)) }

func kw(name string, a Arg) KeywordArg { return KeywordArg{Name: name, Arg: a} }

func call(t *testing.T, name string, args []Arg, kwargs ...KeywordArg) alpha.Value {
	t.Helper()
	v, err := Default().Invoke(name, args, kwargs)
	require.NoError(t, err)
	return v
}

func callErr(name string, args []Arg, kwargs ...KeywordArg) error {
	_, err := Default().Invoke(name, args, kwargs)
	return err
}

func args(vals ...any) []Arg {
	out := make([]Arg, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case alpha.Value:
			out[i] = ValueArg(x)
		case float64:
			out[i] = num(x)
		case int:
			out[i] = num(float64(x))
		case string:
			out[i] = StringArg(x)
		case []float64:
			out[i] = ListArg(x)
		default:
			panic("unsupported test argument")
		}
	}
	return out
}

// assertSeries compares element by element, treating NaN as equal to NaN.
func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "index %d", i)
	}
}
