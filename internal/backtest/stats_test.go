package backtest

import (
	"math"
	"testing"
)

func TestCalculateStats_Empty(t *testing.T) {
	stats := CalculateStats(nil)
	if stats.Periods != 0 {
		t.Error("expected 0 periods for empty input")
	}
}

func TestCalculateStats_HitRate(t *testing.T) {
	returns := []float64{0.10, 0.05, -0.03, 0}

	stats := CalculateStats(returns)

	if stats.Periods != 4 {
		t.Errorf("Periods = %d, want 4", stats.Periods)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %f, want 0.5", stats.HitRate)
	}
}

func TestCalculateStats_TotalReturnCompounds(t *testing.T) {
	stats := CalculateStats([]float64{0.10, -0.05})

	expected := 1.1*0.95 - 1
	if math.Abs(stats.TotalReturn-expected) > 1e-12 {
		t.Errorf("TotalReturn = %f, want %f", stats.TotalReturn, expected)
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	// Simulate: +10%, +5%, -20%, +10%
	// Peak at 1.155, trough at 0.924, DD = 20%
	returns := []float64{0.10, 0.05, -0.20, 0.10}
	dd := calculateMaxDrawdown(returns)

	if math.Abs(dd-0.20) > 1e-12 {
		t.Errorf("MaxDrawdown = %f, expected 0.20", dd)
	}
}

func TestCalculateMaxDrawdown_FromStart(t *testing.T) {
	// a loss on the first period counts against the starting value of 1
	dd := calculateMaxDrawdown([]float64{-0.10, 0.05})

	if math.Abs(dd-0.10) > 1e-12 {
		t.Errorf("MaxDrawdown = %f, expected 0.10", dd)
	}
}

func TestCalculateSharpeRatio(t *testing.T) {
	if got := calculateSharpeRatio([]float64{0.01}); got != 0 {
		t.Errorf("single period Sharpe = %f, want 0", got)
	}
	if got := calculateSharpeRatio([]float64{0.01, 0.01, 0.01}); got != 0 {
		t.Errorf("zero volatility Sharpe = %f, want 0", got)
	}

	// mean 0.01, sample std 0.01
	got := calculateSharpeRatio([]float64{0, 0.01, 0.02})
	want := math.Sqrt(252)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Sharpe = %f, want %f", got, want)
	}
}
