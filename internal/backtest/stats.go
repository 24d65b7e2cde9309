package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// periodsPerYear annualises daily statistics.
const periodsPerYear = 252

// CalculateStats computes performance statistics from per-period returns
func CalculateStats(returns []float64) Stats {
	if len(returns) == 0 {
		return Stats{}
	}

	cumulative := 1.0
	wins := 0
	for _, r := range returns {
		cumulative *= 1 + r
		if r > 0 {
			wins++
		}
	}

	return Stats{
		Periods:     len(returns),
		TotalReturn: cumulative - 1,
		MaxDrawdown: calculateMaxDrawdown(returns),
		SharpeRatio: calculateSharpeRatio(returns),
		HitRate:     float64(wins) / float64(len(returns)),
	}
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of the
// compounded curve, starting from a value of 1.
func calculateMaxDrawdown(returns []float64) float64 {
	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, stdDev := stat.MeanStdDev(returns, nil)
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}

	return mean / stdDev * math.Sqrt(periodsPerYear)
}
