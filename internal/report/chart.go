package report

import (
	"fmt"
	"strings"

	"github.com/vicanso/go-charts/v2"

	"github.com/newthinker/alphalab/internal/backtest"
	"github.com/newthinker/alphalab/internal/core"
)

// Format selects the chart image encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat matches a format name, ignoring case. Empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "png":
		return FormatPNG, nil
	case "svg":
		return FormatSVG, nil
	}
	return "", core.Errorf(core.ErrInvalidArgument, "unknown chart format %q", s)
}

// RenderChart draws the cumulative-return curve with the headline metrics
// in the subtitle.
func RenderChart(title string, res *backtest.Result, format Format) ([]byte, error) {
	if res == nil || len(res.Values) == 0 {
		return nil, core.ErrEmptyResult
	}
	if title == "" {
		title = "Cumulative Return"
	}

	xLabels := res.DateStrings()
	yMin, yMax := valueRange(res.Values)

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	s := res.Stats
	subtitle := fmt.Sprintf("Return: %.2f%% | Sharpe: %.2f | MaxDD: %.2f%% | Hit: %.0f%%",
		s.TotalReturn*100, s.SharpeRatio, s.MaxDrawdown*100, s.HitRate*100)

	typeOpt := charts.PNGTypeOption()
	if format == FormatSVG {
		typeOpt = charts.SVGTypeOption()
	}

	p, err := charts.LineRender(
		[][]float64{res.Values},
		typeOpt,
		charts.TitleTextOptionFunc(title, subtitle),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}
	return buf, nil
}

// valueRange pads the min/max of values by 5% so the curve never touches
// the frame.
func valueRange(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	padding := (maxVal - minVal) * 0.05
	if padding == 0 {
		padding = maxVal * 0.05
	}
	if padding == 0 {
		padding = 0.05
	}
	return minVal - padding, maxVal + padding
}
