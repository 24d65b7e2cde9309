package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/alphalab/internal/core"
)

// Loader reads price files from disk.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// SymbolFromFile derives the instrument symbol from a file name:
// "AAPL_data.csv" and "AAPL.csv" both give "AAPL".
func SymbolFromFile(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, "_data")
}

// LoadFile reads a single-instrument table. A file missing a required
// column is rejected.
func (l *Loader) LoadFile(path string) (*core.PriceTable, error) {
	bars, err := l.readFile(path)
	if err != nil {
		return nil, err
	}
	symbol := SymbolFromFile(path)
	return Align(map[string][]core.OHLCV{symbol: bars})
}

// LoadDir reads every *.csv file in dir as one instrument and aligns them on
// their common dates. Files missing a required column are skipped.
func (l *Loader) LoadDir(dir string) (*core.PriceTable, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	series := make(map[string][]core.OHLCV)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		bars, err := l.readFile(path)
		if errors.Is(err, ErrMissingColumns) {
			l.logger.Warn("skipping price file", zap.String("file", path), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		symbol := SymbolFromFile(e.Name())
		if _, dup := series[symbol]; dup {
			return nil, fmt.Errorf("symbol %s appears in more than one file", symbol)
		}
		series[symbol] = bars
	}
	if len(series) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no valid CSV files in %s", dir)
	}

	table, err := Align(series)
	if err != nil {
		return nil, err
	}
	l.logger.Info("price data loaded",
		zap.String("dir", dir),
		zap.Int("instruments", table.NumInstruments()),
		zap.Int("dates", table.NumDates()),
	)
	return table, nil
}

// Load reads file when it is set, otherwise dir.
func (l *Loader) Load(dir, file string) (*core.PriceTable, error) {
	if file != "" {
		return l.LoadFile(file)
	}
	if dir == "" {
		return nil, core.Errorf(core.ErrConfigMissing, "no data directory or file configured")
	}
	return l.LoadDir(dir)
}

func (l *Loader) readFile(path string) ([]core.OHLCV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening price file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, SymbolFromFile(path))
}

// Align intersects the dates of every series and builds a table with
// symbols in sorted order.
func Align(series map[string][]core.OHLCV) (*core.PriceTable, error) {
	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	counts := make(map[time.Time]int)
	for _, s := range symbols {
		for _, b := range series[s] {
			counts[b.Time]++
		}
	}
	var dates []time.Time
	for d, n := range counts {
		if n == len(symbols) {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, core.Errorf(core.ErrNoData, "instruments %v share no dates", symbols)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	keep := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		keep[d] = true
	}
	bars := make([][]core.OHLCV, len(symbols))
	for j, s := range symbols {
		bars[j] = make([]core.OHLCV, 0, len(dates))
		for _, b := range series[s] {
			if keep[b.Time] {
				bars[j] = append(bars[j], b)
			}
		}
	}
	return core.NewPriceTable(dates, symbols, bars)
}
