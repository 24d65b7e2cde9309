package operator

import "sync"

var aliases = map[string]string{
	"quantile":  "quantile_transform",
	"Rank":      "rank",
	"Delta":     "delta",
	"Sum":       "sum",
	"Abs":       "abs",
	"Sqrt":      "sqrt",
	"Ts_argmax": "ts_argmax",
	"Ts_rank":   "ts_rank",
	"Returns":   "returns",
}

// NewCatalog returns a registry holding every built-in operator and alias.
func NewCatalog() *Registry {
	r := NewRegistry()
	registerTimeSeries(r)
	registerCrossSectional(r)
	registerArithmetic(r)
	registerLogical(r)
	registerConditional(r)
	for alias, target := range aliases {
		r.Alias(alias, target)
	}
	return r
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Registry
)

// Default returns a shared built-in catalogue. It must not be modified.
func Default() *Registry {
	defaultOnce.Do(func() { defaultCatalog = NewCatalog() })
	return defaultCatalog
}
