package backtest

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/newthinker/alphalab/internal/core"
)

// Settings controls portfolio construction.
type Settings struct {
	Truncation     float64 // clip quantile per side, in [0, 0.5)
	Decay          int     // linear decay window, >= 1
	Delay          int     // periods between signal and position, >= 0
	Neutralization bool
	// Extra holds keys that belong to a position-sizing layer (commission,
	// bookSize, ...). They are carried but not used.
	Extra map[string]any
}

// DefaultSettings returns truncation 0, decay 1, delay 1 and no
// neutralisation.
func DefaultSettings() Settings {
	return Settings{Decay: 1, Delay: 1, Extra: map[string]any{}}
}

// Validate checks the ranges of the consumed settings.
func (s Settings) Validate() error {
	if math.IsNaN(s.Truncation) || s.Truncation < 0 || s.Truncation >= 0.5 {
		return core.Errorf(core.ErrInvalidArgument, "truncation %v must be in [0, 0.5)", s.Truncation)
	}
	if s.Decay < 1 {
		return core.Errorf(core.ErrInvalidArgument, "decay %d must be at least 1", s.Decay)
	}
	if s.Delay < 0 {
		return core.Errorf(core.ErrInvalidArgument, "delay %d must not be negative", s.Delay)
	}
	return nil
}

// ParseSettings converts a loosely typed settings map, as it arrives from
// JSON or a config file, into Settings. Missing keys keep their defaults and
// unknown keys go to Extra. Key matching ignores case.
func ParseSettings(m map[string]any) (Settings, error) {
	s := DefaultSettings()
	for key, raw := range m {
		var err error
		switch strings.ToLower(key) {
		case "truncation":
			s.Truncation, err = cast.ToFloat64E(raw)
		case "decay":
			s.Decay, err = integral(key, raw)
		case "delay":
			s.Delay, err = integral(key, raw)
		case "neutralization", "neutralisation":
			s.Neutralization, err = neutralization(raw)
		default:
			s.Extra[key] = raw
		}
		if err != nil {
			return Settings{}, core.Errorf(core.ErrInvalidArgument, "setting %s: %v", key, err)
		}
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func integral(key string, raw any) (int, error) {
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, core.Errorf(core.ErrInvalidArgument, "%s must be an integer, got %v", key, raw)
	}
	return int(f), nil
}

// neutralization accepts booleans and the group names used by the UI
// ("market", "sector", ...). Only off/none/false/0 and empty disable it.
func neutralization(raw any) (bool, error) {
	if s, ok := raw.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "off", "none", "false", "0", "no":
			return false, nil
		default:
			return true, nil
		}
	}
	return cast.ToBoolE(raw)
}

// Map renders the settings back into map form, Extra included.
func (s Settings) Map() map[string]any {
	out := make(map[string]any, len(s.Extra)+4)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["truncation"] = s.Truncation
	out["decay"] = s.Decay
	out["delay"] = s.Delay
	out["neutralization"] = s.Neutralization
	return out
}
