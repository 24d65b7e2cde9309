package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/alphalab/internal/backtest"
	"github.com/newthinker/alphalab/internal/core"
)

const resultsPrefix = "results"

// Record is the archived form of one backtest run.
type Record struct {
	ID        string         `json:"id"`
	Formula   string         `json:"formula"`
	Mode      string         `json:"mode"`
	Settings  map[string]any `json:"settings"`
	Dates     []string       `json:"dates"`
	Values    []float64      `json:"values"`
	Returns   []float64      `json:"returns"`
	Metrics   map[string]any `json:"metrics"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewRecord captures a backtest result together with the formula and
// settings that produced it.
func NewRecord(formula string, settings backtest.Settings, res *backtest.Result) Record {
	return Record{
		ID:        res.ID.String(),
		Formula:   formula,
		Mode:      string(res.Mode),
		Settings:  settings.Map(),
		Dates:     res.DateStrings(),
		Values:    res.Values,
		Returns:   res.Returns,
		Metrics:   res.Metrics,
		CreatedAt: time.Now().UTC(),
	}
}

// Results stores records as JSON documents under results/<id>.json of a
// Storage backend.
type Results struct {
	store Storage
}

// NewResults wraps store.
func NewResults(store Storage) *Results {
	return &Results{store: store}
}

func checkID(id string) error {
	if strings.ContainsAny(id, `/\`) || id == "" || id == "." || id == ".." {
		return core.Errorf(core.ErrInvalidArgument, "invalid record id %q", id)
	}
	return nil
}

func resultPath(id string) string {
	return path.Join(resultsPrefix, id+".json")
}

// Save writes rec, replacing any record with the same ID.
func (r *Results) Save(ctx context.Context, rec Record) error {
	if err := checkID(rec.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.ID, err)
	}
	if err := r.store.Write(ctx, resultPath(rec.ID), data); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads the record with the given ID. A missing record yields
// core.ErrNotFound.
func (r *Results) Load(ctx context.Context, id string) (*Record, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := r.store.Read(ctx, resultPath(id))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}
	return &rec, nil
}

// List returns the IDs of all archived records, sorted.
func (r *Results) List(ctx context.Context) ([]string, error) {
	paths, err := r.store.List(ctx, resultsPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		name := path.Base(p)
		if id, ok := strings.CutSuffix(name, ".json"); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the record with the given ID.
func (r *Results) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return r.store.Delete(ctx, resultPath(id))
}

// Result rebuilds a backtest result from the record for reporting. Stats
// are recomputed from the stored returns.
func (rec *Record) Result() (*backtest.Result, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("record id: %w", err)
	}
	if len(rec.Dates) != len(rec.Values) || len(rec.Dates) != len(rec.Returns) {
		return nil, core.Errorf(core.ErrDomain, "record %s has %d dates, %d values, %d returns",
			rec.ID, len(rec.Dates), len(rec.Values), len(rec.Returns))
	}
	dates := make([]time.Time, len(rec.Dates))
	for i, s := range rec.Dates {
		d, err := time.Parse(core.DateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		dates[i] = d
	}

	res := &backtest.Result{
		ID:      id,
		Mode:    backtest.Mode(rec.Mode),
		Dates:   dates,
		Values:  rec.Values,
		Returns: rec.Returns,
		Metrics: rec.Metrics,
		Stats:   backtest.CalculateStats(rec.Returns),
	}
	if len(dates) > 0 {
		res.Stats.StartDate = dates[0]
		res.Stats.EndDate = dates[len(dates)-1]
	}
	if n, ok := rec.Metrics["instrument_count"].(float64); ok {
		res.Stats.Instruments = int(n)
	}
	return res, nil
}
