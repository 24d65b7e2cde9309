package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/core"
)

// maxBodyBytes bounds request bodies; formulas are short.
const maxBodyBytes = 1 << 20

// RunRequest is the request body for evaluate and backtest calls. Start and
// End optionally restrict the resident data to a YYYY-MM-DD window.
type RunRequest struct {
	Formula  string         `json:"formula"`
	Settings map[string]any `json:"settings,omitempty"`
	Start    string         `json:"start,omitempty"`
	End      string         `json:"end,omitempty"`

	window core.DateRange
}

// RunPayload is the JSON form of a completed backtest.
type RunPayload struct {
	ID       string         `json:"id"`
	Formula  string         `json:"formula"`
	Mode     string         `json:"mode"`
	Settings map[string]any `json:"settings"`
	Dates    []string       `json:"dates"`
	Values   []float64      `json:"values"`
	Returns  []float64      `json:"returns"`
	Metrics  map[string]any `json:"metrics"`
	Archived bool           `json:"archived"`
}

// NewRunPayload converts a run for the wire.
func NewRunPayload(run *app.Run) RunPayload {
	res := run.Result
	return RunPayload{
		ID:       res.ID.String(),
		Formula:  run.Formula,
		Mode:     string(res.Mode),
		Settings: run.Settings.Map(),
		Dates:    res.DateStrings(),
		Values:   res.Values,
		Returns:  res.Returns,
		Metrics:  res.Metrics,
		Archived: run.Archived,
	}
}

func decodeRunRequest(w http.ResponseWriter, r *http.Request) (RunRequest, error) {
	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(&req)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return req, core.Errorf(core.ErrInvalidArgument, "empty request body")
		}
		return req, core.WrapError(core.ErrInvalidArgument, err)
	}
	if strings.TrimSpace(req.Formula) == "" {
		return req, core.Errorf(core.ErrInvalidArgument, "formula is required")
	}
	req.window, err = core.ParseDateRange(req.Start, req.End)
	if err != nil {
		return req, err
	}
	return req, nil
}
