package api

import (
	"context"
	"net/http"
	"time"

	"github.com/newthinker/alphalab/internal/api/response"
	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/core"
)

const evaluateTimeout = 30 * time.Second

// Runner evaluates and backtests formulas against the resident data.
type Runner interface {
	Backtest(ctx context.Context, formula string, overrides map[string]any, window core.DateRange) (*app.Run, error)
}

// EvaluateHandler runs a formula backtest within the request.
type EvaluateHandler struct {
	runner  Runner
	timeout time.Duration
}

// NewEvaluateHandler creates a new evaluate handler.
func NewEvaluateHandler(runner Runner) *EvaluateHandler {
	return &EvaluateHandler{runner: runner, timeout: evaluateTimeout}
}

// Evaluate handles POST /api/evaluate.
func (h *EvaluateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(w, r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.runner.Backtest(ctx, req.Formula, req.Settings, req.window)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, NewRunPayload(run))
}
