package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/alphalab/internal/api/job"
	"github.com/newthinker/alphalab/internal/api/response"
	"github.com/newthinker/alphalab/internal/core"
)

const (
	backtestTimeout = 5 * time.Minute
	backtestJobType = "backtest"
)

// ActiveGauge receives the number of unfinished jobs per type.
type ActiveGauge interface {
	SetJobsActive(jobType string, count int)
}

// BacktestHandler handles asynchronous backtest jobs.
type BacktestHandler struct {
	jobStore *job.Store
	runner   Runner
	gauge    ActiveGauge
	logger   *zap.Logger
	timeout  time.Duration
}

// NewBacktestHandler creates a new backtest handler. gauge may be nil.
func NewBacktestHandler(jobStore *job.Store, runner Runner, gauge ActiveGauge, logger *zap.Logger) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore: jobStore,
		runner:   runner,
		gauge:    gauge,
		logger:   logger,
		timeout:  backtestTimeout,
	}
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(w, r)
	if err != nil {
		response.FromError(w, err)
		return
	}

	j := h.jobStore.Create(backtestJobType)
	h.reportActive()

	// Run backtest in background
	go h.runBacktest(j.ID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, req RunRequest) {
	defer h.reportActive()

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	run, err := h.runner.Backtest(ctx, req.Formula, req.Settings, req.window)

	if err != nil {
		h.logger.Debug("backtest job failed", zap.String("job_id", jobID), zap.Error(err))
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = jobError(err)
		})
		return
	}

	payload := NewRunPayload(run)
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = payload
	})
}

// GetStatus handles GET /api/backtest/{id}.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobStore.Get(r.PathValue("id"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		errResp := map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
		if j.Error.Cause != nil {
			errResp["cause"] = j.Error.Cause.Error()
		}
		resp["error"] = errResp
	}

	response.JSON(w, http.StatusOK, resp)
}

func (h *BacktestHandler) reportActive() {
	if h.gauge != nil {
		h.gauge.SetJobsActive(backtestJobType, h.jobStore.Active(backtestJobType))
	}
}

// jobError keeps the code of contract errors, with the full error text as
// the cause; anything else is reported as an internal failure.
func jobError(err error) *core.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		if error(coreErr) == err {
			return coreErr
		}
		return &core.Error{Code: coreErr.Code, Message: coreErr.Message, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{Code: "TIMEOUT", Message: "backtest timed out"}
	}
	return &core.Error{Code: "INTERNAL_ERROR", Message: "backtest failed", Cause: err}
}
