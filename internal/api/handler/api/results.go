package api

import (
	"context"
	"net/http"

	"github.com/newthinker/alphalab/internal/api/response"
	"github.com/newthinker/alphalab/internal/core"
	"github.com/newthinker/alphalab/internal/report"
	"github.com/newthinker/alphalab/internal/storage/archive"
)

// ResultStore reads archived runs.
type ResultStore interface {
	Load(ctx context.Context, id string) (*archive.Record, error)
	List(ctx context.Context) ([]string, error)
}

// ResultsHandler serves archived backtest results.
type ResultsHandler struct {
	store ResultStore
}

// NewResultsHandler creates a results handler. A nil store answers every
// request with NOT_FOUND.
func NewResultsHandler(store ResultStore) *ResultsHandler {
	return &ResultsHandler{store: store}
}

var errArchiveDisabled = core.Errorf(core.ErrNotFound, "result archive is disabled")

// List handles GET /api/results.
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		response.FromError(w, errArchiveDisabled)
		return
	}
	ids, err := h.store.List(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"ids": ids, "count": len(ids)})
}

// Get handles GET /api/results/{id}.
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.load(r)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// Chart handles GET /api/results/{id}/chart. The format query parameter
// selects png (default) or svg.
func (h *ResultsHandler) Chart(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	rec, err := h.load(r)
	if err != nil {
		response.FromError(w, err)
		return
	}
	res, err := rec.Result()
	if err != nil {
		response.FromError(w, err)
		return
	}
	img, err := report.RenderChart(rec.Formula, res, format)
	if err != nil {
		response.FromError(w, err)
		return
	}

	contentType := "image/png"
	if format == report.FormatSVG {
		contentType = "image/svg+xml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (h *ResultsHandler) load(r *http.Request) (*archive.Record, error) {
	if h.store == nil {
		return nil, errArchiveDisabled
	}
	return h.store.Load(r.Context(), r.PathValue("id"))
}
