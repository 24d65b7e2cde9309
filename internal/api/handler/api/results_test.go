package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/alphalab/internal/app"
	"github.com/newthinker/alphalab/internal/core"
	"github.com/newthinker/alphalab/internal/storage/archive"
)

func archivedRun(t *testing.T) (*archive.Results, string) {
	t.Helper()
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	results := archive.NewResults(store)

	run, err := testApp(t, app.WithResults(results)).Backtest(context.Background(), "rank(close)", nil, core.DateRange{})
	require.NoError(t, err)
	require.True(t, run.Archived)
	return results, run.Result.ID.String()
}

func getWithID(h http.HandlerFunc, path, id string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestResultsHandler_Get(t *testing.T) {
	results, id := archivedRun(t)
	handler := NewResultsHandler(results)

	w := getWithID(handler.Get, "/api/results/"+id, id)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data archive.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.ID)
	assert.Equal(t, "rank(close)", resp.Data.Formula)

	w = getWithID(handler.Get, "/api/results/missing", "missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResultsHandler_List(t *testing.T) {
	results, id := archivedRun(t)
	handler := NewResultsHandler(results)

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/results", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
}

func TestResultsHandler_Chart(t *testing.T) {
	results, id := archivedRun(t)
	handler := NewResultsHandler(results)

	w := getWithID(handler.Chart, "/api/results/"+id+"/chart", id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = getWithID(handler.Chart, "/api/results/"+id+"/chart?format=svg", id)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))

	w = getWithID(handler.Chart, "/api/results/"+id+"/chart?format=gif", id)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResultsHandler_Disabled(t *testing.T) {
	handler := NewResultsHandler(nil)

	w := getWithID(handler.Get, "/api/results/x", "x")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.List(w, httptest.NewRequest("GET", "/api/results", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
