package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"meta-harvest/app/config"
	"meta-harvest/app/extractor"
	"meta-harvest/app/logger"
	"meta-harvest/app/service"
	"meta-harvest/app/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okExtractor() extractor.Extractor {
	return extractor.Func(func(ctx context.Context, id string) (map[string]any, error) {
		return map[string]any{"id": id, "title": "Title " + id, "upload_date": "20230115"}, nil
	})
}

func newTestRouter(t *testing.T, ext extractor.Extractor) (*gin.Engine, *service.Pipeline) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	input := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(input, []byte("u1\nu2\n"), 0644))

	store, err := storage.NewRecordStore(filepath.Join(dir, "records"))
	require.NoError(t, err)

	harvest := service.NewHarvestService(config.HarvestConfig{
		OutputDir: store.Dir(), Workers: 2, MaxAttempts: 1,
	}, ext, store, logger.NewNop())
	consolidate := service.NewConsolidateService(config.ConsolidateConfig{
		InputDir: store.Dir(), OutputDir: filepath.Join(dir, "out"), OutputFile: "combined.csv",
	}, logger.NewNop())
	pipeline := service.NewPipeline(input, config.ModeParallel, harvest, consolidate, logger.NewNop())

	h := NewRunHandler(context.Background(), pipeline)
	r := gin.New()
	r.GET("/api/health", h.Health)
	r.GET("/api/runs", h.ListRuns)
	r.POST("/api/runs", h.TriggerRun)
	r.GET("/api/consolidation", h.GetConsolidation)
	return r, pipeline
}

func do(r http.Handler, method, path string) (*httptest.ResponseRecorder, ApiResponse) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)

	var resp ApiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, okExtractor())
	w, _ := do(r, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestConsolidationNotFoundBeforeRun(t *testing.T) {
	r, _ := newTestRouter(t, okExtractor())
	w, resp := do(r, http.MethodGet, "/api/consolidation")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 404, resp.Code)
}

func TestTriggerRunAndList(t *testing.T) {
	r, pipeline := newTestRouter(t, okExtractor())

	w, resp := do(r, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 0, resp.Code)

	require.Eventually(t, func() bool {
		return !pipeline.Status().Running && pipeline.LastReport() != nil
	}, 5*time.Second, 10*time.Millisecond)

	w, resp = do(r, http.MethodGet, "/api/runs")
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	runs, ok := data["runs"].([]any)
	require.True(t, ok)
	require.Len(t, runs, 1)
	run := runs[0].(map[string]any)
	assert.Equal(t, float64(2), run["successful"])
	assert.Equal(t, "parallel", run["mode"])

	w, resp = do(r, http.MethodGet, "/api/consolidation")
	require.Equal(t, http.StatusOK, w.Code)
	report := resp.Data.(map[string]any)
	assert.Equal(t, "done", report["stage"])
	assert.Equal(t, float64(2), report["rows"])
}

func TestTriggerRunConflict(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	ext := extractor.Func(func(ctx context.Context, id string) (map[string]any, error) {
		once.Do(func() { close(started) })
		<-release
		return map[string]any{"id": id, "title": "Title " + id, "upload_date": "20230115"}, nil
	})
	r, pipeline := newTestRouter(t, ext)

	w, _ := do(r, http.MethodPost, "/api/runs")
	require.Equal(t, http.StatusAccepted, w.Code)
	<-started

	w, resp := do(r, http.MethodPost, "/api/runs")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 409, resp.Code)

	close(release)
	require.Eventually(t, func() bool {
		return !pipeline.Status().Running
	}, 5*time.Second, 10*time.Millisecond)
}
