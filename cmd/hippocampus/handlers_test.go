package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacredbrain/memoryfabric/pkg/config"
	"github.com/sacredbrain/memoryfabric/pkg/hippocampus"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	a := &app{adapter: hippocampus.NewAdapter(hippocampus.AdapterConfig{Backend: hippocampus.BackendMemory}, nil)}
	return newHippocampusRouter(a, config.HippocampusDefaults(), true)
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		buf, _ := json.Marshal(body)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthReturnsOK(t *testing.T) {
	router := testRouter(t)
	rec := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDoctorReportsMemoryBackend(t *testing.T) {
	router := testRouter(t)
	rec := doJSON(router, http.MethodGet, "/doctor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "memory", body["backend"])
}

func TestAddMemoryThenQueryRoundTrip(t *testing.T) {
	router := testRouter(t)
	rec := doJSON(router, http.MethodPost, "/memories", AddMemoryRequest{UserID: "alice", Text: "Met Bob at the park"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodGet, "/memories/alice?query=park", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	memories, ok := body["memories"].([]any)
	require.True(t, ok)
	require.Len(t, memories, 1)
}

func TestDeleteMissingMemoryReturns404(t *testing.T) {
	router := testRouter(t)
	rec := doJSON(router, http.MethodDelete, "/memories/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummarizeRejectsEmptyTexts(t *testing.T) {
	router := testRouter(t)
	rec := doJSON(router, http.MethodPost, "/summaries", SummarizeRequest{Texts: []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestLogsAndAddsMemory(t *testing.T) {
	router := testRouter(t)
	rec := doJSON(router, http.MethodPost, "/ingest", IngestRequest{Source: "chat", UserID: "bob", Text: "remember to call mom"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["logged"])
}

func TestAPIKeyAuthBlocksMutatingRoutesWhenEnabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := &app{adapter: hippocampus.NewAdapter(hippocampus.AdapterConfig{Backend: hippocampus.BackendMemory}, nil)}
	cfg := config.HippocampusDefaults()
	cfg.AuthEnable = true
	cfg.APIKeys = []string{"secret"}
	router := newHippocampusRouter(a, cfg, true)

	rec := doJSON(router, http.MethodPost, "/memories", AddMemoryRequest{UserID: "alice", Text: "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/memories", bytes.NewReader(mustJSON(AddMemoryRequest{UserID: "alice", Text: "hi"})))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(cfg.APIKeyHeader, "secret")
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func mustJSON(v any) []byte {
	buf, _ := json.Marshal(v)
	return buf
}
