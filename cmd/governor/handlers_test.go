package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sacredbrain/memoryfabric/pkg/memgovernor"
	"github.com/sacredbrain/memoryfabric/pkg/models"
)

func testApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := memgovernor.NewWorkingStore("", 24)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	queue, err := memgovernor.NewDurableQueue("")
	require.NoError(t, err)

	wb := memgovernor.NewWriteBackClient("", "", "")
	log := slog.New(slog.NewTextHandler(discardWriter{}, nil))
	rt := memgovernor.NewRuntime(store, nil, queue, wb, 2*time.Second, log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { cancel(); rt.Stop() })
	rt.Start(ctx)

	return &app{store: store, runtime: rt, writeback: wb, defaultK: 10, log: log}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthOK(t *testing.T) {
	router := newGovernorRouter(testApp(t), true)
	rec := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestObserveIgnoresShortNeutralText(t *testing.T) {
	router := newGovernorRouter(testApp(t), true)
	req := ObserveRequest{Source: "chat", UserID: "alice", Text: "ok", Scope: models.Scope{Kind: models.ScopeRoom, ID: "r1"}}
	rec := doJSON(router, http.MethodPost, "/observe", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body ObserveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ignored", body.Action)
}

func TestObserveStoresWorkingTierEvent(t *testing.T) {
	router := newGovernorRouter(testApp(t), true)
	text := "Note: the weekly team sync moved to Thursdays starting next month; update your calendars and let me know about any scheduling conflicts for your individual workstreams."
	req := ObserveRequest{Source: "chat", UserID: "alice", Text: text, Scope: models.Scope{Kind: models.ScopeRoom, ID: "r1"}}
	rec := doJSON(router, http.MethodPost, "/observe", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body ObserveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "stored_working", body.Action)
}

func TestObserveExplicitPrefixEnqueuesCandidate(t *testing.T) {
	a := testApp(t)
	router := newGovernorRouter(a, true)
	scope := models.Scope{Kind: models.ScopeRoom, ID: "r1"}
	req := ObserveRequest{Source: "chat", UserID: "alice", Text: "!remember always call mom on Sundays", Scope: scope}
	rec := doJSON(router, http.MethodPost, "/observe", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body ObserveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "candidate_enqueued", body.Action)
	assert.GreaterOrEqual(t, body.Decision.Salience, 0.9)

	recent, err := a.store.RecentForScope(context.Background(), scope, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1, "candidate observations must also land in the working store so consolidation can see them")
}

func TestRememberQueuesWhenWriteBackUnreachable(t *testing.T) {
	router := newGovernorRouter(testApp(t), true)
	req := RememberRequest{UserID: "alice", Text: "remember this", Scope: models.Scope{Kind: models.ScopeUser, ID: "alice"}, Kind: "semantic"}
	rec := doJSON(router, http.MethodPost, "/remember", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body RememberResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "queued", body.Status)
	assert.NotEmpty(t, body.MemoryID)
}

func TestConsolidateWithNoEventsWritesNothing(t *testing.T) {
	router := newGovernorRouter(testApp(t), true)
	req := ConsolidateRequest{Scope: models.Scope{Kind: models.ScopeRoom, ID: "empty-room"}, Mode: "all", MaxItems: 10}
	rec := doJSON(router, http.MethodPost, "/consolidate", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body ConsolidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Written.Episodic)
	assert.Equal(t, 0, body.Skipped)
}

func TestRecallReturnsEmptyResultsWhenNoBackendConfigured(t *testing.T) {
	router := newGovernorRouter(testApp(t), true)
	req := RecallRequest{UserID: "alice", Query: "park", K: 5}
	rec := doJSON(router, http.MethodPost, "/recall", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body["results"])
}
