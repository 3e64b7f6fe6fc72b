package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sacredbrain/memoryfabric/pkg/apiserver"
	"github.com/sacredbrain/memoryfabric/pkg/llmrerank"
	"github.com/sacredbrain/memoryfabric/pkg/memgovernor"
	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// app bundles the Governor's wired components. Constructed once in main and
// passed to every handler by value-of-pointer-receiver closures, per
// spec.md 9's explicit-application-struct design note.
type app struct {
	store     *memgovernor.WorkingStore
	stream    *memgovernor.StreamLog
	runtime   *memgovernor.Runtime
	writeback *memgovernor.WriteBackClient
	reranker  *llmrerank.Client
	rerankMax int
	defaultK  int
	log       *slog.Logger
}

// newGovernorRouter registers every route against a. Shared by main and
// handler tests.
func newGovernorRouter(a *app, debug bool) *gin.Engine {
	router := apiserver.NewRouter(debug)
	router.GET("/health", a.health)
	router.POST("/observe", a.observe)
	router.POST("/remember", a.remember)
	router.POST("/recall", a.recall)
	router.POST("/consolidate", a.consolidate)
	return router
}

func (a *app) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func normalizeForDedupe(text string) string {
	return strings.ToLower(models.Canonicalize(text))
}

// observe handles POST /observe: classify, then branch per spec.md 4.F.
func (a *app) observe(c *gin.Context) {
	var req ObserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	ts := time.Now().Unix()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	salience, decision := memgovernor.ClassifyObservation(memgovernor.Observation{
		Text:     req.Text,
		Metadata: req.Metadata,
	})

	if a.stream != nil {
		if err := a.stream.Append(memgovernor.StreamRecord{
			Source: req.Source, UserID: req.UserID, Text: req.Text,
			Timestamp: ts, Scope: req.Scope, Metadata: req.Metadata,
		}); err != nil {
			a.log.Warn("governor: stream append failed", "error", err)
		}
	}

	action := "ignored"
	switch decision {
	case memgovernor.DecisionWorking:
		ev := models.WorkingEvent{
			Source: req.Source, UserID: req.UserID, Text: req.Text,
			NormalizedText: normalizeForDedupe(req.Text), Timestamp: ts,
			Scope: req.Scope, EventID: eventIDFromMetadata(req.Metadata),
			Metadata: req.Metadata,
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		inserted, err := a.store.Add(ctx, ev)
		cancel()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		if inserted {
			action = "stored_working"
		} else {
			action = "duplicate_ignored"
		}
	case memgovernor.DecisionCandidate:
		// Every observation is captured in the working store before
		// classification branches further (app.py:119's store.add_working),
		// so candidates remain visible to later consolidation passes.
		ev := models.WorkingEvent{
			Source: req.Source, UserID: req.UserID, Text: req.Text,
			NormalizedText: normalizeForDedupe(req.Text), Timestamp: ts,
			Scope: req.Scope, EventID: eventIDFromMetadata(req.Metadata),
			Metadata: req.Metadata,
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		_, err := a.store.Add(ctx, ev)
		cancel()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		clamped := salience
		if clamped < 0.7 {
			clamped = 0.7
		}
		payload := map[string]any{
			"text":    req.Text,
			"user_id": req.UserID,
			"metadata": map[string]any{
				"source":    req.Source,
				"event_id":  eventIDFromMetadata(req.Metadata),
				"timestamp": ts,
				"scope":     req.Scope,
				"salience":  clamped,
				"kind":      string(models.KindEpisodic),
				"keywords":  models.ExtractKeywords(req.Text),
			},
		}
		if _, err := a.runtime.EnqueueMemory(payload); err != nil {
			a.log.Error("governor: candidate enqueue failed", "error", err)
		}
		action = "candidate_enqueued"
	}

	c.JSON(http.StatusOK, ObserveResponse{
		Status: "ok",
		Action: action,
		Decision: observeDecision{
			Salience: salience,
			Kind:     string(decision),
		},
	})
}

func eventIDFromMetadata(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	s, _ := meta["event_id"].(string)
	return s
}

// remember handles POST /remember: an explicit, classification-bypassing
// write. It tries a synchronous write-back within the 5s budget and falls
// back to the durable queue on failure, per spec.md 5's write-back timeout.
func (a *app) remember(c *gin.Context) {
	var req RememberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	payload := map[string]any{
		"text":    req.Text,
		"user_id": req.UserID,
		"metadata": mergeMetadata(req.Metadata, map[string]any{
			"source": req.Source,
			"kind":   req.Kind,
			"scope":  req.Scope,
		}),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	id, err := a.writeback.PostMemory(ctx, payload)
	if err == nil && id != "" {
		c.JSON(http.StatusOK, RememberResponse{Status: "stored", MemoryID: id})
		return
	}
	if err != nil {
		a.log.Warn("governor: synchronous remember failed, queuing for retry", "error", err)
	}
	jobID, qerr := a.runtime.EnqueueMemory(payload)
	if qerr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": qerr.Error()})
		return
	}
	c.JSON(http.StatusOK, RememberResponse{Status: "queued", MemoryID: jobID})
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// recall handles POST /recall: query the backend, filter, rank, optionally
// rerank.
func (a *app) recall(c *gin.Context) {
	var req RecallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	k := req.K
	if k <= 0 {
		k = a.defaultK
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	candidates, err := a.writeback.QueryMemories(ctx, req.UserID, req.Query, k*3)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	var filters memgovernor.RecallFilters
	if req.Filters != nil {
		filters.Kinds = req.Filters.Kinds
		filters.MinConfidence = req.Filters.MinConfidence
		filters.SinceDays = req.Filters.SinceDays
	}

	items := memgovernor.Rank(ctx, candidates, filters, k, a.reranker, a.rerankMax)
	c.JSON(http.StatusOK, gin.H{"results": items})
}

// consolidate handles POST /consolidate: extract episodic/semantic/
// procedural items from recent working events and enqueue them for
// write-back, advancing the per-scope cursor to the latest timestamp seen.
func (a *app) consolidate(c *gin.Context) {
	var req ConsolidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = 20
	}
	mode := memgovernor.ConsolidationMode(req.Mode)
	if mode == "" {
		mode = memgovernor.ModeAll
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	recent, err := a.store.RecentForScope(ctx, req.Scope, maxItems*3)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	extracted := memgovernor.Consolidate(recent, mode)
	written := consolidateWritten{}
	skipped := 0

	enqueueKind := func(kind models.MemoryKind, items []memgovernor.ExtractedItem) int {
		count := 0
		for i, item := range items {
			if i >= maxItems {
				skipped++
				continue
			}
			payload := map[string]any{
				"text":    item.Text,
				"user_id": item.UserID,
				"metadata": map[string]any{
					"kind":       string(item.Kind),
					"confidence": item.Confidence,
					"source":     item.Provenance["source"],
					"event_id":   item.Provenance["event_id"],
					"scope":      req.Scope,
					"timestamp":  item.Provenance["timestamp"],
				},
			}
			if _, err := a.runtime.EnqueueMemory(payload); err != nil {
				a.log.Error("governor: consolidation enqueue failed", "kind", kind, "error", err)
				continue
			}
			count++
		}
		return count
	}

	written.Episodic = enqueueKind(models.KindEpisodic, extracted[models.KindEpisodic])
	written.Semantic = enqueueKind(models.KindSemantic, extracted[models.KindSemantic])
	written.Procedural = enqueueKind(models.KindProcedural, extracted[models.KindProcedural])

	var maxTS int64
	for _, ev := range recent {
		if ev.Timestamp > maxTS {
			maxTS = ev.Timestamp
		}
	}
	if maxTS > 0 {
		if err := a.store.MarkConsolidated(ctx, req.Scope, maxTS); err != nil {
			a.log.Error("governor: mark consolidated failed", "error", err)
		}
	}

	c.JSON(http.StatusOK, ConsolidateResponse{Status: "ok", Written: written, Skipped: skipped})
}
