package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sacredbrain/memoryfabric/pkg/apiserver"
	"github.com/sacredbrain/memoryfabric/pkg/config"
	"github.com/sacredbrain/memoryfabric/pkg/hippocampus"
	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// app bundles the Hippocampus binary's wired components.
type app struct {
	adapter *hippocampus.Adapter
	log     *slog.Logger
}

// newHippocampusRouter registers every route against a, gating the
// memory-mutating routes behind the shared-secret API key middleware when
// enabled. Shared by main and handler tests.
func newHippocampusRouter(a *app, cfg config.HippocampusConfig, debug bool) *gin.Engine {
	router := apiserver.NewRouter(debug)
	router.GET("/health", a.health)
	router.GET("/doctor", a.doctor)

	authed := router.Group("/")
	authed.Use(apiserver.APIKeyAuth(cfg.AuthEnable, cfg.APIKeyHeader, cfg.APIKeys))
	authed.POST("/memories", a.addMemory)
	authed.GET("/memories/:user_id", a.queryMemories)
	authed.DELETE("/memories/:memory_id", a.deleteMemory)
	authed.POST("/summaries", a.summarize)
	authed.POST("/ingest", a.ingest)

	return router
}

func (a *app) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// doctor reports backend health, per spec.md 9's Open Question 1 resolution
// (a normal registered route rather than an unrouted debug shim).
func (a *app) doctor(c *gin.Context) {
	status := "ok"
	if a.adapter.FallbackActive() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"storage":         status,
		"backend":         string(a.adapter.BackendName()),
		"fallback_active": a.adapter.FallbackActive(),
	})
}

func (a *app) addMemory(c *gin.Context) {
	var req AddMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	rec, err := a.adapter.Add(ctx, req.UserID, req.Text, req.Metadata)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memory": rec})
}

func (a *app) queryMemories(c *gin.Context) {
	userID := c.Param("user_id")
	query := c.Query("query")
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var (
		records []models.MemoryRecord
		err     error
	)
	if query != "" {
		records, err = a.adapter.Query(ctx, userID, query, limit)
	} else {
		records, err = a.adapter.List(ctx, userID, limit)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memories": records})
}

func (a *app) deleteMemory(c *gin.Context) {
	id := c.Param("memory_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	ok, err := a.adapter.Delete(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "memory not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (a *app) summarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if len(req.Texts) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "texts must be non-empty"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	summary, err := a.adapter.Summarize(ctx, req.Texts, 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// ingest is the endpoint the Governor's write-back client posts to first,
// before falling back to a direct /memories write, per spec.md 4.H.
func (a *app) ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	ts := time.Now().Unix()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	metadata := req.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["source"] = req.Source
	metadata["timestamp"] = ts

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	rec, err := a.adapter.Add(ctx, req.UserID, req.Text, metadata)
	if err != nil {
		a.log.Warn("hippocampus: ingest write failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"logged": false, "status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged": true, "status": "ok", "memory": gin.H{"id": rec.ID}})
}
