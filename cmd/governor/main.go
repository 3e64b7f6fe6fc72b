// Memory Governor: observes conversational events, classifies and
// consolidates them into durable memories, and serves recall queries.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sacredbrain/memoryfabric/pkg/config"
	"github.com/sacredbrain/memoryfabric/pkg/llmrerank"
	"github.com/sacredbrain/memoryfabric/pkg/memgovernor"
	"github.com/sacredbrain/memoryfabric/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	log.Info("starting", "service", version.Full())

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	} else {
		log.Info("loaded environment", "path", envPath)
	}

	cfg, err := config.LoadGovernorConfig(os.Getenv("MG_CONFIG_FILE"))
	if err != nil {
		log.Error("failed to load governor config", "error", err)
		os.Exit(1)
	}

	if cfg.StateDir != "" {
		if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
			log.Error("failed to create state directory", "dir", cfg.StateDir, "error", err)
			os.Exit(1)
		}
	}

	workingDBPath := ""
	spoolPath := ""
	streamPath := ""
	if cfg.StateDir != "" {
		workingDBPath = filepath.Join(cfg.StateDir, "state.db")
		spoolPath = filepath.Join(cfg.StateDir, "durable.spool")
		streamPath = filepath.Join(cfg.StateDir, "stream.log")
	}

	store, err := memgovernor.NewWorkingStore(workingDBPath, cfg.WorkingTTLHours)
	if err != nil {
		log.Error("failed to open working store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Cleanup(context.Background()); err != nil {
		log.Warn("working store cleanup failed", "error", err)
	}

	var stream *memgovernor.StreamLog
	if cfg.StreamEnable && streamPath != "" {
		stream = memgovernor.NewStreamLog(streamPath, cfg.StreamTTLDays)
		if err := stream.Cleanup(); err != nil {
			log.Warn("stream log cleanup failed", "error", err)
		}
	}

	queue, err := memgovernor.NewDurableQueue(spoolPath)
	if err != nil {
		log.Error("failed to open durable queue", "error", err)
		os.Exit(1)
	}

	wb := memgovernor.NewWriteBackClient(cfg.IngestURL, cfg.HippocampusURL, cfg.HippocampusAPIKey)

	var reranker *llmrerank.Client
	if cfg.LiteLLMBaseURL != "" {
		reranker = llmrerank.New(cfg.LiteLLMBaseURL, cfg.LiteLLMAPIKey, "gpt-4o-mini", log)
	}

	retryDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	runtime := memgovernor.NewRuntime(store, stream, queue, wb, retryDelay, log)

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	runtime.Start(ctx)
	defer runtime.Stop()

	a := &app{
		store:     store,
		stream:    stream,
		runtime:   runtime,
		writeback: wb,
		reranker:  reranker,
		rerankMax: 20,
		defaultK:  10,
		log:       log,
	}

	router := newGovernorRouter(a, getEnv("GIN_MODE", "release") == "debug")

	addr := cfg.BindHost + ":" + strconv.Itoa(cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Info("governor listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("governor server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down governor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("governor shutdown error", "error", err)
	}
}
