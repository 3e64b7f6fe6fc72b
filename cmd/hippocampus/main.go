// Hippocampus: the durable memory store behind the Memory Governor, exposing
// add/query/delete/summarize over a pluggable backend (in-memory, embedded
// SQL, or a remote mem0-compatible service).
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
	"github.com/sacredbrain/memoryfabric/pkg/hippocampus"
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

	cfg, err := config.LoadHippocampusConfig(os.Getenv("HIPPOCAMPUS_CONFIG_FILE"))
	if err != nil {
		log.Error("failed to load hippocampus config", "error", err)
		os.Exit(1)
	}

	dbPath := cfg.DBPath
	if dbPath == "" && cfg.Backend == string(hippocampus.BackendSQLite) {
		dbPath = filepath.Join("data", "memories.db")
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			log.Error("failed to create data directory", "error", err)
			os.Exit(1)
		}
	}

	adapter := hippocampus.NewAdapter(hippocampus.AdapterConfig{
		Backend:       hippocampus.Name(cfg.Backend),
		SQLitePath:    dbPath,
		RemoteBaseURL: cfg.RemoteBaseURL,
		RemoteAPIKey:  cfg.RemoteAPIKey,
	}, log)

	a := &app{adapter: adapter, log: log}
	router := newHippocampusRouter(a, cfg, getEnv("GIN_MODE", "release") == "debug")

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	addr := cfg.BindHost + ":" + strconv.Itoa(cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Info("hippocampus listening", "addr", addr, "backend", cfg.Backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("hippocampus server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down hippocampus")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("hippocampus shutdown error", "error", err)
	}
}
