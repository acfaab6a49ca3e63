package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariadne-labs/ariadne/internal/capability"
	"github.com/ariadne-labs/ariadne/internal/engine"
	"github.com/ariadne-labs/ariadne/internal/logging"
	"github.com/ariadne-labs/ariadne/internal/memory"
	"github.com/ariadne-labs/ariadne/internal/scheduler"
	"github.com/ariadne-labs/ariadne/internal/store"
	"github.com/ariadne-labs/ariadne/internal/streaming"
	"github.com/ariadne-labs/ariadne/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ariadne:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	// Logs go to stderr; stdout carries the MCP stdio transport.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})
	logger := slog.New(logging.NewCorrelationHandler(handler))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := capability.NewRegistry(logger)
	registered := registry.Discover(ctx, capability.BuiltinManifest(), "tools", nil)
	logger.Info("capabilities registered", slog.Int("count", registered))

	graph := memory.NewGraph(logger)
	hub := streaming.NewMemoryHub()

	eng, err := engine.NewEngine(engine.Config{
		Registry: registry,
		Memory:   graph,
		Store:    st,
		Hub:      hub,
		Logger:   logger,
		Workers:  cfg.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Shutdown()

	sched := scheduler.NewScheduler(st, eng, logger)
	if cfg.Scheduler {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	srv := mcp.NewAriadneServer(mcp.AriadneServerDeps{
		Engine:    eng,
		Store:     st,
		Memory:    graph,
		Scheduler: sched,
		Hub:       hub,
		Logger:    logger,
	})

	logger.Info("ariadne started", slog.String("db_path", cfg.DBPath))
	return srv.Serve(ctx)
}

// openStore opens the libSQL store when a db path is configured, otherwise
// the in-memory store.
func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DBPath == "" {
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), nil
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
