package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vaderboard-backend/internal/config"
	"vaderboard-backend/internal/engine"
	"vaderboard-backend/internal/httpapi"
	"vaderboard-backend/internal/livesearch"
	"vaderboard-backend/internal/session"
	"vaderboard-backend/internal/store"
	"vaderboard-backend/internal/vboard"
	"vaderboard-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()

	st, err := store.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connection successful")

	if err := st.Migrate(ctx); err != nil {
		logger.Fatal("migrating schema", zap.Error(err))
	}
	if err := st.SeedAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.Fatal("seeding admin credential", zap.Error(err))
	}

	machine := engine.New(st, logger)
	board := vboard.NewHub(ctx, machine, st, cfg.BoardCount, logger)
	registry := livesearch.NewRegistry(ctx, logger)
	machine.Attach(board, registry)

	sessions := session.NewStore(cfg.SessionSecret)

	api := &httpapi.API{Machine: machine, Store: st, Sessions: sessions, Log: logger}
	deps := ws.Deps{Machine: machine, Store: st, Board: board, Registry: registry, Log: logger}

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: httpapi.SetupRoutes(api, deps, cfg.StaticDir),
	}

	go func() {
		logger.Info("server running", zap.String("addr", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	// Drain order: transport, hubs, then the store pool.
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	board.Inbox() <- vboard.Shutdown{}
	registry.Inbox() <- livesearch.Shutdown{}
	st.Close()
	logger.Info("shutdown complete")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	return logger
}
