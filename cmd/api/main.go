package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"blockforge/api/internal/app"
	"blockforge/api/internal/config"
	"blockforge/api/internal/editor"
	"blockforge/api/internal/export"
	"blockforge/api/internal/history"
	"blockforge/api/internal/kvstore"
	"blockforge/api/internal/notify"
	"blockforge/api/internal/sanitize"
	"blockforge/api/internal/search"
	"blockforge/api/internal/snapshot"
	"blockforge/api/internal/store"
	"blockforge/api/pkg/logger"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	zapLog, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zapLog.Sync()

	notices := notify.NewRecorder(zapLog, 50)

	var kv kvstore.Adapter
	switch cfg.StorageBackend {
	case "postgres":
		pg, err := kvstore.NewPostgresStore(cfg.DatabaseURL, cfg.StorageNamespace, zapLog, notices)
		if err != nil {
			log.Fatalf("postgres connection failed: %v", err)
		}
		kv = pg
	default:
		rs, err := kvstore.NewRedisStore(cfg.RedisURL, cfg.StorageNamespace, zapLog, notices)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		kv = rs
	}
	defer kv.Close()

	state := store.New(kv, zapLog)
	policy := sanitize.NewPolicy()
	engine := editor.NewEngine(state, policy, notices, zapLog, cfg.DebounceInterval)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewMemory())

	opts := app.Options{}
	if strings.TrimSpace(cfg.HistoryDir) != "" {
		if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
			log.Fatalf("failed to create history dir: %v", err)
		}
		opts.History = history.New(cfg.HistoryDir, zapLog)
	}
	if strings.TrimSpace(cfg.ArchiveEndpoint) != "" {
		archive, err := snapshot.NewArchive(ctx, cfg.ArchiveEndpoint, cfg.ArchiveAccessKey, cfg.ArchiveSecretKey, cfg.ArchiveBucket, cfg.ArchiveUseSSL, zapLog)
		if err != nil {
			log.Fatalf("archive connection failed: %v", err)
		}
		opts.Archive = archive
	}

	service := app.NewService(
		kv,
		state,
		engine,
		policy,
		searchService,
		snapshot.NewService(state, zapLog),
		export.NewService(),
		notices,
		zapLog,
		opts,
	)
	service.Bootstrap(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Blockforge API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	// Flush any in-flight edit before the process goes away.
	service.ExitEdit(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
