package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/logger"
	"github.com/maine/ai_news_digest/internal/server"
	"github.com/maine/ai_news_digest/internal/snapshot"
)

func main() {
	os.Exit(run())
}

func run() int {
	envCfg, err := config.LoadEnvConfig(os.Args[1:])
	if err != nil {
		slog.Error("load env config", "error", err)
		return 2
	}
	if envCfg == nil {
		return 0
	}
	log := logger.Init(envCfg.LogLevel, envCfg.LogFormat)

	rootCfg, err := config.LoadRoot(envCfg.ConfigPath)
	if err != nil {
		log.Error("load pipeline config", "error", err)
		return 2
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := snapshot.NewFileStore(rootCfg.Storage.LatestPath, rootCfg.Storage.ArchiveDir)
	engine := server.New(store, server.Options{
		PublicDir: rootCfg.Server.PublicDir,
		DataPath:  rootCfg.Offline.DataPath,
		Registry:  reg,
	})

	srv := &http.Server{
		Addr:              rootCfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr, "public_dir", rootCfg.Server.PublicDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return 1
	}
	log.Info("server exited")
	return 0
}
