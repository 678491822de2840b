package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maine/ai_news_digest/internal/app"
	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/filter"
	"github.com/maine/ai_news_digest/internal/gemini"
	"github.com/maine/ai_news_digest/internal/logger"
	"github.com/maine/ai_news_digest/internal/ranking"
	"github.com/maine/ai_news_digest/internal/rules"
	"github.com/maine/ai_news_digest/internal/snapshot"
	"github.com/maine/ai_news_digest/internal/sources"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Переменные окружения и флаги (ключи API, путь к конфигу)
	envCfg, err := config.LoadEnvConfig(os.Args[1:])
	if err != nil {
		slog.Error("load env config", "error", err)
		return 2
	}
	if envCfg == nil {
		return 0
	}
	log := logger.Init(envCfg.LogLevel, envCfg.LogFormat)

	if err := envCfg.RequireDailyJobSecrets(); err != nil {
		log.Error("missing secrets", "error", err)
		return 2
	}

	// Загружаем конфигурацию из YAML
	rootCfg, err := config.LoadRoot(envCfg.ConfigPath)
	if err != nil {
		log.Error("load pipeline config", "error", err)
		return 2
	}
	loc, err := rootCfg.Pipeline.Location()
	if err != nil {
		log.Error("resolve pipeline timezone", "error", err)
		return 2
	}

	// Правила фильтрации читаются один раз на запуск
	filterRules := rules.Load(rootCfg.Pipeline.RulesPath)

	httpClient := &http.Client{Timeout: 15 * time.Second}
	collector := sources.NewNewsAPICollector(rootCfg.NewsAPI, envCfg.NewsAPIKey, httpClient)

	var geminiClient gemini.GeminiClient
	if !envCfg.SkipGemini {
		client, err := gemini.NewClient(ctx, envCfg.GeminiAPIKey)
		if err != nil {
			log.Error("failed to create Gemini client", "error", err)
			return 1
		}
		geminiClient = client
	} else {
		log.Warn("SKIP_GEMINI set: using local fallback summaries")
	}

	p := app.NewPipeline(app.PipelineDeps{
		Collector:  collector,
		Filter:     filter.New(filterRules),
		Ranker:     ranking.NewRanker(rootCfg.Pipeline),
		Summarizer: gemini.NewSummarizer(geminiClient, rootCfg.Gemini),
		Store:      snapshot.NewFileStore(rootCfg.Storage.LatestPath, rootCfg.Storage.ArchiveDir),
		Pacer:      app.FixedDelay(rootCfg.Pipeline.SummaryDelay),
		Location:   loc,
		Logger:     log,
	})

	snap, err := p.Run(ctx)
	if err != nil {
		log.Error("pipeline failed", "error", err)
		return 1
	}
	if snap == nil {
		log.Info("pipeline completed without changes")
		return 0
	}

	log.Info("pipeline completed successfully", "articles", len(snap.Articles), "updated_at", snap.UpdatedAt)
	return 0
}
