package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/formatter"
	"github.com/maine/ai_news_digest/internal/logger"
	"github.com/maine/ai_news_digest/internal/news"
	"github.com/maine/ai_news_digest/internal/offline"
)

type options struct {
	Origin     string `long:"origin" env:"NEWS_ORIGIN" default:"http://localhost:8080" description:"Base URL of the news site"`
	ConfigPath string `long:"config" env:"CONFIG_PATH" default:"configs/pipeline.yaml" description:"Path to pipeline YAML config"`
	PerPage    int    `long:"per-page" default:"5" description:"Articles per page"`
	LogLevel   string `long:"log-level" env:"LOG_LEVEL" default:"warn" description:"Log level"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}
	log := logger.Init(opts.LogLevel, "text")

	rootCfg, err := config.LoadRoot(opts.ConfigPath)
	if err != nil {
		log.Error("load pipeline config", "error", err)
		return 2
	}
	loc, err := rootCfg.Pipeline.Location()
	if err != nil {
		log.Error("resolve pipeline timezone", "error", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	storage, err := offline.OpenSQLite(ctx, rootCfg.Offline.DBPath)
	if err != nil {
		log.Error("open offline cache", "error", err)
		return 1
	}
	defer storage.Close()

	worker, err := offline.NewWorker(offline.Config{
		Origin:       opts.Origin,
		Version:      rootCfg.Offline.CacheVersion,
		DataPath:     rootCfg.Offline.DataPath,
		StaticAssets: rootCfg.Offline.StaticAssets,
	}, storage, &http.Transport{Proxy: http.ProxyFromEnvironment}, nil)
	if err != nil {
		log.Error("create offline worker", "error", err)
		return 1
	}

	// Установка и активация новой версии; без сети остаётся прежняя копия
	if err := worker.Install(ctx); err != nil {
		log.Warn("offline install skipped", "error", err)
	} else if err := worker.Activate(ctx); err != nil {
		log.Warn("offline activate failed", "error", err)
	}

	client := &http.Client{Transport: worker, Timeout: 15 * time.Second}
	snap, err := fetchSnapshot(ctx, client, opts.Origin, rootCfg.Offline.DataPath)
	worker.Wait()
	if err != nil {
		log.Error("fetch snapshot", "error", err)
		fmt.Println(formatter.FetchFailedMessage)
		return 1
	}

	for _, page := range formatter.NewFormatter(opts.PerPage, loc).BuildPages(snap) {
		fmt.Println(page)
		fmt.Println()
	}
	return 0
}

func fetchSnapshot(ctx context.Context, client *http.Client, origin, dataPath string) (news.Snapshot, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return news.Snapshot{}, fmt.Errorf("parse origin: %w", err)
	}
	ref, err := url.Parse(dataPath)
	if err != nil {
		return news.Snapshot{}, fmt.Errorf("parse data path: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.ResolveReference(ref).String(), nil)
	if err != nil {
		return news.Snapshot{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, offline.ErrNoResponse) {
			return news.Snapshot{}, fmt.Errorf("offline and no cached snapshot: %w", err)
		}
		return news.Snapshot{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return news.Snapshot{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if resp.Header.Get(offline.SourceHeader) == offline.SourceCache {
		slog.Warn("showing cached snapshot (offline)")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return news.Snapshot{}, fmt.Errorf("read body: %w", err)
	}
	var snap news.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return news.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}
