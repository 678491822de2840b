// Команда preview запрашивает кандидатов из NewsAPI и печатает решение
// классификатора по каждой статье. Ничего не суммаризирует и не пишет на диск.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/filter"
	"github.com/maine/ai_news_digest/internal/logger"
	"github.com/maine/ai_news_digest/internal/news"
	"github.com/maine/ai_news_digest/internal/ranking"
	"github.com/maine/ai_news_digest/internal/rules"
	"github.com/maine/ai_news_digest/internal/sources"
)

func main() {
	os.Exit(run())
}

func run() int {
	envCfg, err := config.LoadEnvConfig(os.Args[1:])
	if err != nil || envCfg == nil {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		return 0
	}
	log := logger.Init(envCfg.LogLevel, envCfg.LogFormat)

	if envCfg.NewsAPIKey == "" {
		log.Error("NEWS_API_KEY environment variable is required")
		return 2
	}

	rootCfg, err := config.LoadRoot(envCfg.ConfigPath)
	if err != nil {
		log.Error("load pipeline config", "error", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	filterRules := rules.Load(rootCfg.Pipeline.RulesPath)
	collector := sources.NewNewsAPICollector(rootCfg.NewsAPI, envCfg.NewsAPIKey, &http.Client{Timeout: 15 * time.Second})

	candidates, _ := collector.Collect(ctx)
	if len(candidates) == 0 {
		fmt.Println("no candidates fetched")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEEP\tREASON\tTERM\tPUBLISHED\tTITLE")

	var kept []news.RawArticle
	for _, article := range candidates {
		d := filter.Decision{Reason: filter.ReasonRemoved}
		if article.Title != news.RemovedTitle {
			d = filter.Classify(article, filterRules)
		}
		if d.Keep {
			kept = append(kept, article)
		}
		fmt.Fprintf(tw, "%v\t%s\t%s\t%s\t%s\n", d.Keep, d.Reason, d.Term, article.PublishedAt, article.Title)
	}
	_ = tw.Flush()

	selected := ranking.NewRanker(rootCfg.Pipeline).Rank(kept)
	fmt.Printf("\n%d candidates, %d relevant, %d would be summarized\n", len(candidates), len(kept), len(selected))
	return 0
}
