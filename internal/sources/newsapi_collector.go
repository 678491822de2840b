package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/news"
)

// MaxPageSize — верхняя граница выдачи NewsAPI за один запрос.
const MaxPageSize = 50

// NewsAPICollector загружает свежие статьи из поискового эндпоинта NewsAPI.
type NewsAPICollector struct {
	cfg    config.NewsAPI
	apiKey string
	client *http.Client
}

// NewNewsAPICollector создаёт новый экземпляр.
func NewNewsAPICollector(cfg config.NewsAPI, apiKey string, client *http.Client) *NewsAPICollector {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &NewsAPICollector{
		cfg:    cfg,
		apiKey: apiKey,
		client: client,
	}
}

// Collect реализует app.SourceCollector.
// Ошибки транспорта и API не считаются фатальными: они логируются,
// а пайплайн получает пустой список.
func (c *NewsAPICollector) Collect(ctx context.Context) ([]news.RawArticle, error) {
	articles, err := c.fetch(ctx)
	if err != nil {
		slog.Error("news fetch failed", "error", err)
		return nil, nil
	}
	return articles, nil
}

func (c *NewsAPICollector) fetch(ctx context.Context) ([]news.RawArticle, error) {
	endpoint, err := c.buildURL()
	if err != nil {
		return nil, fmt.Errorf("build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ai-news-digest/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unexpected status %d: unmarshal body: %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || payload.Status != "ok" {
		return nil, fmt.Errorf("api error (status %d, code %q): %s", resp.StatusCode, payload.Code, payload.Message)
	}

	articles := payload.Articles
	if len(articles) > MaxPageSize {
		articles = articles[:MaxPageSize]
	}

	slog.Info("news fetched", "total_results", payload.TotalResults, "returned", len(articles))
	return articles, nil
}

func (c *NewsAPICollector) buildURL() (string, error) {
	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + "/v2/everything")
	if err != nil {
		return "", err
	}

	pageSize := c.cfg.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	q := base.Query()
	q.Set("q", c.cfg.Query)
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(pageSize))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

type searchResponse struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []news.RawArticle `json:"articles"`
}
