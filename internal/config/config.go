package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Root объединяет все конфигурационные блоки.
	Root struct {
		Pipeline Pipeline `yaml:"pipeline"`
		NewsAPI  NewsAPI  `yaml:"newsapi"`
		Gemini   Gemini   `yaml:"gemini"`
		Storage  Storage  `yaml:"storage"`
		Server   Server   `yaml:"server"`
		Offline  Offline  `yaml:"offline"`
	}

	// Pipeline описывает параметры ежедневного пайплайна.
	Pipeline struct {
		MaxArticles  int           `yaml:"max_articles"`
		SummaryDelay time.Duration `yaml:"summary_delay"` // Пауза между запросами к модели
		Timezone     string        `yaml:"timezone"`      // Зона для ключа архива (YYYY-MM-DD)
		RulesPath    string        `yaml:"rules_path"`
	}

	// NewsAPI описывает поисковый запрос к источнику.
	NewsAPI struct {
		BaseURL  string `yaml:"base_url"`
		Query    string `yaml:"query"`
		Language string `yaml:"language"`
		PageSize int    `yaml:"page_size"`
	}

	// Gemini содержит настройки модели.
	Gemini struct {
		ModelSummary string `yaml:"model_summary"`
	}

	// Storage описывает, куда пишутся снапшоты.
	Storage struct {
		LatestPath string `yaml:"latest_path"`
		ArchiveDir string `yaml:"archive_dir"`
	}

	// Server — параметры HTTP-сервера, раздающего снапшот и статику.
	Server struct {
		Addr      string `yaml:"addr"`
		PublicDir string `yaml:"public_dir"`
	}

	// Offline — параметры офлайн-кэша клиента.
	Offline struct {
		CacheVersion string   `yaml:"cache_version"`
		DataPath     string   `yaml:"data_path"`
		StaticAssets []string `yaml:"static_assets"`
		DBPath       string   `yaml:"db_path"`
	}
)

// Значения по умолчанию.
const (
	DefaultMaxArticles  = 20
	DefaultSummaryDelay = time.Second
	DefaultTimezone     = "Asia/Tokyo"
	DefaultQuery        = `("artificial intelligence" OR "generative AI" OR "machine learning" OR LLM OR OpenAI OR ChatGPT OR Gemini OR Claude)`
)

// LoadRoot читает основной файл конфигурации.
func LoadRoot(path string) (Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Root{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Root
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Root{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()

	if _, err := cfg.Pipeline.Location(); err != nil {
		return Root{}, fmt.Errorf("invalid pipeline timezone %q: %w", cfg.Pipeline.Timezone, err)
	}
	return cfg, nil
}

// ApplyDefaults заполняет незаданные поля.
func (r *Root) ApplyDefaults() {
	if r.Pipeline.MaxArticles <= 0 {
		r.Pipeline.MaxArticles = DefaultMaxArticles
	}
	if r.Pipeline.SummaryDelay <= 0 {
		r.Pipeline.SummaryDelay = DefaultSummaryDelay
	}
	if r.Pipeline.Timezone == "" {
		r.Pipeline.Timezone = DefaultTimezone
	}
	if r.Pipeline.RulesPath == "" {
		r.Pipeline.RulesPath = "configs/filters.json"
	}

	if r.NewsAPI.BaseURL == "" {
		r.NewsAPI.BaseURL = "https://newsapi.org"
	}
	if r.NewsAPI.Query == "" {
		r.NewsAPI.Query = DefaultQuery
	}
	if r.NewsAPI.Language == "" {
		r.NewsAPI.Language = "en"
	}
	if r.NewsAPI.PageSize <= 0 {
		r.NewsAPI.PageSize = 50
	}

	if r.Gemini.ModelSummary == "" {
		r.Gemini.ModelSummary = "gemini-2.0-flash"
	}

	if r.Storage.LatestPath == "" {
		r.Storage.LatestPath = "public/data/latest.json"
	}
	if r.Storage.ArchiveDir == "" {
		r.Storage.ArchiveDir = "public/data/archive"
	}

	if r.Server.Addr == "" {
		r.Server.Addr = ":8080"
	}
	if r.Server.PublicDir == "" {
		r.Server.PublicDir = "public"
	}

	if r.Offline.CacheVersion == "" {
		r.Offline.CacheVersion = "ai-news-v1"
	}
	if r.Offline.DataPath == "" {
		r.Offline.DataPath = "/data/latest.json"
	}
	if len(r.Offline.StaticAssets) == 0 {
		r.Offline.StaticAssets = []string{"/", "/style.css", "/app.js", "/manifest.json"}
	}
	if r.Offline.DBPath == "" {
		r.Offline.DBPath = "state/offline-cache.db"
	}
}

// Location возвращает зону, в которой вычисляется календарная дата запуска.
func (p Pipeline) Location() (*time.Location, error) {
	return time.LoadLocation(p.Timezone)
}
