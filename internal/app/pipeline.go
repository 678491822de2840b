package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maine/ai_news_digest/internal/news"
	"github.com/maine/ai_news_digest/internal/snapshot"
)

// ErrNotConfigured возвращается, когда пайплайн запущен без обязательных зависимостей.
var ErrNotConfigured = errors.New("pipeline dependencies not configured")

// Clock определяет источник времени (удобно подменять в тестах).
type Clock func() time.Time

// SourceCollector получает кандидатов из новостного API.
type SourceCollector interface {
	Collect(ctx context.Context) ([]news.RawArticle, error)
}

// Filter отсеивает отозванные и нерелевантные статьи.
type Filter interface {
	Apply(ctx context.Context, articles []news.RawArticle) []news.RawArticle
}

// Ranker сортирует статьи по свежести и оставляет топ-N.
type Ranker interface {
	Rank(articles []news.RawArticle) []news.RawArticle
}

// Summarizer создаёт японский заголовок и резюме. Результат пригоден
// к использованию всегда; ошибка нужна только для логов.
type Summarizer interface {
	Summarize(ctx context.Context, article news.RawArticle) (news.Summary, error)
}

// SnapshotStore сохраняет итог запуска.
type SnapshotStore interface {
	WriteLatest(ctx context.Context, snap news.Snapshot) error
	WriteArchive(ctx context.Context, dateKey string, snap news.Snapshot) error
}

// PipelineDeps перечисляет зависимости пайплайна.
type PipelineDeps struct {
	Collector  SourceCollector
	Filter     Filter
	Ranker     Ranker
	Summarizer Summarizer
	Store      SnapshotStore
	// Pacer задаёт паузу между статьями; nil — FixedDelay(time.Second).
	Pacer    Pacer
	Clock    Clock
	Location *time.Location
	Logger   *slog.Logger
}

// Pipeline инкапсулирует ежедневный процесс.
type Pipeline struct {
	collector  SourceCollector
	filter     Filter
	ranker     Ranker
	summarizer Summarizer
	store      SnapshotStore
	pacer      Pacer
	clock      Clock
	location   *time.Location
	logger     *slog.Logger
}

// NewPipeline создаёт новый экземпляр пайплайна.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	pacer := deps.Pacer
	if pacer == nil {
		pacer = FixedDelay(time.Second)
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		collector:  deps.Collector,
		filter:     deps.Filter,
		ranker:     deps.Ranker,
		summarizer: deps.Summarizer,
		store:      deps.Store,
		pacer:      pacer,
		clock:      clock,
		location:   loc,
		logger:     logger,
	}
}

// Run исполняет полный цикл обработки новостей.
// Возвращает (nil, nil), если писать нечего: существующие файлы не трогаются.
func (p *Pipeline) Run(ctx context.Context) (*news.Snapshot, error) {
	if err := p.validateDeps(); err != nil {
		return nil, err
	}

	log := p.logger.With("run_id", uuid.NewString())

	log.Info("Step 1: fetching candidates")
	candidates, err := p.collector.Collect(ctx)
	if err != nil {
		log.Error("fetch failed, treating as empty", "error", err)
		candidates = nil
	}
	if len(candidates) == 0 {
		log.Info("no candidates fetched, nothing to do")
		return nil, nil
	}
	log.Info("candidates fetched", "count", len(candidates))

	log.Info("Step 2: filtering")
	relevant := p.filter.Apply(ctx, candidates)
	log.Info("filtered", "kept", len(relevant), "dropped", len(candidates)-len(relevant))

	log.Info("Step 3: ranking")
	selected := p.ranker.Rank(relevant)
	if len(selected) == 0 {
		log.Info("no relevant articles, nothing to do")
		return nil, nil
	}
	log.Info("ranked", "selected", len(selected))

	log.Info("Step 4: summarizing", "articles", len(selected))
	processed, err := p.summarizeAll(ctx, log, selected)
	if err != nil {
		return nil, fmt.Errorf("summarize articles: %w", err)
	}

	now := p.clock()
	snap := news.Snapshot{
		UpdatedAt: now,
		Articles:  processed,
	}

	log.Info("Step 5: persisting snapshot")
	if err := p.store.WriteLatest(ctx, snap); err != nil {
		return nil, fmt.Errorf("persist latest: %w", err)
	}
	dateKey := snapshot.ArchiveKey(now, p.location)
	if err := p.store.WriteArchive(ctx, dateKey, snap); err != nil {
		return nil, fmt.Errorf("persist archive: %w", err)
	}

	log.Info("snapshot written", "articles", len(processed), "archive", dateKey)
	return &snap, nil
}

// summarizeAll обрабатывает статьи строго по одной, с паузой между ними,
// чтобы в каждый момент к модели был только один запрос.
func (p *Pipeline) summarizeAll(ctx context.Context, log *slog.Logger, articles []news.RawArticle) ([]news.ProcessedArticle, error) {
	processed := make([]news.ProcessedArticle, 0, len(articles))
	fallbacks := 0

	for i, article := range articles {
		if i > 0 {
			if err := p.pacer.Wait(ctx); err != nil {
				return nil, err
			}
		}

		summary, err := p.summarizer.Summarize(ctx, article)
		if err != nil {
			fallbacks++
			log.Warn("summary fallback used",
				"index", i+1,
				"url", article.URL,
				"error", err)
		}

		processed = append(processed, news.NewProcessedArticle(article, summary))
		log.Debug("article summarized", "index", i+1, "total", len(articles))
	}

	log.Info("summarization complete", "articles", len(processed), "fallbacks", fallbacks)
	return processed, nil
}

func (p *Pipeline) validateDeps() error {
	switch {
	case p.collector == nil,
		p.filter == nil,
		p.ranker == nil,
		p.summarizer == nil,
		p.store == nil,
		p.pacer == nil,
		p.clock == nil:
		return ErrNotConfigured
	default:
		return nil
	}
}
