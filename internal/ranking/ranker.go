package ranking

import (
	"sort"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/news"
)

// Ranker реализует app.Ranker: свежие статьи вперёд, затем топ-N.
type Ranker struct {
	maxArticles int
}

// NewRanker создаёт новый экземпляр ранкера.
func NewRanker(cfg config.Pipeline) *Ranker {
	maxArticles := cfg.MaxArticles
	if maxArticles <= 0 {
		maxArticles = config.DefaultMaxArticles
	}
	return &Ranker{maxArticles: maxArticles}
}

// Rank реализует app.Ranker.
// Сортировка устойчивая; статьи без даты публикации считаются самыми старыми.
func (r *Ranker) Rank(articles []news.RawArticle) []news.RawArticle {
	if len(articles) == 0 {
		return nil
	}

	sorted := make([]news.RawArticle, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedTime().After(sorted[j].PublishedTime())
	})

	if len(sorted) > r.maxArticles {
		sorted = sorted[:r.maxArticles]
	}
	return sorted
}
