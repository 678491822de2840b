package news

import (
	"strings"
	"time"
)

// RemovedTitle — маркер NewsAPI для отозванных публикаций.
const RemovedTitle = "[Removed]"

// RawArticle описывает новость в том виде, в каком её вернул NewsAPI.
type RawArticle struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Content     string        `json:"content"`
	URL         string        `json:"url"`
	URLToImage  string        `json:"urlToImage"`
	PublishedAt string        `json:"publishedAt"`
	Source      ArticleSource `json:"source"`
}

// ArticleSource — вложенный объект source из ответа API.
type ArticleSource struct {
	Name string `json:"name"`
}

// PublishedTime разбирает publishedAt. Пустая или некорректная дата
// возвращает нулевое время (самая старая позиция при сортировке).
func (a RawArticle) PublishedTime() time.Time {
	raw := strings.TrimSpace(a.PublishedAt)
	if raw == "" {
		return time.Unix(0, 0).UTC()
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// Summary — результат работы суммаризатора.
type Summary struct {
	TitleJA   string `json:"title_ja"`
	SummaryJA string `json:"summary_ja"`
}

// ProcessedArticle — итоговое представление новости в снапшоте.
type ProcessedArticle struct {
	Title       string `json:"title"`
	TitleJA     string `json:"title_ja"`
	OriginalURL string `json:"original_url"`
	ImageURL    string `json:"image_url"`
	PublishedAt string `json:"published_at"`
	Source      string `json:"source"`
	SummaryJA   string `json:"summary_ja"`
}

// NewProcessedArticle собирает итоговую запись из исходной статьи и резюме.
func NewProcessedArticle(raw RawArticle, summary Summary) ProcessedArticle {
	return ProcessedArticle{
		Title:       raw.Title,
		TitleJA:     summary.TitleJA,
		OriginalURL: raw.URL,
		ImageURL:    raw.URLToImage,
		PublishedAt: raw.PublishedAt,
		Source:      raw.Source.Name,
		SummaryJA:   summary.SummaryJA,
	}
}

// Snapshot — результат одного запуска пайплайна.
type Snapshot struct {
	UpdatedAt time.Time          `json:"updated_at"`
	Articles  []ProcessedArticle `json:"articles"`
}
