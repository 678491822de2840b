package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/maine/ai_news_digest/internal/news"
)

const (
	// FetchFailedMessage показывается, если снапшот не удалось получить ни из сети, ни из кэша.
	FetchFailedMessage = "ニュースの読み込みに失敗しました。"
	// EmptyMessage показывается для снапшота без статей.
	EmptyMessage = "表示できるニュースはありません。"

	headerTemplate   = "AIニュース（%s 更新）"
	pageTemplate     = " (%d/%d)"
	displayLayout    = "2006/01/02 15:04"
	defaultPageItems = 5
)

// Formatter превращает снапшот в текстовые страницы для терминала.
type Formatter struct {
	perPage  int
	location *time.Location
}

// NewFormatter создаёт новый экземпляр форматтера.
func NewFormatter(perPage int, loc *time.Location) *Formatter {
	if perPage <= 0 {
		perPage = defaultPageItems // дефолтное значение
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{
		perPage:  perPage,
		location: loc,
	}
}

// BuildPages разбивает снапшот на страницы по perPage статей.
func (f *Formatter) BuildPages(snap news.Snapshot) []string {
	header := fmt.Sprintf(headerTemplate, snap.UpdatedAt.In(f.location).Format(displayLayout))
	if len(snap.Articles) == 0 {
		return []string{header + "\n\n" + EmptyMessage}
	}

	total := (len(snap.Articles) + f.perPage - 1) / f.perPage
	pages := make([]string, 0, total)
	for i := 0; i < len(snap.Articles); i += f.perPage {
		end := i + f.perPage
		if end > len(snap.Articles) {
			end = len(snap.Articles)
		}

		var sb strings.Builder
		sb.WriteString(header)
		if total > 1 {
			sb.WriteString(fmt.Sprintf(pageTemplate, len(pages)+1, total))
		}
		for _, article := range snap.Articles[i:end] {
			sb.WriteString("\n\n")
			sb.WriteString(f.formatCard(article))
		}
		pages = append(pages, sb.String())
	}
	return pages
}

// formatCard — одна карточка статьи.
func (f *Formatter) formatCard(a news.ProcessedArticle) string {
	var sb strings.Builder

	title := a.TitleJA
	if title == "" {
		title = a.Title
	}
	sb.WriteString("■ " + title + "\n")
	if a.Title != "" && a.Title != title {
		sb.WriteString("  " + a.Title + "\n")
	}
	if a.SummaryJA != "" {
		sb.WriteString("  " + a.SummaryJA + "\n")
	}

	meta := make([]string, 0, 2)
	if a.Source != "" {
		meta = append(meta, a.Source)
	}
	if ts := FormatTime(a.PublishedAt, f.location); ts != "" {
		meta = append(meta, ts)
	}
	if len(meta) > 0 {
		sb.WriteString("  " + strings.Join(meta, " · ") + "\n")
	}
	if a.ImageURL != "" {
		sb.WriteString("  [image] " + a.ImageURL + "\n")
	}
	sb.WriteString("  " + a.OriginalURL)

	return strings.TrimRight(sb.String(), "\n ")
}

// FormatTime показывает дату публикации в зоне loc. Нераспознанная дата
// возвращается как есть, пустая — пустой строкой.
func FormatTime(raw string, loc *time.Location) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.In(loc).Format(displayLayout)
}
