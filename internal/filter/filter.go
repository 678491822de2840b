package filter

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/maine/ai_news_digest/internal/news"
	"github.com/maine/ai_news_digest/internal/rules"
)

// Reason объясняет решение классификатора.
type Reason string

const (
	ReasonRelevant        Reason = "relevant"
	ReasonExcludedDomain  Reason = "excluded_domain"
	ReasonNoAllowMatch    Reason = "no_allow_match"
	ReasonExcludedKeyword Reason = "excluded_keyword"
	ReasonRemoved         Reason = "removed"
)

// Decision — результат классификации одной статьи.
type Decision struct {
	Keep   bool
	Reason Reason
	// Term — сработавший термин или домен, если есть.
	Term string
}

// Classify решает, оставить ли статью, и сообщает причину.
func Classify(article news.RawArticle, r rules.Rules) Decision {
	blob := strings.ToLower(strings.Join([]string{
		article.Title,
		article.Description,
		article.Content,
		article.Source.Name,
	}, " "))

	host := hostname(article.URL)
	if host != "" {
		for _, domain := range r.ExcludeDomains() {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return Decision{Reason: ReasonExcludedDomain, Term: domain}
			}
		}
	}

	allowHit := ""
	for _, m := range r.Allow() {
		if m.Match(blob) {
			allowHit = m.Term()
			break
		}
	}
	if allowHit == "" {
		return Decision{Reason: ReasonNoAllowMatch}
	}

	// Исключающий термин побеждает всегда, какие бы разрешающие ни совпали.
	for _, m := range r.Exclude() {
		if m.Match(blob) {
			return Decision{Reason: ReasonExcludedKeyword, Term: m.Term()}
		}
	}

	return Decision{Keep: true, Reason: ReasonRelevant, Term: allowHit}
}

// IsRelevant сообщает, проходит ли статья правила фильтрации.
func IsRelevant(article news.RawArticle, r rules.Rules) bool {
	return Classify(article, r).Keep
}

// Filter отсеивает отозванные и нерелевантные статьи.
type Filter struct {
	rules rules.Rules
}

// New создаёт экземпляр фильтра.
func New(r rules.Rules) *Filter {
	return &Filter{rules: r}
}

// Apply реализует app.Filter.
func (f *Filter) Apply(ctx context.Context, articles []news.RawArticle) []news.RawArticle {
	_ = ctx // фильтр не блокируется

	filtered := make([]news.RawArticle, 0, len(articles))
	for _, article := range articles {
		if article.Title == news.RemovedTitle {
			slog.Debug("article dropped", "url", article.URL, "reason", ReasonRemoved)
			continue
		}

		d := Classify(article, f.rules)
		if !d.Keep {
			slog.Debug("article dropped", "url", article.URL, "reason", d.Reason, "term", d.Term)
			continue
		}
		filtered = append(filtered, article)
	}
	return filtered
}

// hostname возвращает нормализованный хост. Некорректный URL даёт пустую строку.
func hostname(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return rules.NormalizeHost(u.Hostname())
}
