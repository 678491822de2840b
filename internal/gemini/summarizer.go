package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maine/ai_news_digest/internal/config"
	"github.com/maine/ai_news_digest/internal/news"
)

const (
	// FallbackSummaryMaxLen — предел длины резервного резюме в символах.
	FallbackSummaryMaxLen = 200
	// UnavailableSummary показывается, если у статьи нет ни описания, ни заголовка.
	UnavailableSummary = "要約を取得できませんでした。"

	ellipsis = "…"
)

// ErrIncompleteReply возвращается, если в ответе модели нет обязательных полей.
var ErrIncompleteReply = errors.New("model reply is missing title_ja or summary_ja")

// Summarizer реализует app.Summarizer, используя Gemini API для перевода
// заголовка и краткого резюме на японском.
type Summarizer struct {
	client GeminiClient
	cfg    config.Gemini
}

// NewSummarizer создаёт новый экземпляр суммаризатора. client может быть nil:
// тогда всегда используется локальный резервный вариант.
func NewSummarizer(client GeminiClient, geminiCfg config.Gemini) *Summarizer {
	return &Summarizer{
		client: client,
		cfg:    geminiCfg,
	}
}

// Summarize реализует app.Summarizer.
// Возвращаемое резюме пригодно к показу всегда; ошибка лишь описывает,
// почему был использован резервный вариант.
func (s *Summarizer) Summarize(ctx context.Context, article news.RawArticle) (news.Summary, error) {
	if s.client == nil {
		return Fallback(article), errors.New("gemini client not configured")
	}

	responseText, err := s.client.GenerateText(ctx, s.cfg.ModelSummary, s.buildPrompt(article))
	if err != nil {
		return Fallback(article), fmt.Errorf("generate text: %w", err)
	}

	summary, err := parseReply(responseText)
	if err != nil {
		return Fallback(article), err
	}
	return summary, nil
}

func (s *Summarizer) buildPrompt(article news.RawArticle) string {
	input, _ := json.Marshal(articleInput{
		Title:       article.Title,
		Description: article.Description,
		Content:     article.Content,
		Source:      article.Source.Name,
	})

	return fmt.Sprintf(`あなたはAI・テクノロジー分野の日本語ニュース編集者です。
以下の英語ニュース記事について、日本語のタイトルと2〜3文の要約を作成してください。
中立的で事実に基づいた文体を使い、本文にない情報を付け加えないでください。
結果は次の形式のJSONオブジェクトのみで返してください。説明文は不要です。
{"title_ja": "<日本語タイトル>", "summary_ja": "<日本語要約>"}

記事:
%s`, string(input))
}

// parseReply разбирает JSON-ответ модели, допуская обёртку в блок кода.
func parseReply(text string) (news.Summary, error) {
	cleaned := stripCodeFence(text)

	var reply news.Summary
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return news.Summary{}, fmt.Errorf("unmarshal reply: %w (raw: %s)", err, text)
	}

	reply.TitleJA = strings.TrimSpace(reply.TitleJA)
	reply.SummaryJA = strings.TrimSpace(reply.SummaryJA)
	if reply.TitleJA == "" || reply.SummaryJA == "" {
		return news.Summary{}, ErrIncompleteReply
	}
	return reply, nil
}

// stripCodeFence срезает ведущий "```json" или "```" и завершающий "```".
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = strings.TrimPrefix(text, "```json")
	case strings.HasPrefix(text, "```"):
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Fallback строит локальное резюме без обращения к модели.
func Fallback(article news.RawArticle) news.Summary {
	summary := strings.TrimSpace(article.Description)
	if summary == "" {
		summary = strings.TrimSpace(article.Title)
	}
	if summary == "" {
		summary = UnavailableSummary
	}

	return news.Summary{
		TitleJA:   article.Title,
		SummaryJA: truncate(summary, FallbackSummaryMaxLen),
	}
}

// truncate обрезает строку до max символов, включая многоточие.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-utf8.RuneCountInString(ellipsis)]) + ellipsis
}

type articleInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
	Source      string `json:"source,omitempty"`
}
