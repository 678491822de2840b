package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules — неизменяемый набор правил фильтрации, собирается один раз на запуск.
type Rules struct {
	allow          []TermMatcher
	exclude        []TermMatcher
	excludeDomains []string
}

// Document — исходный вид файла правил.
type Document struct {
	AllowKeywords   []string `json:"allow_keywords" yaml:"allow_keywords"`
	ExcludeDomains  []string `json:"exclude_domains" yaml:"exclude_domains"`
	ExcludeKeywords []string `json:"exclude_keywords" yaml:"exclude_keywords"`
}

// New компилирует правила. Пустые термины и домены отбрасываются.
func New(doc Document) Rules {
	r := Rules{
		allow:   compileTerms(doc.AllowKeywords),
		exclude: compileTerms(doc.ExcludeKeywords),
	}
	for _, d := range doc.ExcludeDomains {
		if norm := NormalizeHost(d); norm != "" {
			r.excludeDomains = append(r.excludeDomains, norm)
		}
	}
	return r
}

// Empty возвращает правила по умолчанию: ничего не разрешено, ничего не исключено.
func Empty() Rules {
	return Rules{}
}

// Allow возвращает матчеры разрешающих терминов.
func (r Rules) Allow() []TermMatcher { return r.allow }

// Exclude возвращает матчеры исключающих терминов.
func (r Rules) Exclude() []TermMatcher { return r.exclude }

// ExcludeDomains возвращает нормализованные исключённые домены.
func (r Rules) ExcludeDomains() []string { return r.excludeDomains }

// Read читает и разбирает файл правил. Возвращаемые правила всегда пригодны
// к использованию: при ошибке это Empty(), а причина возвращается отдельно.
func Read(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Empty(), fmt.Errorf("read rules: %w", err)
	}

	doc, err := parseDocument(data)
	if err != nil {
		return Empty(), fmt.Errorf("parse rules: %w", err)
	}
	return New(doc), nil
}

// Load читает правила и никогда не возвращает ошибку: причина сбоя логируется,
// а классификатор с пустыми правилами отклоняет все статьи.
func Load(path string) Rules {
	r, err := Read(path)
	if err != nil {
		slog.Warn("filter rules unavailable, rejecting all articles",
			"path", path, "error", err)
		return r
	}
	slog.Info("filter rules loaded",
		"path", path,
		"allow_keywords", len(r.allow),
		"exclude_keywords", len(r.exclude),
		"exclude_domains", len(r.excludeDomains))
	return r
}

// parseDocument принимает JSON или YAML. Поля, которые отсутствуют или
// не являются массивами, считаются пустыми; нестроковые элементы пропускаются.
func parseDocument(data []byte) (Document, error) {
	var raw map[string]any
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Document{}, fmt.Errorf("unmarshal json: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &raw); err != nil {
			return Document{}, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}

	return Document{
		AllowKeywords:   stringList(raw["allow_keywords"]),
		ExcludeDomains:  stringList(raw["exclude_domains"]),
		ExcludeKeywords: stringList(raw["exclude_keywords"]),
	}, nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out
}

func compileTerms(terms []string) []TermMatcher {
	matchers := make([]TermMatcher, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		matchers = append(matchers, NewTermMatcher(term))
	}
	return matchers
}
