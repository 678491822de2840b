package rules

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// shortTermMaxLen — термины такой длины и короче матчатся только целым словом,
// иначе "ai" находился бы внутри "said".
const shortTermMaxLen = 3

// TermMatcher — скомпилированный шаблон для одного буквального термина.
type TermMatcher struct {
	term string
	re   *regexp.Regexp
}

// NewTermMatcher экранирует термин и компилирует регистронезависимый шаблон.
func NewTermMatcher(term string) TermMatcher {
	pattern := regexp.QuoteMeta(term)
	if utf8.RuneCountInString(term) <= shortTermMaxLen {
		pattern = `\b` + pattern + `\b`
	}
	return TermMatcher{
		term: term,
		re:   regexp.MustCompile(`(?i)` + pattern),
	}
}

// Term возвращает исходный термин.
func (m TermMatcher) Term() string {
	return m.term
}

// Match сообщает, встречается ли термин в тексте.
func (m TermMatcher) Match(text string) bool {
	if m.re == nil {
		return false
	}
	return m.re.MatchString(text)
}

// NormalizeHost приводит имя хоста или домена к каноническому виду:
// нижний регистр, без завершающей точки, в ASCII-форме IDNA.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	if ascii, err := idna.Punycode.ToASCII(host); err == nil {
		return ascii
	}
	return host
}
