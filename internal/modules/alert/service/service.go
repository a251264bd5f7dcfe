package service

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cwmonitor/fraud-monitor-bot/internal/modules/alert/domain"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/textutil"
	"github.com/samber/lo"
)

// Service evaluates the configured alert rules against message text.
// Keywords are always treated as literal strings, never as patterns.
type Service struct {
	rules []domain.Rule
}

// New creates a matcher over the given rule set.
func New(rules []domain.Rule) *Service {
	return &Service{rules: rules}
}

// Rules returns the active rule set.
func (s *Service) Rules() []domain.Rule {
	return s.rules
}

// Matches reports whether any rule matches text. Rules are ORed and the
// scan stops at the first hit.
func (s *Service) Matches(text string) bool {
	clean := textutil.StripControl(text)
	if clean == "" {
		return false
	}
	for _, rule := range s.rules {
		if keyword, ok := ruleMatch(clean, rule); ok {
			slog.Info("alert rule triggered", "keyword", keyword, "description", rule.Description)
			return true
		}
	}
	return false
}

// MatchedKeywords collects every keyword, across every rule, that matches
// text, deduplicated. Unlike Matches it never short-circuits.
func (s *Service) MatchedKeywords(text string) []string {
	clean := textutil.StripControl(text)
	if clean == "" {
		return nil
	}
	var matched []string
	for _, rule := range s.rules {
		if keyword, ok := ruleMatch(clean, rule); ok {
			matched = append(matched, keyword)
		}
	}
	return lo.Uniq(matched)
}

func ruleMatch(text string, rule domain.Rule) (string, bool) {
	// An empty keyword never matches anything.
	if rule.Keyword == "" {
		return "", false
	}

	subject := text
	needle := rule.Keyword
	if !rule.CaseSensitive {
		subject = strings.ToLower(subject)
		needle = strings.ToLower(needle)
	}

	if rule.WholeWordOnly {
		if containsWholeWord(subject, needle) {
			return rule.Keyword, true
		}
		return "", false
	}
	if strings.Contains(subject, needle) {
		return rule.Keyword, true
	}
	return "", false
}

// containsWholeWord looks for needle as a word-bounded substring of
// subject. A word rune is a Unicode letter, digit or underscore; anything
// else, or the string edge, is a boundary. This covers accented scripts
// predictably: "cloudwalk" does not match inside "cloudwalké".
func containsWholeWord(subject, needle string) bool {
	for from := 0; ; {
		idx := strings.Index(subject[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)
		if boundaryBefore(subject, start) && boundaryAfter(subject, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
