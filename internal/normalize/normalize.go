// Package normalize приводит URL и домены к каноническому виду хоста,
// по которому сравниваются маппинги и записи журнала посещений.
package normalize

import (
	"net/url"
	"strings"
)

// maxPasses ограничивает повторные проходы Domain; на практике хватает двух
const maxPasses = 8

var schemePrefixes = []string{"https://", "http://"}

// Domain убирает схему, путь, порт и ведущий "www.", приводит к нижнему регистру.
// Проход повторяется, пока результат меняется: Domain(Domain(s)) == Domain(s)
func Domain(input string) string {
	out := domainOnce(input)
	for i := 0; i < maxPasses; i++ {
		next := domainOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func domainOnce(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}

	for _, prefix := range schemePrefixes {
		if hasPrefixFold(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	if hasPrefixFold(s, "www.") {
		s = s[len("www."):]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}

	return strings.ToLower(strings.TrimSpace(s))
}

// ExtractHost возвращает хост из строки, похожей на URL; без схемы пробует "http://".
// Если хост не найден, строка возвращается как есть
func ExtractHost(raw string) string {
	if raw == "" {
		return ""
	}

	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Hostname()
	}

	if hasScheme(raw) {
		return raw
	}

	if u, err := url.Parse("http://" + raw); err == nil && u.Host != "" {
		return u.Hostname()
	}

	return raw
}

func hasScheme(s string) bool {
	for _, prefix := range schemePrefixes {
		if hasPrefixFold(s, prefix) {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
