// Package filter narrows scraped link lists before date selection.
package filter

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pfrederiksen/labordata/internal/link"
)

// Regex keeps links whose URL or text matches at least one of the given
// patterns, case-insensitively. A pattern that does not compile is logged
// and never matches. An empty pattern list passes everything through.
func Regex(links []link.Link, patterns []string, log *zap.Logger) []link.Link {
	if len(patterns) == 0 {
		return links
	}

	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			log.Warn("invalid regex filter", zap.String("pattern", p), zap.Error(err))
			continue
		}
		res = append(res, re)
	}

	var kept []link.Link
	for _, l := range links {
		combined := l.URL + " " + l.Text
		for _, re := range res {
			if re.MatchString(combined) {
				kept = append(kept, l)
				break
			}
		}
	}
	return kept
}

// Keyword keeps links whose URL or text contains the keyword,
// case-insensitively. An empty keyword passes everything through.
func Keyword(links []link.Link, keyword string) []link.Link {
	if keyword == "" {
		return links
	}

	needle := strings.ToLower(keyword)
	var kept []link.Link
	for _, l := range links {
		combined := strings.ToLower(l.URL + " " + l.Text)
		if strings.Contains(combined, needle) {
			kept = append(kept, l)
		}
	}
	return kept
}

// Downloadable keeps links that point at downloadable files, dropping
// navigation and other HTML pages.
func Downloadable(links []link.Link) []link.Link {
	var kept []link.Link
	for _, l := range links {
		if link.IsDownloadable(l.URL) {
			kept = append(kept, l)
		}
	}
	return kept
}
