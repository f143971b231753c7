package media

import (
	"regexp"
	"sort"
	"strings"
)

// Extraction is pattern based. Unquoted attributes and images served without
// a file extension are not found; such URLs stay untouched by the migration.
var (
	quotedImagePattern = regexp.MustCompile(`(?i)["']([^"'\s<>]+\.(?:jpe?g|png|gif|webp)(?:\?[^"'\s<>]*)?)["']`)
	srcsetPattern      = regexp.MustCompile(`(?i)srcset\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

type match struct {
	pos int
	url string
}

// Extract returns the unique image URLs referenced by html in document order.
func Extract(html string) []string {
	var matches []match

	for _, loc := range quotedImagePattern.FindAllStringSubmatchIndex(html, -1) {
		matches = append(matches, match{pos: loc[2], url: html[loc[2]:loc[3]]})
	}

	for _, loc := range srcsetPattern.FindAllStringSubmatchIndex(html, -1) {
		start, end := loc[2], loc[3]
		if start < 0 {
			start, end = loc[4], loc[5]
		}
		offset := start
		for _, entry := range strings.Split(html[start:end], ",") {
			fields := strings.Fields(entry)
			if len(fields) > 0 && IsImagePath(fields[0]) {
				matches = append(matches, match{pos: offset + strings.Index(entry, fields[0]), url: fields[0]})
			}
			offset += len(entry) + 1
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].pos < matches[j].pos
	})

	seen := make(map[string]bool, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.url] {
			continue
		}
		seen[m.url] = true
		urls = append(urls, m.url)
	}

	return urls
}
