package content

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lysyi3m/post-migrate/app/media"
)

var (
	blockCommentPattern = regexp.MustCompile(`<!--\s*/?wp:[\s\S]*?-->`)
	doctypePattern      = regexp.MustCompile(`(?i)<!DOCTYPE[^>]*>`)
	headPattern         = regexp.MustCompile(`(?is)<head(?:\s[^>]*)?>.*?</head\s*>`)
	wrapperTagPattern   = regexp.MustCompile(`(?i)</?(?:html|body)(?:\s[^>]*)?>`)
	emptyParagraph      = regexp.MustCompile(`(?i)<p(?:\s[^>]*)?>\s*</p\s*>`)
	excessNewlines      = regexp.MustCompile(`\n{3,}`)
)

// Normalizer turns a legacy post body into destination HTML. All transforms
// are best effort: unmatched patterns are left alone and nothing fails.
type Normalizer struct {
	legacyUploads *regexp.Regexp
	publicBaseURL string
}

func NewNormalizer(legacyHost, uploadPathPrefix, publicBaseURL string) *Normalizer {
	pattern := `(?i)(?:https?:)?//` + regexp.QuoteMeta(legacyHost) + regexp.QuoteMeta(uploadPathPrefix) + `([^"'\s<>]*)`

	return &Normalizer{
		legacyUploads: regexp.MustCompile(pattern),
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (n *Normalizer) Normalize(html string, mapping media.Mapping) string {
	cleaned := Clean(html)
	rewritten := n.Rewrite(cleaned, mapping)
	return normalizeWhitespace(rewritten)
}

// Clean strips block-editor comments and any document wrapper, keeping the
// inner body content.
func Clean(html string) string {
	html = blockCommentPattern.ReplaceAllString(html, "")
	html = doctypePattern.ReplaceAllString(html, "")
	html = headPattern.ReplaceAllString(html, "")
	html = wrapperTagPattern.ReplaceAllString(html, "")

	// nested empty paragraphs collapse one level per pass
	for {
		stripped := emptyParagraph.ReplaceAllString(html, "")
		if stripped == html {
			return html
		}
		html = stripped
	}
}

// Rewrite replaces every mapped URL literally, then moves any remaining
// legacy upload URL to the public base URL keeping its path suffix.
// Identity entries in mapping are left as they are.
// The fallback also rewrites upload-path URLs that were never classified as
// images (PDFs, archives) when they live under the upload prefix.
func (n *Normalizer) Rewrite(html string, mapping media.Mapping) string {
	if len(mapping) > 0 {
		html = replaceLiteral(html, mapping)
	}

	return n.legacyUploads.ReplaceAllStringFunc(html, func(match string) string {
		// srcset lists without descriptors leave a trailing comma on the match
		bare := strings.TrimRight(match, ",")
		if destinationURL, ok := mapping[bare]; ok && destinationURL == bare {
			return match
		}
		suffix := n.legacyUploads.FindStringSubmatch(match)[1]
		return n.publicBaseURL + "/" + suffix
	})
}

// Longer keys go first so a URL that is a prefix of another mapped URL
// cannot clobber part of it. Identity entries stay in the replacer, mapped to
// themselves, so they shield longer legacy URLs from shorter migrated keys.
func replaceLiteral(html string, mapping media.Mapping) string {
	keys := make([]string, 0, len(mapping))
	for legacyURL := range mapping {
		if legacyURL == "" {
			continue
		}
		keys = append(keys, legacyURL)
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, len(keys)*2)
	for _, key := range keys {
		pairs = append(pairs, key, mapping[key])
	}

	return strings.NewReplacer(pairs...).Replace(html)
}

func normalizeWhitespace(html string) string {
	html = strings.ReplaceAll(html, "\r\n", "\n")
	html = excessNewlines.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}
