package content

import (
	"html"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	WordsPerMinute       = 200
	DefaultExcerptLength = 160
	Ellipsis             = "…"
)

var (
	scriptPattern  = regexp.MustCompile(`(?is)<script(?:\s[^>]*)?>.*?</script\s*>`)
	stylePattern   = regexp.MustCompile(`(?is)<style(?:\s[^>]*)?>.*?</style\s*>`)
	commentPattern = regexp.MustCompile(`(?s)<!--.*?-->`)
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
)

// PlainText strips markup from html and collapses whitespace.
func PlainText(body string) string {
	text := scriptPattern.ReplaceAllString(body, " ")
	text = stylePattern.ReplaceAllString(text, " ")
	text = commentPattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// ReadingTimeMinutes estimates reading time at 200 words per minute,
// never less than one minute.
func ReadingTimeMinutes(body string) int {
	words := len(strings.Fields(PlainText(body)))
	minutes := int(math.Round(float64(words) / WordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt returns the plain text of body cut to at most maxLength characters
// on a word boundary, followed by an ellipsis when truncated. A leading word
// longer than maxLength leaves only the ellipsis.
func Excerpt(body string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultExcerptLength
	}

	text := PlainText(body)
	if utf8.RuneCountInString(text) <= maxLength {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxLength])

	idx := strings.LastIndexFunc(cut, unicode.IsSpace)
	if idx <= 0 {
		return Ellipsis
	}
	cut = cut[:idx]

	return strings.TrimRightFunc(cut, unicode.IsSpace) + Ellipsis
}
