package media

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

type Class int

const (
	Unrelated Class = iota
	NeedsMigration
	AlreadyMigrated
)

func (c Class) String() string {
	switch c {
	case NeedsMigration:
		return "needs_migration"
	case AlreadyMigrated:
		return "already_migrated"
	default:
		return "unrelated"
	}
}

var imageExtPattern = regexp.MustCompile(`(?i)\.(?:jpe?g|png|gif|webp)$`)

// Mapping maps legacy image URLs to their destination URLs for one post.
type Mapping map[string]string

// Classifier decides what to do with an image URL found in a post body.
// It only compares hosts, so it is safe for concurrent use.
type Classifier struct {
	legacyHost       string
	destinationHost  string
	uploadPathPrefix string
}

func NewClassifier(legacyHost, destinationHost, uploadPathPrefix string) *Classifier {
	return &Classifier{
		legacyHost:       strings.ToLower(legacyHost),
		destinationHost:  strings.ToLower(destinationHost),
		uploadPathPrefix: uploadPathPrefix,
	}
}

func (c *Classifier) Classify(rawURL string) Class {
	u, ok := parseAbsolute(rawURL)
	if !ok {
		return Unrelated
	}

	host := strings.ToLower(u.Host)
	switch {
	case c.destinationHost != "" && host == c.destinationHost:
		return AlreadyMigrated
	case host == c.legacyHost && IsImagePath(u.Path):
		return NeedsMigration
	default:
		return Unrelated
	}
}

// SuggestedPath returns the object path a legacy URL should be stored under:
// the part after the upload prefix, or the whole path when the prefix is absent.
func (c *Classifier) SuggestedPath(rawURL string) string {
	u, ok := parseAbsolute(rawURL)
	if !ok {
		return ""
	}

	p := u.Path
	if idx := strings.Index(p, c.uploadPathPrefix); idx >= 0 {
		return p[idx+len(c.uploadPathPrefix):]
	}
	return strings.TrimPrefix(path.Clean(p), "/")
}

// FetchURL returns the absolute form of rawURL used to download it, or ""
// when rawURL is not an absolute http(s) URL.
func FetchURL(rawURL string) string {
	u, ok := parseAbsolute(rawURL)
	if !ok {
		return ""
	}
	return u.String()
}

// IsImagePath reports whether p ends in a supported image extension.
// A trailing query string is ignored.
func IsImagePath(p string) bool {
	if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}
	return imageExtPattern.MatchString(p)
}

func parseAbsolute(rawURL string) (*url.URL, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}
