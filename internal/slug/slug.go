// Package slug derives URL-safe identifiers from post titles.
package slug

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a title to a lowercase, hyphen-separated slug.
// Accented letters are reduced to their base letter; every other run of
// characters outside [a-z0-9] becomes a single hyphen.
func Slugify(s string) string {
	if s == "" {
		return ""
	}

	// Decompose and drop the combining marks
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	result = strings.ToLower(result)
	result = nonAlnum.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// Canonical picks the slug used when linking to a post: the slug of the
// current title, else the stored slug, else the id.
func Canonical(title, stored, id string) string {
	if s := Slugify(title); s != "" {
		return s
	}
	if stored != "" {
		return stored
	}
	return id
}

// PostURL returns the public page URL for a canonical slug. origin may be
// empty, in which case the URL is relative.
func PostURL(origin, canonical string) string {
	if canonical == "" {
		return ""
	}
	return strings.TrimSuffix(origin, "/") + "/p/" + canonical
}

// ShareURL builds an X (Twitter) intent link for a post.
func ShareURL(title, postURL string) string {
	return "https://x.com/intent/tweet?text=" + encodeComponent(title) + "&url=" + encodeComponent(postURL)
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
