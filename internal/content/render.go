// Package content renders the markdown subset used in post bodies.
//
// Only three constructs are recognised: images ![alt](url), links
// [text](url) and bare http(s) image URLs. Everything else is emitted as
// escaped literal text. This is not a markdown parser and should not grow
// into one.
package content

import (
	"regexp"
	"strings"
)

// UploadsPrefix marks a URL as relative to the upload storage.
const UploadsPrefix = "/uploads/"

var (
	imagePattern     = regexp.MustCompile(`!\[[^\]]*\]\(\s*([^)\s]+)(?:\s+"[^"]*")?\s*\)`)
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\(\s*([^)\s]+)(?:\s+"[^"]*")?\s*\)`)
	bareImagePattern = regexp.MustCompile(`(?i)https?://[^\s'"]+\.(?:png|jpe?g|gif|webp|bmp)`)

	leadingQuotes  = regexp.MustCompile(`^"+`)
	trailingQuotes = regexp.MustCompile(`"+$`)
	trailingParens = regexp.MustCompile(`\)+$`)
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Rule is a single pattern→replacement pass. Rules are pure and run in order,
// each over the previous rule's output.
type Rule struct {
	Name  string
	Apply func(string) string
}

// Renderer turns post content into HTML.
type Renderer struct {
	apiBase string
	rules   []Rule
}

// NewRenderer returns a renderer that rewrites /uploads/ URLs against apiBase.
func NewRenderer(apiBase string) *Renderer {
	base := strings.TrimRight(apiBase, "/")
	return &Renderer{
		apiBase: base,
		rules: []Rule{
			{Name: "escape", Apply: EscapeHTML},
			ImageRule(base),
			LinkRule(),
			BareImageRule(base),
		},
	}
}

// Rules returns the ordered passes applied by Render.
func (r *Renderer) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Render converts text to HTML. The result is safe to embed as markup.
func (r *Renderer) Render(text string) string {
	if text == "" {
		return ""
	}
	out := text
	for _, rule := range r.rules {
		out = rule.Apply(out)
	}
	return out
}

// FirstImageURL returns the URL of the first markdown image in text, or "".
func (r *Renderer) FirstImageURL(text string) string {
	if text == "" {
		return ""
	}
	m := imagePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	u := CleanURL(m[1])
	if u == "" {
		return ""
	}
	return absolutize(r.apiBase, u)
}

// EscapeHTML escapes &, < and >. Quotes are left alone.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// CleanURL strips the wrapping that malformed markdown tends to leave around
// a URL: angle brackets, stray double quotes and unmatched closing parens.
func CleanURL(raw string) string {
	u := strings.TrimSpace(raw)
	u = strings.TrimPrefix(u, "<")
	u = strings.TrimSuffix(u, ">")
	u = leadingQuotes.ReplaceAllString(u, "")
	u = trailingQuotes.ReplaceAllString(u, "")
	return trailingParens.ReplaceAllString(u, "")
}

// ImageRule replaces ![alt](url) with an <img> tag.
func ImageRule(apiBase string) Rule {
	return Rule{
		Name: "image",
		Apply: func(s string) string {
			return imagePattern.ReplaceAllStringFunc(s, func(match string) string {
				sub := imagePattern.FindStringSubmatch(match)
				u := absolutize(apiBase, CleanURL(sub[1]))
				return `<img src="` + attrValue(u) + `" alt="" />` + "\n"
			})
		},
	}
}

// LinkRule replaces [text](url) with an anchor opening in a new tab. Link
// URLs are never rewritten.
func LinkRule() Rule {
	return Rule{
		Name: "link",
		Apply: func(s string) string {
			return linkPattern.ReplaceAllStringFunc(s, func(match string) string {
				sub := linkPattern.FindStringSubmatch(match)
				u := CleanURL(sub[2])
				return `<a href="` + attrValue(u) + `" target="_blank" rel="noopener noreferrer">` + EscapeHTML(sub[1]) + `</a>`
			})
		},
	}
}

// BareImageRule turns bare image URLs into <img> tags unless they already sit
// inside a tag's attributes.
func BareImageRule(apiBase string) Rule {
	return Rule{
		Name: "bare-image",
		Apply: func(s string) string {
			locs := bareImagePattern.FindAllStringIndex(s, -1)
			if len(locs) == 0 {
				return s
			}
			var b strings.Builder
			last := 0
			for _, loc := range locs {
				if insideTag(s[loc[1]:]) {
					continue
				}
				b.WriteString(s[last:loc[0]])
				b.WriteString(`<img src="` + absolutize(apiBase, s[loc[0]:loc[1]]) + `" alt="" />`)
				last = loc[1]
			}
			b.WriteString(s[last:])
			return b.String()
		},
	}
}

// insideTag reports whether rest reaches a '>' before any '<'.
func insideTag(rest string) bool {
	i := strings.IndexAny(rest, "<>")
	return i >= 0 && rest[i] == '>'
}

// attrValue keeps a URL from closing the attribute it is written into.
func attrValue(u string) string {
	return strings.ReplaceAll(u, `"`, "%22")
}

func absolutize(apiBase, u string) string {
	if strings.HasPrefix(u, UploadsPrefix) {
		return apiBase + u
	}
	return u
}
