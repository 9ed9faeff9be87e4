// Package sanitize restricts user-authored block HTML to a safe allowlist.
// Every piece of block content passes through here before it is persisted
// or rendered into an export.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer is the narrow contract the editing engine depends on.
type Sanitizer interface {
	HTML(dirty string) string
}

// Policy sanitizes HTML fragments with the block-content allowlist:
// headings, paragraphs, lists, inline emphasis, links, spans/divs, images
// and simple tables. Event handlers, scripts and unknown protocols are
// stripped.
type Policy struct {
	policy *bluemonday.Policy
}

func NewPolicy() *Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "ul", "ol", "li",
		"strong", "em", "u", "s", "strike",
		"a", "span", "div",
		"img",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href", "target", "rel").OnElements("a")
	p.AllowAttrs("class", "style").Globally()
	p.AllowAttrs("src", "alt", "width", "height").OnElements("img")
	p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
	p.AllowStandardURLs()
	p.AllowDataURIImages()

	return &Policy{policy: p}
}

// HTML returns the fragment restricted to the allowlist. Empty input stays
// empty.
func (s *Policy) HTML(dirty string) string {
	if dirty == "" {
		return ""
	}
	return s.policy.Sanitize(dirty)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// StripHTML reduces a fragment to its text content. Used for search
// indexing and DOCX paragraph text.
func StripHTML(html string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(html, ""))
}

// Filename strips characters that are unsafe in a download filename.
func Filename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
