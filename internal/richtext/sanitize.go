// Package richtext turns Telegram's HTML message markup into a sanitized
// document whose text nodes can be addressed by plain-text offsets.
package richtext

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Policy returns the sanitizer applied to every message before it is parsed
// or rendered. It keeps the formatting entities Telegram exports (bold,
// italic, underline, strike, spoiler, code, pre, quote, links) and drops
// everything else while keeping its text.
func Policy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del",
			"code", "pre", "blockquote", "br", "span", "tg-spoiler")
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^tg-spoiler$`)).OnElements("span")
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+-]+$`)).OnElements("code", "pre")
		p.AllowAttrs("href").OnElements("a")
		p.AllowURLSchemes("http", "https", "tg", "mailto")
		p.RequireParseableURLs(true)
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
	return policy
}

// Sanitize returns markup with disallowed elements and attributes removed.
func Sanitize(markup string) string {
	if markup == "" {
		return ""
	}
	return Policy().Sanitize(markup)
}
