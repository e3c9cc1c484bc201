// Package render turns the writer stage's Markdown into sanitised HTML.
package render

import (
	"bytes"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// ReportPolicy allows the formatting a trip report uses (headings, lists,
// tables, emphasis, links) and strips scripts, event handlers and unsafe
// URLs.
func ReportPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowURLSchemes("http", "https", "mailto")
		p.AllowRelativeURLs(true)
		p.RequireParseableURLs(true)
		policy = p
	})
	return policy
}

// Markdown converts raw worker output to HTML. Markup that is already HTML
// passes through unchanged, so rendering twice gives the same result. If
// conversion fails the raw text is returned.
func Markdown(raw string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(raw), &buf); err != nil {
		return raw
	}
	return strings.TrimRight(ReportPolicy().Sanitize(buf.String()), "\n")
}
