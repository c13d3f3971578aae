package main

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// renderer turns slot markup into terminal-friendly markdown.
type renderer struct {
	conv   *htmltomarkdown.Converter
	policy *bluemonday.Policy
	domain string
}

func newRenderer(domain string) *renderer {
	return &renderer{
		conv: htmltomarkdown.NewConverter(
			htmltomarkdown.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
		domain: domain,
	}
}

// Markdown sanitizes fragment and converts it. On conversion failure it
// falls back to the sanitized text.
func (r *renderer) Markdown(fragment string) string {
	clean := r.policy.Sanitize(fragment)
	md, err := r.conv.ConvertString(clean, htmltomarkdown.WithDomain(r.domain))
	if err != nil {
		return strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(clean))
	}
	return strings.TrimSpace(md)
}
