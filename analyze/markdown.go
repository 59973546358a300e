package analyze

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

var mdSanitizer = bluemonday.UGCPolicy()

// ContentMarkdown renders the main content region as markdown: the cleaned
// content fragment is sanitized, then converted. If conversion fails or
// produces nothing, the plain text preview is returned instead.
func ContentMarkdown(doc *goquery.Document, sourceURL string) string {
	fragment := ContentHTML(doc)
	if fragment == "" {
		return TextPreview(doc)
	}
	safe := mdSanitizer.Sanitize(fragment)
	md, err := mdConverter.ConvertString(safe, converter.WithDomain(sourceURL))
	if err != nil || strings.TrimSpace(md) == "" {
		return TextPreview(doc)
	}
	return strings.TrimSpace(md)
}
