package inject

import (
	"encoding/json"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/galuli/snippet/analyze"
)

const fallbackDescription = "Website powered by Galuli AI Readability."

// PlanSchema decides whether a JSON-LD block should be injected. On a
// homepage with no structured data at all it synthesizes a three-node
// Organization/WebSite/WebPage graph; on any other page without structured
// data, a minimal WebPage node. Pages that already carry JSON-LD are left
// alone: the engine never supplements or merges existing entity claims.
//
// The returned insertion is tagged with MarkerAttr so the analyzer excludes
// it from the native schema payload, and so re-planning yields nil.
func PlanSchema(doc *goquery.Document, pageType analyze.PageType, domain string, pageURL *url.URL) *Insertion {
	if doc.Find(`script[type="application/ld+json"]`).Length() > 0 {
		return nil
	}
	if pageURL == nil {
		return nil
	}

	origin := pageURL.Scheme + "://" + pageURL.Host
	href := pageURL.String()

	siteName := doc.Find(`meta[property="og:site_name"]`).First().AttrOr("content", domain)
	description := analyze.MetaDescription(doc)
	if description == "" {
		description = fallbackDescription
	}
	title := doc.Find("title").First().Text()

	var schema any
	if pageType == analyze.TypeHomepage {
		// Only the homepage node borrows the site name for a missing
		// title; inner pages keep it empty.
		pageName := title
		if pageName == "" {
			pageName = siteName
		}
		schema = map[string]any{
			"@context": "https://schema.org",
			"@graph": []any{
				map[string]any{
					"@type":       "Organization",
					"@id":         origin + "/#organization",
					"name":        siteName,
					"url":         origin,
					"description": description,
				},
				map[string]any{
					"@type":     "WebSite",
					"@id":       origin + "/#website",
					"url":       origin,
					"name":      siteName,
					"publisher": map[string]any{"@id": origin + "/#organization"},
					"potentialAction": map[string]any{
						"@type": "SearchAction",
						"target": map[string]any{
							"@type":       "EntryPoint",
							"urlTemplate": origin + "/?s={search_term_string}",
						},
						"query-input": "required name=search_term_string",
					},
				},
				map[string]any{
					"@type":       "WebPage",
					"@id":         href + "#webpage",
					"url":         href,
					"name":        pageName,
					"description": description,
					"isPartOf":    map[string]any{"@id": origin + "/#website"},
				},
			},
		}
	} else {
		node := map[string]any{
			"@context":    "https://schema.org",
			"@type":       "WebPage",
			"url":         href,
			"name":        title,
			"description": description,
			"isPartOf":    map[string]any{"@id": origin + "/#website"},
		}
		if img, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && img != "" {
			node["image"] = img
		}
		schema = node
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	return &Insertion{
		Tag:   "script",
		Attrs: attrs("type", "application/ld+json", MarkerAttr, "schema"),
		Text:  string(data),
	}
}
