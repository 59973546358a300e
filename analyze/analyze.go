package analyze

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxHeadings    = 30
	maxCTAs        = 12
	maxImages      = 8
	maxTextPreview = 4000

	// markerAttr tags elements injected by this engine; self-injected
	// structured data must never be reported back as native to the site.
	markerAttr = "data-galuli"
)

var ctaVocabulary = regexp.MustCompile(`(?i)get started|sign up|try|start free|start trial|buy|subscribe|contact|book|schedule|demo|free trial|learn more|explore|get access|download|install`)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Extract builds the full page summary from a parsed document. pageURL may
// be nil; the extraction then relies solely on document content.
func Extract(doc *goquery.Document, pageURL *url.URL) *Page {
	path := ""
	href := ""
	if pageURL != nil {
		path = pageURL.Path
		href = pageURL.String()
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	p := &Page{
		URL:         href,
		Title:       title,
		Description: MetaDescription(doc),
		PageType:    ClassifyPage(path, title),
		Headings:    Headings(doc),
		CTAs:        CTAs(doc),
		Forms:       Forms(doc, path),
		SchemaOrg:   SchemaBlocks(doc),
		OpenGraph:   OpenGraph(doc),
		Images:      Images(doc),
		TextPreview: TextPreview(doc),
		WebMCPTools: []Tool{},
		Lang:        doc.Find("html").AttrOr("lang", ""),
		Canonical:   doc.Find(`link[rel="canonical"]`).First().AttrOr("href", ""),
	}
	return p
}

// Headings collects H1-H3 text in document order. Only the first
// maxHeadings elements are examined; decorative headings outside the
// 3-200 character window are dropped.
func Headings(doc *goquery.Document) []Heading {
	headings := []Heading{}
	doc.Find("h1, h2, h3").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxHeadings {
			return false
		}
		text := collapseSpace(s.Text())
		if len(text) > 2 && len(text) < 200 {
			level := int(goquery.NodeName(s)[1] - '0')
			headings = append(headings, Heading{Level: level, Text: text})
		}
		return true
	})
	return headings
}

// CTAs scans interactive elements whose visible text matches the
// action-verb vocabulary, deduplicated by exact text, capped at maxCTAs.
func CTAs(doc *goquery.Document) []CTA {
	ctas := []CTA{}
	seen := map[string]bool{}
	doc.Find(`a[class*="btn"], a[class*="button"], button, [role="button"], a[class*="cta"]`).
		EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := collapseSpace(s.Text())
			if len(text) > 2 && len(text) < 80 && ctaVocabulary.MatchString(text) && !seen[text] {
				ctas = append(ctas, CTA{Text: text, Href: s.AttrOr("href", "")})
				seen[text] = true
			}
			return len(ctas) < maxCTAs
		})
	return ctas
}

// Forms collects every <form> with at least one named, non-hidden field.
// Field names fall back name, id, placeholder, aria-label in that order.
func Forms(doc *goquery.Document, fallbackAction string) []Form {
	forms := []Form{}
	doc.Find("form").Each(func(_ int, f *goquery.Selection) {
		name := firstAttr(f, "name", "id", "aria-label")
		action := f.AttrOr("action", fallbackAction)
		method := strings.ToUpper(f.AttrOr("method", "GET"))

		fields := []Field{}
		f.Find("input, select, textarea").Each(func(_ int, in *goquery.Selection) {
			typ := fieldType(in)
			if typ == "hidden" {
				return
			}
			fieldName := firstAttr(in, "name", "id", "placeholder", "aria-label")
			if fieldName == "" {
				return
			}
			_, req := in.Attr("required")
			if !req {
				req = in.AttrOr("aria-required", "") == "true"
			}
			fields = append(fields, Field{Name: fieldName, Type: typ, Required: req})
		})

		if len(fields) > 0 {
			forms = append(forms, Form{Name: name, Action: action, Method: method, Fields: fields})
		}
	})
	return forms
}

func fieldType(in *goquery.Selection) string {
	switch goquery.NodeName(in) {
	case "select":
		return "select"
	case "textarea":
		return "textarea"
	}
	if t, ok := in.Attr("type"); ok && t != "" {
		return strings.ToLower(t)
	}
	return "text"
}

// SchemaBlocks parses every JSON-LD script block not marked as
// self-injected. Malformed JSON is silently discarded.
func SchemaBlocks(doc *goquery.Document) []json.RawMessage {
	schemas := []json.RawMessage{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if s.AttrOr(markerAttr, "") == "schema" {
			return
		}
		raw := strings.TrimSpace(s.Text())
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return
		}
		schemas = append(schemas, json.RawMessage(raw))
	})
	return schemas
}

// MetaDescription returns the meta description, preferring the standard
// name over the Open Graph property.
func MetaDescription(doc *goquery.Document) string {
	if d, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		return d
	}
	return doc.Find(`meta[property="og:description"]`).First().AttrOr("content", "")
}

// OpenGraph collects og:* meta properties into a flat map, keyed without
// the og: prefix.
func OpenGraph(doc *goquery.Document) map[string]string {
	og := map[string]string{}
	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		key := strings.TrimPrefix(prop, "og:")
		if key != "" {
			og[key] = s.AttrOr("content", "")
		}
	})
	return og
}

// Images collects up to maxImages meaningfully alt-tagged, non-data-URI
// images. Lazy-loaded sources (data-src) are honored.
func Images(doc *goquery.Document) []Image {
	images := []Image{}
	doc.Find("img[alt]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		src := s.AttrOr("src", "")
		if src == "" {
			src = s.AttrOr("data-src", "")
		}
		if len(alt) > 3 && src != "" && !strings.HasPrefix(src, "data:") {
			images = append(images, Image{Alt: alt, Src: src})
		}
		return len(images) < maxImages
	})
	return images
}

// firstAttr returns the first non-empty attribute among keys.
func firstAttr(s *goquery.Selection, keys ...string) string {
	for _, k := range keys {
		if v, ok := s.Attr(k); ok && v != "" {
			return v
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(s, " "))
}
