// Package analyze extracts a structured summary from a parsed HTML page:
// type classification, headings, calls to action, forms, embedded
// structured data, Open Graph tags, images, and a cleaned text excerpt.
//
// Every extractor tolerates an empty or malformed document and returns
// empty collections rather than failing.
package analyze

import "encoding/json"

// Heading is one H1-H3 element with its level.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// CTA is a call-to-action element: visible text plus target.
type CTA struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Field describes one non-hidden form input.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Form describes a <form> with at least one named, non-hidden field.
type Form struct {
	Name   string  `json:"name"`
	Action string  `json:"action"`
	Method string  `json:"method"`
	Fields []Field `json:"fields"`
}

// Image is a meaningfully alt-tagged page image.
type Image struct {
	Alt string `json:"alt"`
	Src string `json:"src"`
}

// Tool summarizes a registered agent tool for the outbound payload.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// Page is the aggregate extraction result pushed to the backend.
type Page struct {
	URL             string            `json:"url"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	PageType        PageType          `json:"page_type"`
	Headings        []Heading         `json:"headings"`
	CTAs            []CTA             `json:"ctas"`
	Forms           []Form            `json:"forms"`
	SchemaOrg       []json.RawMessage `json:"schema_org"`
	OpenGraph       map[string]string `json:"open_graph"`
	Images          []Image           `json:"images"`
	TextPreview     string            `json:"text_preview"`
	WebMCPTools     []Tool            `json:"webmcp_tools"`
	WebMCPSupported bool              `json:"webmcp_supported"`
	Lang            string            `json:"lang,omitempty"`
	Canonical       string            `json:"canonical,omitempty"`
}
