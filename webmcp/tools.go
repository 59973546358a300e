// Package webmcp converts discovered forms and page semantics into callable
// tool descriptors and registers them with an agent-capable host.
package webmcp

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/galuli/snippet/analyze"
)

const maxToolNameLen = 40

// Tool is a callable capability derived from the page. Execute is read-only
// with respect to the page; form tools return structured intent without
// performing the submission.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	ReadOnly    bool
	Execute     func(args map[string]any) (any, error)
}

// Registered summarizes a successfully registered tool.
type Registered struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// intentMatchers maps form name/action substrings to purpose descriptions.
// Checked in order; first hit wins.
var intentMatchers = []struct{ key, desc string }{
	{"signup", "Sign up for an account or start a free trial"},
	{"contact", "Send a contact or support request message"},
	{"login", "Log in to an existing account"},
	{"search", "Search the site for relevant content"},
	{"subscribe", "Subscribe to newsletter or email updates"},
	{"booking", "Book an appointment or schedule a demo"},
	{"checkout", "Complete a purchase or checkout"},
	{"demo", "Request a product demonstration"},
}

// commonRequired lists field names treated as mandatory even without an
// explicit required attribute.
var commonRequired = map[string]bool{
	"email": true, "name": true, "message": true,
	"query": true, "phone": true, "company": true,
}

var slugRE = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// BuildTools synthesizes the tool list for an extracted page: page info and
// page content always, pricing on pricing pages, plus one tool per form.
// Tool names are unique within the returned batch.
func BuildTools(p *analyze.Page) []Tool {
	emptySchema := map[string]any{"type": "object", "properties": map[string]any{}, "required": []string{}}

	tools := []Tool{
		{
			Name:        "get_page_info",
			Description: "Get structured information about this page: type, title, URL, description, headings, and available actions.",
			InputSchema: emptySchema,
			ReadOnly:    true,
			Execute: func(map[string]any) (any, error) {
				return map[string]any{
					"page_type":   p.PageType,
					"title":       p.Title,
					"url":         p.URL,
					"description": p.Description,
					"headings":    p.Headings,
					"ctas":        p.CTAs,
				}, nil
			},
		},
		{
			Name:        "get_page_content",
			Description: "Get the full readable text content of this page, cleaned of navigation and footer noise.",
			InputSchema: emptySchema,
			ReadOnly:    true,
			Execute: func(map[string]any) (any, error) {
				return map[string]any{
					"text":  p.TextPreview,
					"url":   p.URL,
					"title": p.Title,
				}, nil
			},
		},
	}

	if p.PageType == analyze.TypePricing {
		tools = append(tools, Tool{
			Name:        "get_pricing",
			Description: "Get all pricing plans, tiers, features included, and costs for this service.",
			InputSchema: emptySchema,
			ReadOnly:    true,
			Execute: func(map[string]any) (any, error) {
				return map[string]any{
					"pricing_url": p.URL,
					"content":     p.TextPreview,
					"schema_data": p.SchemaOrg,
				}, nil
			},
		})
	}

	used := map[string]bool{}
	for _, t := range tools {
		used[t.Name] = true
	}
	for _, form := range p.Forms {
		if len(form.Fields) == 0 {
			continue
		}
		form := form
		name := uniqueName(formToolName(form, p.PageType), used)
		tools = append(tools, Tool{
			Name:        name,
			Description: formDescription(form, p.PageType),
			InputSchema: formInputSchema(form),
			Execute: func(args map[string]any) (any, error) {
				// Structured intent only: the calling agent decides
				// whether and how to submit.
				return map[string]any{
					"form_action":     form.Action,
					"form_method":     form.Method,
					"fields":          form.Fields,
					"provided_params": args,
					"page_url":        p.URL,
				}, nil
			},
		})
	}

	return tools
}

// formToolName slugifies the form name (or action), lower-cased and capped
// at maxToolNameLen.
func formToolName(form analyze.Form, pageType analyze.PageType) string {
	base := form.Name
	if base == "" {
		base = form.Action
	}
	if base == "" {
		base = string(pageType)
	}
	slug := slugRE.ReplaceAllString(base, "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > maxToolNameLen {
		slug = slug[:maxToolNameLen]
		slug = strings.TrimRight(slug, "_")
	}
	slug = strings.ToLower(slug)
	if slug == "" {
		return "form_submit"
	}
	return slug
}

// uniqueName suffixes a numeric counter on collision within a batch.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		used[name] = true
		return name
	}
	for i := 2; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		candidate := name
		if len(candidate)+len(suffix) > maxToolNameLen {
			candidate = candidate[:maxToolNameLen-len(suffix)]
		}
		candidate += suffix
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// formDescription matches the form's name and action against the intent
// vocabulary, falling back to a generic submit description.
func formDescription(form analyze.Form, pageType analyze.PageType) string {
	names := make([]string, 0, len(form.Fields))
	for _, f := range form.Fields {
		names = append(names, f.Name)
	}
	fieldList := strings.Join(names, ", ")

	haystack := strings.ToLower(form.Name + " " + form.Action)
	for _, m := range intentMatchers {
		if strings.Contains(haystack, m.key) {
			return m.desc + ". Required fields: " + fieldList
		}
	}
	page := string(pageType)
	if page == "" {
		page = "page"
	}
	return "Submit the " + page + " form. Fields: " + fieldList
}

// formInputSchema derives a JSON-Schema-like object from the field list.
// Required fields come both from explicit markup and from the
// commonly-mandatory name list.
func formInputSchema(form analyze.Form) map[string]any {
	properties := map[string]any{}
	required := []string{}

	for _, f := range form.Fields {
		var jsType string
		switch f.Type {
		case "number":
			jsType = "number"
		case "checkbox":
			jsType = "boolean"
		default:
			jsType = "string"
		}
		properties[f.Name] = map[string]any{
			"type":        jsType,
			"description": fieldLabel(f.Name),
		}
		if f.Required || commonRequired[strings.ToLower(f.Name)] {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// fieldLabel turns a field name into a human label: first letter upper,
// underscores to spaces.
func fieldLabel(name string) string {
	label := strings.ReplaceAll(name, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
