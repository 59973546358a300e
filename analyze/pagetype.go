package analyze

import (
	"regexp"
	"strings"
)

// PageType classifies a page by route convention.
type PageType string

const (
	TypeHomepage PageType = "homepage"
	TypePricing  PageType = "pricing"
	TypeDocs     PageType = "docs"
	TypeBlog     PageType = "blog"
	TypeAbout    PageType = "about"
	TypeContact  PageType = "contact"
	TypeProduct  PageType = "product"
	TypeSignup   PageType = "signup"
	TypeLogin    PageType = "login"
	TypeLegal    PageType = "legal"
	TypeOther    PageType = "other"
)

// pathPatterns is checked in order; the first match wins, so path
// classification always takes precedence over the title fallback.
var pathPatterns = []struct {
	re *regexp.Regexp
	t  PageType
}{
	{regexp.MustCompile(`/(pricing|plans|price)`), TypePricing},
	{regexp.MustCompile(`/(docs|documentation|api|reference|guide|manual)`), TypeDocs},
	{regexp.MustCompile(`/(blog|news|articles?|post|insights?)`), TypeBlog},
	{regexp.MustCompile(`/(about|team|company|story|mission)`), TypeAbout},
	{regexp.MustCompile(`/(contact|support|help|faq)`), TypeContact},
	{regexp.MustCompile(`/(features?|product|solutions?|overview)`), TypeProduct},
	{regexp.MustCompile(`/(signup|register|trial|start|join)`), TypeSignup},
	{regexp.MustCompile(`/(login|signin|auth)`), TypeLogin},
	{regexp.MustCompile(`/(legal|privacy|terms|tos)`), TypeLegal},
}

var titlePatterns = []struct {
	re *regexp.Regexp
	t  PageType
}{
	{regexp.MustCompile(`pricing|plans`), TypePricing},
	{regexp.MustCompile(`docs|documentation`), TypeDocs},
	{regexp.MustCompile(`blog|article`), TypeBlog},
}

// ClassifyPage derives a PageType from the URL path, falling back to the
// document title, falling back to "other". Pure and deterministic.
func ClassifyPage(path, title string) PageType {
	path = strings.ToLower(path)
	title = strings.ToLower(title)

	switch path {
	case "/", "", "/index", "/home":
		return TypeHomepage
	}
	for _, p := range pathPatterns {
		if p.re.MatchString(path) {
			return p.t
		}
	}
	for _, p := range titlePatterns {
		if p.re.MatchString(title) {
			return p.t
		}
	}
	return TypeOther
}
