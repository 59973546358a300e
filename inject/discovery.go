package inject

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// PlanDiscovery decides which discovery elements are missing from the head:
// llms.txt links (hosted and site-native), AI plugin manifest links (hosted
// and well-known), a permissive robots meta (only when none exists, so an
// existing policy is never overridden), the verification meta, and a
// canonical link (only when none exists).
func PlanDiscovery(doc *goquery.Document, domain, apiBase string, pageURL *url.URL) []Insertion {
	var plan []Insertion

	if doc.Find(`link[rel="llms"]`).Length() == 0 {
		plan = append(plan, Insertion{
			Tag:   "link",
			Attrs: attrs("rel", "llms", "href", apiBase+"/registry/"+domain+"/llms.txt", "type", "text/plain"),
		})
	}

	// Site-native llms.txt: the canonical discovery location per the
	// llmstxt spec is /llms.txt on the origin domain.
	if doc.Find(`link[href="/llms.txt"]`).Length() == 0 {
		plan = append(plan, Insertion{
			Tag:   "link",
			Attrs: attrs("rel", "alternate", "href", "/llms.txt", "type", "text/plain", MarkerAttr, "llms"),
		})
	}

	if doc.Find(`link[rel="ai-plugin"]`).Length() == 0 {
		plan = append(plan, Insertion{
			Tag:   "link",
			Attrs: attrs("rel", "ai-plugin", "href", apiBase+"/registry/"+domain+"/ai-plugin.json", "type", "application/json"),
		})
	}

	if doc.Find(`link[href="/.well-known/ai-plugin.json"]`).Length() == 0 {
		plan = append(plan, Insertion{
			Tag:   "link",
			Attrs: attrs("rel", "alternate", "href", "/.well-known/ai-plugin.json", "type", "application/json", MarkerAttr, "ai-plugin"),
		})
	}

	if doc.Find(`meta[name="robots"]`).Length() == 0 {
		plan = append(plan, Insertion{
			Tag:   "meta",
			Attrs: attrs("name", "robots", "content", "index, follow"),
		})
	}

	if doc.Find(`meta[name="galuli-verified"]`).Length() == 0 {
		plan = append(plan, Insertion{
			Tag:   "meta",
			Attrs: attrs("name", "galuli-verified", "content", domain),
		})
	}

	if doc.Find(`link[rel="canonical"]`).Length() == 0 && pageURL != nil {
		canonical := pageURL.Scheme + "://" + pageURL.Host + pageURL.Path
		plan = append(plan, Insertion{
			Tag:   "link",
			Attrs: attrs("rel", "canonical", "href", canonical),
		})
	}

	return plan
}
