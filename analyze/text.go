package analyze

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// landmarkSelectors is the priority order for locating the semantically
// central content container.
var landmarkSelectors = []string{
	"main",
	`[role="main"]`,
	"#main-content",
	"#content",
	"article",
	".content",
	".main",
	"body",
}

// noiseClassHints flags boilerplate subtrees by class or id substring.
var noiseClassHints = []string{"cookie", "banner", "popup", "modal", "chat", "sidebar", "ad"}

// TextPreview flattens the main content region to plain text, stripped of
// navigation, footer, and overlay noise, capped at maxTextPreview runes.
// The live tree is never mutated: stripping happens on a detached clone.
func TextPreview(doc *goquery.Document) string {
	root := contentRoot(doc)
	if root == nil {
		return ""
	}

	clone := cloneTree(root)
	stripNoise(clone)

	text := collapseSpace(collectText(clone))
	runes := []rune(text)
	if len(runes) > maxTextPreview {
		return string(runes[:maxTextPreview])
	}
	return text
}

// contentRoot returns the first landmark match, or nil on an empty tree.
func contentRoot(doc *goquery.Document) *html.Node {
	for _, sel := range landmarkSelectors {
		if s := doc.Find(sel).First(); len(s.Nodes) > 0 {
			return s.Nodes[0]
		}
	}
	return nil
}

// ContentHTML renders the main content region as an HTML fragment with
// noise subtrees removed. Used for markdown rendition of the page.
func ContentHTML(doc *goquery.Document) string {
	root := contentRoot(doc)
	if root == nil {
		return ""
	}
	clone := cloneTree(root)
	stripNoise(clone)

	var sb strings.Builder
	if err := html.Render(&sb, clone); err != nil {
		return ""
	}
	return sb.String()
}

// cloneTree deep-copies a subtree so stripping cannot mutate the document.
func cloneTree(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneTree(child))
	}
	return c
}

// stripNoise removes known non-content subtrees in place.
func stripNoise(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if isNoise(c) {
			n.RemoveChild(c)
			continue
		}
		stripNoise(c)
	}
}

func isNoise(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Nav, atom.Footer, atom.Header, atom.Script, atom.Style, atom.Noscript, atom.Iframe:
		return true
	}
	for _, a := range n.Attr {
		switch a.Key {
		case "aria-hidden":
			if a.Val == "true" {
				return true
			}
		case "class", "id":
			lower := strings.ToLower(a.Val)
			for _, hint := range noiseClassHints {
				if strings.Contains(lower, hint) {
					return true
				}
			}
		}
	}
	return false
}

// collectText concatenates all text nodes, separating blocks with spaces.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
