// Package inject computes and applies head injections: discovery links for
// machine-readable resources and JSON-LD structured data.
//
// Each injector is split into a pure planning step (current document state
// to a list of elements to insert if absent) and a single Apply step that
// performs the mutations. Planning on an already-instrumented document
// yields an empty plan, so repeated invocation is a no-op.
package inject

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkerAttr tags every element this engine injects.
const MarkerAttr = "data-galuli"

// Insertion is one element to append to the document head.
type Insertion struct {
	Tag   string
	Attrs []html.Attribute
	Text  string // inline content, used for JSON-LD script blocks
}

// Apply appends the planned insertions to the document head. A document
// without a head is left untouched; Apply never fails.
func Apply(doc *goquery.Document, insertions []Insertion) {
	head := doc.Find("head").First()
	if len(head.Nodes) == 0 {
		return
	}
	parent := head.Nodes[0]
	for _, ins := range insertions {
		n := &html.Node{
			Type:     html.ElementNode,
			Data:     ins.Tag,
			DataAtom: atom.Lookup([]byte(ins.Tag)),
			Attr:     append([]html.Attribute(nil), ins.Attrs...),
		}
		if ins.Text != "" {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: ins.Text})
		}
		parent.AppendChild(n)
	}
}

func attrs(pairs ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, html.Attribute{Key: pairs[i], Val: pairs[i+1]})
	}
	return out
}

// Instrumented reports whether the document already carries this engine's
// verification marker. Used to refuse double-initialization.
func Instrumented(doc *goquery.Document) bool {
	return doc.Find(`meta[name="galuli-verified"]`).Length() > 0
}
