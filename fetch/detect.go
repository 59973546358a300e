package fetch

import (
	"bytes"
	"strings"
)

// spaShellMarkers are markup fragments typical of client-rendered shells
// whose real content only exists after script execution.
var spaShellMarkers = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	`<noscript>you need to enable javascript`,
	`<noscript>enable javascript`,
}

// Sufficient reports whether the HTML body carries enough visible text to
// analyze without a browser. The heuristic is a text-to-markup ratio plus a
// scan for client-rendered shell markers.
func Sufficient(html []byte) bool {
	if len(html) < 256 {
		return false
	}

	text, markup := textMarkupRatio(html)
	total := text + markup
	if total == 0 {
		return false
	}

	// Under 10% text, or under 200 visible characters, the page is almost
	// certainly an empty shell.
	if float64(text)/float64(total) < 0.10 || text < 200 {
		return false
	}

	lower := bytes.ToLower(html)
	for _, marker := range spaShellMarkers {
		if bytes.Contains(lower, []byte(marker)) {
			return false
		}
	}
	return true
}

// textMarkupRatio approximates how many bytes are visible text versus tag
// markup. Script and style bodies count as markup.
func textMarkupRatio(html []byte) (text, markup int) {
	s := string(html)
	inTag := false
	i := 0
	for i < len(s) {
		ch := s[i]
		if ch == '<' {
			rest := strings.ToLower(s[i:])
			if strings.HasPrefix(rest, "<script") {
				if n, ok := skipRawElement(s[i:], "</script"); ok {
					markup += n
					i += n
					continue
				}
				markup += len(s) - i
				break
			}
			if strings.HasPrefix(rest, "<style") {
				if n, ok := skipRawElement(s[i:], "</style"); ok {
					markup += n
					i += n
					continue
				}
				markup += len(s) - i
				break
			}
			inTag = true
			markup++
			i++
			continue
		}
		if ch == '>' {
			inTag = false
			markup++
			i++
			continue
		}
		if inTag {
			markup++
		} else if ch != ' ' && ch != '\t' && ch != '\n' && ch != '\r' {
			text++
		}
		i++
	}
	return text, markup
}

// skipRawElement returns the byte length of a raw-text element (script or
// style) from its opening '<' through the '>' of its closing tag.
func skipRawElement(s, closing string) (int, bool) {
	idx := strings.Index(strings.ToLower(s), closing)
	if idx == -1 {
		return 0, false
	}
	end := strings.IndexByte(s[idx:], '>')
	if end == -1 {
		return 0, false
	}
	return idx + end + 1, true
}
