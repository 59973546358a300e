package analyze

import (
	"encoding/json"
	"hash/fnv"
	"io"
	"strconv"
)

// Fingerprint computes the content fingerprint the backend uses for change
// detection: FNV-1a 32-bit over text preview + title + serialized headings,
// rendered as lower-case hex. Deterministic across platforms; order
// sensitive; no collision-resistance guarantee.
func Fingerprint(textPreview, title string, headings []Heading) string {
	h := fnv.New32a()
	io.WriteString(h, textPreview)
	io.WriteString(h, title)
	data, err := json.Marshal(headings)
	if err == nil {
		h.Write(data)
	}
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

// PageFingerprint fingerprints an extracted page.
func PageFingerprint(p *Page) string {
	return Fingerprint(p.TextPreview, p.Title, p.Headings)
}
