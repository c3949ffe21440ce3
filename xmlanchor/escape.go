// Package xmlanchor emits the anchor XML document describing every
// dimension of a report (spec.md §6, "Anchor XML").
package xmlanchor

import "strings"

// Escape applies the anchor format's exact text-escaping rule (spec.md §6):
// &, <, >, ", ' become entities; control characters below 0x20 other than
// tab, LF, and CR are dropped outright. encoding/xml's struct-tag marshaling
// does not expose this selective control-character drop, which is why the
// anchor is written by hand rather than through xml.Marshal (see DESIGN.md).
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		case '\t', '\n', '\r':
			b.WriteRune(r)
		default:
			if r < 0x20 {
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
