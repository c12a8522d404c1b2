package corpus

import (
	"fmt"
	"html"
	"strings"
)

// Highlight is a titled byte range of a sentence text.
type Highlight struct {
	Start int
	End   int
	Title string
}

// textEscaper escapes character data. Quotes are left alone since they only
// matter inside attributes.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Annotate wraps each highlight of text in <span id="Entity" title="...">.
// The text is HTML-escaped, the inserted spans are not.
// Highlights are expected in ascending order; one that overlaps the previous
// kept highlight or falls outside text is ignored.
func Annotate(text string, highlights []Highlight) string {
	var sb strings.Builder
	prev := 0
	for _, h := range highlights {
		if h.Start < prev || h.End > len(text) || h.Start > h.End {
			continue
		}
		textEscaper.WriteString(&sb, text[prev:h.Start])
		fmt.Fprintf(&sb, `<span id="Entity" title="%s">%s</span>`, html.EscapeString(h.Title), textEscaper.Replace(text[h.Start:h.End]))
		prev = h.End
	}
	textEscaper.WriteString(&sb, text[prev:])
	return sb.String()
}
