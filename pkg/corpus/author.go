package corpus

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
)

// AuthorPath locates the author of a document with an etree path:
// slash-separated element names, "*" for any element, "//" for descendant
// search and predicates such as [@attr], [@attr='value'] or [n].
// Relative paths start from the root element, as ElementTree's findall does.
// Namespace prefixes and {uri} qualifiers are dropped so steps match by local
// name.
//
//	teiHeader/fileDesc/titleStmt/author
//	.//author[@role='critic']
type AuthorPath struct {
	expr string
	path etree.Path
}

var (
	clarkRE  = regexp.MustCompile(`\{[^}]*\}`)
	prefixRE = regexp.MustCompile(`(^|[/@\[])[\w.-]+:`)
)

// ParseAuthorPath compiles expr. An empty expression yields a nil path.
func ParseAuthorPath(expr string) (*AuthorPath, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	local := prefixRE.ReplaceAllString(clarkRE.ReplaceAllString(expr, ""), "$1")
	path, err := etree.CompilePath(local)
	if err != nil {
		return nil, fmt.Errorf("invalid author path %q: %w", expr, err)
	}
	return &AuthorPath{expr: expr, path: path}, nil
}

// FindAll returns the elements of doc the path selects, in document order.
func (p *AuthorPath) FindAll(doc *Document) []*etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	return root.FindElementsPath(p.path)
}

// Author returns the author of doc: the text of the first selected element,
// trimmed. Text directly inside the element wins over text of its children.
func (p *AuthorPath) Author(doc *Document) (string, bool) {
	if p == nil {
		return "", false
	}
	matches := p.FindAll(doc)
	if len(matches) == 0 {
		return "", false
	}
	author := strings.TrimSpace(matches[0].Text())
	if author == "" {
		author = strings.Join(strings.Fields(Text(matches[0])), " ")
	}
	return author, author != ""
}

// String returns the expression the path was compiled from.
func (p *AuthorPath) String() string {
	if p == nil {
		return ""
	}
	return p.expr
}
