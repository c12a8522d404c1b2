package corpus

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Document is a parsed XML file. The etree document keeps prefixes, attribute
// order, comments and whitespace, so writing it back only changes what was
// edited.
type Document struct {
	// Name is the base name of the file the document was read from.
	Name string
	tree *etree.Document
}

// Parse reads an XML document.
func Parse(r io.Reader) (*Document, error) {
	tree := etree.NewDocument()
	if _, err := tree.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	switch roots := len(tree.ChildElements()); {
	case roots == 0:
		return nil, fmt.Errorf("failed to parse XML: no root element")
	case roots > 1:
		return nil, fmt.Errorf("failed to parse XML: multiple root elements")
	}
	tree.WriteSettings.CanonicalText = true
	tree.WriteSettings.CanonicalAttrVal = true
	return &Document{tree: tree}, nil
}

// ParseBytes parses data as the document called name.
func ParseBytes(name string, data []byte) (*Document, error) {
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	doc.Name = name
	return doc, nil
}

// Root returns the root element.
func (d *Document) Root() *etree.Element {
	return d.tree.Root()
}

// Encode writes the document as XML.
func (d *Document) Encode(w io.Writer) error {
	if _, err := d.tree.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}
	return nil
}

// Bytes returns the encoded document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	_ = d.Encode(&buf)
	return buf.Bytes()
}

// Attribute returns the value of the attribute of e with the given local name,
// whatever its prefix.
func Attribute(e *etree.Element, local string) (string, bool) {
	a := e.SelectAttr(local)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// Text returns the concatenated character data of e and its descendants.
func Text(e *etree.Element) string {
	var sb strings.Builder
	writeText(&sb, e)
	return sb.String()
}

func writeText(sb *strings.Builder, e *etree.Element) {
	for _, tok := range e.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
		case *etree.Element:
			writeText(sb, t)
		}
	}
}

// Descendants returns the elements below e with the given local name, in
// document order.
func Descendants(e *etree.Element, local string) []*etree.Element {
	return e.FindElements(".//" + local)
}
