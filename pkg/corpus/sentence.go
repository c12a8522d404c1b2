package corpus

import (
	"errors"
	"strings"

	"github.com/beevik/etree"

	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/types"
)

// Element and attribute names of the annotated TEI corpus.
const (
	SentenceElement     = "s"
	EntityElement       = "Entity"
	AnnotationAttribute = "annotation"
	WikidataAttribute   = "wikidata_id"
)

// Sentence is one <s> element with its normalized text and entity mentions.
type Sentence struct {
	// Source is the base name of the file the sentence comes from.
	Source string
	// Text is the normalized sentence text. Mention spans index into it.
	Text string
	// Annotation is the sentence-level annotation attribute, if any.
	Annotation    string
	HasAnnotation bool
	// Mentions are the <Entity> descendants in document order. Entities whose
	// text normalizes to nothing are left out.
	Mentions []types.Mention
	// Entities are the <Entity> nodes in document order, including empty ones.
	Entities []*etree.Element
	Element  *etree.Element
}

// Gold returns the distinct normalized mention texts of the sentence.
func (s *Sentence) Gold() []string {
	seen := make(map[string]struct{}, len(s.Mentions))
	var out []string
	for _, m := range s.Mentions {
		if _, ok := seen[m.Normalized]; ok {
			continue
		}
		seen[m.Normalized] = struct{}{}
		out = append(out, m.Normalized)
	}
	return out
}

type segment struct {
	text   string
	entity *etree.Element
}

// Sentences extracts every <s> element of the document. Sentences whose text is
// empty after normalization are skipped. A nil normalizer uses the defaults.
func (d *Document) Sentences(n *normalize.Normalizer) ([]Sentence, error) {
	if n == nil {
		n = normalize.New(normalize.Config{})
	}
	root := d.Root()
	if root == nil {
		return nil, nil
	}
	var nodes []*etree.Element
	if root.Tag == SentenceElement {
		nodes = append(nodes, root)
	}
	nodes = append(nodes, Descendants(root, SentenceElement)...)

	sentences := make([]Sentence, 0, len(nodes))
	for _, node := range nodes {
		s, err := d.sentence(n, node)
		if errors.Is(err, types.ErrEmptyInput) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sentences = append(sentences, s)
	}
	return sentences, nil
}

func (d *Document) sentence(n *normalize.Normalizer, node *etree.Element) (Sentence, error) {
	var segments []segment
	var collect func(*etree.Element)
	collect = func(p *etree.Element) {
		for _, tok := range p.Child {
			switch c := tok.(type) {
			case *etree.CharData:
				segments = append(segments, segment{text: c.Data})
			case *etree.Element:
				if c.Tag == EntityElement {
					segments = append(segments, segment{text: Text(c), entity: c})
					continue
				}
				collect(c)
			}
		}
	}
	collect(node)

	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.text
	}
	text, spans, err := n.Segments(parts)
	if err != nil {
		return Sentence{}, err
	}

	s := Sentence{Source: d.Name, Text: text, Element: node}
	s.Annotation, s.HasAnnotation = Attribute(node, AnnotationAttribute)
	for i, seg := range segments {
		if seg.entity == nil {
			continue
		}
		s.Entities = append(s.Entities, seg.entity)
		normalized, err := n.Text(seg.text)
		if err != nil {
			continue
		}
		annotation, _ := Attribute(seg.entity, AnnotationAttribute)
		s.Mentions = append(s.Mentions, types.Mention{
			Text:       strings.TrimSpace(seg.text),
			Normalized: normalized,
			Start:      spans[i].Start,
			End:        spans[i].End,
			Annotation: annotation,
		})
	}
	return s, nil
}
