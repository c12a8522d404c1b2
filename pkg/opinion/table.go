package opinion

import (
	"sort"

	"github.com/soundprediction/minerva/pkg/types"
)

// Mention is a distinct entity mention of the corpus.
type Mention struct {
	Text       string
	Annotation string
}

// Edge is a directed (source, sentiment) key.
type Edge struct {
	Source    string
	Sentiment string
}

// Table accumulates opinion counts.
type Table struct {
	Links    map[Edge]int
	Mentions map[Mention]struct{}
	// Sentiments maps a sentiment node key to the label it was derived from.
	Sentiments map[string]string
	// Authors are the authors of files with at least one opinion sentence.
	Authors    map[string]struct{}
	Provenance map[string][]types.Provenance
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{
		Links:      make(map[Edge]int),
		Mentions:   make(map[Mention]struct{}),
		Sentiments: make(map[string]string),
		Authors:    make(map[string]struct{}),
		Provenance: make(map[string][]types.Provenance),
	}
}

// AddProvenance records that term was seen in p, once per distinct p.
func (t *Table) AddProvenance(term string, p types.Provenance) {
	for _, existing := range t.Provenance[term] {
		if existing == p {
			return
		}
	}
	t.Provenance[term] = append(t.Provenance[term], p)
}

// Merge adds other into t. Provenance lists keep t's entries first.
func (t *Table) Merge(other *Table) {
	for k, v := range other.Links {
		t.Links[k] += v
	}
	for k := range other.Mentions {
		t.Mentions[k] = struct{}{}
	}
	for k, v := range other.Sentiments {
		t.Sentiments[k] = v
	}
	for k := range other.Authors {
		t.Authors[k] = struct{}{}
	}
	terms := make([]string, 0, len(other.Provenance))
	for term := range other.Provenance {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		for _, p := range other.Provenance[term] {
			t.AddProvenance(term, p)
		}
	}
}

// Annotations returns the distinct mention annotations in sorted order.
func (t *Table) Annotations() []string {
	seen := make(map[string]struct{})
	var out []string
	for m := range t.Mentions {
		if _, ok := seen[m.Annotation]; ok {
			continue
		}
		seen[m.Annotation] = struct{}{}
		out = append(out, m.Annotation)
	}
	sort.Strings(out)
	return out
}
