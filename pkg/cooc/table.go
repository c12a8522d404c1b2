package cooc

import (
	"sort"

	"github.com/soundprediction/minerva/pkg/types"
)

// Pair is a (mention, context token) key.
type Pair struct {
	Mention string
	Token   string
}

// EntityKey is a mention together with the group it is displayed in.
type EntityKey struct {
	Mention string
	Group   string
}

// Table accumulates co-occurrence statistics. Marginal counts are per-sentence
// presence: a term seen twice in a sentence counts once.
type Table struct {
	Joint        map[Pair]int
	MentionCount map[string]int
	TokenCount   map[string]int
	Entities     map[EntityKey]struct{}
	// Annotations are the gold labels seen, used for image lookup.
	Annotations map[string]struct{}
	Provenance  map[string][]types.Provenance
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{
		Joint:        make(map[Pair]int),
		MentionCount: make(map[string]int),
		TokenCount:   make(map[string]int),
		Entities:     make(map[EntityKey]struct{}),
		Annotations:  make(map[string]struct{}),
		Provenance:   make(map[string][]types.Provenance),
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

// Merge adds the counts of other into t. Merging is commutative for counts and
// sets; provenance lists keep t's entries first.
func (t *Table) Merge(other *Table) {
	for k, v := range other.Joint {
		t.Joint[k] += v
	}
	for k, v := range other.MentionCount {
		t.MentionCount[k] += v
	}
	for k, v := range other.TokenCount {
		t.TokenCount[k] += v
	}
	for k := range other.Entities {
		t.Entities[k] = struct{}{}
	}
	for k := range other.Annotations {
		t.Annotations[k] = struct{}{}
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

// RemoveOutliers drops every mention and token seen in a single sentence, with
// their pairs, entities and provenance.
func (t *Table) RemoveOutliers() {
	for m, n := range t.MentionCount {
		if n == 1 {
			delete(t.MentionCount, m)
			delete(t.Provenance, m)
		}
	}
	for tok, n := range t.TokenCount {
		if n == 1 {
			delete(t.TokenCount, tok)
			delete(t.Provenance, tok)
		}
	}
	for p := range t.Joint {
		_, okMention := t.MentionCount[p.Mention]
		_, okToken := t.TokenCount[p.Token]
		if !okMention || !okToken {
			delete(t.Joint, p)
		}
	}
	for e := range t.Entities {
		if _, ok := t.MentionCount[e.Mention]; !ok {
			delete(t.Entities, e)
		}
	}
}
