package types

import (
	"encoding/json"
	"slices"
	"sort"
)

// NIL is the sentinel identifier for "no candidate found".
const NIL = "NIL"

// CandidateSet maps a normalized mention to its ordered candidate identifiers.
// Lists are never empty and never shared between entries.
type CandidateSet struct {
	entries map[string][]string
}

// NewCandidateSet creates an empty candidate set
func NewCandidateSet() *CandidateSet {
	return &CandidateSet{entries: make(map[string][]string)}
}

// Set stores a copy of ids for mention. An empty list stores the sentinel.
func (c *CandidateSet) Set(mention string, ids []string) {
	if len(ids) == 0 {
		c.entries[mention] = []string{NIL}
		return
	}
	c.entries[mention] = slices.Clone(ids)
}

// Get returns a copy of the candidates for mention.
func (c *CandidateSet) Get(mention string) ([]string, bool) {
	ids, ok := c.entries[mention]
	if !ok {
		return nil, false
	}
	return slices.Clone(ids), true
}

// Has reports whether mention has an entry.
func (c *CandidateSet) Has(mention string) bool {
	_, ok := c.entries[mention]
	return ok
}

// First returns the first candidate for mention, or NIL.
func (c *CandidateSet) First(mention string) string {
	ids, ok := c.entries[mention]
	if !ok || len(ids) == 0 {
		return NIL
	}
	return ids[0]
}

// IsNIL reports whether mention resolves to the sentinel only.
func (c *CandidateSet) IsNIL(mention string) bool {
	ids, ok := c.entries[mention]
	return !ok || (len(ids) == 1 && ids[0] == NIL)
}

// Len returns the number of mentions.
func (c *CandidateSet) Len() int {
	return len(c.entries)
}

// Mentions returns all mentions in lexicographic order.
func (c *CandidateSet) Mentions() []string {
	mentions := make([]string, 0, len(c.entries))
	for m := range c.entries {
		mentions = append(mentions, m)
	}
	sort.Strings(mentions)
	return mentions
}

// IDs returns the set of every identifier referenced by any mention.
func (c *CandidateSet) IDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, list := range c.entries {
		for _, id := range list {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Clone returns a deep copy.
func (c *CandidateSet) Clone() *CandidateSet {
	out := NewCandidateSet()
	for m, ids := range c.entries {
		out.entries[m] = slices.Clone(ids)
	}
	return out
}

// MarshalJSON encodes the set as a JSON object with sorted keys.
func (c *CandidateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.entries)
}

// UnmarshalJSON decodes a JSON object of mention -> identifiers.
func (c *CandidateSet) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.entries = make(map[string][]string, len(raw))
	for m, ids := range raw {
		c.Set(m, ids)
	}
	return nil
}
