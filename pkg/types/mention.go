package types

// Mention is a surface string found inside a sentence. Start and End are byte
// offsets into the normalized sentence text.
type Mention struct {
	Text       string `json:"text"`
	Normalized string `json:"normalized"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Tag        string `json:"tag,omitempty"`

	// Annotation is the gold label carried by the corpus (the Entity element's
	// annotation attribute).
	Annotation string `json:"annotation,omitempty"`
	QID        string `json:"qid,omitempty"`
}

// Covers reports whether [start, end) lies inside the mention span.
func (m Mention) Covers(start, end int) bool {
	return m.Start <= start && end <= m.End
}

// RecognizedSpan is one output of an entity recognizer.
type RecognizedSpan struct {
	Text  string `json:"text"`
	ID    string `json:"id"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Token is one output of a tokenizer/tagger. Start and End are byte offsets.
type Token struct {
	Text  string `json:"text"`
	Tag   string `json:"tag"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Provenance points back to the sentence a node was observed in.
type Provenance struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}
