package cooc

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/nlp"
	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

// Config tunes the aggregator.
type Config struct {
	// POSFilter is the allow-set of token tags. Empty keeps every token.
	POSFilter []string
	// NEFilter keeps only mentions whose annotation contains it.
	NEFilter string
	// TargetProperty replaces each mention by the values of this claim and
	// enables background normalization.
	TargetProperty string
	MaxDegree      int
	Workers        int
	Normalizer     *normalize.Normalizer
}

// Aggregator turns a corpus into a co-occurrence graph.
type Aggregator struct {
	base   *kb.Base
	tagger nlp.Tagger
	images kb.ImageSource
	config Config
	pos    map[string]struct{}
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithImages resolves entity images for name2image.
func WithImages(r kb.ImageSource) Option {
	return func(a *Aggregator) { a.images = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// New creates an aggregator
func New(base *kb.Base, tagger nlp.Tagger, config Config, opts ...Option) *Aggregator {
	if config.MaxDegree <= 0 {
		config.MaxDegree = DefaultMaxDegree
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Normalizer == nil {
		config.Normalizer = normalize.New(normalize.Config{})
	}
	a := &Aggregator{
		base:   base,
		tagger: tagger,
		config: config,
		pos:    make(map[string]struct{}, len(config.POSFilter)),
		logger: slog.Default(),
	}
	for _, tag := range config.POSFilter {
		if tag = strings.TrimSpace(tag); tag != "" {
			a.pos[tag] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build aggregates src and finalizes the graph.
func (a *Aggregator) Build(ctx context.Context, src corpus.Source) (*types.GraphDocument, error) {
	table, err := a.Aggregate(ctx, src)
	if err != nil {
		return nil, err
	}
	return a.Finalize(ctx, table)
}

// Aggregate processes the files of src, Workers at a time. Unreadable files are
// logged and skipped. Partial tables are merged in file order.
func (a *Aggregator) Aggregate(ctx context.Context, src corpus.Source) (*Table, error) {
	files := src.Files()
	tables := make([]*Table, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers)
	for i, f := range files {
		g.Go(func() error {
			table, err := a.processFile(gctx, f)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.Warn("skipping corpus file", "file", f.Path, "error", err)
				return nil
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := NewTable()
	for _, t := range tables {
		if t != nil {
			merged.Merge(t)
		}
	}
	return merged, nil
}

func (a *Aggregator) processFile(ctx context.Context, f corpus.File) (table *Table, err error) {
	defer utils.CapturePanic(&err)

	doc, err := f.Load()
	if err != nil {
		return nil, err
	}
	return a.AddDocument(ctx, NewTable(), doc)
}

// AddDocument adds every sentence of doc to table.
func (a *Aggregator) AddDocument(ctx context.Context, table *Table, doc *corpus.Document) (*Table, error) {
	sentences, err := doc.Sentences(a.config.Normalizer)
	if err != nil {
		return nil, err
	}
	for _, s := range sentences {
		if err := a.AddSentence(ctx, table, s); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// AddSentence adds one sentence to table. Sentences without linked mentions or
// without qualifying tokens are ignored. Tagger failures skip the sentence.
func (a *Aggregator) AddSentence(ctx context.Context, table *Table, s corpus.Sentence) error {
	mentions := a.mentions(s)
	if len(mentions) == 0 {
		return nil
	}

	tokens, err := a.tokens(ctx, s.Text, mentions)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.Warn("tagger failed, skipping sentence", "source", s.Source, "error", err)
		return nil
	}
	if len(tokens) == 0 {
		return nil
	}

	pointer := types.Provenance{Source: s.Source, Text: annotate(s.Text, mentions, a.config.TargetProperty != "")}

	for _, tok := range tokens {
		table.TokenCount[tok]++
	}
	seen := make(map[string]struct{}, len(mentions))
	for _, m := range mentions {
		table.Entities[EntityKey{Mention: m.Normalized, Group: m.Annotation}] = struct{}{}
		table.Annotations[m.Annotation] = struct{}{}
		table.AddProvenance(m.Normalized, pointer)
		if _, ok := seen[m.Normalized]; ok {
			continue
		}
		seen[m.Normalized] = struct{}{}
		table.MentionCount[m.Normalized]++
		for _, tok := range tokens {
			table.Joint[Pair{Mention: m.Normalized, Token: tok}]++
		}
	}
	for _, tok := range tokens {
		table.AddProvenance(tok, pointer)
	}
	return nil
}

// mentions returns the linked mentions of s, expanded to claim values when a
// target property is set.
func (a *Aggregator) mentions(s corpus.Sentence) []types.Mention {
	var out []types.Mention
	for _, m := range s.Mentions {
		if a.config.NEFilter != "" && !strings.Contains(m.Annotation, a.config.NEFilter) {
			continue
		}
		qid := a.base.QID(m.Annotation)
		if qid == types.NIL {
			continue
		}
		m.QID = qid
		if a.config.TargetProperty == "" {
			out = append(out, m)
			continue
		}
		for _, value := range a.base.ClaimValues(qid, a.config.TargetProperty) {
			v := m
			v.Normalized = value
			v.Annotation = a.config.TargetProperty
			out = append(out, v)
		}
	}
	return out
}

// tokens tags text and keeps the distinct context tokens outside mention spans
// that pass the tag filter and are not purely numeric, in sorted order.
func (a *Aggregator) tokens(ctx context.Context, text string, mentions []types.Mention) ([]string, error) {
	tagged, err := a.tagger.Tag(ctx, text)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, tok := range tagged {
		if tok.Text == "" || covered(tok, mentions) || isDigits(tok.Text) {
			continue
		}
		if len(a.pos) > 0 {
			if _, ok := a.pos[tok.Tag]; !ok {
				continue
			}
		}
		set[tok.Text] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out, nil
}

func covered(tok types.Token, mentions []types.Mention) bool {
	for _, m := range mentions {
		if m.Covers(tok.Start, tok.End) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// annotate highlights each mention span of text, titled with its annotation,
// or with its value when merge is set. With merge, mentions sharing a span are
// squashed into one title joined by " | ".
func annotate(text string, mentions []types.Mention, merge bool) string {
	var spans []corpus.Highlight
	for _, m := range mentions {
		title := m.Annotation
		if merge {
			title = m.Normalized
			if n := len(spans); n > 0 && spans[n-1].Start == m.Start && spans[n-1].End == m.End {
				spans[n-1].Title += " | " + title
				continue
			}
		}
		spans = append(spans, corpus.Highlight{Start: m.Start, End: m.End, Title: title})
	}
	return corpus.Annotate(text, spans)
}

// Finalize prunes the table and builds the graph document.
func (a *Aggregator) Finalize(ctx context.Context, table *Table) (*types.GraphDocument, error) {
	table.RemoveOutliers()
	kept := Prune(table.Scores(a.config.TargetProperty != ""), a.config.MaxDegree)

	doc := types.NewGraphDocument()
	doc.Data = BuildGraph(table, kept)
	for term, pointers := range table.Provenance {
		doc.BackToText[term] = pointers
	}

	if a.images != nil {
		images, err := a.resolveImages(ctx, table.Annotations)
		if err != nil {
			return nil, err
		}
		doc.Name2Image = images
	}
	return doc, nil
}

// BuildGraph emits token nodes (sorted), then entity nodes sorted by (group,
// mention), each followed in the link list by its links over sorted tokens.
// Node identifiers are unique; the first node with a given identifier wins,
// but every kept pair of a mention is linked even when its node was a token.
func BuildGraph(table *Table, kept map[Pair]float64) types.Graph {
	tokenSet := make(map[string]struct{})
	mentionSet := make(map[string]struct{})
	for p := range kept {
		tokenSet[p.Token] = struct{}{}
		mentionSet[p.Mention] = struct{}{}
	}
	tokens := make([]string, 0, len(tokenSet))
	for tok := range tokenSet {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	var entities []EntityKey
	for e := range table.Entities {
		if _, ok := mentionSet[e.Mention]; ok {
			entities = append(entities, e)
		}
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Group != entities[j].Group {
			return entities[i].Group < entities[j].Group
		}
		return entities[i].Mention < entities[j].Mention
	})

	graph := types.Graph{Nodes: []types.Node{}, Links: []types.Link{}}
	ids := make(map[string]struct{})
	for _, tok := range tokens {
		ids[tok] = struct{}{}
		label, _, _ := strings.Cut(tok, "_")
		graph.Nodes = append(graph.Nodes, types.Node{ID: tok, Name: tok, Label: label, Group: types.GroupCooccurrences})
	}
	linked := make(map[string]struct{})
	for _, e := range entities {
		if _, dup := ids[e.Mention]; !dup {
			ids[e.Mention] = struct{}{}
			graph.Nodes = append(graph.Nodes, types.Node{ID: e.Mention, Name: e.Mention, Group: e.Group, Class: types.ClassEntity})
		}
		if _, done := linked[e.Mention]; done {
			continue
		}
		linked[e.Mention] = struct{}{}
		for _, tok := range tokens {
			score, ok := kept[Pair{Mention: e.Mention, Token: tok}]
			if !ok {
				continue
			}
			if w := Weight(score); w > 0 {
				graph.Links = append(graph.Links, types.Link{Source: e.Mention, Target: tok, Value: w})
			}
		}
	}
	return graph
}

func (a *Aggregator) resolveImages(ctx context.Context, annotations map[string]struct{}) (map[string]string, error) {
	names := make([]string, 0, len(annotations))
	for name := range annotations {
		names = append(names, name)
	}
	return kb.ResolveImages(ctx, a.images, a.base, names, a.config.Workers, a.logger)
}
