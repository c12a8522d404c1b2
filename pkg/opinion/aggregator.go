package opinion

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

// Config tunes the aggregator.
type Config struct {
	// AnnotationFilter keeps only mentions whose annotation contains it.
	AnnotationFilter string
	// AuthorPath selects the author element of each file, e.g.
	// "teiHeader/fileDesc/titleStmt/author". Empty disables the author dimension.
	AuthorPath string
	Workers    int
	Normalizer *normalize.Normalizer
}

// Aggregator turns annotated sentences into an opinion graph.
type Aggregator struct {
	base   *kb.Base
	images kb.ImageSource
	author *corpus.AuthorPath
	config Config
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithImages resolves entity images for name2image.
func WithImages(src kb.ImageSource) Option {
	return func(a *Aggregator) { a.images = src }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// New creates an aggregator. It fails when the author path does not compile.
func New(base *kb.Base, config Config, opts ...Option) (*Aggregator, error) {
	author, err := corpus.ParseAuthorPath(config.AuthorPath)
	if err != nil {
		return nil, err
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Normalizer == nil {
		config.Normalizer = normalize.New(normalize.Config{})
	}
	if base == nil {
		base = kb.NewBase()
	}
	a := &Aggregator{
		base:   base,
		author: author,
		config: config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Build aggregates src and finalizes the graph.
func (a *Aggregator) Build(ctx context.Context, src corpus.Source) (*types.GraphDocument, error) {
	table, err := a.Aggregate(ctx, src)
	if err != nil {
		return nil, err
	}
	return a.Finalize(ctx, table)
}

// Aggregate processes the files of src in issue order, Workers at a time.
// Unreadable files are logged and skipped.
func (a *Aggregator) Aggregate(ctx context.Context, src corpus.Source) (*Table, error) {
	files := corpus.IssueOrder(src.Files())
	tables := make([]*Table, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Workers)
	for i, f := range files {
		g.Go(func() error {
			table, err := a.processFile(f)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.Warn("skipping corpus file", "file", f.Path, "error", err)
				return nil
			}
			tables[i] = table
			return gctx.Err()
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

func (a *Aggregator) processFile(f corpus.File) (table *Table, err error) {
	defer utils.CapturePanic(&err)

	doc, err := f.Load()
	if err != nil {
		return nil, err
	}
	table = NewTable()
	if err := a.AddDocument(table, doc); err != nil {
		return nil, err
	}
	return table, nil
}

// AddDocument adds the annotated sentences of doc to table.
func (a *Aggregator) AddDocument(table *Table, doc *corpus.Document) error {
	var author string
	if a.author != nil {
		name, ok := a.author.Author(doc)
		if !ok {
			a.logger.Debug("no author found", "file", doc.Name, "path", a.author.String())
		}
		author = name
	}

	sentences, err := doc.Sentences(a.config.Normalizer)
	if err != nil {
		return err
	}
	for _, s := range sentences {
		a.AddSentence(table, s, author)
	}
	return nil
}

// AddSentence adds one sentence written by author (may be empty). Sentences
// without an annotation attribute or without a qualifying mention are ignored.
func (a *Aggregator) AddSentence(table *Table, s corpus.Sentence, author string) {
	if !s.HasAnnotation {
		return
	}
	sentiments := Sentiments(s.Annotation)
	if len(sentiments) == 0 {
		return
	}

	var highlights []corpus.Highlight
	seen := make(map[Mention]struct{})
	var mentions []Mention
	for _, m := range s.Mentions {
		if !a.keep(m.Annotation) {
			continue
		}
		highlights = append(highlights, corpus.Highlight{Start: m.Start, End: m.End, Title: m.Annotation})
		key := Mention{Text: m.Normalized, Annotation: m.Annotation}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		mentions = append(mentions, key)
	}
	if len(mentions) == 0 {
		return
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].Text != mentions[j].Text {
			return mentions[i].Text < mentions[j].Text
		}
		return mentions[i].Annotation < mentions[j].Annotation
	})

	pointer := types.Provenance{Source: s.Source, Text: corpus.Annotate(s.Text, highlights)}
	for _, m := range mentions {
		table.Mentions[m] = struct{}{}
		table.AddProvenance(m.Text, pointer)
		if author != "" {
			table.Authors[author] = struct{}{}
			table.AddProvenance(author, pointer)
		}
		for _, sentiment := range sentiments {
			key := sentiment
			if author != "" {
				key = sentiment + "_" + m.Text + "_" + author
				table.Links[Edge{Source: author, Sentiment: key}]++
			}
			table.Links[Edge{Source: m.Text, Sentiment: key}]++
			table.Sentiments[key] = sentiment
			table.AddProvenance(key, pointer)
		}
	}
}

func (a *Aggregator) keep(annotation string) bool {
	return !strings.Contains(annotation, "|") && strings.Contains(annotation, a.config.AnnotationFilter)
}

// Sentiments splits a sentence annotation on "|" into its trimmed, sorted,
// non-empty parts.
func Sentiments(annotation string) []string {
	var out []string
	for _, part := range strings.Split(annotation, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	sort.Strings(out)
	return out
}

// Finalize builds the graph document from table.
func (a *Aggregator) Finalize(ctx context.Context, table *Table) (*types.GraphDocument, error) {
	doc := types.NewGraphDocument()
	doc.Data = BuildGraph(table, a.author != nil)
	for term, pointers := range table.Provenance {
		doc.BackToText[term] = pointers
	}
	if a.images != nil {
		images, err := kb.ResolveImages(ctx, a.images, a.base, table.Annotations(), a.config.Workers, a.logger)
		if err != nil {
			return nil, err
		}
		doc.Name2Image = images
	}
	return doc, nil
}

// BuildGraph emits sentiment nodes, then author nodes for authors that are not
// also mentions, then mention nodes sorted by (annotation, text) each followed
// in the link list by its sentiment links, then the author links. Node
// identifiers and links are unique; the first occurrence wins.
func BuildGraph(table *Table, byAuthor bool) types.Graph {
	sentiments := make([]string, 0, len(table.Sentiments))
	for key := range table.Sentiments {
		sentiments = append(sentiments, key)
	}
	sort.Strings(sentiments)

	mentions := make([]Mention, 0, len(table.Mentions))
	mentionTexts := make(map[string]struct{}, len(table.Mentions))
	for m := range table.Mentions {
		mentions = append(mentions, m)
		mentionTexts[m.Text] = struct{}{}
	}
	sort.Slice(mentions, func(i, j int) bool {
		if mentions[i].Annotation != mentions[j].Annotation {
			return mentions[i].Annotation < mentions[j].Annotation
		}
		return mentions[i].Text < mentions[j].Text
	})

	authors := make([]string, 0, len(table.Authors))
	for author := range table.Authors {
		authors = append(authors, author)
	}
	sort.Strings(authors)

	graph := types.Graph{Nodes: []types.Node{}, Links: []types.Link{}}
	ids := make(map[string]struct{})
	addNode := func(n types.Node) {
		if _, dup := ids[n.ID]; dup {
			return
		}
		ids[n.ID] = struct{}{}
		graph.Nodes = append(graph.Nodes, n)
	}
	linked := make(map[Edge]struct{})
	addLinks := func(source string) {
		for _, sentiment := range sentiments {
			e := Edge{Source: source, Sentiment: sentiment}
			weight := table.Links[e]
			if weight == 0 {
				continue
			}
			if _, dup := linked[e]; dup {
				continue
			}
			linked[e] = struct{}{}
			graph.Links = append(graph.Links, types.Link{Source: source, Target: sentiment, Value: weight})
		}
	}

	for _, key := range sentiments {
		group, label, class := sentimentParts(table.Sentiments[key])
		if byAuthor {
			label, _, _ = strings.Cut(label, "_")
		}
		addNode(types.Node{ID: key, Name: key, Label: label, Group: group, Class: class})
	}
	for _, author := range authors {
		if _, ok := mentionTexts[author]; ok {
			continue
		}
		addNode(types.Node{ID: author, Name: author, Label: author, Group: author, Class: types.ClassEntity})
	}
	for _, m := range mentions {
		addNode(types.Node{ID: m.Text, Name: m.Text, Label: m.Text, Group: m.Annotation, Class: types.ClassEntity})
		addLinks(m.Text)
	}
	for _, author := range authors {
		addLinks(author)
	}
	return graph
}

// sentimentParts splits a dotted sentiment label: the group is everything before
// the last dot, the label everything after it and the class the first segment.
func sentimentParts(sentiment string) (group, label, class string) {
	label = sentiment
	if i := strings.LastIndex(sentiment, "."); i >= 0 {
		group, label = sentiment[:i], sentiment[i+1:]
	}
	class, _, _ = strings.Cut(sentiment, ".")
	return group, label, class
}
