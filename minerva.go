package minerva

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/driver"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/nlp"
	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/resolver"
	"github.com/soundprediction/minerva/pkg/types"
)

// Minerva is the main interface for linking a corpus and building its graphs.
type Minerva interface {
	// Link resolves every gold mention of the corpus to candidate identifiers.
	// Options can be nil.
	Link(ctx context.Context, src corpus.Source, options *LinkOptions) (*resolver.Result, error)

	// Cooccurrences builds the co-occurrence graph of the corpus.
	Cooccurrences(ctx context.Context, src corpus.Source, options *CoocOptions) (*types.GraphDocument, error)

	// Opinions builds the opinion graph of the corpus.
	Opinions(ctx context.Context, src corpus.Source, options *OpinionOptions) (*types.GraphDocument, error)

	// Persist writes a graph to the configured sink under name.
	Persist(ctx context.Context, name string, doc *types.GraphDocument) error

	// Ready reports whether the configured collaborators are usable.
	Ready(ctx context.Context) error

	// Close closes the sink and caches.
	Close(ctx context.Context) error
}

// ErrNoSink is returned by Persist when no sink is configured.
var ErrNoSink = errors.New("no graph sink configured")

// Config holds the defaults of every operation.
type Config struct {
	// Languages is the search fallback chain of the linker.
	Languages   []string
	SearchLimit int
	// LinkWorkers bounds concurrent knowledge-service calls.
	LinkWorkers int
	// Pseudonyms maps pen names to real names for the linker.
	Pseudonyms map[string]string

	MaxDegree   int
	POSFilter   []string
	CoocWorkers int

	// NFC composes text to NFC before normalization.
	NFC bool
}

// Client is the main implementation of the Minerva interface.
type Client struct {
	base       *kb.Base
	recognizer nlp.Recognizer
	tagger     nlp.Tagger
	searcher   kb.Searcher
	fetcher    kb.Fetcher
	images     kb.ImageSource
	sink       driver.Sink
	closers    []func() error
	normalizer *normalize.Normalizer
	config     Config
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRecognizer sets the recognizer used by Link.
func WithRecognizer(r nlp.Recognizer) Option {
	return func(c *Client) { c.recognizer = r }
}

// WithTagger sets the tagger used by Cooccurrences.
func WithTagger(t nlp.Tagger) Option {
	return func(c *Client) { c.tagger = t }
}

// WithKnowledgeService sets the search and record lookups used by Link.
func WithKnowledgeService(searcher kb.Searcher, fetcher kb.Fetcher) Option {
	return func(c *Client) {
		c.searcher = searcher
		c.fetcher = fetcher
	}
}

// WithImages resolves entity images for name2image.
func WithImages(src kb.ImageSource) Option {
	return func(c *Client) { c.images = src }
}

// WithSink sets the graph sink used by Persist.
func WithSink(sink driver.Sink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithCloser registers a cleanup function run by Close, e.g. a cache.
func WithCloser(fn func() error) Option {
	return func(c *Client) { c.closers = append(c.closers, fn) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new client. A nil base is empty and a nil config uses the
// defaults. The tagger defaults to nlp.RegexTagger.
func NewClient(base *kb.Base, config *Config, opts ...Option) *Client {
	if base == nil {
		base = kb.NewBase()
	}
	if config == nil {
		config = &Config{}
	}
	c := &Client{
		base:   base,
		tagger: nlp.RegexTagger{},
		config: *config,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.normalizer = normalize.New(normalize.Config{NFC: c.config.NFC})
	return c
}

// Base returns the knowledge tables of the client.
func (c *Client) Base() *kb.Base {
	return c.base
}

// Ready checks the sink connectivity when the sink supports it.
func (c *Client) Ready(ctx context.Context) error {
	if c.sink == nil {
		return nil
	}
	if v, ok := c.sink.(interface {
		VerifyConnectivity(ctx context.Context) error
	}); ok {
		return v.VerifyConnectivity(ctx)
	}
	return nil
}

// BreakerStates returns the circuit breaker state of every guarded service,
// keyed by service. Unguarded services are left out.
func (c *Client) BreakerStates() map[string]string {
	states := make(map[string]string)
	for name, svc := range map[string]any{
		"knowledge_base": c.searcher,
		"recognizer":     c.recognizer,
		"tagger":         c.tagger,
	} {
		if r, ok := svc.(kb.BreakerReporter); ok {
			states[name] = r.BreakerState()
		}
	}
	return states
}

// Close closes the sink and runs the registered closers.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.sink != nil {
		errs = append(errs, c.sink.Close(ctx))
	}
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

var _ Minerva = (*Client)(nil)
