package minerva

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/normalize"
	"github.com/soundprediction/minerva/pkg/resolver"
	"github.com/soundprediction/minerva/pkg/types"
)

// LinkOptions tunes a single Link call.
type LinkOptions struct {
	// Resume continues from a completed stage instead of starting over.
	Resume *resolver.Progress
	// Checkpoint is called after each completed stage.
	Checkpoint resolver.CheckpointFunc
}

// Link resolves the gold mentions of src.
func (c *Client) Link(ctx context.Context, src corpus.Source, options *LinkOptions) (*resolver.Result, error) {
	if c.recognizer == nil || c.searcher == nil || c.fetcher == nil {
		return nil, errors.New("linking requires a recognizer, a searcher and a fetcher")
	}
	if options == nil {
		options = &LinkOptions{}
	}

	sentences, err := LoadSentences(ctx, src, c.normalizer, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Info("loaded corpus", "files", len(src.Files()), "sentences", len(sentences))

	opts := []resolver.Option{
		resolver.WithLogger(c.logger),
		resolver.WithPseudonyms(c.config.Pseudonyms),
	}
	if options.Checkpoint != nil {
		opts = append(opts, resolver.WithCheckpoint(options.Checkpoint))
	}
	r := resolver.New(c.recognizer, c.searcher, c.fetcher, resolver.Config{
		Languages:   c.config.Languages,
		SearchLimit: c.config.SearchLimit,
		Workers:     c.config.LinkWorkers,
		Normalizer:  c.normalizer,
	}, opts...)

	if options.Resume != nil {
		return r.Resume(ctx, sentences, *options.Resume)
	}
	return r.Resolve(ctx, sentences)
}

// LoadSentences reads the sentences of src that carry gold mentions, in file
// name order. Files that cannot be read or parsed are logged and skipped.
func LoadSentences(ctx context.Context, src corpus.Source, n *normalize.Normalizer, logger *slog.Logger) ([]resolver.Sentence, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sentences []resolver.Sentence
	for _, f := range src.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := f.Load()
		if errors.Is(err, types.ErrIO) {
			logger.Warn("skipping unreadable file", "file", f.Path, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		parsed, err := doc.Sentences(n)
		if err != nil {
			logger.Warn("skipping file", "file", f.Path, "error", err)
			continue
		}
		for i := range parsed {
			gold := parsed[i].Gold()
			if len(gold) == 0 {
				continue
			}
			sentences = append(sentences, resolver.Sentence{Text: parsed[i].Text, Gold: gold})
		}
	}
	if len(sentences) == 0 {
		return nil, fmt.Errorf("corpus has no annotated mentions: %w", types.ErrEmptyInput)
	}
	return sentences, nil
}
