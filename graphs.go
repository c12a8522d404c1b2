package minerva

import (
	"context"
	"fmt"

	"github.com/soundprediction/minerva/pkg/cooc"
	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/opinion"
	"github.com/soundprediction/minerva/pkg/types"
)

// CoocOptions tunes a single Cooccurrences call. Zero fields fall back to the
// client configuration.
type CoocOptions struct {
	POSFilter []string
	// NEFilter keeps only mentions whose annotation contains it.
	NEFilter string
	// TargetProperty redirects each mention to the values of this claim.
	TargetProperty string
	MaxDegree      int
}

// OpinionOptions tunes a single Opinions call.
type OpinionOptions struct {
	// AnnotationFilter keeps only mentions whose annotation contains it.
	AnnotationFilter string
	// AuthorPath selects the author element of each file. Empty disables the
	// author dimension.
	AuthorPath string
}

// Cooccurrences builds the co-occurrence graph of src.
func (c *Client) Cooccurrences(ctx context.Context, src corpus.Source, options *CoocOptions) (*types.GraphDocument, error) {
	if options == nil {
		options = &CoocOptions{}
	}
	config := cooc.Config{
		POSFilter:      options.POSFilter,
		NEFilter:       options.NEFilter,
		TargetProperty: options.TargetProperty,
		MaxDegree:      options.MaxDegree,
		Workers:        c.config.CoocWorkers,
		Normalizer:     c.normalizer,
	}
	if config.POSFilter == nil {
		config.POSFilter = c.config.POSFilter
	}
	if config.MaxDegree <= 0 {
		config.MaxDegree = c.config.MaxDegree
	}

	opts := []cooc.Option{cooc.WithLogger(c.logger)}
	if c.images != nil {
		opts = append(opts, cooc.WithImages(c.images))
	}
	doc, err := cooc.New(c.base, c.tagger, config, opts...).Build(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to build co-occurrence graph: %w", err)
	}
	c.logger.Info("built co-occurrence graph", "nodes", len(doc.Data.Nodes), "links", len(doc.Data.Links))
	return doc, nil
}

// Opinions builds the opinion graph of src.
func (c *Client) Opinions(ctx context.Context, src corpus.Source, options *OpinionOptions) (*types.GraphDocument, error) {
	if options == nil {
		options = &OpinionOptions{}
	}
	opts := []opinion.Option{opinion.WithLogger(c.logger)}
	if c.images != nil {
		opts = append(opts, opinion.WithImages(c.images))
	}
	agg, err := opinion.New(c.base, opinion.Config{
		AnnotationFilter: options.AnnotationFilter,
		AuthorPath:       options.AuthorPath,
		Workers:          c.config.CoocWorkers,
		Normalizer:       c.normalizer,
	}, opts...)
	if err != nil {
		return nil, err
	}
	doc, err := agg.Build(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to build opinion graph: %w", err)
	}
	c.logger.Info("built opinion graph", "nodes", len(doc.Data.Nodes), "links", len(doc.Data.Links))
	return doc, nil
}

// Persist writes doc to the sink under name.
func (c *Client) Persist(ctx context.Context, name string, doc *types.GraphDocument) error {
	if c.sink == nil {
		return ErrNoSink
	}
	if err := c.sink.WriteGraph(ctx, name, doc.Data); err != nil {
		return err
	}
	c.logger.Info("persisted graph", "graph", name, "nodes", len(doc.Data.Nodes), "links", len(doc.Data.Links))
	return nil
}
