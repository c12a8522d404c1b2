package kb

import (
	"context"

	"github.com/soundprediction/minerva/pkg/types"
)

// Searcher returns ranked candidate identifiers for a query.
type Searcher interface {
	Search(ctx context.Context, query, lang string, limit int) ([]string, error)
}

// Fetcher returns the full record for an identifier. Unknown identifiers fail
// with *types.NotFoundError.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*types.KnowledgeRecord, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query, lang string, limit int) ([]string, error)

func (f SearcherFunc) Search(ctx context.Context, query, lang string, limit int) ([]string, error) {
	return f(ctx, query, lang, limit)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id string) (*types.KnowledgeRecord, error)

func (f FetcherFunc) Fetch(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
	return f(ctx, id)
}
