package kb

import (
	"context"
	"log/slog"

	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

// Guarded wraps a Searcher and a Fetcher with retry and circuit breaking.
type Guarded struct {
	searcher Searcher
	fetcher  Fetcher
	retry    *utils.RetryConfig
	breaker  *utils.Breaker
	logger   *slog.Logger
}

// NewGuarded creates a guarded client. A nil breaker disables circuit breaking.
func NewGuarded(searcher Searcher, fetcher Fetcher, retry *utils.RetryConfig, breaker *utils.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{
		searcher: searcher,
		fetcher:  fetcher,
		retry:    retry,
		breaker:  breaker,
		logger:   logger,
	}
}

// Search implements Searcher
func (g *Guarded) Search(ctx context.Context, query, lang string, limit int) ([]string, error) {
	return utils.Retry(ctx, g.retry, func(ctx context.Context) ([]string, error) {
		ids, err := utils.Guard(g.breaker, func() ([]string, error) {
			return g.searcher.Search(ctx, query, lang, limit)
		})
		if err != nil && utils.IsRetryable(err) {
			g.logger.Debug("search attempt failed", "query", query, "lang", lang, "error", err)
		}
		return ids, err
	})
}

// Fetch implements Fetcher
func (g *Guarded) Fetch(ctx context.Context, id string) (*types.KnowledgeRecord, error) {
	return utils.Retry(ctx, g.retry, func(ctx context.Context) (*types.KnowledgeRecord, error) {
		record, err := utils.Guard(g.breaker, func() (*types.KnowledgeRecord, error) {
			return g.fetcher.Fetch(ctx, id)
		})
		if err != nil && utils.IsRetryable(err) {
			g.logger.Debug("fetch attempt failed", "id", id, "error", err)
		}
		return record, err
	})
}

// BreakerReporter is implemented by the guarded service clients.
type BreakerReporter interface {
	// BreakerState returns "closed", "half-open", "open" or "disabled".
	BreakerState() string
}

// BreakerState reports the breaker state for health checks.
func (g *Guarded) BreakerState() string {
	return g.breaker.State()
}
