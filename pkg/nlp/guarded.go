package nlp

import (
	"context"

	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

// GuardedRecognizer retries and circuit-breaks a Recognizer.
type GuardedRecognizer struct {
	inner   Recognizer
	retry   *utils.RetryConfig
	breaker *utils.Breaker
}

// NewGuardedRecognizer wraps r. A nil breaker disables circuit breaking.
func NewGuardedRecognizer(r Recognizer, retry *utils.RetryConfig, breaker *utils.Breaker) *GuardedRecognizer {
	return &GuardedRecognizer{inner: r, retry: retry, breaker: breaker}
}

func (g *GuardedRecognizer) Recognize(ctx context.Context, text string) ([]types.RecognizedSpan, error) {
	return utils.Retry(ctx, g.retry, func(ctx context.Context) ([]types.RecognizedSpan, error) {
		return utils.Guard(g.breaker, func() ([]types.RecognizedSpan, error) {
			return g.inner.Recognize(ctx, text)
		})
	})
}

// BreakerState reports the breaker state for health checks.
func (g *GuardedRecognizer) BreakerState() string {
	return g.breaker.State()
}

// GuardedTagger retries and circuit-breaks a Tagger.
type GuardedTagger struct {
	inner   Tagger
	retry   *utils.RetryConfig
	breaker *utils.Breaker
}

// NewGuardedTagger wraps t. A nil breaker disables circuit breaking.
func NewGuardedTagger(t Tagger, retry *utils.RetryConfig, breaker *utils.Breaker) *GuardedTagger {
	return &GuardedTagger{inner: t, retry: retry, breaker: breaker}
}

func (g *GuardedTagger) Tag(ctx context.Context, text string) ([]types.Token, error) {
	return utils.Retry(ctx, g.retry, func(ctx context.Context) ([]types.Token, error) {
		return utils.Guard(g.breaker, func() ([]types.Token, error) {
			return g.inner.Tag(ctx, text)
		})
	})
}

// BreakerState reports the breaker state for health checks.
func (g *GuardedTagger) BreakerState() string {
	return g.breaker.State()
}
