package nlp

import (
	"context"

	"github.com/soundprediction/minerva/pkg/types"
)

// Recognizer finds named entities in a text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]types.RecognizedSpan, error)
}

// Tagger tokenizes a text and assigns part-of-speech tags.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]types.Token, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, text string) ([]types.RecognizedSpan, error)

func (f RecognizerFunc) Recognize(ctx context.Context, text string) ([]types.RecognizedSpan, error) {
	return f(ctx, text)
}

// TaggerFunc adapts a function to Tagger.
type TaggerFunc func(ctx context.Context, text string) ([]types.Token, error)

func (f TaggerFunc) Tag(ctx context.Context, text string) ([]types.Token, error) {
	return f(ctx, text)
}
