package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/soundprediction/minerva/pkg/types"
)

// HTTPTaggerConfig configures HTTPTagger.
type HTTPTaggerConfig struct {
	URL     string
	Timeout time.Duration
}

// HTTPTagger calls a tagging service that accepts {"text": ...} and answers
// {"tokens": [{"text", "pos", "start", "end"}]} with code point offsets.
type HTTPTagger struct {
	url        string
	httpClient *http.Client
}

// NewHTTPTagger creates a tagger client
func NewHTTPTagger(config HTTPTaggerConfig) (*HTTPTagger, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("tagger URL is required")
	}
	return &HTTPTagger{url: config.URL, httpClient: newHTTPClient(config.Timeout)}, nil
}

type tagRequest struct {
	Text string `json:"text"`
}

type tagResponse struct {
	Tokens []struct {
		Text  string `json:"text"`
		POS   string `json:"pos"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	} `json:"tokens"`
}

// Tag implements Tagger
func (t *HTTPTagger) Tag(ctx context.Context, text string) ([]types.Token, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	payload, err := json.Marshal(tagRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := newRequest(ctx, http.MethodPost, t.url, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	var resp tagResponse
	if err := doRequest(t.httpClient, req, &resp); err != nil {
		return nil, fmt.Errorf("tag failed: %w", err)
	}

	offsets := runeOffsets(text)
	tokens := make([]types.Token, 0, len(resp.Tokens))
	for _, tok := range resp.Tokens {
		start, end, ok := byteSpan(offsets, tok.Start, tok.End)
		if !ok {
			continue
		}
		tokens = append(tokens, types.Token{Text: text[start:end], Tag: tok.POS, Start: start, End: end})
	}
	return tokens, nil
}

var tokenRE = regexp.MustCompile(`[\p{L}\p{N}_]+(?:['.,][\p{L}\p{N}_]+)*`)

// RegexTagger splits text on word boundaries without tagging. It is used when
// no tagging service is configured; with a POS filter every token is dropped.
type RegexTagger struct{}

// Tag implements Tagger
func (RegexTagger) Tag(_ context.Context, text string) ([]types.Token, error) {
	locs := tokenRE.FindAllStringIndex(text, -1)
	tokens := make([]types.Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, types.Token{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
	}
	return tokens, nil
}
