package nlp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soundprediction/minerva/pkg/types"
)

// Entity type identifiers used to derive a coarse label.
var labelTypes = []struct {
	qid   string
	label string
}{
	{"Q5", "PER"},
	{"Q43229", "ORG"},
	{"Q618123", "LOC"},
	{"Q2221906", "LOC"},
}

// OpenTapiocaConfig configures OpenTapiocaClient.
type OpenTapiocaConfig struct {
	// URL of the annotate endpoint, e.g. https://opentapioca.wordlift.io/api/annotate
	URL       string
	UserAgent string
	Timeout   time.Duration
}

// OpenTapiocaClient is a Recognizer backed by an OpenTapioca annotate endpoint.
type OpenTapiocaClient struct {
	url        string
	userAgent  string
	httpClient *http.Client
}

// NewOpenTapiocaClient creates a recognizer client
func NewOpenTapiocaClient(config OpenTapiocaConfig) (*OpenTapiocaClient, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("recognizer URL is required")
	}
	return &OpenTapiocaClient{
		url:        config.URL,
		userAgent:  config.UserAgent,
		httpClient: newHTTPClient(config.Timeout),
	}, nil
}

type tapiocaTag struct {
	ID    string          `json:"id"`
	Types map[string]bool `json:"types"`
}

type tapiocaAnnotation struct {
	Start   int          `json:"start"`
	End     int          `json:"end"`
	BestQID *string      `json:"best_qid"`
	Tags    []tapiocaTag `json:"tags"`
}

type tapiocaResponse struct {
	Annotations []tapiocaAnnotation `json:"annotations"`
}

// Recognize annotates text. Spans without a best candidate are returned with an
// empty ID.
func (c *OpenTapiocaClient) Recognize(ctx context.Context, text string) ([]types.RecognizedSpan, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	form := url.Values{}
	form.Set("query", text)
	req, err := newRequest(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var resp tapiocaResponse
	if err := doRequest(c.httpClient, req, &resp); err != nil {
		return nil, fmt.Errorf("recognize failed: %w", err)
	}

	offsets := runeOffsets(text)
	spans := make([]types.RecognizedSpan, 0, len(resp.Annotations))
	for _, a := range resp.Annotations {
		start, end, ok := byteSpan(offsets, a.Start, a.End)
		if !ok {
			continue
		}
		span := types.RecognizedSpan{
			Text:  text[start:end],
			Start: start,
			End:   end,
		}
		if a.BestQID != nil {
			span.ID = *a.BestQID
		}
		span.Label = labelFor(a, span.ID)
		spans = append(spans, span)
	}
	return spans, nil
}

func labelFor(a tapiocaAnnotation, best string) string {
	for _, tag := range a.Tags {
		if tag.ID != best {
			continue
		}
		for _, lt := range labelTypes {
			if tag.Types[lt.qid] {
				return lt.label
			}
		}
	}
	return "MISC"
}
