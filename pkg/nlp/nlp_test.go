package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

const zola = "Émile Zola à Paris"

func TestOpenTapiocaRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, zola, r.PostForm.Get("query"))
		assert.Equal(t, "minerva-test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"annotations":[
			{"start":0,"end":10,"best_qid":"Q504","tags":[{"id":"Q504","types":{"Q5":true}}]},
			{"start":13,"end":18,"best_qid":null,"tags":[]},
			{"start":13,"end":99,"best_qid":"Q90","tags":[]}
		]}`)
	}))
	defer srv.Close()

	c, err := NewOpenTapiocaClient(OpenTapiocaConfig{URL: srv.URL, UserAgent: "minerva-test"})
	require.NoError(t, err)

	spans, err := c.Recognize(context.Background(), zola)
	require.NoError(t, err)
	require.Len(t, spans, 2)

	assert.Equal(t, types.RecognizedSpan{Text: "Émile Zola", ID: "Q504", Label: "PER", Start: 0, End: 11}, spans[0])
	assert.Equal(t, "Paris", spans[1].Text)
	assert.Equal(t, "", spans[1].ID)
	assert.Equal(t, "MISC", spans[1].Label)
	assert.Equal(t, 15, spans[1].Start)
	assert.Equal(t, zola[spans[1].Start:spans[1].End], "Paris")
}

func TestOpenTapiocaErrors(t *testing.T) {
	_, err := NewOpenTapiocaClient(OpenTapiocaConfig{})
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewOpenTapiocaClient(OpenTapiocaConfig{URL: srv.URL})
	require.NoError(t, err)
	_, err = c.Recognize(context.Background(), zola)
	require.Error(t, err)
	assert.True(t, utils.IsRetryable(err))

	spans, err := c.Recognize(context.Background(), "   ")
	assert.NoError(t, err)
	assert.Empty(t, spans)
}

func TestHTTPTagger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req tagRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, zola, req.Text)
		fmt.Fprint(w, `{"tokens":[
			{"text":"Émile","pos":"PROPN","start":0,"end":5},
			{"text":"à","pos":"ADP","start":11,"end":12}
		]}`)
	}))
	defer srv.Close()

	tagger, err := NewHTTPTagger(HTTPTaggerConfig{URL: srv.URL})
	require.NoError(t, err)

	tokens, err := tagger.Tag(context.Background(), zola)
	require.NoError(t, err)
	assert.Equal(t, []types.Token{
		{Text: "Émile", Tag: "PROPN", Start: 0, End: 6},
		{Text: "à", Tag: "ADP", Start: 12, End: 14},
	}, tokens)
}

func TestRegexTagger(t *testing.T) {
	text := "L'Assommoir, de Zola à Médan."
	tokens, err := RegexTagger{}.Tag(context.Background(), text)
	require.NoError(t, err)

	var words []string
	for _, tok := range tokens {
		assert.Equal(t, tok.Text, text[tok.Start:tok.End])
		assert.Empty(t, tok.Tag)
		words = append(words, tok.Text)
	}
	assert.Equal(t, []string{"L'Assommoir", "de", "Zola", "à", "Médan"}, words)
}

func TestGuardedRecognizerRetries(t *testing.T) {
	var calls int32
	inner := RecognizerFunc(func(ctx context.Context, text string) ([]types.RecognizedSpan, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, &utils.StatusError{StatusCode: http.StatusBadGateway}
		}
		return []types.RecognizedSpan{{Text: text, ID: "Q1"}}, nil
	})
	retry := &utils.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	spans, err := NewGuardedRecognizer(inner, retry, nil).Recognize(context.Background(), "Zola")
	require.NoError(t, err)
	assert.Len(t, spans, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGuardedTaggerStopsOnPermanentError(t *testing.T) {
	var calls int32
	inner := TaggerFunc(func(ctx context.Context, text string) ([]types.Token, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &utils.StatusError{StatusCode: http.StatusBadRequest}
	})
	retry := &utils.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := NewGuardedTagger(inner, retry, nil).Tag(context.Background(), "Zola")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
