package minerva_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/minerva"
	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/nlp"
	"github.com/soundprediction/minerva/pkg/resolver"
	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

const issue = `<TEI><text><body>
<s annotation="opinion.positive"><Entity annotation="Rachilde">Rachilde</Entity> publie un roman.</s>
<s annotation="opinion.negative"><Entity annotation="Gourmont">Remy de Gourmont</Entity> aime le roman.</s>
</body></text></TEI>`

func testSource(t *testing.T) corpus.Source {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("mdf_1_1.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(issue))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	src, err := corpus.NewZipSource(buf.Bytes())
	require.NoError(t, err)
	return src
}

func testBase() *kb.Base {
	base := kb.NewBase()
	base.QIDs["Rachilde"] = "Q1"
	base.QIDs["Gourmont"] = "Q2"
	return base
}

type fakeSink struct {
	graphs map[string]types.Graph
	closed bool
}

func (f *fakeSink) WriteGraph(_ context.Context, name string, g types.Graph) error {
	f.graphs[name] = g
	return nil
}

func (f *fakeSink) ReadGraph(_ context.Context, name string) (types.Graph, error) {
	return f.graphs[name], nil
}

func (f *fakeSink) DeleteGraph(_ context.Context, name string) error {
	delete(f.graphs, name)
	return nil
}

func (f *fakeSink) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestOpinions(t *testing.T) {
	client := minerva.NewClient(testBase(), nil)

	doc, err := client.Opinions(context.Background(), testSource(t), nil)
	require.NoError(t, err)
	require.NoError(t, doc.Data.Validate())

	assert.ElementsMatch(t, []types.Link{
		{Source: "Rachilde", Target: "opinion.positive", Value: 1},
		{Source: "Remy de Gourmont", Target: "opinion.negative", Value: 1},
	}, doc.Data.Links)
}

func TestOpinionsInvalidAuthorPath(t *testing.T) {
	client := minerva.NewClient(nil, nil)
	_, err := client.Opinions(context.Background(), testSource(t), &minerva.OpinionOptions{AuthorPath: "author[@when="})
	assert.Error(t, err)
}

func TestCooccurrences(t *testing.T) {
	client := minerva.NewClient(testBase(), &minerva.Config{MaxDegree: 3}, minerva.WithTagger(nlp.RegexTagger{}))

	doc, err := client.Cooccurrences(context.Background(), testSource(t), nil)
	require.NoError(t, err)
	require.NoError(t, doc.Data.Validate())
	for _, l := range doc.Data.Links {
		assert.Positive(t, l.Value)
	}
}

func TestPersist(t *testing.T) {
	sink := &fakeSink{graphs: map[string]types.Graph{}}
	client := minerva.NewClient(testBase(), nil, minerva.WithSink(sink))
	ctx := context.Background()

	doc, err := client.Opinions(ctx, testSource(t), nil)
	require.NoError(t, err)
	require.NoError(t, client.Persist(ctx, "mdf", doc))
	assert.Equal(t, doc.Data, sink.graphs["mdf"])

	require.NoError(t, client.Ready(ctx))
	require.NoError(t, client.Close(ctx))
	assert.True(t, sink.closed)
}

func TestPersistWithoutSink(t *testing.T) {
	client := minerva.NewClient(nil, nil)
	err := client.Persist(context.Background(), "mdf", types.NewGraphDocument())
	assert.ErrorIs(t, err, minerva.ErrNoSink)
}

func TestLink(t *testing.T) {
	recognizer := nlp.RecognizerFunc(func(_ context.Context, text string) ([]types.RecognizedSpan, error) {
		return []types.RecognizedSpan{{Text: "Rachilde", ID: "Q1", Start: 0, End: 8}}, nil
	})
	searcher := kb.SearcherFunc(func(context.Context, string, string, int) ([]string, error) {
		return nil, nil
	})
	fetcher := kb.FetcherFunc(func(_ context.Context, id string) (*types.KnowledgeRecord, error) {
		return nil, types.NewNotFoundError(id)
	})

	var steps []resolver.Step
	client := minerva.NewClient(nil, nil,
		minerva.WithRecognizer(recognizer),
		minerva.WithKnowledgeService(searcher, fetcher),
	)
	result, err := client.Link(context.Background(), testSource(t), &minerva.LinkOptions{
		Checkpoint: func(_ context.Context, p resolver.Progress) error {
			steps = append(steps, p.Step)
			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Q1", result.Candidates.First("Rachilde"))
	assert.True(t, result.Candidates.IsNIL("Remy de Gourmont"))
	assert.Equal(t, resolver.Steps(), steps)
}

func TestBreakerStates(t *testing.T) {
	failing := kb.SearcherFunc(func(context.Context, string, string, int) ([]string, error) {
		return nil, errors.New("connection refused")
	})
	breaker := utils.NewBreaker("wikidata", utils.BreakerConfig{
		Enabled: true, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ReadyToTripRatio: 0.5,
	}, nil, nil)
	guarded := kb.NewGuarded(failing, nil, &utils.RetryConfig{MaxRetries: 0}, breaker, nil)
	cached := kb.NewCached(guarded, guarded, nil, nil)
	for i := 0; i < 3; i++ {
		_, err := cached.Search(context.Background(), fmt.Sprintf("Rachilde %d", i), "fr", 1)
		require.Error(t, err)
	}

	client := minerva.NewClient(nil, nil,
		minerva.WithKnowledgeService(cached, cached),
		minerva.WithRecognizer(nlp.NewGuardedRecognizer(nlp.RecognizerFunc(nil), nil, nil)),
	)
	assert.Equal(t, map[string]string{"knowledge_base": "open", "recognizer": "disabled"}, client.BreakerStates())
}

func TestLinkRequiresServices(t *testing.T) {
	client := minerva.NewClient(nil, nil)
	_, err := client.Link(context.Background(), testSource(t), nil)
	assert.Error(t, err)
}

func TestLoadSentencesEmptyCorpus(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("empty.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<TEI><s>Sans entité.</s></TEI>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	src, err := corpus.NewZipSource(buf.Bytes())
	require.NoError(t, err)

	_, err = minerva.LoadSentences(context.Background(), src, nil, nil)
	assert.ErrorIs(t, err, types.ErrEmptyInput)
}
