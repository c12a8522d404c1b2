package cooc

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/nlp"
	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

const tei = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>%s</body></text></TEI>`

var (
	issueA = fmt.Sprintf(tei, `
<s><Entity annotation="Rachilde">Rachilde</Entity> aime le roman noir.</s>
<s><Entity annotation="Rachilde">Rachilde</Entity> écrit un roman.</s>
<s><Entity annotation="Inconnu">Personne</Entity> aime.</s>`)
	issueB = fmt.Sprintf(tei, `
<s><Entity annotation="Gourmont">Remy de Gourmont</Entity> aime le roman.</s>
<s><Entity annotation="Gourmont">Remy de Gourmont</Entity> lit 1897 poèmes.</s>`)
)

// testTagger tags capitalized tokens PROPN, numbers NUM and the rest NOUN.
var testTagger = nlp.TaggerFunc(func(ctx context.Context, text string) ([]types.Token, error) {
	tokens, err := nlp.RegexTagger{}.Tag(ctx, text)
	for i, tok := range tokens {
		r, _ := utf8.DecodeRuneInString(tok.Text)
		switch {
		case unicode.IsDigit(r):
			tokens[i].Tag = "NUM"
		case unicode.IsUpper(r):
			tokens[i].Tag = "PROPN"
		default:
			tokens[i].Tag = "NOUN"
		}
	}
	return tokens, err
})

type fakeImages map[string]string

func (f fakeImages) Resolve(_ context.Context, qid string) (string, error) {
	if url, ok := f[qid]; ok {
		return url, nil
	}
	return "", types.NewNotFoundError(qid, types.PropertyImage)
}

func testBase() *kb.Base {
	base := kb.NewBase()
	base.QIDs = map[string]string{"Rachilde": "Q1", "Gourmont": "Q2", "Inconnu": ""}
	base.Claims = map[string]map[string][]string{
		"Q1": {"P21": {"female"}},
		"Q2": {"P21": {"male"}},
	}
	return base
}

func testSource(t *testing.T) corpus.Source {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{"a.xml": issueA, "b.xml": issueB, "broken.xml": "<TEI><s>"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	src, err := corpus.NewZipSource(buf.Bytes())
	require.NoError(t, err)
	return src
}

func TestBuild(t *testing.T) {
	agg := New(testBase(), testTagger, Config{MaxDegree: 2, Workers: 2},
		WithImages(fakeImages{"Q1": "https://upload.wikimedia.org/wikipedia/commons/2/2a/Rachilde.jpg"}))

	doc, err := agg.Build(context.Background(), testSource(t))
	require.NoError(t, err)
	require.NoError(t, doc.Data.Validate())

	assert.Equal(t, []types.Node{
		{ID: "aime", Name: "aime", Label: "aime", Group: types.GroupCooccurrences},
		{ID: "le", Name: "le", Label: "le", Group: types.GroupCooccurrences},
		{ID: "roman", Name: "roman", Label: "roman", Group: types.GroupCooccurrences},
		{ID: "Remy de Gourmont", Name: "Remy de Gourmont", Group: "Gourmont", Class: types.ClassEntity},
		{ID: "Rachilde", Name: "Rachilde", Group: "Rachilde", Class: types.ClassEntity},
	}, doc.Data.Nodes)

	assert.Equal(t, []types.Link{
		{Source: "Remy de Gourmont", Target: "aime", Value: Weight(Dice(1, 2, 2))},
		{Source: "Remy de Gourmont", Target: "le", Value: Weight(Dice(1, 2, 2))},
		{Source: "Rachilde", Target: "aime", Value: Weight(Dice(1, 2, 2))},
		{Source: "Rachilde", Target: "roman", Value: 21},
	}, doc.Data.Links)

	assert.Equal(t, []types.Provenance{
		{Source: "a.xml", Text: `<span id="Entity" title="Rachilde">Rachilde</span> aime le roman noir.`},
		{Source: "a.xml", Text: `<span id="Entity" title="Rachilde">Rachilde</span> écrit un roman.`},
	}, doc.BackToText["Rachilde"])
	assert.Len(t, doc.BackToText["roman"], 3)
	assert.NotContains(t, doc.BackToText, "noir")
	assert.NotContains(t, doc.BackToText, "1897")
	assert.NotContains(t, doc.BackToText, "Personne")

	assert.Equal(t, map[string]string{"Rachilde": "https://upload.wikimedia.org/wikipedia/commons/2/2a/Rachilde.jpg"}, doc.Name2Image)
}

func TestBuildGraphEntityAlsoToken(t *testing.T) {
	table := NewTable()
	table.Entities[EntityKey{Mention: "Rachilde", Group: "Rachilde"}] = struct{}{}
	table.Entities[EntityKey{Mention: "Remy de Gourmont", Group: "Gourmont"}] = struct{}{}
	kept := map[Pair]float64{
		{Mention: "Rachilde", Token: "roman"}:            0.8,
		{Mention: "Remy de Gourmont", Token: "Rachilde"}: 0.6,
	}

	graph := BuildGraph(table, kept)
	require.NoError(t, graph.Validate())

	assert.Equal(t, []types.Node{
		{ID: "Rachilde", Name: "Rachilde", Label: "Rachilde", Group: types.GroupCooccurrences},
		{ID: "roman", Name: "roman", Label: "roman", Group: types.GroupCooccurrences},
		{ID: "Remy de Gourmont", Name: "Remy de Gourmont", Group: "Gourmont", Class: types.ClassEntity},
	}, graph.Nodes)
	assert.ElementsMatch(t, []types.Link{
		{Source: "Rachilde", Target: "roman", Value: Weight(0.8)},
		{Source: "Remy de Gourmont", Target: "Rachilde", Value: Weight(0.6)},
	}, graph.Links)
}

func TestBuildGraphLinksMentionOnce(t *testing.T) {
	table := NewTable()
	table.Entities[EntityKey{Mention: "Rachilde", Group: "Rachilde"}] = struct{}{}
	table.Entities[EntityKey{Mention: "Rachilde", Group: "Vallette"}] = struct{}{}

	graph := BuildGraph(table, map[Pair]float64{{Mention: "Rachilde", Token: "roman"}: 0.5})
	assert.Len(t, graph.Nodes, 2)
	assert.Equal(t, []types.Link{{Source: "Rachilde", Target: "roman", Value: Weight(0.5)}}, graph.Links)
}

func TestAggregateCounts(t *testing.T) {
	agg := New(testBase(), testTagger, Config{})
	table, err := agg.Aggregate(context.Background(), testSource(t))
	require.NoError(t, err)

	assert.Equal(t, 2, table.MentionCount["Rachilde"])
	assert.Equal(t, 3, table.TokenCount["roman"])
	assert.Equal(t, 2, table.Joint[Pair{"Rachilde", "roman"}])
	assert.Zero(t, table.TokenCount["de"], "tokens inside mentions are excluded")
	assert.Zero(t, table.TokenCount["1897"], "numbers are excluded")

	table.RemoveOutliers()
	for term, n := range table.MentionCount {
		assert.NotEqual(t, 1, n, term)
	}
	for term, n := range table.TokenCount {
		assert.NotEqual(t, 1, n, term)
	}
	for p := range table.Joint {
		assert.Contains(t, table.TokenCount, p.Token)
		assert.Contains(t, table.MentionCount, p.Mention)
	}
}

type fileList []corpus.File

func (l fileList) Files() []corpus.File { return l }

func TestAggregateSkipsPanickingFile(t *testing.T) {
	files := append(fileList{}, testSource(t).Files()...)
	files = append(files, corpus.NewFile("corrupt.xml", func() (io.ReadCloser, error) {
		panic("truncated archive member")
	}))

	agg := New(testBase(), testTagger, Config{Workers: 2})
	table, err := agg.Aggregate(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 2, table.MentionCount["Rachilde"])
	assert.Equal(t, 3, table.TokenCount["roman"])

	_, err = agg.processFile(context.Background(), files[len(files)-1])
	var panicErr *utils.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "truncated archive member", panicErr.Value)
}

func TestPOSFilter(t *testing.T) {
	agg := New(testBase(), testTagger, Config{POSFilter: []string{"PROPN"}})
	doc, err := agg.Build(context.Background(), testSource(t))
	require.NoError(t, err)
	assert.Empty(t, doc.Data.Nodes)
	assert.Empty(t, doc.Data.Links)
}

func TestNEFilter(t *testing.T) {
	agg := New(testBase(), testTagger, Config{NEFilter: "Rach"})
	table, err := agg.Aggregate(context.Background(), testSource(t))
	require.NoError(t, err)
	assert.Contains(t, table.MentionCount, "Rachilde")
	assert.NotContains(t, table.MentionCount, "Remy de Gourmont")
}

func TestTargetProperty(t *testing.T) {
	agg := New(testBase(), testTagger, Config{TargetProperty: "P21"})
	table, err := agg.Aggregate(context.Background(), testSource(t))
	require.NoError(t, err)
	table.RemoveOutliers()

	scores := table.Scores(true)
	assert.InDelta(t, (5.0/6.0)/0.5, scores[Pair{"female", "roman"}], 1e-9)
	assert.InDelta(t, 1.0, scores[Pair{"female", "aime"}], 1e-9)
	assert.InDelta(t, 0.6, scores[Pair{"male", "roman"}], 1e-9)

	doc, err := agg.Finalize(context.Background(), table)
	require.NoError(t, err)
	groups := map[string]string{}
	for _, n := range doc.Data.Nodes {
		groups[n.ID] = n.Group
	}
	assert.Equal(t, "P21", groups["female"])
	assert.Equal(t, "P21", groups["male"])
	assert.Equal(t, []types.Provenance{
		{Source: "b.xml", Text: `<span id="Entity" title="male">Remy de Gourmont</span> aime le roman.`},
	}, doc.BackToText["male"][:1])
}

func TestTaggerFailureSkipsSentence(t *testing.T) {
	failing := nlp.TaggerFunc(func(ctx context.Context, text string) ([]types.Token, error) {
		return nil, errors.New("tagger down")
	})
	agg := New(testBase(), failing, Config{})
	table, err := agg.Aggregate(context.Background(), testSource(t))
	require.NoError(t, err)
	assert.Empty(t, table.Joint)
}

func TestWeightAndDice(t *testing.T) {
	assert.Equal(t, 18, Weight(0.7))
	assert.Equal(t, 1, Weight(Threshold))
	assert.Equal(t, 25, Weight(1))

	for ka := 1; ka <= 6; ka++ {
		for kb := 1; kb <= 6; kb++ {
			for kab := 1; kab <= ka && kab <= kb; kab++ {
				d := Dice(kab, ka, kb)
				assert.Greater(t, d, 0.0)
				assert.LessOrEqual(t, d, 1.0)
			}
		}
	}
	assert.Equal(t, 1.0, Dice(3, 3, 3))
}

func TestPruneDegreeCap(t *testing.T) {
	scores := map[Pair]float64{}
	for i := 0; i < 15; i++ {
		scores[Pair{"Rachilde", fmt.Sprintf("t%02d", i)}] = 0.5
	}
	scores[Pair{"Rachilde", "zz"}] = 0.9
	scores[Pair{"Rachilde", "faible"}] = 0.01
	scores[Pair{"Zola", "t00"}] = 0.3

	kept := Prune(scores, 10)
	count := 0
	for p := range kept {
		if p.Mention == "Rachilde" {
			count++
		}
	}
	assert.Equal(t, 10, count)
	assert.Contains(t, kept, Pair{"Rachilde", "zz"})
	assert.Contains(t, kept, Pair{"Rachilde", "t08"})
	assert.NotContains(t, kept, Pair{"Rachilde", "t09"})
	assert.NotContains(t, kept, Pair{"Rachilde", "faible"})
	assert.Contains(t, kept, Pair{"Zola", "t00"})

	assert.Len(t, Prune(scores, 0), 11, "zero falls back to the default degree")
}

func TestMergeCommutative(t *testing.T) {
	a, b := NewTable(), NewTable()
	a.Joint[Pair{"Rachilde", "roman"}] = 2
	a.MentionCount["Rachilde"] = 2
	a.TokenCount["roman"] = 2
	b.Joint[Pair{"Rachilde", "roman"}] = 1
	b.Joint[Pair{"Zola", "roman"}] = 1
	b.MentionCount["Rachilde"] = 1
	b.MentionCount["Zola"] = 1
	b.TokenCount["roman"] = 2

	ab, ba := NewTable(), NewTable()
	ab.Merge(a)
	ab.Merge(b)
	ba.Merge(b)
	ba.Merge(a)
	assert.Equal(t, ab.Joint, ba.Joint)
	assert.Equal(t, ab.MentionCount, ba.MentionCount)
	assert.Equal(t, ab.TokenCount, ba.TokenCount)
	assert.Equal(t, 3, ab.Joint[Pair{"Rachilde", "roman"}])
}

func TestAnnotate(t *testing.T) {
	text := "Rachilde et Remy de Gourmont."
	mentions := []types.Mention{
		{Normalized: "female", Annotation: "P21", Start: 0, End: 8},
		{Normalized: "writer", Annotation: "P21", Start: 0, End: 8},
		{Normalized: "male", Annotation: "P21", Start: 12, End: 28},
	}
	assert.Equal(t,
		`<span id="Entity" title="female | writer">Rachilde</span> et <span id="Entity" title="male">Remy de Gourmont</span>.`,
		annotate(text, mentions, true))
	assert.Equal(t,
		`<span id="Entity" title="P21">Rachilde</span> et <span id="Entity" title="P21">Remy de Gourmont</span>.`,
		annotate(text, []types.Mention{mentions[0], mentions[2]}, false))
	assert.Equal(t, text, annotate(text, nil, false))

	text = "Vallette & <Rachilde> l'ont lu."
	assert.Equal(t,
		`Vallette &amp; &lt;<span id="Entity" title="female &amp; &#34;Q264&#34;">Rachilde</span>&gt; l'ont lu.`,
		annotate(text, []types.Mention{{Normalized: `female & "Q264"`, Start: 12, End: 20}}, true))
}
