package opinion

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/kb"
	"github.com/soundprediction/minerva/pkg/types"
	"github.com/soundprediction/minerva/pkg/utils"
)

const tei = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><teiHeader><fileDesc><titleStmt><author>%s</author></titleStmt></fileDesc></teiHeader><text><body>%s</body></text></TEI>`

var (
	issueRachilde = fmt.Sprintf(tei, "Rachilde", `
<s annotation="opinion.positive | opinion.admiration"><Entity annotation="Gourmont">Remy de Gourmont</Entity> écrit bien.</s>
<s><Entity annotation="Gourmont">Remy de Gourmont</Entity> sans opinion.</s>
<s annotation="opinion.negative"><Entity annotation="Zola|Gourmont">Zola</Entity> ennuie.</s>`)
	issueAnonyme = fmt.Sprintf(tei, "Anonyme", `
<s annotation="opinion.negative"><Entity annotation="Rachilde">Rachilde</Entity> et <Entity annotation="Rachilde">Rachilde</Entity> exagèrent.</s>`)
)

const (
	pointerRachilde = `<span id="Entity" title="Gourmont">Remy de Gourmont</span> écrit bien.`
	pointerAnonyme  = `<span id="Entity" title="Rachilde">Rachilde</span> et <span id="Entity" title="Rachilde">Rachilde</span> exagèrent.`
)

type fakeImages map[string]string

func (f fakeImages) Resolve(_ context.Context, qid string) (string, error) {
	if url, ok := f[qid]; ok {
		return url, nil
	}
	return "", types.NewNotFoundError(qid, types.PropertyImage)
}

func testSource(t *testing.T) corpus.Source {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct{ name, content string }{
		{"mdf_1_2.xml", issueAnonyme},
		{"mdf_2_1.xml", issueRachilde},
		{"broken.xml", "<TEI><s annotation='x'>"},
	}
	for _, f := range files {
		w, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	src, err := corpus.NewZipSource(buf.Bytes())
	require.NoError(t, err)
	return src
}

func TestBuild(t *testing.T) {
	agg, err := New(nil, Config{Workers: 2})
	require.NoError(t, err)

	doc, err := agg.Build(context.Background(), testSource(t))
	require.NoError(t, err)
	require.NoError(t, doc.Data.Validate())

	assert.Equal(t, []types.Node{
		{ID: "opinion.admiration", Name: "opinion.admiration", Label: "admiration", Group: "opinion", Class: "opinion"},
		{ID: "opinion.negative", Name: "opinion.negative", Label: "negative", Group: "opinion", Class: "opinion"},
		{ID: "opinion.positive", Name: "opinion.positive", Label: "positive", Group: "opinion", Class: "opinion"},
		{ID: "Remy de Gourmont", Name: "Remy de Gourmont", Label: "Remy de Gourmont", Group: "Gourmont", Class: types.ClassEntity},
		{ID: "Rachilde", Name: "Rachilde", Label: "Rachilde", Group: "Rachilde", Class: types.ClassEntity},
	}, doc.Data.Nodes)
	assert.Equal(t, []types.Link{
		{Source: "Remy de Gourmont", Target: "opinion.admiration", Value: 1},
		{Source: "Remy de Gourmont", Target: "opinion.positive", Value: 1},
		{Source: "Rachilde", Target: "opinion.negative", Value: 1},
	}, doc.Data.Links)

	assert.Equal(t, []types.Provenance{{Source: "mdf_1_2.xml", Text: pointerAnonyme}}, doc.BackToText["Rachilde"])
	assert.Equal(t, []types.Provenance{{Source: "mdf_2_1.xml", Text: pointerRachilde}}, doc.BackToText["opinion.positive"])
	assert.NotContains(t, doc.BackToText, "Zola")
	assert.Empty(t, doc.Name2Image)
}

func TestBuildByAuthor(t *testing.T) {
	agg, err := New(nil, Config{AuthorPath: "teiHeader/fileDesc/titleStmt/author"})
	require.NoError(t, err)

	doc, err := agg.Build(context.Background(), testSource(t))
	require.NoError(t, err)
	require.NoError(t, doc.Data.Validate())

	const (
		admiration = "opinion.admiration_Remy de Gourmont_Rachilde"
		negative   = "opinion.negative_Rachilde_Anonyme"
		positive   = "opinion.positive_Remy de Gourmont_Rachilde"
	)
	assert.Equal(t, []types.Node{
		{ID: admiration, Name: admiration, Label: "admiration", Group: "opinion", Class: "opinion"},
		{ID: negative, Name: negative, Label: "negative", Group: "opinion", Class: "opinion"},
		{ID: positive, Name: positive, Label: "positive", Group: "opinion", Class: "opinion"},
		{ID: "Anonyme", Name: "Anonyme", Label: "Anonyme", Group: "Anonyme", Class: types.ClassEntity},
		{ID: "Remy de Gourmont", Name: "Remy de Gourmont", Label: "Remy de Gourmont", Group: "Gourmont", Class: types.ClassEntity},
		{ID: "Rachilde", Name: "Rachilde", Label: "Rachilde", Group: "Rachilde", Class: types.ClassEntity},
	}, doc.Data.Nodes)
	assert.Equal(t, []types.Link{
		{Source: "Remy de Gourmont", Target: admiration, Value: 1},
		{Source: "Remy de Gourmont", Target: positive, Value: 1},
		{Source: "Rachilde", Target: negative, Value: 1},
		{Source: "Anonyme", Target: negative, Value: 1},
		{Source: "Rachilde", Target: admiration, Value: 1},
		{Source: "Rachilde", Target: positive, Value: 1},
	}, doc.Data.Links)

	assert.Equal(t, []types.Provenance{{Source: "mdf_1_2.xml", Text: pointerAnonyme}}, doc.BackToText["Anonyme"])
	assert.Equal(t, []types.Provenance{
		{Source: "mdf_2_1.xml", Text: pointerRachilde},
		{Source: "mdf_1_2.xml", Text: pointerAnonyme},
	}, doc.BackToText["Rachilde"], "author and mention provenance share a key, issue order first")
}

type fileList []corpus.File

func (l fileList) Files() []corpus.File { return l }

func TestAggregateSkipsPanickingFile(t *testing.T) {
	files := append(fileList{}, testSource(t).Files()...)
	files = append(files, corpus.NewFile("mdf_3_1.xml", func() (io.ReadCloser, error) {
		panic("truncated archive member")
	}))

	agg, err := New(nil, Config{Workers: 2})
	require.NoError(t, err)
	table, err := agg.Aggregate(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Links[Edge{Source: "Rachilde", Sentiment: "opinion.negative"}])

	_, err = agg.processFile(files[len(files)-1])
	var panicErr *utils.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "truncated archive member", panicErr.Value)
}

func TestBuildGraphMentionMatchingSentiment(t *testing.T) {
	table := NewTable()
	table.Sentiments["positive"] = "positive"
	table.Sentiments["negative"] = "negative"
	table.Mentions[Mention{Text: "positive", Annotation: "Revue"}] = struct{}{}
	table.Links[Edge{Source: "positive", Sentiment: "negative"}] = 2

	graph := BuildGraph(table, false)
	require.NoError(t, graph.Validate())
	assert.Len(t, graph.Nodes, 2)
	assert.Equal(t, []types.Link{{Source: "positive", Target: "negative", Value: 2}}, graph.Links)
}

func TestAnnotationFilter(t *testing.T) {
	agg, err := New(nil, Config{AnnotationFilter: "Rach"})
	require.NoError(t, err)
	table, err := agg.Aggregate(context.Background(), testSource(t))
	require.NoError(t, err)

	assert.Equal(t, map[Mention]struct{}{{Text: "Rachilde", Annotation: "Rachilde"}: {}}, table.Mentions)
	assert.Equal(t, map[Edge]int{{Source: "Rachilde", Sentiment: "opinion.negative"}: 1}, table.Links)
}

func TestImages(t *testing.T) {
	base := kb.NewBase()
	base.QIDs = map[string]string{"Rachilde": "Q1", "Gourmont": "Q2"}
	agg, err := New(base, Config{}, WithImages(fakeImages{"Q1": "https://example.org/rachilde.jpg"}))
	require.NoError(t, err)

	doc, err := agg.Build(context.Background(), testSource(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Rachilde": "https://example.org/rachilde.jpg"}, doc.Name2Image)
}

func TestInvalidAuthorPath(t *testing.T) {
	_, err := New(nil, Config{AuthorPath: "author[@when="})
	assert.Error(t, err)
}

func TestSentiments(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Sentiments(" b | a ||"))
	assert.Empty(t, Sentiments(" | "))
}

func TestSentimentParts(t *testing.T) {
	tests := []struct {
		in                  string
		group, label, class string
	}{
		{"opinion.positive", "opinion", "positive", "opinion"},
		{"opinion.style.lourd", "opinion.style", "lourd", "opinion"},
		{"neutre", "", "neutre", "neutre"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			group, label, class := sentimentParts(tt.in)
			assert.Equal(t, tt.group, group)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.class, class)
		})
	}
}
