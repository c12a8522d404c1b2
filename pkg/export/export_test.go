package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/minerva/pkg/corpus"
	"github.com/soundprediction/minerva/pkg/types"
)

func testGraph() *types.GraphDocument {
	doc := types.NewGraphDocument()
	doc.Data.Nodes = []types.Node{
		{ID: "roman", Name: "roman", Label: "roman", Group: types.GroupCooccurrences},
		{ID: "Rachilde", Name: "Rachilde", Group: "Rachilde", Class: types.ClassEntity},
	}
	doc.Data.Links = []types.Link{{Source: "Rachilde", Target: "roman", Value: 18}}
	doc.BackToText["roman"] = []types.Provenance{
		{Source: "mdf_1_2.xml", Text: `<span id="Entity" title="Rachilde">Rachilde</span> écrit un roman.`},
	}
	doc.Name2Image["Rachilde"] = "https://upload.wikimedia.org/wikipedia/commons/2/2a/Rachilde.jpg"
	return doc
}

func TestCandidatesRoundTrip(t *testing.T) {
	candidates := types.NewCandidateSet()
	candidates.Set("Rachilde", []string{"Q460046"})
	candidates.Set("Dupont", nil)

	var buf bytes.Buffer
	require.NoError(t, EncodeCandidates(&buf, candidates))
	assert.Equal(t, "{\n \"Dupont\": [\n  \"NIL\"\n ],\n \"Rachilde\": [\n  \"Q460046\"\n ]\n}\n", buf.String())

	path := filepath.Join(t.TempDir(), "out", "candidates.json")
	require.NoError(t, WriteCandidates(path, candidates))
	got, err := ReadCandidates(path)
	require.NoError(t, err)
	assert.Equal(t, candidates.Mentions(), got.Mentions())
	assert.Equal(t, "Q460046", got.First("Rachilde"))
	assert.True(t, got.IsNIL("Dupont"))
}

func TestEncodeMinidump(t *testing.T) {
	var rec types.KnowledgeRecord
	require.NoError(t, rec.UnmarshalJSON([]byte("{\n  \"id\": \"Q1\",\n  \"claims\": {}\n}")))
	records := []*types.KnowledgeRecord{&rec, {ID: "Q2"}}

	var buf bytes.Buffer
	require.NoError(t, EncodeMinidump(&buf, records))
	assert.Equal(t, "[\n {\"id\":\"Q1\",\"claims\":{}},\n {\"id\":\"Q2\"}\n]\n", buf.String())

	buf.Reset()
	require.NoError(t, EncodeMinidump(&buf, nil))
	assert.Equal(t, "[\n\n]\n", buf.String())
}

func TestGraphRoundTrip(t *testing.T) {
	doc := testGraph()
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, WriteGraph(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<span id=\"Entity\"`, "markup is not escaped")

	got, err := ReadGraph(path)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestDecodeGraphNodeEndpoints(t *testing.T) {
	in := `{"data":{"nodes":[{"id":"a","name":"a","group":"g"},{"id":"b","name":"b","group":"g"}],
"links":[{"source":{"id":"a","x":1.5},"target":{"id":"b"},"value":3}]}}`
	doc, err := DecodeGraph(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []types.Link{{Source: "a", Target: "b", Value: 3}}, doc.Data.Links)
}

func TestReadGraphMissingFile(t *testing.T) {
	_, err := ReadGraph(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestWriteFailsWithPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := WriteGraph(filepath.Join(blocker, "graph.json"), testGraph())
	var ioErr *types.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Contains(t, ioErr.Path, blocker)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	links := []types.Link{
		{Source: "Rachilde", Target: "roman", Value: 18},
		{Source: "Remy de Gourmont", Target: "aime", Value: 1},
	}
	require.NoError(t, WriteCSV(&buf, links))
	assert.Equal(t, "source\ttarget\tstrength\nRachilde\troman\t18\nRemy de Gourmont\taime\t1\n", buf.String())
}

func TestParquetRoundTrip(t *testing.T) {
	doc := testGraph()
	dir := t.TempDir()
	require.NoError(t, WriteParquet(dir, doc))

	graph, err := ReadParquetGraph(dir)
	require.NoError(t, err)
	assert.Equal(t, doc.Data, graph)
	assert.FileExists(t, filepath.Join(dir, ProvenanceFile))
}

const issue = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>
<s><Entity annotation="X">Rachilde</Entity> et <Entity>M. Inconnu</Entity>.</s>
</body></text></TEI>`

func TestReannotate(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "annotated")
	require.NoError(t, os.WriteFile(filepath.Join(in, "mdf_1_1.xml"), []byte(issue), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "notes.txt"), []byte("ignored"), 0644))

	candidates := types.NewCandidateSet()
	candidates.Set("Rachilde", []string{"Q460046", "Q1"})

	report, err := Reannotate(context.Background(), in, out, candidates, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, 1, report.Entities)
	assert.Equal(t, []string{"M. Inconnu"}, report.Unlinked)

	data, err := os.ReadFile(filepath.Join(out, "mdf_1_1.xml"))
	require.NoError(t, err)
	doc, err := corpus.ParseBytes("mdf_1_1.xml", data)
	require.NoError(t, err)
	entities := corpus.Descendants(doc.Root(), corpus.EntityElement)
	require.Len(t, entities, 2)

	annotation, _ := corpus.Attribute(entities[0], corpus.AnnotationAttribute)
	qid, _ := corpus.Attribute(entities[0], corpus.WikidataAttribute)
	assert.Equal(t, PersonAnnotation, annotation)
	assert.Equal(t, "Q460046", qid)
	_, ok := corpus.Attribute(entities[1], corpus.WikidataAttribute)
	assert.False(t, ok)

	assert.NoFileExists(t, filepath.Join(out, "notes.txt"))
}

func TestReannotateRefusesBadOutput(t *testing.T) {
	in := t.TempDir()
	candidates := types.NewCandidateSet()

	_, err := Reannotate(context.Background(), in, in, candidates, nil, nil)
	assert.ErrorIs(t, err, ErrSameDirectory)

	file := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = Reannotate(context.Background(), in, file, candidates, nil, nil)
	assert.ErrorIs(t, err, types.ErrIO)
}
