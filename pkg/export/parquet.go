package export

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/minerva/pkg/types"
)

// Parquet file names written by WriteParquet.
const (
	NodesFile      = "nodes.parquet"
	LinksFile      = "links.parquet"
	ProvenanceFile = "provenance.parquet"
)

// ParquetNode is the parquet schema of a graph node.
type ParquetNode struct {
	ID    string `parquet:"id"`
	Name  string `parquet:"name"`
	Label string `parquet:"label"`
	Group string `parquet:"group"`
	Class string `parquet:"class"`
	Image string `parquet:"image"`
}

// ParquetLink is the parquet schema of a graph link.
type ParquetLink struct {
	Source string `parquet:"source"`
	Target string `parquet:"target"`
	Value  int64  `parquet:"value"`
}

// ParquetProvenance is one back_to_text entry.
type ParquetProvenance struct {
	Term   string `parquet:"term"`
	Source string `parquet:"source"`
	Text   string `parquet:"text"`
}

// WriteParquet writes doc as three tables under dir: nodes (with the image of
// their group, if any), links and provenance.
func WriteParquet(dir string, doc *types.GraphDocument) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return types.NewIOError("mkdir", dir, err)
	}

	nodes := make([]ParquetNode, len(doc.Data.Nodes))
	for i, n := range doc.Data.Nodes {
		nodes[i] = ParquetNode{ID: n.ID, Name: n.Name, Label: n.Label, Group: n.Group, Class: n.Class, Image: doc.Name2Image[n.Group]}
	}
	path := filepath.Join(dir, NodesFile)
	if err := parquet.WriteFile(path, nodes); err != nil {
		return types.NewIOError("write", path, err)
	}

	links := make([]ParquetLink, len(doc.Data.Links))
	for i, l := range doc.Data.Links {
		links[i] = ParquetLink{Source: l.Source, Target: l.Target, Value: int64(l.Value)}
	}
	path = filepath.Join(dir, LinksFile)
	if err := parquet.WriteFile(path, links); err != nil {
		return types.NewIOError("write", path, err)
	}

	terms := make([]string, 0, len(doc.BackToText))
	for term := range doc.BackToText {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	var provenance []ParquetProvenance
	for _, term := range terms {
		for _, p := range doc.BackToText[term] {
			provenance = append(provenance, ParquetProvenance{Term: term, Source: p.Source, Text: p.Text})
		}
	}
	path = filepath.Join(dir, ProvenanceFile)
	if err := parquet.WriteFile(path, provenance); err != nil {
		return types.NewIOError("write", path, err)
	}
	return nil
}

// ReadParquetGraph reads the nodes and links tables written by WriteParquet.
func ReadParquetGraph(dir string) (types.Graph, error) {
	graph := types.Graph{Nodes: []types.Node{}, Links: []types.Link{}}

	path := filepath.Join(dir, NodesFile)
	nodes, err := parquet.ReadFile[ParquetNode](path)
	if err != nil {
		return graph, types.NewIOError("read", path, err)
	}
	for _, n := range nodes {
		graph.Nodes = append(graph.Nodes, types.Node{ID: n.ID, Name: n.Name, Label: n.Label, Group: n.Group, Class: n.Class})
	}

	path = filepath.Join(dir, LinksFile)
	links, err := parquet.ReadFile[ParquetLink](path)
	if err != nil {
		return graph, types.NewIOError("read", path, err)
	}
	for _, l := range links {
		graph.Links = append(graph.Links, types.Link{Source: l.Source, Target: l.Target, Value: int(l.Value)})
	}
	return graph, nil
}
