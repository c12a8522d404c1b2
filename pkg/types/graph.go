package types

import (
	"encoding/json"
	"fmt"
)

// Node groups and classes emitted by the aggregators.
const (
	GroupCooccurrences = "cooccurrences"
	ClassEntity        = "entity"
)

// Node is a graph vertex.
type Node struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Group string `json:"group"`
	Class string `json:"class,omitempty"`
}

// Link is a weighted edge between two node IDs. Value is always positive.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Value  int    `json:"value"`
}

// UnmarshalJSON accepts endpoints given either as plain IDs or as node objects
// carrying an "id" field, which is what the front-end sends back once it has
// bound links to nodes.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw struct {
		Source json.RawMessage `json:"source"`
		Target json.RawMessage `json:"target"`
		Value  json.Number     `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if l.Source, err = endpointID(raw.Source); err != nil {
		return fmt.Errorf("link source: %w", err)
	}
	if l.Target, err = endpointID(raw.Target); err != nil {
		return fmt.Errorf("link target: %w", err)
	}
	if raw.Value == "" {
		l.Value = 0
		return nil
	}
	v, err := raw.Value.Float64()
	if err != nil {
		return fmt.Errorf("link value: %w", err)
	}
	l.Value = int(v)
	return nil
}

func endpointID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("missing endpoint")
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var node struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return "", err
	}
	if node.ID == "" {
		return "", fmt.Errorf("endpoint object has no id")
	}
	return node.ID, nil
}

// Graph is the node/link interchange format.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Validate checks that every link endpoint is a node and every weight is positive.
func (g *Graph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}
	for _, l := range g.Links {
		if _, ok := ids[l.Source]; !ok {
			return fmt.Errorf("link %s -> %s: unknown source", l.Source, l.Target)
		}
		if _, ok := ids[l.Target]; !ok {
			return fmt.Errorf("link %s -> %s: unknown target", l.Source, l.Target)
		}
		if l.Value <= 0 {
			return fmt.Errorf("link %s -> %s: non-positive weight %d", l.Source, l.Target, l.Value)
		}
	}
	return nil
}

// GraphDocument is what the graph endpoints and commands produce.
type GraphDocument struct {
	Data       Graph                   `json:"data"`
	BackToText map[string][]Provenance `json:"back_to_text"`
	Name2Image map[string]string       `json:"name2image"`
}

// NewGraphDocument creates an empty document with non-nil collections, so it
// encodes as empty arrays and objects rather than null.
func NewGraphDocument() *GraphDocument {
	return &GraphDocument{
		Data:       Graph{Nodes: []Node{}, Links: []Link{}},
		BackToText: make(map[string][]Provenance),
		Name2Image: make(map[string]string),
	}
}
