package driver

import (
	"context"

	"github.com/soundprediction/minerva/pkg/types"
)

// Sink stores and reads back named graphs.
type Sink interface {
	// WriteGraph merges the nodes and links of g into the graph called name.
	WriteGraph(ctx context.Context, name string, g types.Graph) error
	// ReadGraph returns the graph called name with nodes and links sorted.
	ReadGraph(ctx context.Context, name string) (types.Graph, error)
	// DeleteGraph removes every node and link of the graph called name.
	DeleteGraph(ctx context.Context, name string) error
	Close(ctx context.Context) error
}
