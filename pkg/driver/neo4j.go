package driver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/minerva/pkg/types"
)

// Neo4jSink implements Sink for Neo4j databases.
type Neo4jSink struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jSink creates a new Neo4j sink. The connection is established lazily;
// call VerifyConnectivity to fail fast.
func NewNeo4jSink(uri, username, password, database string) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}

	return &Neo4jSink{
		client:   driver,
		database: database,
	}, nil
}

// VerifyConnectivity checks that the database is reachable.
func (n *Neo4jSink) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

// CreateIndices creates the lookup indices used by WriteGraph and ReadGraph.
func (n *Neo4jSink) CreateIndices(ctx context.Context) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	indices := []string{
		"CREATE INDEX entity_id_graph IF NOT EXISTS FOR (n:Entity) ON (n.id, n.graph)",
		"CREATE INDEX term_id_graph IF NOT EXISTS FOR (n:Term) ON (n.id, n.graph)",
	}

	for _, indexQuery := range indices {
		_, err := session.Run(ctx, indexQuery, nil)
		if err != nil {
			if !strings.Contains(err.Error(), "already exists") && !strings.Contains(err.Error(), "An equivalent") {
				return err
			}
		}
	}

	return nil
}

const (
	mergeEntitiesQuery = `
		UNWIND $nodes AS node
		MERGE (n:Entity {id: node.id, graph: $graph})
		SET n.name = node.name, n.label = node.label, n.group = node.group, n.class = node.class
	`
	mergeTermsQuery = `
		UNWIND $nodes AS node
		MERGE (n:Term {id: node.id, graph: $graph})
		SET n.name = node.name, n.label = node.label, n.group = node.group, n.class = node.class
	`
	mergeLinksQuery = `
		UNWIND $links AS link
		MATCH (s {id: link.source, graph: $graph})
		MATCH (t {id: link.target, graph: $graph})
		MERGE (s)-[r:COOCCURS {graph: $graph}]->(t)
		SET r.value = link.value
	`
)

// WriteGraph merges g into the graph called name in a single write
// transaction. Writing the same graph twice leaves the database unchanged.
func (n *Neo4jSink) WriteGraph(ctx context.Context, name string, g types.Graph) error {
	if name == "" {
		return fmt.Errorf("graph name is required")
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("invalid graph %q: %w", name, err)
	}
	entities, terms := NodeParams(g.Nodes)
	links := LinkParams(g.Links)

	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(entities) > 0 {
			if _, err := tx.Run(ctx, mergeEntitiesQuery, map[string]any{"nodes": entities, "graph": name}); err != nil {
				return nil, err
			}
		}
		if len(terms) > 0 {
			if _, err := tx.Run(ctx, mergeTermsQuery, map[string]any{"nodes": terms, "graph": name}); err != nil {
				return nil, err
			}
		}
		if len(links) > 0 {
			if _, err := tx.Run(ctx, mergeLinksQuery, map[string]any{"links": links, "graph": name}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to write graph %q: %w", name, err)
	}
	return nil
}

// ReadGraph returns the graph called name, nodes sorted by id and links by
// (source, target).
func (n *Neo4jSink) ReadGraph(ctx context.Context, name string) (types.Graph, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		g := types.Graph{Nodes: []types.Node{}, Links: []types.Link{}}

		res, err := tx.Run(ctx, `
			MATCH (n {graph: $graph})
			WHERE n:Entity OR n:Term
			RETURN n.id AS id, n.name AS name, n.label AS label, n.group AS group, n.class AS class
			ORDER BY id
		`, map[string]any{"graph": name})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			var node types.Node
			fields := []struct {
				key string
				dst *string
			}{
				{"id", &node.ID}, {"name", &node.Name}, {"label", &node.Label},
				{"group", &node.Group}, {"class", &node.Class},
			}
			for _, f := range fields {
				if *f.dst, err = RecordString(record, f.key); err != nil {
					return nil, err
				}
			}
			g.Nodes = append(g.Nodes, node)
		}

		res, err = tx.Run(ctx, `
			MATCH (s {graph: $graph})-[r:COOCCURS {graph: $graph}]->(t {graph: $graph})
			RETURN s.id AS source, t.id AS target, r.value AS value
			ORDER BY source, target
		`, map[string]any{"graph": name})
		if err != nil {
			return nil, err
		}
		records, err = res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			source, err := RecordString(record, "source")
			if err != nil {
				return nil, err
			}
			target, err := RecordString(record, "target")
			if err != nil {
				return nil, err
			}
			value, err := RecordInt64(record, "value")
			if err != nil {
				return nil, err
			}
			g.Links = append(g.Links, types.Link{Source: source, Target: target, Value: int(value)})
		}
		return g, nil
	})
	if err != nil {
		return types.Graph{}, fmt.Errorf("failed to read graph %q: %w", name, err)
	}
	return result.(types.Graph), nil
}

// DeleteGraph removes the graph called name.
func (n *Neo4jSink) DeleteGraph(ctx context.Context, name string) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MATCH (n {graph: $graph})
			WHERE n:Entity OR n:Term
			DETACH DELETE n
		`, map[string]any{"graph": name})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to delete graph %q: %w", name, err)
	}
	return nil
}

// Close closes the driver.
func (n *Neo4jSink) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// NodeParams splits nodes into entity and term query parameters. A node is an
// entity when its class is types.ClassEntity. Duplicate IDs keep the first node.
func NodeParams(nodes []types.Node) (entities, terms []map[string]any) {
	seen := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		if _, ok := seen[node.ID]; ok {
			continue
		}
		seen[node.ID] = struct{}{}
		param := map[string]any{
			"id":    node.ID,
			"name":  node.Name,
			"label": node.Label,
			"group": node.Group,
			"class": node.Class,
		}
		if node.Class == types.ClassEntity {
			entities = append(entities, param)
		} else {
			terms = append(terms, param)
		}
	}
	return entities, terms
}

// LinkParams converts links to query parameters sorted by (source, target).
// Duplicate pairs keep the highest weight.
func LinkParams(links []types.Link) []map[string]any {
	type pair struct{ source, target string }
	values := make(map[pair]int64, len(links))
	for _, l := range links {
		p := pair{l.Source, l.Target}
		if v, ok := values[p]; !ok || int64(l.Value) > v {
			values[p] = int64(l.Value)
		}
	}
	pairs := make([]pair, 0, len(values))
	for p := range values {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].source != pairs[j].source {
			return pairs[i].source < pairs[j].source
		}
		return pairs[i].target < pairs[j].target
	})
	params := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		params = append(params, map[string]any{
			"source": p.source,
			"target": p.target,
			"value":  values[p],
		})
	}
	return params
}

var _ Sink = (*Neo4jSink)(nil)
