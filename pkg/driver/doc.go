// Package driver persists finished graphs to a graph database.
//
// A Sink stores the nodes and links of a types.Graph under a graph name, so
// several co-occurrence graphs (one per corpus or per target property) can live
// in the same database:
//
//	sink, err := driver.NewNeo4jSink(uri, username, password, "neo4j")
//	if err != nil {
//		return err
//	}
//	defer sink.Close(ctx)
//	err = sink.WriteGraph(ctx, "mdf-1897", doc.Data)
//
// Entity nodes are stored with the :Entity label, every other node with :Term,
// and links as :COOCCURS relationships carrying their weight in "value".
package driver
