// Package export writes the outputs of the pipeline: the candidate map, the
// minidump of referenced knowledge records, graph documents (JSON, TSV and
// parquet) and the re-annotated corpus.
//
// Every write failure is returned as a *types.IOError naming the path.
package export
