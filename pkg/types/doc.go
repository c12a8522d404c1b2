// Package types defines the shared data model of minerva.
//
// This package contains the fundamental types used throughout the linking and
// graph-building pipelines:
//   - Mention: a surface string found inside a sentence, with its byte span
//   - CandidateSet: normalized mention -> ordered knowledge-base identifiers
//   - KnowledgeRecord: a knowledge-base item with its claims
//   - Graph, Node, Link: the node/link interchange format consumed by the front-end
//   - GraphDocument: a graph plus provenance (back_to_text) and images (name2image)
//
// # Sentinel
//
// NIL marks "no candidate found". A CandidateSet never stores an empty list:
// setting an empty list stores []string{NIL} instead.
//
// # Errors
//
// The error taxonomy (EmptyInputError, NotFoundError, MissingRealNameError,
// IOError) supports errors.Is against both the sentinel variables and
// zero-valued struct pointers:
//
//	if errors.Is(err, types.ErrNotFound) {
//	    // skip the candidate
//	}
package types
