// Package opinion builds opinion graphs: which sentiments sentences express
// about the entities they mention, optionally split by the author of each issue.
//
// Only sentences carrying an annotation attribute take part. The attribute holds
// one or more sentiment labels separated by "|", each a dotted path such as
// "opinion.positive". Every distinct (mention, annotation) pair of the sentence
// is linked to every sentiment, with raw counts as link weights.
package opinion
