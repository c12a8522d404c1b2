// Package cooc builds entity/context-word co-occurrence graphs from an
// annotated TEI corpus.
//
// Each sentence contributes its linked entity mentions and its tagged context
// tokens. Joint counts are taken per (mention, token) pair and marginal counts
// per sentence. After the corpus pass, terms seen in a single sentence are
// dropped, pairs are scored with a smoothed Dice coefficient, optionally
// normalized by a background coefficient, thresholded and capped per mention.
package cooc
