package cooc

import (
	"math"

	"github.com/soundprediction/minerva/pkg/utils"
)

const (
	// Threshold is the minimum score a pair needs to be kept.
	Threshold = 0.02
	// Smoothing is added to numerator and denominator of the Dice coefficient.
	Smoothing = 1.0
	// DefaultMaxDegree caps the links kept per mention.
	DefaultMaxDegree = 10
)

// weightScale maps the threshold to half a weight unit.
const weightScale = 1.0 / (Threshold * 2)

// Dice returns the smoothed Dice coefficient (2k_ab + s) / (k_a + k_b + s).
func Dice(kab, ka, kb int) float64 {
	return (2*float64(kab) + Smoothing) / (float64(ka) + float64(kb) + Smoothing)
}

// Weight converts a score into an integer link weight.
func Weight(score float64) int {
	return int(math.Ceil(score * weightScale))
}

// Scores computes the score of every pair of the table. With background set,
// each coefficient is divided by the coefficient of the token with all other
// mentions; pairs whose background is zero or not finite get no score.
func (t *Table) Scores(background bool) map[Pair]float64 {
	scores := make(map[Pair]float64, len(t.Joint))

	var tokenJoint map[string]int
	totalMentions := 0
	if background {
		tokenJoint = make(map[string]int)
		for p, n := range t.Joint {
			tokenJoint[p.Token] += n
		}
		for _, n := range t.MentionCount {
			totalMentions += n
		}
	}

	for p, kab := range t.Joint {
		ka := t.MentionCount[p.Mention]
		kb := t.TokenCount[p.Token]
		coeff := Dice(kab, ka, kb)
		if !background {
			scores[p] = coeff
			continue
		}
		kabBar := tokenJoint[p.Token] - kab
		kaBar := totalMentions - ka
		coeffBar := Dice(kabBar, kaBar, kb)
		if coeffBar == 0 || math.IsInf(coeffBar, 0) || math.IsNaN(coeffBar) {
			continue
		}
		scores[p] = coeff / coeffBar
	}
	return scores
}

// Prune drops pairs scoring below Threshold and keeps the maxDegree best pairs
// per mention, ties broken by ascending token.
func Prune(scores map[Pair]float64, maxDegree int) map[Pair]float64 {
	if maxDegree <= 0 {
		maxDegree = DefaultMaxDegree
	}
	perMention := make(map[string][]utils.ScoredItem[string])
	for p, score := range scores {
		if score < Threshold {
			continue
		}
		perMention[p.Mention] = append(perMention[p.Mention], utils.ScoredItem[string]{Item: p.Token, Score: score})
	}

	byToken := func(a, b string) bool { return a < b }
	kept := make(map[Pair]float64)
	for mention, items := range perMention {
		for _, it := range utils.TopKByScore(items, maxDegree, byToken) {
			kept[Pair{Mention: mention, Token: it.Item}] = it.Score
		}
	}
	return kept
}
