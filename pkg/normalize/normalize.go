// Package normalize canonicalizes mention and sentence text so that string
// comparisons between the corpus, the recognizer and the knowledge base are stable.
//
// Rules, applied in order:
//   - trim surrounding whitespace
//   - replace curly apostrophe variants with a straight apostrophe
//   - remove whitespace following an apostrophe
//   - lower-case the elision particles D' and L' at word start
//   - lower-case the infix particles " De " and " Di "
//   - capitalize the first character
//
// Normalization is idempotent. Empty input (after trimming) fails with
// types.EmptyInputError.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/soundprediction/minerva/pkg/types"
)

// Config controls optional behaviour of a Normalizer.
type Config struct {
	// NFC composes the input to Unicode NFC before the rules run, so decomposed
	// accents compare equal to precomposed ones.
	NFC bool
}

// Normalizer applies the normalization rules.
type Normalizer struct {
	config Config
}

// New creates a Normalizer
func New(config Config) *Normalizer {
	return &Normalizer{config: config}
}

var defaultNormalizer = New(Config{})

// Text normalizes s with the default configuration.
func Text(s string) (string, error) {
	return defaultNormalizer.Text(s)
}

// Segments normalizes the concatenation of parts with the default configuration.
func Segments(parts []string) (string, []Span, error) {
	return defaultNormalizer.Segments(parts)
}

// Span is the byte range a segment occupies in the normalized output.
type Span struct {
	Start int
	End   int
}

// Text normalizes a single string.
func (n *Normalizer) Text(s string) (string, error) {
	out, _, err := n.Segments([]string{s})
	if err != nil {
		return "", types.NewEmptyInputError(s)
	}
	return out, nil
}

// Segments normalizes the concatenation of parts (typically sentence text
// interleaved with entity texts) and reports where each part ended up in the
// result. Parts removed entirely get an empty span at their position.
func (n *Normalizer) Segments(parts []string) (string, []Span, error) {
	var units []unit
	bounds := make([]int, 0, len(parts)+1)
	for _, p := range parts {
		if n.config.NFC {
			p = norm.NFC.String(p)
		}
		bounds = append(bounds, len(units))
		for _, r := range p {
			units = append(units, unit{r: r, src: len(units)})
		}
	}
	bounds = append(bounds, len(units))

	units = trim(units)
	units = replaceApostrophes(units)
	units = dropSpaceAfterApostrophe(units)
	lowerElisions(units)
	lowerParticles(units)

	if len(units) == 0 {
		return "", nil, types.NewEmptyInputError(strings.Join(parts, ""))
	}
	units[0].r = unicode.ToUpper(units[0].r)

	var b strings.Builder
	offsets := make([]int, len(units)+1)
	for i, u := range units {
		offsets[i] = b.Len()
		b.WriteRune(u.r)
	}
	offsets[len(units)] = b.Len()

	spans := make([]Span, len(parts))
	for i := range parts {
		spans[i] = Span{
			Start: offsets[firstAtOrAfter(units, bounds[i])],
			End:   offsets[firstAtOrAfter(units, bounds[i+1])],
		}
	}
	return b.String(), spans, nil
}

// unit is one rune of the working text together with the index of the input rune
// it came from.
type unit struct {
	r   rune
	src int
}

func firstAtOrAfter(units []unit, src int) int {
	lo, hi := 0, len(units)
	for lo < hi {
		mid := (lo + hi) / 2
		if units[mid].src < src {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func trim(units []unit) []unit {
	start, end := 0, len(units)
	for start < end && unicode.IsSpace(units[start].r) {
		start++
	}
	for end > start && unicode.IsSpace(units[end-1].r) {
		end--
	}
	return units[start:end]
}

// mojibake is the UTF-8 encoding of ’ decoded as Windows-1252.
var mojibake = []rune("â€™")

func isApostropheVariant(r rune) bool {
	switch r {
	case '’', '‘', 'ʼ', '´', '`':
		return true
	}
	return false
}

func replaceApostrophes(units []unit) []unit {
	out := units[:0:0]
	for i := 0; i < len(units); i++ {
		if matchRunes(units[i:], mojibake) {
			out = append(out, unit{r: '\'', src: units[i].src})
			i += len(mojibake) - 1
			continue
		}
		u := units[i]
		if isApostropheVariant(u.r) {
			u.r = '\''
		}
		out = append(out, u)
	}
	return out
}

func matchRunes(units []unit, runes []rune) bool {
	if len(units) < len(runes) {
		return false
	}
	for i, r := range runes {
		if units[i].r != r {
			return false
		}
	}
	return true
}

func dropSpaceAfterApostrophe(units []unit) []unit {
	out := units[:0:0]
	afterApostrophe := false
	for _, u := range units {
		if afterApostrophe && unicode.IsSpace(u.r) {
			continue
		}
		afterApostrophe = u.r == '\''
		out = append(out, u)
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lowerElisions(units []unit) {
	for i := 0; i+1 < len(units); i++ {
		if (units[i].r != 'D' && units[i].r != 'L') || units[i+1].r != '\'' {
			continue
		}
		if i > 0 && isWordRune(units[i-1].r) {
			continue
		}
		units[i].r = unicode.ToLower(units[i].r)
	}
}

// lowerParticles rewrites " De " and " Di ". Adjacent particles share their
// separating space, so "x De Di y" lowers both.
func lowerParticles(units []unit) {
	for i := 1; i+2 < len(units); i++ {
		if units[i].r != 'D' || (units[i+1].r != 'e' && units[i+1].r != 'i') {
			continue
		}
		if units[i-1].r == ' ' && units[i+2].r == ' ' {
			units[i].r = 'd'
		}
	}
}

// IsErrorProne reports whether a normalized mention is short enough to be
// mislinked: a single word, or an initial followed by a period ("J. Dupont").
func IsErrorProne(mention string) bool {
	if !strings.Contains(mention, " ") {
		return true
	}
	_, size := utf8.DecodeRuneInString(mention)
	return len(mention) > size && mention[size] == '.'
}

// StripTitle removes a leading "M." courtesy title before a knowledge-base search.
func StripTitle(mention string) string {
	if len(mention) >= 2 && strings.EqualFold(mention[:2], "m.") {
		return strings.TrimSpace(mention[2:])
	}
	return mention
}

// LastToken returns the lower-cased last whitespace-separated token.
func LastToken(mention string) string {
	fields := strings.Fields(strings.ToLower(mention))
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// FirstRuneEqual reports whether a and b start with the same character
// (case-sensitive).
func FirstRuneEqual(a, b string) bool {
	ra, _ := utf8.DecodeRuneInString(a)
	rb, _ := utf8.DecodeRuneInString(b)
	return a != "" && b != "" && ra == rb
}
