package nlp

import "unicode/utf8"

// runeOffsets maps code point indices to byte offsets. The returned slice has
// one entry per rune plus a final entry equal to len(text).
func runeOffsets(text string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}

// byteSpan converts a code point span to a byte span. ok is false when the span
// does not fit the text.
func byteSpan(offsets []int, start, end int) (int, int, bool) {
	if start < 0 || end < start || end >= len(offsets) {
		return 0, 0, false
	}
	return offsets[start], offsets[end], true
}
