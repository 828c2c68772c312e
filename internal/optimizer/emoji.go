package optimizer

import (
	"strings"
)

const (
	zeroWidthJoiner   = '\u200d'
	variationSelector = '\ufe0f'
)

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return false
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r == 0x2B50 || r == 0x2B55 || r == 0x2B06 || r == 0x2B07 || r == 0x2934 || r == 0x2935:
		return true
	}
	return false
}

func isEmojiModifier(r rune) bool {
	return r == variationSelector || (r >= 0x1F3FB && r <= 0x1F3FF)
}

// walkEmoji calls keep for every emoji cluster in order. Clusters joined with
// a zero width joiner or followed by modifiers count once. Runes of dropped
// clusters are omitted from the returned text.
func walkEmoji(text string, keep func(index int) bool) (string, int) {
	var b strings.Builder
	b.Grow(len(text))

	count := 0
	inCluster := false
	keeping := true
	joinNext := false

	for _, r := range text {
		switch {
		case isEmoji(r) && inCluster && joinNext:
			joinNext = false
		case isEmoji(r):
			keeping = keep(count)
			count++
			inCluster = true
		case inCluster && isEmojiModifier(r):
		case inCluster && r == zeroWidthJoiner:
			joinNext = true
		default:
			inCluster = false
			joinNext = false
			keeping = true
		}
		if keeping {
			b.WriteRune(r)
		}
	}
	return b.String(), count
}

func countEmojis(text string) int {
	_, n := walkEmoji(text, func(int) bool { return true })
	return n
}

// capEmojis keeps the first max emoji clusters and deletes the rest
func capEmojis(text string, max int) (string, int) {
	removed := 0
	out, _ := walkEmoji(text, func(i int) bool {
		if i < max {
			return true
		}
		removed++
		return false
	})
	if removed > 0 {
		out = normalizeWhitespace(out)
	}
	return out, removed
}
