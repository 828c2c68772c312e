package optimizer

import (
	"regexp"
	"strings"
)

var (
	introPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(sure|certainly|absolutely|of course)[!,.][ \t]*`),
		regexp.MustCompile(`(?i)^here(?:'s| is| are)\b[^\n]{0,80}?\b(post|draft|version|caption|content)\b[^\n]*?:[ \t]*\n*`),
		regexp.MustCompile(`(?i)^(linkedin post|post|draft|caption)[ \t]*:[ \t]*`),
	}
	outroPattern = regexp.MustCompile(`(?i)\n[ \t]*(feel free to|let me know if|i hope this|hope this helps)[^\n]*$`)

	htmlBreak        = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTag          = regexp.MustCompile(`</?(p|b|strong|i|em|u|span|div)(\s[^>]*)?>`)
	markdownLink     = regexp.MustCompile(`\[([^\]\n]+)\]\((https?://[^)\s]+)\)`)
	markdownHeader   = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	markdownBullet   = regexp.MustCompile(`(?m)^[ \t]*[*+][ \t]+`)
	boldMarkers      = regexp.MustCompile(`\*\*|__`)
	italicMarkers    = regexp.MustCompile(`\*([^*\n]+)\*`)
	strayAsterisks   = regexp.MustCompile(`\*+`)
	placeholderBlock = regexp.MustCompile(`\[[^\]\n]{1,60}\]`)
	horizontalRule   = regexp.MustCompile(`(?m)^[ \t]*(-{3,}|\*{3,}|_{3,})[ \t]*$`)
)

// clean strips model chatter and markup the channel does not render
func clean(text string) string {
	text = strings.ReplaceAll(text, `\r\n`, "\n")
	text = strings.ReplaceAll(text, `\n`, "\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = htmlBreak.ReplaceAllString(text, "\n")
	text = htmlTag.ReplaceAllString(text, "")
	text = markdownLink.ReplaceAllString(text, "$1 $2")
	text = horizontalRule.ReplaceAllString(text, "")
	text = markdownHeader.ReplaceAllString(text, "")
	text = markdownBullet.ReplaceAllString(text, "• ")
	text = boldMarkers.ReplaceAllString(text, "")
	text = italicMarkers.ReplaceAllString(text, "$1")
	text = strayAsterisks.ReplaceAllString(text, "")
	text = stripPlaceholders(text)

	text = stripIntros(strings.TrimSpace(text))
	text = outroPattern.ReplaceAllString(text, "")

	return normalizeWhitespace(text)
}

// stripIntros removes leading chatter phrases until none match
func stripIntros(text string) string {
	for {
		before := text
		for _, p := range introPatterns {
			text = strings.TrimSpace(p.ReplaceAllString(text, ""))
		}
		if text == before {
			return text
		}
	}
}

func stripPlaceholders(text string) string {
	return placeholderBlock.ReplaceAllString(text, "")
}
