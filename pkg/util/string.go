package util

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxTitleRunes      = 60
	titleBreakMinRunes = 40
)

var (
	tagTokenRegex   = regexp.MustCompile(`[#@][^\s#@]+`)
	multiSpaceRegex = regexp.MustCompile(`\s+`)
)

// SanitizeTitle normalizes a model-generated video title: surrounding quotes,
// hashtag/mention tokens and emoji are removed, whitespace is collapsed and the
// result is capped at 60 characters. The model is asked to respect these rules
// but is not trusted to.
func SanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	title = StripSurroundingQuotes(title)
	title = tagTokenRegex.ReplaceAllString(title, "")
	title = StripEmoji(title)
	title = multiSpaceRegex.ReplaceAllString(title, " ")
	title = strings.TrimSpace(title)
	return TruncateTitle(title, maxTitleRunes)
}

// StripSurroundingQuotes removes matching or dangling quote characters from
// both ends of a string.
func StripSurroundingQuotes(s string) string {
	return strings.Trim(s, "\"'`«»“”‘’")
}

// StripEmoji removes emoji and pictographic code points from a string.
func StripEmoji(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators
		return true
	case r == 0xFE0F || r == 0x200D: // variation selector, ZWJ
		return true
	case unicode.Is(unicode.So, r):
		return true
	}
	return false
}

// TruncateTitle cuts a title to at most limit runes. When the cut would land
// mid-word and a whitespace boundary exists past rune 40, the title is cut at
// that boundary instead.
func TruncateTitle(title string, limit int) string {
	runes := []rune(title)
	if len(runes) <= limit {
		return title
	}

	cut := runes[:limit]
	breakAt := -1
	for i := len(cut) - 1; i >= titleBreakMinRunes; i-- {
		if unicode.IsSpace(cut[i]) {
			breakAt = i
			break
		}
	}
	if breakAt > 0 {
		cut = cut[:breakAt]
	}

	return strings.TrimSpace(string(cut))
}
