package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Common romanized Hindi words. One hit is enough; these rarely occur in
// English prose.
var hinglishWordRe = regexp.MustCompile(`\b(aap|hai|karo|nahi|ji|kya|kaise|bhej|jaldi)\b`)

// devanagariShare is the rune fraction above which a message counts as
// Hindi script.
const devanagariShare = 0.3

// Language classifies a message as "English", "Hinglish", or "Hindi" from
// its content. Sender metadata is never trusted for this; scammers routinely
// mislabel it.
func Language(text string) string {
	if hinglishWordRe.MatchString(strings.ToLower(text)) {
		return "Hinglish"
	}

	total := utf8.RuneCountInString(text)
	if total == 0 {
		return "English"
	}
	devanagari := 0
	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			devanagari++
		}
	}
	if float64(devanagari)/float64(total) > devanagariShare {
		return "Hindi"
	}
	return "English"
}
