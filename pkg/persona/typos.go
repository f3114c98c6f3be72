package persona

import "strings"

// InjectTypo adds one deterministic typo for typo-prone personas: on every
// third turn, one eligible word (length 5+) loses one vowel. The scan for an
// eligible word starts at index turn%len(words) and wraps around. Seeding
// by turn number keeps replies reproducible across runs.
func InjectTypo(text string, p Profile, turn int) string {
	if !p.TypoProne || turn == 0 || turn%3 != 0 {
		return text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	start := turn % len(words)
	for i := 0; i < len(words); i++ {
		idx := (start + i) % len(words)
		if mangled, ok := dropVowel(words[idx], turn); ok {
			words[idx] = mangled
			return strings.Join(words, " ")
		}
	}
	return text
}

// dropVowel removes one inner vowel from a word of length 5 or more. The
// first and last characters are kept so the word stays readable.
func dropVowel(word string, turn int) (string, bool) {
	if len(word) < 5 {
		return word, false
	}

	var positions []int
	for i := 1; i < len(word)-1; i++ {
		if strings.ContainsRune("aeiouAEIOU", rune(word[i])) {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return word, false
	}

	pos := positions[turn%len(positions)]
	return word[:pos] + word[pos+1:], true
}
