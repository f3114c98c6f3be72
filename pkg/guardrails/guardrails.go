// Package guardrails validates inbound messages for prompt injection and
// sanitizes outbound replies. Sanitization is inline and bounded; there is
// no regeneration loop.
package guardrails

import (
	"log"
	"math/rand"
	"regexp"
	"strings"

	"github.com/decoynet/honeypot/pkg/patterns"
)

// forbiddenTokens are word-boundary regexes whose containing sentence is
// dropped from any outbound reply. Case-insensitive.
var forbiddenTokens = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bAI\b`),
	regexp.MustCompile(`(?i)\bbot\b`),
	regexp.MustCompile(`(?i)\blanguage\s+model\b`),
	regexp.MustCompile(`(?i)\bsystem\s+prompt\b`),
	regexp.MustCompile(`(?i)\bas\s+an\s+assistant\b`),
	regexp.MustCompile(`(?i)\bassistant\b`),
	regexp.MustCompile(`(?i)\bscam\s+detection\b`),
	regexp.MustCompile(`(?i)\bignore\s+previous\b`),
	regexp.MustCompile(`(?i)\bhoneypot\b`),
}

// safeDeflections keep the victim persona intact when a reply cannot be
// used. None of them mention prompts, systems, or instructions.
var safeDeflections = []string{
	"I'm not sure what you mean. I'm just trying to understand what I need to do here.",
	"I'm sorry, I don't follow. Can you explain that more simply?",
	"I'm confused. Are you still helping me with the verification?",
	"That doesn't make sense to me. Let's get back to what we were doing.",
	"I'm just an ordinary person trying to follow your directions. What should I do next?",
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]`)

const minSurvivingLen = 20

// DetectPromptInjection reports whether the inbound text carries
// meta-instructions aimed at the honeypot itself.
func DetectPromptInjection(text string) bool {
	p := patterns.Get().MatchAny(text, patterns.CategoryInjection)
	if p != nil {
		log.Printf("[GUARD] Prompt injection detected: %s", p.Name)
		return true
	}
	return false
}

// SafeDeflection returns a persona-consistent reply used when the inbound
// message tried to break character.
func SafeDeflection() string {
	return safeDeflections[rand.Intn(len(safeDeflections))]
}

// Sanitize removes sentences containing forbidden tokens from a candidate
// reply. When isInjection is set, the reply is replaced with a deflection
// outright. If sanitization leaves too little text, a deflection is
// substituted so the conversation never stalls.
func Sanitize(response string, isInjection bool) string {
	if isInjection {
		return SafeDeflection()
	}

	cleaned, modified := stripForbidden(response)
	if len(strings.TrimSpace(cleaned)) < minSurvivingLen {
		if modified {
			log.Printf("[GUARD] Reply fully consumed by sanitization, deflecting")
		}
		return SafeDeflection()
	}
	if modified {
		log.Printf("[GUARD] Removed forbidden content from reply")
	}
	return cleaned
}

// stripForbidden drops whole sentences that contain any forbidden token.
// Working sentence-wise keeps legitimate text untouched; word boundaries in
// the token patterns protect words like "maintain" or "robotics".
func stripForbidden(response string) (string, bool) {
	hit := false
	for _, tok := range forbiddenTokens {
		if tok.MatchString(response) {
			hit = true
			break
		}
	}
	if !hit {
		return response, false
	}

	sentences := sentenceSplitRe.Split(response, -1)
	var kept []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		bad := false
		for _, tok := range forbiddenTokens {
			if tok.MatchString(s) {
				bad = true
				break
			}
		}
		if !bad {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "", true
	}
	out := strings.Join(kept, ". ")
	if !strings.HasSuffix(out, ".") && !strings.HasSuffix(out, "?") {
		out += "."
	}
	return out, true
}
