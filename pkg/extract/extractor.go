// Package extract pulls typed payment artifacts out of scammer messages.
// Layer 1 is deterministic regex extraction and never errors; an optional
// assisted layer (LLM) can fill gaps but its output is funneled through the
// same validators, so the shape and normalization rules are identical.
package extract

import (
	"regexp"
	"strings"
)

// Kind identifies an intelligence artifact type.
type Kind string

const (
	KindBankAccount Kind = "bankAccount"
	KindIFSC        Kind = "ifscCode"
	KindUPI         Kind = "upiId"
	KindPhone       Kind = "phoneNumber"
	KindLink        Kind = "link"
	KindEmail       Kind = "emailAddress"
	KindKeyword     Kind = "suspiciousKeyword"
)

// PriorityKinds is the fixed order in which missing artifacts are pursued.
var PriorityKinds = []Kind{KindBankAccount, KindIFSC, KindUPI, KindLink, KindPhone}

// Artifact is a single extracted value with provenance.
type Artifact struct {
	Value      string  `json:"value"`
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context,omitempty"`
}

// Result maps artifact kinds to extracted instances for one message.
type Result map[Kind][]Artifact

// Compiled once at package load. RE2 has no lookaround, so digit-run
// boundaries are enforced by index checks in the scanners below.
var (
	digitRunRe = regexp.MustCompile(`\d(?:[\s.-]*\d)+`)

	ifscRe = regexp.MustCompile(`\b[A-Z]{4}0[A-Z0-9]{6}\b`)

	upiRe   = regexp.MustCompile(`\b[A-Za-z0-9._-]{2,}@[A-Za-z][A-Za-z0-9]{1,}\b`)
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	urlRe        = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"']+`)
	wwwRe        = regexp.MustCompile(`(?i)\bwww\.[a-z0-9-]+\.[a-z]{2,}(?:/[^\s<>"']*)?`)
	shortenerRe  = regexp.MustCompile(`(?i)\b(?:bit\.ly|tinyurl\.com|t\.me|wa\.me|goo\.gl|cutt\.ly|rb\.gy)/[^\s<>"']+`)
	bareDomainRe = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9-]*\.(?:com|in|net|org|info|xyz|online|site|top|club|tk|ml|ga|cf|gq)\b(?:/[^\s<>"']*)?`)

	accountCtxRe   = regexp.MustCompile(`(?i)\b(?:account|acc?t|a/c)\b`)
	ifscCtxRe      = regexp.MustCompile(`[A-Z]{4}0[A-Z0-9]{6}`)
	phoneCueRe     = regexp.MustCompile(`(?i)\b(?:phone|mobile|call|whatsapp|contact|number to reach)\b|\+91`)
	linkVerbRe     = regexp.MustCompile(`(?i)\b(?:click|tap|open|visit|go\s+to|check)\b`)
	upiKeywordRe   = regexp.MustCompile(`(?i)\bupi\b`)
	accountLabelRe = regexp.MustCompile(`(?i)\b(?:account|a/c)\s*(?:number|no\.?|#)?\s*(?:is)?\s*[:\-]?\s*$`)
)

// upiProviders is the allowlist of payment handles that mark an
// address-shaped token as a UPI ID rather than an email.
var upiProviders = []string{
	"paytm", "phonepe", "googlepay", "gpay", "amazonpay",
	"bhim", "ybl", "okaxis", "oksbi", "okhdfcbank", "okicici",
	"axisbank", "hdfcbank", "icici", "sbi", "pnb",
}

const contextRadius = 50

// Extract runs deterministic extraction over one message. contextWindow is
// recent prior messages (oldest first) used only for cross-turn stitching.
// Malformed input never errors; unmatched input yields an empty Result.
func Extract(text string, contextWindow []string) Result {
	res := Result{}
	if strings.TrimSpace(text) == "" {
		return res
	}

	phones := extractPhones(text)
	accounts := extractBankAccounts(text, phones)
	addArtifacts(res, KindPhone, phones)
	addArtifacts(res, KindBankAccount, accounts)
	addArtifacts(res, KindIFSC, extractIFSC(text))

	upis := extractUPI(text)
	addArtifacts(res, KindUPI, upis)
	addArtifacts(res, KindEmail, extractEmails(text, upis))
	addArtifacts(res, KindLink, extractLinks(text))

	if stitched, ok := stitchBankAccount(text, contextWindow); ok {
		if !containsValue(res[KindBankAccount], stitched.Value) {
			res[KindBankAccount] = append(res[KindBankAccount], stitched)
		}
	}

	return res
}

func addArtifacts(res Result, kind Kind, arts []Artifact) {
	if len(arts) > 0 {
		res[kind] = arts
	}
}

func containsValue(arts []Artifact, value string) bool {
	for _, a := range arts {
		if strings.EqualFold(a.Value, value) {
			return true
		}
	}
	return false
}

// Normalize canonicalizes a raw value for its kind. Idempotent.
func Normalize(kind Kind, raw string) string {
	v := strings.TrimSpace(raw)
	switch kind {
	case KindBankAccount:
		return stripNonDigits(v)
	case KindPhone:
		d := stripNonDigits(v)
		if len(d) == 12 && strings.HasPrefix(d, "91") {
			d = d[2:]
		}
		if len(d) == 11 && strings.HasPrefix(d, "0") {
			d = d[1:]
		}
		if len(d) == 10 {
			return "+91" + d
		}
		if strings.HasPrefix(v, "+") {
			return "+" + d
		}
		return d
	case KindIFSC:
		return strings.ToUpper(v)
	case KindUPI, KindEmail:
		return strings.ToLower(strings.Trim(v, ".,;:!?"))
	case KindLink:
		return strings.Trim(v, ".,;:!?")
	default:
		return v
	}
}

// Valid reports whether a normalized value passes the kind's validator.
// Assisted-layer output goes through this same gate.
func Valid(kind Kind, normalized string) bool {
	switch kind {
	case KindBankAccount:
		n := len(normalized)
		return n >= 9 && n <= 18 && isAllDigits(normalized)
	case KindIFSC:
		return len(normalized) == 11 && normalized[4] == '0' && isAlpha(normalized[:4])
	case KindUPI:
		handle, provider, ok := strings.Cut(normalized, "@")
		return ok && handle != "" && provider != ""
	case KindPhone:
		d := stripNonDigits(normalized)
		return len(d) >= 10 && len(d) <= 12
	case KindEmail:
		local, domain, ok := strings.Cut(normalized, "@")
		return ok && local != "" && strings.Contains(domain, ".")
	case KindLink:
		return normalized != ""
	default:
		return normalized != ""
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

func window(text string, start, end, radius int) string {
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

// digitBounded reports whether the match at [start,end) is not part of a
// longer digit run.
func digitBounded(text string, start, end int) bool {
	if start > 0 && text[start-1] >= '0' && text[start-1] <= '9' {
		return false
	}
	if end < len(text) && text[end] >= '0' && text[end] <= '9' {
		return false
	}
	return true
}

func extractPhones(text string) []Artifact {
	var out []Artifact
	for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
		if !digitBounded(text, loc[0], loc[1]) {
			continue
		}
		raw := text[loc[0]:loc[1]]
		// Allow a +91 / 0 prefix captured just before the run
		if loc[0] >= 1 && text[loc[0]-1] == '+' {
			raw = text[loc[0]-1 : loc[1]]
		}
		digits := stripNonDigits(raw)
		var national string
		switch {
		case len(digits) == 10:
			national = digits
		case len(digits) == 11 && digits[0] == '0':
			national = digits[1:]
		case len(digits) == 12 && strings.HasPrefix(digits, "91"):
			national = digits[2:]
		default:
			continue
		}
		if national[0] < '6' || national[0] > '9' {
			continue
		}
		ctx := window(text, loc[0], loc[1], 30)
		// A 10-digit run next to account context with no phone cue is far
		// more likely an account fragment than a reachable number.
		if (accountCtxRe.MatchString(ctx) || ifscCtxRe.MatchString(ctx)) && !phoneCueRe.MatchString(ctx) {
			continue
		}
		out = append(out, Artifact{
			Value:      "+91" + national,
			Kind:       KindPhone,
			Confidence: 1.0,
			Context:    window(text, loc[0], loc[1], contextRadius),
		})
	}
	return dedupe(out)
}

func extractBankAccounts(text string, phones []Artifact) []Artifact {
	phoneDigits := make(map[string]bool, len(phones))
	for _, p := range phones {
		phoneDigits[stripNonDigits(p.Value)[2:]] = true
	}

	var out []Artifact
	for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
		if !digitBounded(text, loc[0], loc[1]) {
			continue
		}
		digits := stripNonDigits(text[loc[0]:loc[1]])
		if len(digits) < 9 || len(digits) > 18 {
			continue
		}
		if phoneDigits[digits] {
			continue
		}
		ctx := window(text, loc[0], loc[1], 30)
		hasCtx := accountCtxRe.MatchString(ctx)
		// Without a nearby account token, only runs long enough to rule out
		// phone numbers qualify.
		if !hasCtx && len(digits) < 11 {
			continue
		}
		conf := 1.0
		if !hasCtx {
			conf = 0.85
		}
		out = append(out, Artifact{
			Value:      digits,
			Kind:       KindBankAccount,
			Confidence: conf,
			Context:    window(text, loc[0], loc[1], contextRadius),
		})
	}
	return dedupe(out)
}

func extractIFSC(text string) []Artifact {
	var out []Artifact
	for _, loc := range ifscRe.FindAllStringIndex(text, -1) {
		v := text[loc[0]:loc[1]]
		if !Valid(KindIFSC, v) {
			continue
		}
		out = append(out, Artifact{
			Value:      v,
			Kind:       KindIFSC,
			Confidence: 1.0,
			Context:    window(text, loc[0], loc[1], contextRadius),
		})
	}
	return dedupe(out)
}

func extractUPI(text string) []Artifact {
	var out []Artifact
	hasUPIKeyword := upiKeywordRe.MatchString(text)
	for _, loc := range upiRe.FindAllStringIndex(text, -1) {
		raw := Normalize(KindUPI, text[loc[0]:loc[1]])
		_, provider, ok := strings.Cut(raw, "@")
		if !ok {
			continue
		}
		known := false
		for _, h := range upiProviders {
			if strings.Contains(provider, h) {
				known = true
				break
			}
		}
		// Email-shaped tokens (user@gmail.com) stay out unless the message
		// itself talks about UPI.
		if !known {
			if strings.Contains(provider, ".") || !hasUPIKeyword {
				continue
			}
		}
		out = append(out, Artifact{
			Value:      raw,
			Kind:       KindUPI,
			Confidence: 1.0,
			Context:    window(text, loc[0], loc[1], contextRadius),
		})
	}
	return dedupe(out)
}

func extractEmails(text string, upis []Artifact) []Artifact {
	upiSet := make(map[string]bool, len(upis))
	for _, u := range upis {
		upiSet[u.Value] = true
	}
	var out []Artifact
	for _, loc := range emailRe.FindAllStringIndex(text, -1) {
		v := Normalize(KindEmail, text[loc[0]:loc[1]])
		if upiSet[v] || !Valid(KindEmail, v) {
			continue
		}
		out = append(out, Artifact{
			Value:      v,
			Kind:       KindEmail,
			Confidence: 1.0,
			Context:    window(text, loc[0], loc[1], contextRadius),
		})
	}
	return dedupe(out)
}

func extractLinks(text string) []Artifact {
	seen := make(map[string]bool)
	var out []Artifact
	var taken [][]int
	covered := func(loc []int) bool {
		for _, t := range taken {
			if loc[0] >= t[0] && loc[1] <= t[1] {
				return true
			}
		}
		return false
	}
	add := func(loc []int, conf float64) {
		taken = append(taken, loc)
		v := Normalize(KindLink, text[loc[0]:loc[1]])
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Artifact{
			Value:      v,
			Kind:       KindLink,
			Confidence: conf,
			Context:    window(text, loc[0], loc[1], contextRadius),
		})
	}

	for _, loc := range urlRe.FindAllStringIndex(text, -1) {
		add(loc, 1.0)
	}
	for _, loc := range wwwRe.FindAllStringIndex(text, -1) {
		add(loc, 1.0)
	}
	for _, loc := range shortenerRe.FindAllStringIndex(text, -1) {
		add(loc, 1.0)
	}
	// Bare domains only count when the message tells the victim to act on
	// them, otherwise ordinary prose produces junk hits.
	if linkVerbRe.MatchString(text) {
		for _, loc := range bareDomainRe.FindAllStringIndex(text, -1) {
			sub := strings.ToLower(text[loc[0]:loc[1]])
			if strings.Contains(sub, "@") || covered(loc) {
				continue
			}
			add(loc, 0.9)
		}
	}
	return out
}

// stitchBankAccount joins a labeled prefix from an earlier turn ("My account
// number is:") with a bare digit run in the current message.
func stitchBankAccount(text string, contextWindow []string) (Artifact, bool) {
	trimmed := strings.TrimSpace(text)
	digits := stripNonDigits(trimmed)
	if digits == "" || len(digits) < 9 || len(digits) > 18 {
		return Artifact{}, false
	}
	// The current message must be essentially just the number.
	if len(trimmed) > len(digits)+6 {
		return Artifact{}, false
	}
	for _, prior := range contextWindow {
		if accountLabelRe.MatchString(strings.TrimSpace(prior)) {
			return Artifact{
				Value:      digits,
				Kind:       KindBankAccount,
				Confidence: 0.9,
				Context:    strings.TrimSpace(prior) + " " + trimmed,
			}, true
		}
	}
	return Artifact{}, false
}

func dedupe(arts []Artifact) []Artifact {
	if len(arts) < 2 {
		return arts
	}
	seen := make(map[string]int, len(arts))
	var out []Artifact
	for _, a := range arts {
		key := strings.ToLower(a.Value)
		if idx, ok := seen[key]; ok {
			if a.Confidence > out[idx].Confidence {
				out[idx].Confidence = a.Confidence
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, a)
	}
	return out
}
