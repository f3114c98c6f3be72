// Package detect scores individual messages for scam tactics. The detector
// keeps no state; the session manager folds its per-message signal into the
// running suspicion score.
package detect

import (
	"regexp"
	"strings"

	"github.com/decoynet/honeypot/pkg/patterns"
)

// ScamType is the coarse classification used for persona selection and the
// final report.
type ScamType string

const (
	TypePhishing      ScamType = "phishing"
	TypeLottery       ScamType = "lottery"
	TypeTechSupport   ScamType = "tech_support"
	TypeRomance       ScamType = "romance"
	TypeInvestment    ScamType = "investment"
	TypeFakeJob       ScamType = "fake_job"
	TypeImpersonation ScamType = "impersonation"
	TypeUnknown       ScamType = "unknown"
)

// Signal is the per-message output of the detector.
type Signal struct {
	RuleScore            float64  // normalized [0,1]
	Tactics              []string // matched tactic families
	Keywords             []string // surfaced lexicon hits for the intel graph
	ScamType             ScamType
	ExtractionIntent     bool // message is angling for credentials or payment
	HasUrgency           bool
	HasPaymentTerms      bool
	HasCredentialRequest bool
	IsPromptInjection    bool
	Shortcut             bool // a short-circuit rule fired
}

// scoringFamilies are the tactic categories whose weights feed the rule score.
var scoringFamilies = []patterns.Category{
	patterns.CategoryUrgency,
	patterns.CategoryFear,
	patterns.CategoryAuthority,
	patterns.CategoryGreed,
	patterns.CategoryCredentialRequest,
	patterns.CategoryPaymentDemand,
	patterns.CategorySuspiciousURL,
}

// densityMaxWeight is the theoretical maximum of the eighth family:
// all-caps shouting (2) plus exclamation stacking (1).
const densityMaxWeight = 3

var exclaimRunRe = regexp.MustCompile(`!{2,}`)

// scam-type lexicons. Counted hits pick the dominant type.
var scamTypeLexicons = map[ScamType]*regexp.Regexp{
	TypePhishing:      regexp.MustCompile(`(?i)\b(verify|account|suspended|blocked|kyc|net\s*banking|update\s+your)\b`),
	TypeLottery:       regexp.MustCompile(`(?i)\b(won|lottery|prize|lucky\s+draw|winner|jackpot|claim)\b`),
	TypeTechSupport:   regexp.MustCompile(`(?i)\b(computer|virus|microsoft|windows|support|remote|anydesk|teamviewer)\b`),
	TypeRomance:       regexp.MustCompile(`(?i)\b(love|dear|darling|sweetheart|relationship|lonely)\b`),
	TypeInvestment:    regexp.MustCompile(`(?i)\b(invest(ment)?|returns?|profit|trading|crypto|stocks?|double\s+your)\b`),
	TypeFakeJob:       regexp.MustCompile(`(?i)\b(job|salary|hiring|recruit(er|ment)?|work\s+from\s+home|part\s*time)\b`),
	TypeImpersonation: regexp.MustCompile(`(?i)\b(police|officer|government|customs|arrest|warrant|income\s+tax)\b`),
}

// Score runs rule scoring over a single message. Pure and stateless.
func Score(text string) Signal {
	sig := Signal{ScamType: TypeUnknown}
	if strings.TrimSpace(text) == "" {
		return sig
	}

	reg := patterns.Get()
	hits := reg.MatchAll(text, scoringFamilies...)

	observed := 0
	families := map[patterns.Category]bool{}
	for _, h := range hits {
		observed += h.Weight
		families[h.Category] = true
		sig.Keywords = append(sig.Keywords, h.Name)
	}
	observed += densityWeight(text)

	max := reg.MaxWeight(scoringFamilies...) + densityMaxWeight
	if max > 0 {
		sig.RuleScore = clamp(float64(observed)/float64(max), 0, 1)
	}

	for cat := range families {
		sig.Tactics = append(sig.Tactics, string(cat))
	}

	sig.HasUrgency = families[patterns.CategoryUrgency]
	sig.HasPaymentTerms = families[patterns.CategoryPaymentDemand]
	sig.HasCredentialRequest = families[patterns.CategoryCredentialRequest]
	sig.IsPromptInjection = reg.MatchAny(text, patterns.CategoryInjection) != nil
	sig.ExtractionIntent = sig.HasCredentialRequest || sig.HasPaymentTerms

	sig.Shortcut = shortcut(reg, text, families)
	if sig.Shortcut {
		sig.RuleScore = 1.0
	}

	sig.ScamType = classifyType(text)
	return sig
}

// shortcut implements the three force-high rules: urgency plus credential
// request, prize bait plus a claim verb, and a suspicious URL alongside
// payment or login verbs.
func shortcut(reg *patterns.Registry, text string, families map[patterns.Category]bool) bool {
	if families[patterns.CategoryUrgency] && families[patterns.CategoryCredentialRequest] {
		return true
	}
	if families[patterns.CategoryGreed] && reg.MatchAny(text, patterns.CategoryClaimAction) != nil {
		return true
	}
	if families[patterns.CategorySuspiciousURL] {
		if families[patterns.CategoryPaymentDemand] || reg.MatchAny(text, patterns.CategoryLoginVerb) != nil {
			return true
		}
	}
	return false
}

func densityWeight(text string) int {
	w := 0
	if capsRatio(text) > 0.3 {
		w += 2
	}
	if exclaimRunRe.MatchString(text) {
		w++
	}
	return w
}

func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
			upper++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	if letters < 10 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func classifyType(text string) ScamType {
	best := TypeUnknown
	bestHits := 0
	// fixed iteration order keeps classification deterministic on ties
	order := []ScamType{
		TypePhishing, TypeLottery, TypeTechSupport, TypeRomance,
		TypeInvestment, TypeFakeJob, TypeImpersonation,
	}
	for _, st := range order {
		hits := len(scamTypeLexicons[st].FindAllStringIndex(text, -1))
		if hits > bestHits {
			best = st
			bestHits = hits
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
