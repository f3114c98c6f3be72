package persona

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/decoynet/honeypot/pkg/extract"
	"github.com/decoynet/honeypot/pkg/patterns"
)

// loopPrefixLen is how many lowercased leading characters two replies may
// share before they count as the same reply.
const loopPrefixLen = 25

// shortInboundLen marks an inbound message as too thin to react to.
const shortInboundLen = 30

// SelectInput carries everything the engine needs for one deterministic pick.
type SelectInput struct {
	Missing       []extract.Kind // missing intel kinds, any order
	CapturedKinds int            // count of distinct kinds already captured
	LastTarget    extract.Kind   // kind the previous reply asked for, "" if none
	Inbound       string
	MessageCount  int
	RecentReplies []string // last honeypot replies, newest last
}

// Engine picks reply templates. One engine is shared across sessions; the
// template store is immutable so only the RNG needs a lock.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine builds an engine seeded from seed. Production uses a time seed;
// tests pass a fixed one.
func NewEngine(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// Select returns the template text and its category for the current turn.
// Category choice is rule-driven; only the seed within the category is
// random. Loop detection against recent replies triggers a sibling pick.
func (e *Engine) Select(in SelectInput) (string, Category) {
	cat := e.pickCategory(in)
	text := e.pick(cat, in.RecentReplies)
	if LoopDetect(text, in.RecentReplies) {
		text = e.Sibling(cat, text, in.RecentReplies)
	}
	return text, cat
}

func (e *Engine) pickCategory(in SelectInput) Category {
	reg := patterns.Get()
	hasCredCue := reg.MatchAny(in.Inbound, patterns.CategoryCredentialRequest) != nil
	hasUrgency := reg.MatchAny(in.Inbound, patterns.CategoryUrgency, patterns.CategoryFear) != nil
	hasPayment := reg.MatchAny(in.Inbound, patterns.CategoryPaymentDemand) != nil

	first := firstMissing(in.Missing)

	// A thin inbound gets a probe instead of a flip, even when it carries a
	// credential cue, but only once the high-value asks (account, IFSC) are
	// already settled.
	shortAndWeak := len(strings.TrimSpace(in.Inbound)) < shortInboundLen &&
		!hasUrgency && !hasPayment
	highValueMissing := first == extract.KindBankAccount || first == extract.KindIFSC
	if shortAndWeak && !highValueMissing {
		return CategoryVagueProbe
	}

	if hasCredCue {
		return CategoryCredentialFlip
	}
	if hasUrgency && in.MessageCount >= 4 {
		return CategoryUrgencyEcho
	}
	// The previous ask landed. Probe for an alternate channel before moving
	// down the ladder.
	if in.CapturedKinds >= 1 && in.LastTarget != "" && !kindMissing(in.Missing, in.LastTarget) {
		return CategoryNeedBackup
	}
	if first != "" {
		return categoryForKind[first]
	}
	return CategoryNeedBackup
}

// firstMissing walks the fixed priority ladder and returns the first kind
// still missing, or "" when everything is captured.
func firstMissing(missing []extract.Kind) extract.Kind {
	for _, k := range extract.PriorityKinds {
		if kindMissing(missing, k) {
			return k
		}
	}
	return ""
}

func kindMissing(missing []extract.Kind, k extract.Kind) bool {
	for _, m := range missing {
		if m == k {
			return true
		}
	}
	return false
}

// pick chooses a random seed in the category, skipping seeds used in the
// last two replies when an unused one exists.
func (e *Engine) pick(cat Category, recent []string) string {
	seeds := templates[cat]
	fresh := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if !usedRecently(s, recent, 2) {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		fresh = seeds
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fresh[e.rng.Intn(len(fresh))]
}

// Sibling returns a different seed from the same category, avoiding both the
// rejected candidate and seeds used in the last two turns.
func (e *Engine) Sibling(cat Category, avoid string, recent []string) string {
	seeds := templates[cat]
	candidates := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s != avoid && !usedRecently(s, recent, 2) {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		for _, s := range seeds {
			if s != avoid {
				candidates = append(candidates, s)
			}
		}
	}
	if len(candidates) == 0 {
		return avoid
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return candidates[e.rng.Intn(len(candidates))]
}

// LoopDetect reports whether candidate repeats one of the last three
// honeypot replies, by full match or by shared lowercased prefix.
func LoopDetect(candidate string, recentReplies []string) bool {
	cand := strings.ToLower(strings.TrimSpace(candidate))
	candPrefix := prefix(cand, loopPrefixLen)

	last := recentReplies
	if len(last) > 3 {
		last = last[len(last)-3:]
	}
	for _, r := range last {
		prev := strings.ToLower(strings.TrimSpace(r))
		if prev == cand {
			return true
		}
		if candPrefix != "" && prefix(prev, loopPrefixLen) == candPrefix {
			return true
		}
	}
	return false
}

func usedRecently(seed string, recent []string, turns int) bool {
	last := recent
	if len(last) > turns {
		last = last[len(last)-turns:]
	}
	seedPrefix := prefix(strings.ToLower(seed), loopPrefixLen)
	for _, r := range last {
		if prefix(strings.ToLower(strings.TrimSpace(r)), loopPrefixLen) == seedPrefix {
			return true
		}
	}
	return false
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
