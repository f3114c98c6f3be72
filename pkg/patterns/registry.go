// Package patterns provides a centralized, high-performance pattern registry
// for scam-tactic detection. All regex patterns are compiled once at package
// init and shared across the detector, guardrails, and persona selector.
//
// Design principles:
// - COMPILE ONCE: All patterns compiled at init, not per-request
// - DRY: Single source of truth for the scam lexicon
// - CATEGORIZED: Patterns organized by tactic family for targeted scans
// - EXTENSIBLE: Easy to add new patterns without modifying detector code
package patterns

import (
	"regexp"
	"sync"
)

// Category represents a tactic family in the scam lexicon
type Category string

const (
	// Scam tactic families (detector scoring)
	CategoryUrgency           Category = "urgency"
	CategoryFear              Category = "fear"
	CategoryAuthority         Category = "authority"
	CategoryGreed             Category = "greed"
	CategoryCredentialRequest Category = "credential_request"
	CategoryPaymentDemand     Category = "payment_demand"
	CategorySuspiciousURL     Category = "suspicious_url"

	// Shortcut helpers (detector short-circuit rules)
	CategoryClaimAction Category = "claim_action"
	CategoryLoginVerb   Category = "login_verb"

	// Guardrails
	CategoryInjection Category = "injection"
)

// Pattern holds a compiled regex with metadata
type Pattern struct {
	Name        string         // Human-readable name for logging
	Regex       *regexp.Regexp // Compiled regex (never nil after init)
	Category    Category       // Tactic family
	Weight      int            // Score contribution when matched
	Description string         // What this pattern detects
}

// Registry holds all compiled patterns, organized by category
type Registry struct {
	mu         sync.RWMutex
	byCategory map[Category][]*Pattern
	all        []*Pattern
}

// global singleton - initialized once at package load
var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry (singleton)
// Thread-safe and guaranteed to be initialized
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

// newRegistry creates and populates the pattern registry
func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[Category][]*Pattern),
		all:        make([]*Pattern, 0, 128),
	}

	r.registerUrgencyPatterns()
	r.registerFearPatterns()
	r.registerAuthorityPatterns()
	r.registerGreedPatterns()
	r.registerCredentialRequestPatterns()
	r.registerPaymentDemandPatterns()
	r.registerSuspiciousURLPatterns()
	r.registerShortcutPatterns()
	r.registerInjectionPatterns()

	return r
}

// register adds a pattern to the registry (internal use only)
func (r *Registry) register(name string, pattern string, category Category, weight int, description string) {
	compiled := regexp.MustCompile(pattern)
	p := &Pattern{
		Name:        name,
		Regex:       compiled,
		Category:    category,
		Weight:      weight,
		Description: description,
	}

	r.byCategory[category] = append(r.byCategory[category], p)
	r.all = append(r.all, p)
}

// GetByCategory returns all patterns for a specific category
// Returns empty slice if category not found (never nil)
func (r *Registry) GetByCategory(cat Category) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if patterns, ok := r.byCategory[cat]; ok {
		return patterns
	}
	return []*Pattern{}
}

// GetMultipleCategories returns patterns from multiple categories
func (r *Registry) GetMultipleCategories(cats ...Category) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Pattern
	for _, cat := range cats {
		if patterns, ok := r.byCategory[cat]; ok {
			result = append(result, patterns...)
		}
	}
	return result
}

// MatchAny checks if text matches any pattern in the given categories
// Returns the first matching pattern or nil
// This is optimized for early exit on first match
func (r *Registry) MatchAny(text string, cats ...Category) *Pattern {
	patterns := r.GetMultipleCategories(cats...)
	for _, p := range patterns {
		if p.Regex.MatchString(text) {
			return p
		}
	}
	return nil
}

// MatchAll returns all patterns that match the text in given categories
// Use when you need every hit (for weighted scoring)
func (r *Registry) MatchAll(text string, cats ...Category) []*Pattern {
	patterns := r.GetMultipleCategories(cats...)
	var matches []*Pattern
	for _, p := range patterns {
		if p.Regex.MatchString(text) {
			matches = append(matches, p)
		}
	}
	return matches
}

// MaxWeight returns the sum of the highest-weighted pattern per category.
// The detector divides observed hit weights by this to normalize scores.
func (r *Registry) MaxWeight(cats ...Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, cat := range cats {
		best := 0
		for _, p := range r.byCategory[cat] {
			if p.Weight > best {
				best = p.Weight
			}
		}
		total += best
	}
	return total
}

// TotalPatterns returns the total count of registered patterns
func (r *Registry) TotalPatterns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// CategoryCount returns the number of patterns in a category
func (r *Registry) CategoryCount(cat Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[cat])
}
