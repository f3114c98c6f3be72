// Package safety is the resilience fabric around all LLM calls: per-module
// circuit breakers, bounded timeouts, pre-call jitter, and synchronous
// fallbacks. Each logical consumer gets its own breaker so a flaky extractor
// upstream cannot disable classification.
package safety

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal: calls flow through
	StateOpen                  // Tripped: calls are rejected
	StateHalfOpen              // Probing: one call allowed to test recovery
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var cbStateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "honeypot",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit breaker state transitions by module, from-state, and to-state.",
}, []string{"module", "from_state", "to_state"})

func init() {
	prometheus.MustRegister(cbStateTransitions)
}

// entry tracks per-module circuit state. Failures are timestamps so the
// threshold applies to a rolling window rather than a lifetime count.
type entry struct {
	state    State
	failures []time.Time
	openedAt time.Time
}

// Breaker is a per-module circuit breaker. It trips open when threshold
// failures land within the rolling window, stays open for openDuration,
// then allows a single half-open probe.
type Breaker struct {
	mu           sync.Mutex
	entries      map[string]*entry
	threshold    int
	window       time.Duration
	openDuration time.Duration
	onTransition func(module string, from, to State)
	now          func() time.Time
}

// NewBreaker creates a circuit breaker that opens after threshold failures
// within window and stays open for openDuration before probing.
func NewBreaker(threshold int, window, openDuration time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	if openDuration <= 0 {
		openDuration = 60 * time.Second
	}
	return &Breaker{
		entries:      make(map[string]*entry),
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		now:          time.Now,
	}
}

// OnTransition sets a callback invoked on state changes (for logging).
func (b *Breaker) OnTransition(fn func(module string, from, to State)) {
	b.mu.Lock()
	b.onTransition = fn
	b.mu.Unlock()
}

// Allow returns true if a call through module should proceed.
// An open circuit past its cooldown transitions to half-open and admits
// exactly one probe.
func (b *Breaker) Allow(module string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[module]
	if !ok {
		return true // No entry = closed
	}

	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(e.openedAt) >= b.openDuration {
			b.transition(e, module, StateHalfOpen)
			return true // Allow one probe
		}
		return false
	case StateHalfOpen:
		return false // Already probing
	default:
		return true
	}
}

// RecordSuccess records a successful call. A half-open probe success closes
// the circuit; in the closed state one stale failure is forgiven so a
// healthy upstream climbs back out of a bad patch.
func (b *Breaker) RecordSuccess(module string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[module]
	if !ok {
		return
	}

	if e.state == StateHalfOpen {
		b.transition(e, module, StateClosed)
		e.failures = nil
		return
	}
	if len(e.failures) > 0 {
		e.failures = e.failures[1:]
	}
}

// RecordFailure records a failed call (timeout, error, or upstream policy
// rejection). Trips the circuit when the rolling window fills.
func (b *Breaker) RecordFailure(module string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[module]
	if !ok {
		e = &entry{state: StateClosed}
		b.entries[module] = e
	}

	now := b.now()
	e.failures = append(e.failures, now)
	e.failures = pruneOld(e.failures, now.Add(-b.window))

	if e.state == StateHalfOpen {
		// Probe failed, back to open for another cooldown.
		e.openedAt = now
		b.transition(e, module, StateOpen)
		return
	}

	if e.state == StateClosed && len(e.failures) >= b.threshold {
		e.openedAt = now
		b.transition(e, module, StateOpen)
	}
}

// State returns the current state for a module. Unknown modules are closed.
func (b *Breaker) State(module string) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[module]
	if !ok {
		return StateClosed
	}
	return e.state
}

// ForceOpen trips a module open immediately. Used by operational tooling
// and tests.
func (b *Breaker) ForceOpen(module string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[module]
	if !ok {
		e = &entry{state: StateClosed}
		b.entries[module] = e
	}
	e.openedAt = b.now()
	b.transition(e, module, StateOpen)
}

func pruneOld(failures []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(failures) && failures[idx].Before(cutoff) {
		idx++
	}
	return failures[idx:]
}

// transition changes state and fires the callback if set.
// Caller must hold b.mu.
func (b *Breaker) transition(e *entry, module string, to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	cbStateTransitions.WithLabelValues(module, from.String(), to.String()).Inc()
	if b.onTransition != nil {
		fn := b.onTransition
		go fn(module, from, to)
	}
}
