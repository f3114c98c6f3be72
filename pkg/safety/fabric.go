package safety

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Module names the three logical LLM consumers.
type Module string

const (
	ModuleClassifier Module = "classifier"
	ModuleGenerator  Module = "generator"
	ModuleExtractor  Module = "extractor"
)

// Per-module call timeouts. The jitter sleep happens before the clock
// starts, so the budget covers only the remote work.
var moduleTimeouts = map[Module]time.Duration{
	ModuleClassifier: 800 * time.Millisecond,
	ModuleGenerator:  1200 * time.Millisecond,
	ModuleExtractor:  800 * time.Millisecond,
}

const (
	jitterMin = 10 * time.Millisecond
	jitterMax = 30 * time.Millisecond
)

// Sentinel errors surfaced by Call.
var (
	ErrBreakerOpen = errors.New("safety: circuit open")
	ErrTimeout     = errors.New("safety: call timed out")
)

var callOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "honeypot",
	Subsystem: "safety",
	Name:      "llm_calls_total",
	Help:      "LLM call outcomes by module and result.",
}, []string{"module", "outcome"})

func init() {
	prometheus.MustRegister(callOutcomes)
}

// Fabric wraps the shared breaker set. One Fabric is process-global.
type Fabric struct {
	breaker *Breaker
}

// NewFabric builds the fabric with the standard trip policy: three failures
// in a rolling 60s window open the module for a 60s cooldown.
func NewFabric() *Fabric {
	b := NewBreaker(3, 60*time.Second, 60*time.Second)
	b.OnTransition(func(module string, from, to State) {
		log.Printf("[SAFETY] %s breaker %s -> %s", module, from, to)
	})
	return &Fabric{breaker: b}
}

// Breaker exposes the underlying breaker for status endpoints and tests.
func (f *Fabric) Breaker() *Breaker {
	return f.breaker
}

// Timeout returns the call budget for a module.
func Timeout(m Module) time.Duration {
	if d, ok := moduleTimeouts[m]; ok {
		return d
	}
	return 800 * time.Millisecond
}

// Call runs fn under the module's breaker and timeout, returning fallback
// synchronously when the circuit is open or the call fails. The boolean
// reports whether the live result was used.
func Call[T any](f *Fabric, ctx context.Context, module Module, fn func(context.Context) (T, error), fallback T) (T, bool) {
	if !f.breaker.Allow(string(module)) {
		log.Printf("[SAFETY] %s: circuit open, using fallback", module)
		callOutcomes.WithLabelValues(string(module), "open").Inc()
		return fallback, false
	}

	// Despike concurrent bursts before the timeout clock starts.
	time.Sleep(jitterMin + time.Duration(rand.Int63n(int64(jitterMax-jitterMin))))

	callCtx, cancel := context.WithTimeout(ctx, Timeout(module))
	defer cancel()

	result, err := fn(callCtx)
	if err != nil {
		f.breaker.RecordFailure(string(module))
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
			err = ErrTimeout
		}
		log.Printf("[SAFETY] %s: call failed (%v), using fallback", module, err)
		callOutcomes.WithLabelValues(string(module), outcome).Inc()
		return fallback, false
	}

	f.breaker.RecordSuccess(string(module))
	callOutcomes.WithLabelValues(string(module), "ok").Inc()
	return result, true
}
