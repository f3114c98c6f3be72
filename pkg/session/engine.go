package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/decoynet/honeypot/pkg/callback"
	"github.com/decoynet/honeypot/pkg/detect"
	"github.com/decoynet/honeypot/pkg/extract"
	"github.com/decoynet/honeypot/pkg/guardrails"
	"github.com/decoynet/honeypot/pkg/llm"
	"github.com/decoynet/honeypot/pkg/persona"
	"github.com/decoynet/honeypot/pkg/safety"
)

// contextTurns is how many prior messages feed cross-turn stitching.
const contextTurns = 4

// closingReply is sent to sessions that keep writing after finalization.
// The state no longer changes at that point.
const closingReply = "I have to step away now. We can continue later."

// LLMBackend is what the engine needs from the model client. A nil backend
// or a disabled one yields the pure template path.
type LLMBackend interface {
	Enabled() bool
	Refine(ctx context.Context, text string) (*llm.Refinement, error)
	Naturalize(ctx context.Context, personaDesc, inbound, draft, askKind string) (string, error)
	ExtractAssist(ctx context.Context, text string) (extract.Result, error)
}

// Dispatcher receives the finalization payload exactly once per session.
type Dispatcher interface {
	Dispatch(p callback.Payload)
}

var (
	turnsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "honeypot",
		Subsystem: "session",
		Name:      "turns_total",
		Help:      "Inbound turns processed.",
	})
	scamsConfirmed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "honeypot",
		Subsystem: "session",
		Name:      "scams_confirmed_total",
		Help:      "Sessions confirmed as scams.",
	})
	finalizations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "honeypot",
		Subsystem: "session",
		Name:      "finalizations_total",
		Help:      "Session finalizations by termination criterion.",
	}, []string{"criterion"})
)

func init() {
	prometheus.MustRegister(turnsProcessed, scamsConfirmed, finalizations)
}

// Engine drives the per-turn pipeline. One engine serves all sessions;
// per-session serialization comes from each session's own lock.
type Engine struct {
	store       *Store
	fabric      *safety.Fabric
	backend     LLMBackend
	templates   *persona.Engine
	dispatcher  Dispatcher
	idleTimeout time.Duration

	now func() time.Time
}

// NewEngine wires the engine. backend may be nil for template-only runs.
func NewEngine(store *Store, fabric *safety.Fabric, backend LLMBackend, templates *persona.Engine, dispatcher Dispatcher, idleTimeout time.Duration) *Engine {
	if idleTimeout <= 0 {
		idleTimeout = 60 * time.Second
	}
	return &Engine{
		store:       store,
		fabric:      fabric,
		backend:     backend,
		templates:   templates,
		dispatcher:  dispatcher,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Store exposes the underlying store for the HTTP layer.
func (e *Engine) Store() *Store {
	return e.store
}

// HandleTurn runs the full atomic update for one inbound message and
// returns the outbound reply. It never fails for recoverable conditions;
// every degradation substitutes a safe fallback.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, text string, tsMillis int64) string {
	now := e.now()
	sess := e.store.GetOrCreate(sessionID, now)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.State == StateFinalized {
		return closingReply
	}

	turnsProcessed.Inc()

	// 1. Record the inbound message.
	if tsMillis == 0 {
		tsMillis = now.UnixMilli()
	}
	sess.History = append(sess.History, Message{Sender: "scammer", Text: text, Timestamp: tsMillis})
	sess.MessageCount++
	sess.LastActivityAt = now
	sess.language = detect.Language(text)

	// 4 (early). Score the message; the signal also gates Layer-2 extraction.
	sig := detect.Score(text)
	e.refineSignal(ctx, text, &sig)
	for _, tac := range sig.Tactics {
		sess.tactics[tac] = true
	}
	if sig.HasUrgency {
		sess.urgencyTurns++
	}
	if sig.IsPromptInjection {
		sess.injectionAttempts++
	}

	// 2. Extract intelligence, two-layered.
	res := extract.Extract(text, sess.contextWindow(contextTurns))
	if len(res) == 0 && (sig.RuleScore >= 0.4 || sig.HasPaymentTerms) {
		if assisted := e.assistExtract(ctx, text); assisted != nil {
			res = assisted
		}
	}
	for _, kw := range sig.Keywords {
		res[extract.KindKeyword] = append(res[extract.KindKeyword], extract.Artifact{
			Value: kw, Kind: extract.KindKeyword, Confidence: 1.0,
		})
	}

	// 3. Merge; new artifacts reset the stall clock.
	if sess.Intel.Merge(res, sess.MessageCount, "message") {
		sess.LastNewIntelTurn = sess.MessageCount
	}

	// 5. Fold the signal into the suspicion score until the scam is
	// confirmed; the score freezes at that point.
	repeatedCredential := sig.HasCredentialRequest && sess.credentialTurns > 0
	if sig.HasCredentialRequest {
		sess.credentialTurns++
	}
	if !sess.IsScam {
		sess.SuspicionScore += 0.4*sig.RuleScore +
			0.2*boolScore(sig.HasUrgency) +
			0.2*boolScore(sig.HasPaymentTerms) +
			0.3*boolScore(repeatedCredential)
		sess.SuspicionScore = clamp(sess.SuspicionScore, 0, 2.0)

		if sig.RuleScore >= 0.7 || sess.SuspicionScore > 1.2 || sig.Shortcut {
			sess.IsScam = true
			sess.advance(StateScamDetected)
			scamsConfirmed.Inc()
			log.Printf("[SESSION] %s: scam confirmed (rule=%.2f suspicion=%.2f shortcut=%v)",
				sess.ID, sig.RuleScore, sess.SuspicionScore, sig.Shortcut)
		} else {
			sess.advance(StateEngaging)
		}
	}

	// Scam type settles on the first concrete classification and the
	// persona stays whatever that type selected.
	if sess.ScamType == detect.TypeUnknown && sig.ScamType != detect.TypeUnknown {
		sess.ScamType = sig.ScamType
		sess.Persona = persona.ForScamType(sig.ScamType)
	}

	// 6. Extraction stage begins once something was captured, or on the
	// second confirmed-scam turn at the latest.
	if sess.IsScam && sess.State == StateScamDetected &&
		(sess.MessageCount >= 2 || sess.Intel.KindCount() > 0) {
		sess.advance(StateExtracting)
	}

	// 7. Escalate the strategy ladder on stalls, never before turn 4.
	if sess.MessageCount >= 4 && sess.MessageCount-sess.LastNewIntelTurn >= 2 {
		if sess.StrategyLevel < 3 {
			sess.StrategyLevel++
		}
	}

	// 8. Generate the reply.
	reply := e.generateReply(ctx, sess, text, sig)

	// 9. Record the outbound message.
	sess.History = append(sess.History, Message{Sender: "honeypot", Text: reply, Timestamp: e.now().UnixMilli()})

	// 10. Terminate when a criterion holds.
	if criterion := terminationCriterion(sess); criterion != "" {
		e.finalizeLocked(sess, criterion)
	}

	return reply
}

// refineSignal lets the classifier add tactics and flip extractionIntent.
// The rule score is never touched.
func (e *Engine) refineSignal(ctx context.Context, text string, sig *detect.Signal) {
	if e.backend == nil || !e.backend.Enabled() {
		return
	}
	refined, live := safety.Call(e.fabric, ctx, safety.ModuleClassifier, func(ctx context.Context) (*llm.Refinement, error) {
		return e.backend.Refine(ctx, text)
	}, nil)
	if !live || refined == nil {
		return
	}

	seen := make(map[string]bool, len(sig.Tactics))
	for _, t := range sig.Tactics {
		seen[t] = true
	}
	for _, t := range refined.Tactics {
		if !seen[t] {
			sig.Tactics = append(sig.Tactics, t)
		}
	}
	if refined.ExtractionIntent {
		sig.ExtractionIntent = true
	}
	if sig.ScamType == detect.TypeUnknown && refined.ScamType != "" {
		sig.ScamType = detect.ScamType(refined.ScamType)
	}
}

// assistExtract runs the model extraction layer under the extractor breaker.
func (e *Engine) assistExtract(ctx context.Context, text string) extract.Result {
	if e.backend == nil || !e.backend.Enabled() {
		return nil
	}
	res, live := safety.Call(e.fabric, ctx, safety.ModuleExtractor, func(ctx context.Context) (extract.Result, error) {
		return e.backend.ExtractAssist(ctx, text)
	}, nil)
	if !live {
		return nil
	}
	return res
}

// generateReply runs template selection, optional naturalization, loop
// detection, sanitization, and typo injection. Caller holds the session lock.
func (e *Engine) generateReply(ctx context.Context, sess *Session, inbound string, sig detect.Signal) string {
	recent := sess.recentReplies(3)

	template, category := e.templates.Select(persona.SelectInput{
		Missing:       sess.Intel.Missing(),
		CapturedKinds: sess.Intel.KindCount(),
		LastTarget:    sess.lastTarget,
		Inbound:       inbound,
		MessageCount:  sess.MessageCount,
		RecentReplies: recent,
	})
	askKind := persona.Target(category)

	candidate := template
	if sess.MessageCount > 1 && e.backend != nil && e.backend.Enabled() {
		candidate, _ = safety.Call(e.fabric, ctx, safety.ModuleGenerator, func(ctx context.Context) (string, error) {
			return e.backend.Naturalize(ctx, sess.Persona.Description, inbound, template, string(askKind))
		}, template)
	}

	if persona.LoopDetect(candidate, recent) {
		candidate = e.templates.Sibling(category, candidate, recent)
	}

	final := guardrails.Sanitize(candidate, sig.IsPromptInjection)
	final = persona.InjectTypo(final, sess.Persona, sess.MessageCount)

	sess.lastTarget = askKind
	return final
}

// terminationCriterion evaluates the in-turn criteria in order. Idle
// timeouts are the reaper's job; the finalized guard at the top of
// HandleTurn covers already-closed sessions.
func terminationCriterion(sess *Session) string {
	switch {
	case sess.Intel.KindCount() >= 3 && sess.MessageCount >= 8:
		return "rich_intel"
	case sess.MessageCount-sess.LastNewIntelTurn >= 3 && sess.MessageCount >= 8:
		return "stalled"
	case sess.MessageCount >= 15:
		return "hard_cap"
	}
	return ""
}

// finalizeLocked marks the session finalized and schedules the callback
// exactly once. Caller holds the session lock.
func (e *Engine) finalizeLocked(sess *Session, criterion string) {
	sess.advance(StateFinalized)
	if sess.FinalizedNotified {
		return
	}
	sess.FinalizedNotified = true
	finalizations.WithLabelValues(criterion).Inc()
	log.Printf("[SESSION] %s: finalized (%s) after %d messages", sess.ID, criterion, sess.MessageCount)

	payload := e.buildPayload(sess)
	e.dispatcher.Dispatch(payload)
}

// buildPayload snapshots the finalization report. Caller holds the session
// lock; the payload shares nothing mutable with the session.
func (e *Engine) buildPayload(sess *Session) callback.Payload {
	duration := int(sess.LastActivityAt.Sub(sess.CreatedAt).Seconds())
	if duration < 0 {
		duration = 0
	}
	return callback.Payload{
		SessionID:    sess.ID,
		Status:       "completed",
		ScamDetected: sess.IsScam,
		ExtractedIntelligence: callback.Intelligence{
			PhoneNumbers:   valuesOrEmpty(sess.Intel, extract.KindPhone),
			BankAccounts:   valuesOrEmpty(sess.Intel, extract.KindBankAccount),
			UPIIDs:         valuesOrEmpty(sess.Intel, extract.KindUPI),
			IFSCCodes:      valuesOrEmpty(sess.Intel, extract.KindIFSC),
			PhishingLinks:  valuesOrEmpty(sess.Intel, extract.KindLink),
			EmailAddresses: valuesOrEmpty(sess.Intel, extract.KindEmail),
		},
		EngagementMetrics: callback.Metrics{
			TotalMessagesExchanged:    sess.MessageCount,
			EngagementDurationSeconds: duration,
		},
		AgentNotes: buildAgentNotes(sess),
	}
}

// ReapIdle finalizes sessions idle beyond the timeout. Called by the
// periodic reaper.
func (e *Engine) ReapIdle() {
	now := e.now()
	e.store.ForEach(func(sess *Session) {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if sess.State == StateFinalized {
			return
		}
		if now.Sub(sess.LastActivityAt) >= e.idleTimeout {
			e.finalizeLocked(sess, "idle")
		}
	})
}

// StartReaper launches the idle scan loop. The returned stop function is
// idempotent.
func (e *Engine) StartReaper(interval time.Duration) func() {
	if interval <= 0 || interval > 10*time.Second {
		interval = 5 * time.Second
	}
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.ReapIdle()
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}

func valuesOrEmpty(g Graph, kind extract.Kind) []string {
	if vs := g.Values(kind); vs != nil {
		return vs
	}
	return []string{}
}

func boolScore(b bool) float64 {
	if b {
		return 1
	}
	return 0
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
