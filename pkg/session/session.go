// Package session owns the per-conversation state machine and the atomic
// per-turn update. The session manager is the sole mutator of session
// records; everything else sees immutable snapshots.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/decoynet/honeypot/pkg/detect"
	"github.com/decoynet/honeypot/pkg/extract"
	"github.com/decoynet/honeypot/pkg/persona"
)

// State is the session lifecycle stage. Transitions only move forward;
// skipping ahead is allowed, moving back never is.
type State int

const (
	StateInit State = iota
	StateEngaging
	StateScamDetected
	StateExtracting
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateEngaging:
		return "ENGAGING"
	case StateScamDetected:
		return "SCAM_DETECTED"
	case StateExtracting:
		return "EXTRACTING"
	case StateFinalized:
		return "FINALIZED"
	default:
		return "UNKNOWN"
	}
}

// Message is one immutable history entry.
type Message struct {
	Sender    string `json:"sender"` // "scammer" or "honeypot"
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// IntelItem is one captured artifact with its provenance.
type IntelItem struct {
	Value         string   `json:"value"`
	Confidence    float64  `json:"confidence"`
	FirstSeenTurn int      `json:"firstSeenTurn"`
	Sources       []string `json:"sources"`
}

// Graph maps artifact kinds to ordered-unique captured items. It only grows;
// duplicates merge by normalized value with the max confidence winning.
type Graph map[extract.Kind][]IntelItem

// Merge folds an extraction result into the graph. It returns true when at
// least one genuinely new artifact (by kind+value) was added. Keyword hits
// are recorded but never count as new intelligence.
func (g Graph) Merge(res extract.Result, turn int, source string) bool {
	added := false
	for kind, arts := range res {
		for _, a := range arts {
			if g.upsert(kind, a, turn, source) && kind != extract.KindKeyword {
				added = true
			}
		}
	}
	return added
}

func (g Graph) upsert(kind extract.Kind, a extract.Artifact, turn int, source string) bool {
	items := g[kind]
	for i := range items {
		if strings.EqualFold(items[i].Value, a.Value) {
			if a.Confidence > items[i].Confidence {
				items[i].Confidence = a.Confidence
			}
			items[i].Sources = appendUnique(items[i].Sources, source)
			return false
		}
	}
	g[kind] = append(items, IntelItem{
		Value:         a.Value,
		Confidence:    a.Confidence,
		FirstSeenTurn: turn,
		Sources:       []string{source},
	})
	return true
}

// KindCount returns the number of distinct intel kinds with at least one
// hit, excluding keywords.
func (g Graph) KindCount() int {
	n := 0
	for kind, items := range g {
		if kind != extract.KindKeyword && len(items) > 0 {
			n++
		}
	}
	return n
}

// Missing returns the priority-ladder kinds without any capture yet.
func (g Graph) Missing() []extract.Kind {
	var missing []extract.Kind
	for _, k := range extract.PriorityKinds {
		if len(g[k]) == 0 {
			missing = append(missing, k)
		}
	}
	return missing
}

// Values lists the captured values for one kind in insertion order.
func (g Graph) Values(kind extract.Kind) []string {
	items := g[kind]
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value)
	}
	return out
}

// Session is one conversation's full state. All mutation happens inside the
// engine while holding mu.
type Session struct {
	mu sync.Mutex

	ID                string
	State             State
	MessageCount      int
	History           []Message
	Intel             Graph
	SuspicionScore    float64
	IsScam            bool
	StrategyLevel     int
	LastNewIntelTurn  int
	LastActivityAt    time.Time
	CreatedAt         time.Time
	Persona           persona.Profile
	ScamType          detect.ScamType
	FinalizedNotified bool

	// lastTarget is the intel kind the previous reply asked for; it drives
	// the backup probe after a successful capture.
	lastTarget extract.Kind

	// tactics accumulates every observed tactic family for the final notes.
	tactics map[string]bool

	// language is the most recent content-based classification of the
	// scammer's messages.
	language string

	credentialTurns   int // turns that carried a credential request
	injectionAttempts int
	urgencyTurns      int
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:             id,
		State:          StateInit,
		Intel:          make(Graph),
		CreatedAt:      now,
		LastActivityAt: now,
		ScamType:       detect.TypeUnknown,
		Persona:        persona.ForScamType(detect.TypeUnknown),
		tactics:        make(map[string]bool),
	}
}

// advance moves the state forward. Backward transitions are ignored, which
// enforces monotonicity without the callers having to check.
func (s *Session) advance(to State) {
	if to > s.State {
		s.State = to
	}
}

// recentReplies returns the honeypot's last n outbound texts, oldest first.
func (s *Session) recentReplies(n int) []string {
	var replies []string
	for _, m := range s.History {
		if m.Sender == "honeypot" {
			replies = append(replies, m.Text)
		}
	}
	if len(replies) > n {
		replies = replies[len(replies)-n:]
	}
	return replies
}

// contextWindow returns the last n message texts before the current one.
func (s *Session) contextWindow(n int) []string {
	h := s.History
	if len(h) > 0 {
		h = h[:len(h)-1] // exclude the message just appended
	}
	if len(h) > n {
		h = h[len(h)-n:]
	}
	texts := make([]string, 0, len(h))
	for _, m := range h {
		texts = append(texts, m.Text)
	}
	return texts
}

// Snapshot is a lock-free copy for the debug endpoint.
type Snapshot struct {
	ID               string                       `json:"sessionId"`
	State            string                       `json:"state"`
	MessageCount     int                          `json:"messageCount"`
	SuspicionScore   float64                      `json:"suspicionScore"`
	IsScam           bool                         `json:"isScam"`
	ScamType         detect.ScamType              `json:"scamType"`
	Persona          string                       `json:"persona"`
	StrategyLevel    int                          `json:"strategyLevel"`
	LastNewIntelTurn int                          `json:"lastNewIntelTurn"`
	CreatedAt        time.Time                    `json:"createdAt"`
	LastActivityAt   time.Time                    `json:"lastActivityAt"`
	Language         string                       `json:"language"`
	Intel            map[extract.Kind][]IntelItem `json:"intelGraph"`
	History          []Message                    `json:"history"`
	Tactics          []string                     `json:"tactics"`
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	intel := make(map[extract.Kind][]IntelItem, len(s.Intel))
	for k, items := range s.Intel {
		intel[k] = append([]IntelItem(nil), items...)
	}
	return Snapshot{
		ID:               s.ID,
		State:            s.State.String(),
		MessageCount:     s.MessageCount,
		SuspicionScore:   s.SuspicionScore,
		IsScam:           s.IsScam,
		ScamType:         s.ScamType,
		Persona:          s.Persona.Name,
		StrategyLevel:    s.StrategyLevel,
		LastNewIntelTurn: s.LastNewIntelTurn,
		CreatedAt:        s.CreatedAt,
		LastActivityAt:   s.LastActivityAt,
		Language:         s.language,
		Intel:            intel,
		History:          append([]Message(nil), s.History...),
		Tactics:          sortedKeys(s.tactics),
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(xs []string, x string) []string {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}
