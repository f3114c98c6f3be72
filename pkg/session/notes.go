package session

import (
	"fmt"
	"strings"

	"github.com/decoynet/honeypot/pkg/detect"
	"github.com/decoynet/honeypot/pkg/extract"
)

var scamTypeLabels = map[detect.ScamType]string{
	detect.TypePhishing:      "a phishing scam",
	detect.TypeLottery:       "a lottery scam",
	detect.TypeTechSupport:   "a tech support scam",
	detect.TypeRomance:       "a romance scam",
	detect.TypeInvestment:    "an investment scam",
	detect.TypeFakeJob:       "a fake job scam",
	detect.TypeImpersonation: "an impersonation scam",
	detect.TypeUnknown:       "an unclassified engagement",
}

var kindLabels = map[extract.Kind]string{
	extract.KindBankAccount: "bank account numbers",
	extract.KindIFSC:        "IFSC codes",
	extract.KindUPI:         "UPI IDs",
	extract.KindLink:        "links",
	extract.KindPhone:       "phone numbers",
	extract.KindEmail:       "email addresses",
}

// buildAgentNotes composes the free-text summary shipped in the final
// report. Caller holds the session lock.
func buildAgentNotes(sess *Session) string {
	var b strings.Builder

	label := scamTypeLabels[sess.ScamType]
	if label == "" {
		label = "an unclassified engagement"
	}
	if sess.IsScam {
		fmt.Fprintf(&b, "Conversation identified as %s.", label)
	} else {
		fmt.Fprintf(&b, "Conversation ended without a scam confirmation; closest match was %s.", label)
	}

	if tactics := sortedKeys(sess.tactics); len(tactics) > 0 {
		fmt.Fprintf(&b, " Observed tactics: %s.", strings.Join(tactics, ", "))
	}

	fmt.Fprintf(&b, " Aggression was %s", aggressionLabel(sess))
	if sess.injectionAttempts > 0 {
		fmt.Fprintf(&b, ", including %d prompt injection attempt(s)", sess.injectionAttempts)
	}
	lang := sess.language
	if lang == "" {
		lang = "English"
	}
	fmt.Fprintf(&b, ". Language: %s.", lang)

	fmt.Fprintf(&b, " Engaged for %d messages using the %s persona", sess.MessageCount, sess.Persona.Name)
	if captured := capturedSummary(sess.Intel); captured != "" {
		fmt.Fprintf(&b, ", capturing %s.", captured)
	} else {
		b.WriteString("; no actionable intelligence was captured.")
	}

	return b.String()
}

func aggressionLabel(sess *Session) string {
	switch {
	case sess.urgencyTurns >= 3 || sess.credentialTurns >= 3:
		return "high, with sustained pressure across multiple turns"
	case sess.urgencyTurns > 0 || sess.credentialTurns > 0:
		return "moderate"
	default:
		return "low"
	}
}

func capturedSummary(g Graph) string {
	var parts []string
	for _, k := range extract.PriorityKinds {
		if n := len(g[k]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kindLabels[k]))
		}
	}
	if n := len(g[extract.KindEmail]); n > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", n, kindLabels[extract.KindEmail]))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}
