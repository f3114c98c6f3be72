package llm

import (
	"context"
	"fmt"
	"strings"
)

const naturalizeSystemPrompt = `You rewrite one short chat reply so it sounds like a specific person typing on their phone. Keep it under three sentences.

Rules:
- Keep the meaning and especially any question or request in the draft. If the draft asks for a detail, the rewrite must still ask for that detail.
- Stay fully in character. Never mention being artificial, automated, or part of any system.
- No quotation marks around the output, no preamble. Output only the rewritten reply.`

// nounForKind maps a missing-detail kind to the noun the rewritten reply
// must still carry. Used to validate that naturalization preserved the ask.
var nounForKind = map[string][]string{
	"bankAccount": {"account"},
	"ifscCode":    {"ifsc", "branch"},
	"upiId":       {"upi"},
	"link":        {"link", "website", "url"},
	"phoneNumber": {"number", "phone", "call"},
}

// Naturalize rewrites a template reply in the voice described by personaDesc.
// askKind names the detail the template is fishing for ("" when the reply is
// not an extraction probe). The rewritten text is returned only when it still
// carries the ask; otherwise an error signals the caller to keep the template.
func (c *Client) Naturalize(ctx context.Context, personaDesc, inbound, draft, askKind string) (string, error) {
	user := fmt.Sprintf("PERSON: %s\n\nTHEY JUST RECEIVED: %s\n\nDRAFT REPLY: %s", personaDesc, inbound, draft)

	out, err := c.complete(ctx, []message{
		{Role: "system", Content: naturalizeSystemPrompt},
		{Role: "user", Content: user},
	}, 0.7, 200)
	if err != nil {
		return "", err
	}

	out = strings.Trim(strings.TrimSpace(out), `"`)
	if out == "" {
		return "", fmt.Errorf("naturalize: empty reply")
	}
	if !preservesAsk(out, askKind) {
		return "", fmt.Errorf("naturalize: rewrite dropped the ask")
	}
	return out, nil
}

// preservesAsk checks that a rewrite still reads like a question or request.
// A reply that lost both the target noun and every interrogative cue has
// drifted too far from the draft to be useful.
func preservesAsk(out, askKind string) bool {
	lower := strings.ToLower(out)
	if askKind != "" {
		for _, noun := range nounForKind[askKind] {
			if strings.Contains(lower, noun) {
				return true
			}
		}
	}
	return strings.Contains(out, "?") || strings.Contains(lower, "your")
}
