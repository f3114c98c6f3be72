package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Refinement carries the classifier's second opinion on an inbound message.
// It can add tactics and flip extractionIntent, but the rule score itself is
// never overridden by the model.
type Refinement struct {
	Tactics          []string `json:"tactics"`
	ExtractionIntent bool     `json:"extractionIntent"`
	ScamType         string   `json:"scamType"`
	Confidence       float64  `json:"confidence"`
}

const classifierSystemPrompt = `You analyze one message from a suspected scammer talking to a potential victim.

Identify social-engineering tactics in the message. Use only these labels:
urgency, fear, authority, greed, credential_request, payment_demand, suspicious_link, impersonation, trust_building.

Also decide:
- extractionIntent: true if the message asks the victim for credentials, payment, or personal details.
- scamType: one of phishing, lottery, tech_support, romance, investment, fake_job, impersonation, unknown.

Respond with JSON only:
{"tactics": ["..."], "extractionIntent": true|false, "scamType": "...", "confidence": 0.0-1.0}`

var knownTactics = map[string]bool{
	"urgency":            true,
	"fear":               true,
	"authority":          true,
	"greed":              true,
	"credential_request": true,
	"payment_demand":     true,
	"suspicious_link":    true,
	"impersonation":      true,
	"trust_building":     true,
}

// Refine asks the model for tactic labels on one inbound message. The reply
// is validated against the closed label set so a hallucinated tactic never
// reaches the final report.
func (c *Client) Refine(ctx context.Context, text string) (*Refinement, error) {
	content, err := c.complete(ctx, []message{
		{Role: "system", Content: classifierSystemPrompt},
		{Role: "user", Content: "MESSAGE: " + text},
	}, 0.1, 200)
	if err != nil {
		return nil, err
	}

	var result Refinement
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return nil, fmt.Errorf("classifier parse: %w", err)
	}

	var tactics []string
	for _, t := range result.Tactics {
		t = strings.ToLower(strings.TrimSpace(t))
		if knownTactics[t] {
			tactics = append(tactics, t)
		}
	}
	result.Tactics = tactics

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}
